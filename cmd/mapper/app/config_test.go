package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfig = `
settings:
  logLevel: debug
  mode: continuous

scanner:
  deviceIndex: 0
  gain: 400
  integrationTime: 1.0
  binWidth: 1000

bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
  - name: GSM-900
    enabled: false
    frequencyStart: 935000000
    frequencyEnd: 960000000
    integrationTime: 2.5

gps:
  enabled: true
  mock: true

session:
  interval: 10s
  duration: 30m
  fixWaitTimeout: 45s

export:
  outputDirectory: out
  formats: [csv, kml, heatmap]
  kml:
    minSignal: -110
    maxSignal: -40
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.Mode != ModeContinuous {
		t.Errorf("mode: %s", config.Settings.Mode)
	}
	if config.Session.Interval.Duration() != 10*time.Second {
		t.Errorf("interval: %s", config.Session.Interval.String())
	}
	if config.Session.Duration.Duration() != 30*time.Minute {
		t.Errorf("duration: %s", config.Session.Duration.String())
	}

	if len(config.Bands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(config.Bands))
	}
	if config.Bands[1].Enabled {
		t.Error("second band should be disabled")
	}
	if config.Bands[1].IntegrationTime != 2.5 {
		t.Errorf("per-band integration time: %v", config.Bands[1].IntegrationTime)
	}

	bands := config.ScannerBands()
	if bands[0].Name != "LTE-B5-DL" || bands[0].FrequencyStart != 869_000_000 {
		t.Errorf("band conversion: %+v", bands[0])
	}

	if got := config.Export.Formats; len(got) != 3 || got[1] != "kml" {
		t.Errorf("formats: %v", got)
	}
	if config.Export.KML.MinSignal != -110 {
		t.Errorf("kml minSignal: %v", config.Export.KML.MinSignal)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Settings.Mode != ModeContinuous {
		t.Errorf("default mode: %s", config.Settings.Mode)
	}
	if config.Session.Interval.Duration() != defaultInterval {
		t.Errorf("default interval: %s", config.Session.Interval.String())
	}
	if config.Session.FixWaitTimeout.Duration() != defaultFixWaitTimeout {
		t.Errorf("default fix wait: %s", config.Session.FixWaitTimeout.String())
	}
	if config.Export.OutputDirectory != defaultOutputDir {
		t.Errorf("default output directory: %s", config.Export.OutputDirectory)
	}
	if config.GPS.MavlinkPort != defaultMavlinkPort || config.GPS.MavlinkBaud != defaultMavlinkBaud {
		t.Errorf("mavlink defaults: %s @ %d", config.GPS.MavlinkPort, config.GPS.MavlinkBaud)
	}
}

func TestLoadConfig_MavlinkNeedsNoSerialPort(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
gps:
  enabled: true
  mavlink: true
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !config.GPS.Mavlink {
		t.Error("mavlink source not selected")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "no bands",
			content: "settings:\n  mode: single\n",
			errText: "no bands configured",
		},
		{
			name: "all bands disabled",
			content: `
bands:
  - name: LTE-B5-DL
    enabled: false
    frequencyStart: 869000000
    frequencyEnd: 894000000
`,
			errText: "no bands enabled",
		},
		{
			name: "inverted frequency range",
			content: `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 894000000
    frequencyEnd: 869000000
`,
			errText: "invalid frequency range",
		},
		{
			name: "serial GPS without port",
			content: `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
gps:
  enabled: true
`,
			errText: "serialPort is required",
		},
		{
			name: "unknown export format",
			content: `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
export:
  formats: [xml]
`,
			errText: "unknown export format",
		},
		{
			name: "bad mode",
			content: `
settings:
  mode: batch
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
`,
			errText: "invalid mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("error %q does not contain %q", err, tt.errText)
			}
		})
	}
}

func TestTimeDuration_Unmarshal(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
bands:
  - name: LTE-B5-DL
    enabled: true
    frequencyStart: 869000000
    frequencyEnd: 894000000
session:
  interval: 2m30s
`))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Session.Interval.Duration() != 2*time.Minute+30*time.Second {
		t.Errorf("interval: %s", config.Session.Interval.String())
	}
}
