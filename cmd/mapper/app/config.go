package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cellsignal/mapper/internal/scanner"
)

// Acquisition modes selectable via configuration or the -mode flag.
const (
	ModeSingle     = "single"
	ModeContinuous = "continuous"
)

// Export format names accepted in the export.formats list.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatKML     = "kml"
	FormatSQLite  = "sqlite"
	FormatHeatmap = "heatmap"
)

const (
	defaultInterval       = 5 * time.Second
	defaultFixWaitTimeout = 60 * time.Second
	defaultBaudRate       = 9600
	defaultMavlinkPort    = "/dev/ttyACM0"
	defaultMavlinkBaud    = 57600
	defaultOutputDir      = "data"
)

// TimeDuration wraps time.Duration for YAML configuration values such as
// "5s" or "2m30s".
type TimeDuration time.Duration

func (d *TimeDuration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.TimeDuration: failed to parse: %s", err)
	}

	*d = TimeDuration(duration)
	return nil
}

func (d *TimeDuration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *TimeDuration) String() string {
	return time.Duration(*d).String()
}

func (d *TimeDuration) Duration() time.Duration {
	return time.Duration(*d)
}

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Scanner  ScannerConfig `yaml:"scanner"`
	Bands    []BandConfig  `yaml:"bands"`
	GPS      GPSConfig     `yaml:"gps"`
	Session  SessionConfig `yaml:"session"`
	Export   ExportConfig  `yaml:"export"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Mode     string `yaml:"mode"`
}

// SlogLevel parses the configured log level, defaulting to info.
func (s Settings) SlogLevel() slog.Level {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ScannerConfig represents rtl_power device settings shared by all bands
type ScannerConfig struct {
	DeviceIndex     int     `yaml:"deviceIndex"`
	Gain            int     `yaml:"gain"`
	IntegrationTime float64 `yaml:"integrationTime"`
	BinWidth        int64   `yaml:"binWidth"`
}

// BandConfig represents a single frequency band to scan
type BandConfig struct {
	Name           string `yaml:"name"`
	Enabled        bool   `yaml:"enabled"`
	FrequencyStart int64  `yaml:"frequencyStart"`
	FrequencyEnd   int64  `yaml:"frequencyEnd"`

	// Optional per-band overrides
	BinWidth        int64   `yaml:"binWidth"`
	IntegrationTime float64 `yaml:"integrationTime"`
	Gain            int     `yaml:"gain"`
}

// GPSConfig represents GPS receiver settings. The position source is either
// a dedicated NMEA receiver on serialPort, the flight controller's telemetry
// link when mavlink is set, or simulated positions when mock is set.
type GPSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Mock          bool   `yaml:"mock"`
	Mavlink       bool   `yaml:"mavlink"`
	SerialPort    string `yaml:"serialPort"`
	BaudRate      int    `yaml:"baudRate"`
	MavlinkPort   string `yaml:"mavlinkPort"`
	MavlinkBaud   int    `yaml:"mavlinkBaud"`
	MinSatellites int    `yaml:"minSatellites"`
}

// SessionConfig represents acquisition loop settings
type SessionConfig struct {
	Interval       TimeDuration `yaml:"interval"`
	Duration       TimeDuration `yaml:"duration"`
	FixWaitTimeout TimeDuration `yaml:"fixWaitTimeout"`
}

// ExportConfig represents finalization output settings
type ExportConfig struct {
	OutputDirectory string        `yaml:"outputDirectory"`
	Formats         []string      `yaml:"formats"`
	KML             KMLConfig     `yaml:"kml"`
	Heatmap         HeatmapConfig `yaml:"heatmap"`
}

// KMLConfig tunes the KML color gradient and coverage split
type KMLConfig struct {
	MinSignal         float64 `yaml:"minSignal"`
	MaxSignal         float64 `yaml:"maxSignal"`
	CoverageThreshold float64 `yaml:"coverageThreshold"`
}

// HeatmapConfig tunes the coverage map renderer
type HeatmapConfig struct {
	CellSize      float64 `yaml:"cellSize"`
	MaxImageWidth int     `yaml:"maxImageWidth"`
	FontPath      string  `yaml:"fontPath"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		Settings: Settings{Mode: ModeContinuous},
		GPS: GPSConfig{
			BaudRate:    defaultBaudRate,
			MavlinkPort: defaultMavlinkPort,
			MavlinkBaud: defaultMavlinkBaud,
		},
		Session: SessionConfig{
			Interval:       TimeDuration(defaultInterval),
			FixWaitTimeout: TimeDuration(defaultFixWaitTimeout),
		},
		Export: ExportConfig{
			OutputDirectory: defaultOutputDir,
			Formats:         []string{FormatCSV, FormatJSON},
		},
	}
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the configuration for values that cannot produce a
// usable session.
func (c *Config) Validate() error {
	switch c.Settings.Mode {
	case ModeSingle, ModeContinuous:
	default:
		return fmt.Errorf("invalid mode '%s'", c.Settings.Mode)
	}

	if len(c.Bands) == 0 {
		return fmt.Errorf("no bands configured")
	}

	enabled := 0
	for i, band := range c.Bands {
		if band.Name == "" {
			return fmt.Errorf("band %d: name is required", i)
		}
		if band.FrequencyStart <= 0 || band.FrequencyEnd <= band.FrequencyStart {
			return fmt.Errorf("band %s: invalid frequency range [%d, %d]",
				band.Name, band.FrequencyStart, band.FrequencyEnd)
		}
		if band.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no bands enabled")
	}

	if c.GPS.Enabled && !c.GPS.Mock && !c.GPS.Mavlink && c.GPS.SerialPort == "" {
		return fmt.Errorf("gps.serialPort is required when GPS is enabled")
	}

	if c.Settings.Mode == ModeContinuous && c.Session.Interval.Duration() <= 0 {
		return fmt.Errorf("session.interval must be positive")
	}

	for _, format := range c.Export.Formats {
		switch format {
		case FormatCSV, FormatJSON, FormatKML, FormatSQLite, FormatHeatmap:
		default:
			return fmt.Errorf("unknown export format '%s'", format)
		}
	}

	return nil
}

// ScannerBands converts the configured bands into scanner values, keeping
// declaration order.
func (c *Config) ScannerBands() []scanner.Band {
	bands := make([]scanner.Band, len(c.Bands))
	for i, band := range c.Bands {
		bands[i] = scanner.Band{
			Name:            band.Name,
			Enabled:         band.Enabled,
			FrequencyStart:  band.FrequencyStart,
			FrequencyEnd:    band.FrequencyEnd,
			BinWidth:        band.BinWidth,
			IntegrationTime: band.IntegrationTime,
			Gain:            band.Gain,
		}
	}
	return bands
}
