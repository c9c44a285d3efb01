package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cellsignal/mapper/internal/session"
	"github.com/cellsignal/mapper/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func fixtureSession() *session.Session {
	s := session.New()
	timestamp := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	s.Append(
		session.Measurement{
			Timestamp: timestamp,
			Latitude:  ptr(28.6139),
			Longitude: ptr(77.2090),
			Altitude:  ptr(30),
			Band:      "LTE-B5-DL",
			Frequency: 869_000_000,
			Power:     -61.5,
			SessionID: s.ID(),
		},
		session.Measurement{
			Timestamp: timestamp,
			Latitude:  ptr(28.6140),
			Longitude: ptr(77.2091),
			Band:      "LTE-B3-DL",
			Frequency: 1_805_000_000,
			Power:     -80.25,
			SessionID: s.ID(),
		},
		session.Measurement{
			// Degraded mode: no fix was available for this cycle
			Timestamp: timestamp,
			Band:      "LTE-B3-DL",
			Frequency: 1_806_000_000,
			Power:     -999.0,
			SessionID: s.ID(),
		},
	)
	return s
}

func TestCSVExport(t *testing.T) {
	s := fixtureSession()
	exporter := &CSV{Dir: t.TempDir()}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("reading CSV: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected header + 3 rows, got %d records", len(records))
	}

	header := strings.Join(records[0], ",")
	if header != "timestamp,latitude,longitude,altitude,band,frequency_mhz,signal_dbm,session_id" {
		t.Errorf("unexpected header: %s", header)
	}

	if records[1][5] != "869.000000" {
		t.Errorf("frequency not converted to MHz: %s", records[1][5])
	}
	if records[1][1] != "28.613900" {
		t.Errorf("latitude: %s", records[1][1])
	}

	// Degraded-mode row keeps its location cells empty
	if records[3][1] != "" || records[3][2] != "" || records[3][3] != "" {
		t.Errorf("expected empty location cells, got %v", records[3][1:4])
	}
	if records[3][6] != "-999.000000" {
		t.Errorf("sentinel power: %s", records[3][6])
	}
}

func TestJSONExport(t *testing.T) {
	s := fixtureSession()
	exporter := &JSON{Dir: t.TempDir()}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	var envelope struct {
		SessionID       string                `json:"session_id"`
		NumMeasurements int                   `json:"num_measurements"`
		Measurements    []session.Measurement `json:"measurements"`
	}
	if err = json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("parsing output: %v", err)
	}

	if envelope.SessionID != s.ID() {
		t.Errorf("session ID: expected %s, got %s", s.ID(), envelope.SessionID)
	}
	if envelope.NumMeasurements != 3 {
		t.Errorf("expected 3 measurements, got %d", envelope.NumMeasurements)
	}
	if envelope.Measurements[2].Latitude != nil {
		t.Error("degraded measurement gained a latitude")
	}
	if envelope.Measurements[0].Band != "LTE-B5-DL" {
		t.Errorf("band: %s", envelope.Measurements[0].Band)
	}
}

func TestJSONExport_EmptySession(t *testing.T) {
	s := session.New()
	exporter := &JSON{Dir: t.TempDir()}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("empty session marshaled measurements as null:\n%s", data)
	}
}

func TestKMLExport(t *testing.T) {
	s := fixtureSession()
	exporter := &KML{Dir: t.TempDir()}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	doc := string(data)

	if !strings.HasPrefix(doc, "<?xml") {
		t.Error("missing XML header")
	}
	if got := strings.Count(doc, "<Folder>"); got != 2 {
		t.Errorf("expected one folder per band (2), got %d", got)
	}
	// Only located measurements become placemarks
	if got := strings.Count(doc, "<Placemark>"); got != 2 {
		t.Errorf("expected 2 placemarks, got %d", got)
	}
	if !strings.Contains(doc, "77.209000,28.613900,30.000000") {
		t.Error("missing lon,lat,alt coordinates")
	}
	if !strings.Contains(doc, "<altitudeMode>relativeToGround</altitudeMode>") {
		t.Error("altitude measurement missing altitude mode")
	}
	if !strings.Contains(doc, "869.00 MHz") {
		t.Error("missing placemark name")
	}
}

func TestKMLExport_PathsAndCoverageZones(t *testing.T) {
	s := session.New()
	timestamp := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, power := range []float64{-60, -75, -110} {
		s.Append(session.Measurement{
			Timestamp: timestamp.Add(time.Duration(i) * time.Second),
			Latitude:  ptr(28.6139 + float64(i)*0.0001),
			Longitude: ptr(77.2090 + float64(i)*0.0001),
			Band:      "LTE-B5-DL",
			Frequency: 869_000_000,
			Power:     power,
			SessionID: s.ID(),
		})
	}

	dir := t.TempDir()
	exporter := &KML{Dir: dir}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading signal map: %v", err)
	}
	doc := string(data)

	// The band folder carries a flight path line through all three points
	if got := strings.Count(doc, "<LineString>"); got != 1 {
		t.Fatalf("expected 1 flight path, got %d", got)
	}
	if !strings.Contains(doc, "Measurement Path") {
		t.Error("flight path placemark missing")
	}
	lineCoords := doc[strings.Index(doc, "<LineString>"):]
	if got := strings.Count(lineCoords[:strings.Index(lineCoords, "</LineString>")], "28.61"); got != 3 {
		t.Errorf("expected path through 3 points, got %d", got)
	}

	zones, err := os.ReadFile(filepath.Join(dir, "coverage_zones_"+s.ID()+".kml"))
	if err != nil {
		t.Fatalf("reading coverage zones: %v", err)
	}
	zonesDoc := string(zones)

	if !strings.Contains(zonesDoc, "Good Coverage (&gt;= -100 dBm)") {
		t.Error("good coverage folder missing")
	}
	if !strings.Contains(zonesDoc, "Weak Coverage (&lt; -100 dBm)") {
		t.Error("weak coverage folder missing")
	}
	if got := strings.Count(zonesDoc, "ff00ff00"); got != 2 {
		t.Errorf("expected 2 good coverage points, got %d", got)
	}
	if got := strings.Count(zonesDoc, "ff0000ff"); got != 1 {
		t.Errorf("expected 1 weak coverage point, got %d", got)
	}
}

func TestSignalColor(t *testing.T) {
	tests := []struct {
		name  string
		power float64
		want  string
	}{
		{"below range clamps to red", -150, "ff0000ff"},
		{"minimum is red", -120, "ff0000ff"},
		{"midpoint is yellow", -85, "ff00ffff"},
		{"maximum is green", -50, "ff00ff00"},
		{"above range clamps to green", -10, "ff00ff00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signalColor(tt.power, defaultMinSignal, defaultMaxSignal); got != tt.want {
				t.Errorf("signalColor(%v) = %s, want %s", tt.power, got, tt.want)
			}
		})
	}
}

func TestSQLiteExport(t *testing.T) {
	s := fixtureSession()
	exporter := &SQLite{
		Dir:        t.TempDir(),
		DeviceType: "RTL-SDR",
		Config:     map[string]any{"gain": 40},
	}

	path, err := exporter.Export(context.Background(), s)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	store := storage.New(path)
	defer store.Close()

	sessions, err := store.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].SessionKey != s.ID() {
		t.Errorf("session key: expected %s, got %s", s.ID(), sessions[0].SessionKey)
	}
	if sessions[0].DeviceType != "RTL-SDR" {
		t.Errorf("device type: %s", sessions[0].DeviceType)
	}

	measurements, err := store.Measurements(context.Background(), sessions[0].ID)
	if err != nil {
		t.Fatalf("Measurements failed: %v", err)
	}
	if len(measurements) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(measurements))
	}
	if !measurements[0].Latitude.Valid || measurements[0].Latitude.Float64 != 28.6139 {
		t.Errorf("first measurement latitude: %+v", measurements[0].Latitude)
	}
	if measurements[2].Latitude.Valid {
		t.Error("degraded measurement has non-NULL latitude")
	}
	if measurements[2].Power != -999.0 {
		t.Errorf("sentinel power: %v", measurements[2].Power)
	}
}
