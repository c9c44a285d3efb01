package export

import (
	"context"
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cellsignal/mapper/internal/session"
)

const (
	defaultMinSignal = -120.0 // dBm
	defaultMaxSignal = -50.0  // dBm

	// defaultCoverageThreshold splits good from weak coverage in the zones
	// document.
	defaultCoverageThreshold = -100.0 // dBm

	kmlNamespace = "http://www.opengis.net/kml/2.2"

	pathColor = "ff0000ff" // red
	goodColor = "ff00ff00" // green
	weakColor = "ff0000ff" // red
)

// KML writes two Google Earth documents: a signal map with one folder per
// band (a placemark per located measurement plus a line tracing the flight
// path), and a coverage-zones document splitting points at a signal
// threshold. Measurements without a GPS fix are skipped: KML placemarks
// need coordinates.
type KML struct {
	Dir string

	// Signal thresholds for the color gradient; zero values use defaults.
	MinSignal float64 // dBm mapped to red
	MaxSignal float64 // dBm mapped to green

	// CoverageThreshold separates good from weak coverage; zero uses the
	// default.
	CoverageThreshold float64 // dBm
}

type kmlFile struct {
	XMLName  xml.Name    `xml:"kml"`
	Xmlns    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	Name    string      `xml:"name"`
	Folders []kmlFolder `xml:"Folder"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description,omitempty"`
	Style       kmlStyle       `xml:"Style"`
	Point       *kmlPoint      `xml:"Point,omitempty"`
	LineString  *kmlLineString `xml:"LineString,omitempty"`
}

type kmlStyle struct {
	IconStyle *kmlIconStyle `xml:"IconStyle,omitempty"`
	LineStyle *kmlLineStyle `xml:"LineStyle,omitempty"`
}

type kmlIconStyle struct {
	Color string  `xml:"color"`
	Scale float64 `xml:"scale"`
}

type kmlLineStyle struct {
	Color string `xml:"color"`
	Width int    `xml:"width"`
}

type kmlPoint struct {
	Coordinates  string `xml:"coordinates"` // lon,lat[,alt]
	AltitudeMode string `xml:"altitudeMode,omitempty"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

func (k *KML) Name() string { return "kml" }

func (k *KML) Export(_ context.Context, s *session.Session) (path string, err error) {
	path, err = outputPath(k.Dir, "signal_map", s.ID(), "kml")
	if err != nil {
		return "", err
	}

	minSignal, maxSignal := k.MinSignal, k.MaxSignal
	if minSignal == 0 {
		minSignal = defaultMinSignal
	}
	if maxSignal == 0 {
		maxSignal = defaultMaxSignal
	}

	// Group located measurements per band, keeping band encounter order.
	// The measurement sequence is already in acquisition order, so each
	// group traces the flight path chronologically.
	byBand := make(map[string][]session.Measurement)
	var order []string
	for _, m := range s.Measurements() {
		if !m.HasLocation() {
			continue
		}
		if _, ok := byBand[m.Band]; !ok {
			order = append(order, m.Band)
		}
		byBand[m.Band] = append(byBand[m.Band], m)
	}

	doc := kmlFile{
		Xmlns: kmlNamespace,
		Document: kmlDocument{
			Name: fmt.Sprintf("Cell Signal Strength Map %s", s.ID()),
		},
	}
	for _, band := range order {
		folder := kmlFolder{Name: band}
		for i := range byBand[band] {
			folder.Placemarks = append(folder.Placemarks, k.pointPlacemark(&byBand[band][i], minSignal, maxSignal))
		}
		if len(byBand[band]) > 1 {
			folder.Placemarks = append(folder.Placemarks, pathPlacemark(byBand[band]))
		}
		doc.Document.Folders = append(doc.Document.Folders, folder)
	}

	if err = writeKML(path, &doc); err != nil {
		return "", err
	}

	zonesPath, err := outputPath(k.Dir, "coverage_zones", s.ID(), "kml")
	if err != nil {
		return "", err
	}
	if err = writeKML(zonesPath, k.coverageZones(s, order, byBand)); err != nil {
		return "", err
	}

	return path, nil
}

func (k *KML) pointPlacemark(m *session.Measurement, minSignal, maxSignal float64) kmlPlacemark {
	placemark := kmlPlacemark{
		Name:        fmt.Sprintf("%.2f MHz", m.Frequency/1e6),
		Description: fmt.Sprintf("Band: %s\nSignal: %.2f dBm\nTime: %s", m.Band, m.Power, m.Timestamp.Format("2006-01-02 15:04:05")),
		Style: kmlStyle{
			IconStyle: &kmlIconStyle{
				Color: signalColor(m.Power, minSignal, maxSignal),
				Scale: 0.6,
			},
		},
		Point: &kmlPoint{
			Coordinates: coordinates(m),
		},
	}
	if m.Altitude != nil {
		placemark.Point.AltitudeMode = "relativeToGround"
	}
	return placemark
}

// pathPlacemark traces the flight path through the band's measurement
// positions in acquisition order.
func pathPlacemark(ms []session.Measurement) kmlPlacemark {
	coords := make([]string, len(ms))
	for i := range ms {
		coords[i] = coordinates(&ms[i])
	}

	return kmlPlacemark{
		Name: "Measurement Path",
		Style: kmlStyle{
			LineStyle: &kmlLineStyle{Color: pathColor, Width: 2},
		},
		LineString: &kmlLineString{
			Coordinates: strings.Join(coords, " "),
		},
	}
}

// coverageZones builds a second document splitting located measurements
// into good and weak coverage folders at the threshold.
func (k *KML) coverageZones(s *session.Session, order []string, byBand map[string][]session.Measurement) *kmlFile {
	threshold := k.CoverageThreshold
	if threshold == 0 {
		threshold = defaultCoverageThreshold
	}

	good := kmlFolder{Name: fmt.Sprintf("Good Coverage (>= %.0f dBm)", threshold)}
	weak := kmlFolder{Name: fmt.Sprintf("Weak Coverage (< %.0f dBm)", threshold)}

	for _, band := range order {
		for i := range byBand[band] {
			m := &byBand[band][i]

			placemark := kmlPlacemark{
				Name:  fmt.Sprintf("%.1f dBm", m.Power),
				Point: &kmlPoint{Coordinates: coordinates(m)},
			}
			if m.Power >= threshold {
				placemark.Style = kmlStyle{IconStyle: &kmlIconStyle{Color: goodColor, Scale: 0.6}}
				good.Placemarks = append(good.Placemarks, placemark)
			} else {
				placemark.Style = kmlStyle{IconStyle: &kmlIconStyle{Color: weakColor, Scale: 0.6}}
				weak.Placemarks = append(weak.Placemarks, placemark)
			}
		}
	}

	return &kmlFile{
		Xmlns: kmlNamespace,
		Document: kmlDocument{
			Name:    fmt.Sprintf("Coverage Zones %s", s.ID()),
			Folders: []kmlFolder{good, weak},
		},
	}
}

func writeKML(path string, doc *kmlFile) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling KML: %w", err)
	}

	data = append([]byte(xml.Header), data...)
	if err = os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing KML file: %w", err)
	}
	return nil
}

func coordinates(m *session.Measurement) string {
	if m.Altitude != nil {
		return fmt.Sprintf("%f,%f,%f", *m.Longitude, *m.Latitude, *m.Altitude)
	}
	return fmt.Sprintf("%f,%f", *m.Longitude, *m.Latitude)
}

// signalColor maps a power reading onto a red (weak) -> yellow -> green
// (strong) gradient in KML's aabbggrr hex format.
func signalColor(powerDBm, minSignal, maxSignal float64) string {
	normalized := (powerDBm - minSignal) / (maxSignal - minSignal)
	normalized = math.Min(math.Max(normalized, 0), 1)

	var r, g int
	if normalized < 0.5 {
		r = 255
		g = int(255 * normalized * 2)
	} else {
		r = int(255 * (2 - normalized*2))
		g = 255
	}

	return fmt.Sprintf("ff%02x%02x%02x", 0, g, r)
}
