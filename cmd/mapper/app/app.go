package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cellsignal/mapper/internal/export"
	"github.com/cellsignal/mapper/internal/gps"
	"github.com/cellsignal/mapper/internal/heatmap"
	"github.com/cellsignal/mapper/internal/scanner"
	"github.com/cellsignal/mapper/internal/session"
)

const deviceType = "RTL-SDR"

// Run wires the scanner, GPS provider and exporters from configuration and
// drives a single acquisition session in the configured mode.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	sc, err := scanner.New(scanner.Config{
		DeviceIndex:     config.Scanner.DeviceIndex,
		Gain:            config.Scanner.Gain,
		IntegrationTime: config.Scanner.IntegrationTime,
		BinWidth:        config.Scanner.BinWidth,
	}, scanner.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}

	provider, err := createProvider(&config.GPS, logger)
	if err != nil {
		return fmt.Errorf("creating GPS provider: %w", err)
	}

	controller := session.NewController(sc, provider, config.ScannerBands(),
		session.Config{
			Interval:       config.Session.Interval.Duration(),
			Duration:       config.Session.Duration.Duration(),
			FixWaitTimeout: config.Session.FixWaitTimeout.Duration(),
		},
		session.WithExporters(createExporters(config)...),
		session.WithLogger(logger),
	)

	if config.Settings.Mode == ModeSingle {
		return controller.RunOnce(ctx)
	}
	return controller.Run(ctx)
}

// createProvider returns nil when GPS is disabled; the controller then
// records measurements without location.
func createProvider(config *GPSConfig, logger *slog.Logger) (gps.Provider, error) {
	switch {
	case !config.Enabled:
		return nil, nil

	case config.Mock:
		logger.Info("using simulated GPS positions")
		return gps.NewMock(), nil

	case config.Mavlink:
		return gps.NewMavlink(gps.MavlinkConfig{
			Port:          config.MavlinkPort,
			BaudRate:      config.MavlinkBaud,
			MinSatellites: config.MinSatellites,
		}, gps.WithMavlinkLogger(logger))

	default:
		return gps.NewSerial(gps.SerialConfig{
			Port:          config.SerialPort,
			BaudRate:      config.BaudRate,
			MinSatellites: config.MinSatellites,
		}, gps.WithSerialLogger(logger))
	}
}

func createExporters(config *Config) []session.Exporter {
	dir := config.Export.OutputDirectory

	var exporters []session.Exporter
	for _, format := range config.Export.Formats {
		switch format {
		case FormatCSV:
			exporters = append(exporters, &export.CSV{Dir: dir})

		case FormatJSON:
			exporters = append(exporters, &export.JSON{Dir: dir})

		case FormatKML:
			exporters = append(exporters, &export.KML{
				Dir:               dir,
				MinSignal:         config.Export.KML.MinSignal,
				MaxSignal:         config.Export.KML.MaxSignal,
				CoverageThreshold: config.Export.KML.CoverageThreshold,
			})

		case FormatSQLite:
			exporters = append(exporters, &export.SQLite{
				Dir:        dir,
				DeviceType: deviceType,
				Config:     config.Scanner,
			})

		case FormatHeatmap:
			exporters = append(exporters, &heatmap.Renderer{
				Dir:           dir,
				CellSize:      config.Export.Heatmap.CellSize,
				MaxImageWidth: config.Export.Heatmap.MaxImageWidth,
				FontPath:      config.Export.Heatmap.FontPath,
			})
		}
	}
	return exporters
}
