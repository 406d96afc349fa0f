package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

// pointFunc writes one point. The influx implementation is asynchronous.
type pointFunc func(measurement string, tags map[string]string, fields map[string]any, at time.Time)

// InfluxExporter writes every observed reading and idle notification as a
// point, tagged with the encoder name.
type InfluxExporter struct {
	measurement string
	write       pointFunc
	flush       func()
	close       func()
	logger      *slog.Logger
}

// NewInfluxExporter connects a non-blocking write API for cfg.
func NewInfluxExporter(cfg InfluxConfig, logger *slog.Logger) (*InfluxExporter, error) {
	token := ""
	if cfg.TokenFile != "" {
		b, err := os.ReadFile(ExpandPath(cfg.TokenFile))
		if err != nil {
			return nil, fmt.Errorf("read influx token: %w", err)
		}
		token = strings.TrimSpace(string(b))
	}

	client := influxdb2.NewClient(cfg.URL, token)
	writeAPI := client.WriteApi(cfg.Org, cfg.Bucket)

	go logInfluxErrors(writeAPI, logger)

	logger.Info("influx export enabled", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)

	return &InfluxExporter{
		measurement: cfg.Measurement,
		write: func(m string, tags map[string]string, fields map[string]any, at time.Time) {
			writeAPI.WritePoint(influxdb2.NewPoint(m, tags, fields, at))
		},
		flush: writeAPI.Flush,
		close: func() {
			writeAPI.Close()
			client.Close()
		},
		logger: logger,
	}, nil
}

func logInfluxErrors(w api.WriteApi, logger *slog.Logger) {
	for err := range w.Errors() {
		logger.Warn("influx write error", "error", err)
	}
}

// Run exports broadcasts from src until ctx is canceled or src is closed.
func (x *InfluxExporter) Run(ctx context.Context, src <-chan StateBroadcast) {
	defer func() {
		if x.flush != nil {
			x.flush()
		}
		if x.close != nil {
			x.close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-src:
			if !ok {
				return
			}
			x.export(b)
		}
	}
}

func (x *InfluxExporter) export(b StateBroadcast) {
	switch ev := b.(type) {
	case BroadcastRotation:
		fields := map[string]any{
			"whole":       ev.Reading.Whole,
			"frac":        ev.Reading.Frac,
			"total_whole": ev.TotalWhole,
			"total_frac":  ev.TotalFrac,
		}
		if deg, ok := readingDegrees(ev.Reading); ok {
			fields["degrees"] = deg
		}
		x.write(x.measurement,
			map[string]string{"encoder": ev.Encoder, "mode": ev.Reading.Mode.String()},
			fields, ev.At)

	case BroadcastEncoderIdle:
		x.write(x.measurement+".idle",
			map[string]string{"encoder": ev.Encoder},
			map[string]any{"idle": true}, ev.At)
	}
}
