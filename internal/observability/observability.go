// Package observability configures process-wide logging.
package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Log formats accepted by Instrument.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatOTel = "otel"

	// OTLP formats ship records to a collector. Endpoint, headers and TLS are
	// read from the standard OTEL_EXPORTER_OTLP_* environment variables.
	FormatOTLP     = "otlp"
	FormatOTLPGRPC = "otlp-grpc"
)

const instrumentationName = "github.com/florianilch/lockwise"

// Instrument installs the default slog logger for the given level and format.
// The returned function flushes buffered records and must be called on shutdown.
func Instrument(level slog.Level, format string) (shutdown func(context.Context) error, err error) {
	return instrument(os.Stderr, level, format)
}

func instrument(w io.Writer, level slog.Level, format string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case FormatText, "":
		slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
		return noop, nil
	case FormatJSON:
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, opts)))
		return noop, nil
	}

	exporter, err := newExporter(w, format)
	if err != nil {
		return nil, err
	}
	processor := minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level))
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(processor))
	slog.SetDefault(slog.New(otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider))))
	return provider.Shutdown, nil
}

func newExporter(w io.Writer, format string) (sdklog.Exporter, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)
	switch format {
	case FormatOTel:
		exporter, err = stdoutlog.New(stdoutlog.WithWriter(w))
	case FormatOTLP:
		// Neither OTLP exporter connects until the first export.
		exporter, err = otlploghttp.New(context.Background())
	case FormatOTLPGRPC:
		exporter, err = otlploggrpc.New(context.Background())
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s log exporter: %w", format, err)
	}
	return exporter, nil
}

// severity maps an slog level onto the OpenTelemetry severity scale.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
