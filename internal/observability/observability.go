// Package observability configures process-wide structured logging.
//
// Logs go through log/slog. By default records are written as text or JSON to stderr, or to a
// size-rotated file. Alternatively they are bridged into the OpenTelemetry log SDK and shipped
// by an exporter (stdout, OTLP over HTTP or gRPC; OTLP endpoints come from the standard
// OTEL_EXPORTER_OTLP_* environment variables).
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// instrumentationName identifies sonarbind records in the OpenTelemetry pipeline.
const instrumentationName = "github.com/florianilch/sonarbind"

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// LogExporter selects where log records are shipped.
type LogExporter string

const (
	ExporterNone     LogExporter = "none"
	ExporterStdout   LogExporter = "stdout"
	ExporterOTLPHTTP LogExporter = "otlp-http"
	ExporterOTLPGRPC LogExporter = "otlp-grpc"
)

// Log file rotation limits
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
	logFileMaxAgeDays = 28
)

// Options configures Instrument.
type Options struct {
	Level    slog.Level
	Format   LogFormat
	File     string
	Exporter LogExporter
}

// ShutdownFunc flushes and releases logging resources.
type ShutdownFunc func(context.Context) error

// Instrument installs the default slog logger. The returned ShutdownFunc must be called
// before exit to flush buffered records.
func Instrument(ctx context.Context, opts Options) (ShutdownFunc, error) {
	var (
		w         io.Writer = os.Stderr
		shutdowns []ShutdownFunc
	)

	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
			Compress:   true,
		}
		w = rotating
		shutdowns = append(shutdowns, func(context.Context) error { return rotating.Close() })
	}

	local := newHandler(w, opts)

	var handler slog.Handler
	switch opts.Exporter {
	case "", ExporterNone:
		handler = local
	default:
		exporter, err := newExporter(ctx, opts.Exporter, w)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s log exporter: %w", opts.Exporter, err)
		}

		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(opts.Level))),
		)
		// Shutdown in reverse order: flush the provider before closing the file
		shutdowns = append([]ShutdownFunc{provider.Shutdown}, shutdowns...)

		// SDK-internal errors must not go through the bridged logger itself
		fallback := slog.New(local)
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			fallback.Error("opentelemetry error", "error", err)
		}))

		handler = otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(otellog.LoggerProvider(provider)))
	}

	slog.SetDefault(slog.New(handler))

	return func(ctx context.Context) error {
		var errs []error
		for _, shutdown := range shutdowns {
			if err := shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}, nil
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.Format == LogFormatJSON {
		return slog.NewJSONHandler(w, handlerOpts)
	}
	return slog.NewTextHandler(w, handlerOpts)
}

func newExporter(ctx context.Context, exporter LogExporter, w io.Writer) (sdklog.Exporter, error) {
	switch exporter {
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(w))
	case ExporterOTLPHTTP:
		return otlploghttp.New(ctx)
	case ExporterOTLPGRPC:
		return otlploggrpc.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported log exporter: %s", exporter)
	}
}

// severity maps a slog level to the minimum OpenTelemetry severity to export.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level < slog.LevelInfo:
		return minsev.SeverityDebug
	case level < slog.LevelWarn:
		return minsev.SeverityInfo
	case level < slog.LevelError:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
