// Package common provides shared process-level utilities: logger
// construction and version metadata.
package common

import (
	"log/slog"
	"os"
)

// Version is the service version, overridable at build time via ldflags.
var Version = "dev"

// PackageName tags logs and metrics for this service.
const PackageName = "cms-storage-backend"

// LoggingOpts configure the process logger.
type LoggingOpts struct {
	// Debug enables debug-level output.
	Debug bool
	// JSON switches from text to JSON handler output.
	JSON bool
	// Service tags every record with a service name.
	Service string
	// Version tags every record with the build version.
	Version string
}

// SetupLogger builds the process-wide slog logger.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With(slog.String("service", opts.Service))
	}
	if opts.Version != "" {
		logger = logger.With(slog.String("version", opts.Version))
	}
	return logger
}
