package plda

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with plda-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSplit adds a split name field (train/enrol/test) to the logger.
func (l *Logger) WithSplit(split string) *Logger {
	return &Logger{
		Logger: l.Logger.With("split", split),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithRank adds a rank (factor column count) field to the logger.
func (l *Logger) WithRank(rank int) *Logger {
	return &Logger{
		Logger: l.Logger.With("rank", rank),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogCache logs a cache decision for a pipeline stage artifact.
func (l *Logger) LogCache(key string, hit bool) {
	if hit {
		l.Info("cache hit, skipping recomputation", "key", key)
	} else {
		l.Info("cache miss, recomputing", "key", key)
	}
}

// LogTraining logs the outcome of a PLDA training run.
func (l *Logger) LogTraining(records, labels, rank int, emIterations int, err error) {
	if err != nil {
		l.Error("plda training failed",
			"records", records,
			"labels", labels,
			"error", err,
		)
	} else {
		l.Info("plda training completed",
			"records", records,
			"labels", labels,
			"rank", rank,
			"em_iterations", emIterations,
		)
	}
}

// LogScoring logs the outcome of a scoring pass.
func (l *Logger) LogScoring(models, segments int, err error) {
	if err != nil {
		l.Error("plda scoring failed",
			"models", models,
			"segments", segments,
			"error", err,
		)
	} else {
		l.Debug("plda scoring completed",
			"models", models,
			"segments", segments,
			"trials", models*segments,
		)
	}
}
