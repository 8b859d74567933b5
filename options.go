package deteval

import (
	"log/slog"
	"runtime"
)

// Option configures an Evaluator.
type Option func(*options)

type options struct {
	workers int
	classes []string
	logger  *slog.Logger
}

func defaultOptions() options {
	return options{
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
}

// WithWorkers sets how many images are matched concurrently
// (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithClasses fixes the class vocabulary reported in per-class metrics.
// Classes observed in the dataset are always added to it. Without this
// option only observed classes are reported.
func WithClasses(names ...string) Option {
	return func(o *options) {
		o.classes = append(o.classes, names...)
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
