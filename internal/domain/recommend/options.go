package recommend

import "github.com/okian/usercf/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithWorkers sets how many goroutines score candidate users.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
