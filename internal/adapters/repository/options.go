package repository

import (
	"time"

	"github.com/okian/usercf/pkg/logger"
)

const defaultMetricsUpdateInterval = 5 * time.Second

type options struct {
	metricsUpdateInterval time.Duration
	log                   logger.Logger
}

func defaultOptions() options {
	return options{
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		log:                   logger.Nop(),
	}
}

// Option applies a configuration option to a Store.
type Option func(*options)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithLogger sets the logger used by the store and its storage engine.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}
