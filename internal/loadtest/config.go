// Package loadtest submits synthetic ratings to a running service, then
// checks the recommendations it serves for shape and consistency.
package loadtest

import (
	"errors"
	"fmt"
	"time"
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL        string        // Base URL of the service
	Users          int           // Number of synthetic users
	Items          int           // Size of the item catalogue
	RatingsPerUser int           // Ratings each user submits
	Clusters       int           // Taste groups users are split into
	DuplicateRate  float64       // Fraction of ratings re-sent with the same event id
	Workers        int           // Concurrent HTTP submitters
	Timeout        time.Duration // Per-request HTTP timeout
	SettleTimeout  time.Duration // How long to wait for the service to apply ratings
	SampleUsers    int           // Users whose recommendations are verified
	Kernel         string        // Kernel passed to queries; empty uses the service default
	Seed           uint64        // Seed for the rating generator
	OutputFile     string        // Optional JSON dump of generated ratings
}

// DefaultConfig returns a configuration sized for a quick local run.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:9080",
		Users:          200,
		Items:          60,
		RatingsPerUser: 20,
		Clusters:       4,
		DuplicateRate:  0.05,
		Workers:        16,
		Timeout:        10 * time.Second,
		SettleTimeout:  30 * time.Second,
		SampleUsers:    25,
		Seed:           1,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid load test config")

// Validate checks the configuration for values the generator cannot honour.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Users < 2:
		return fmt.Errorf("%w: need at least 2 users, got %d", ErrInvalidConfig, c.Users)
	case c.Clusters < 1:
		return fmt.Errorf("%w: clusters must be positive, got %d", ErrInvalidConfig, c.Clusters)
	case c.RatingsPerUser < 1 || c.RatingsPerUser >= c.Items:
		return fmt.Errorf("%w: ratings per user must be in [1, items), got %d of %d",
			ErrInvalidConfig, c.RatingsPerUser, c.Items)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return fmt.Errorf("%w: duplicate rate must be in [0, 1], got %g", ErrInvalidConfig, c.DuplicateRate)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

// Stats holds load test statistics.
type Stats struct {
	Generated    int
	Submitted    int
	Accepted     int
	Duplicate    int
	Backpressure int
	Failed       int

	UsersChecked int
	Possible     int
	Exhausted    int
	Violations   []string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}
