package loadtest

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/usercf/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger to write to stdout and a log
// file. An empty logFile gets a timestamped name. The returned closer
// releases the file.
func SetupLogging(logFile string, verbose bool) (logger.Logger, io.Closer, error) {
	if logFile == "" {
		logFile = "loadtest_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.InitWithFormat(logger.FormatText, io.MultiWriter(os.Stdout, file)); err != nil {
		_ = file.Close()
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return logger.Named("loadtest"), file, nil
}

// PrintSummary writes a human-readable summary of a run.
func PrintSummary(w io.Writer, s *Stats) {
	fmt.Fprintf(w, "\nLoad test summary\n=================\n")
	fmt.Fprintf(w, "Duration:      %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Generated:     %d\n", s.Generated)
	fmt.Fprintf(w, "Submitted:     %d\n", s.Submitted)
	fmt.Fprintf(w, "  accepted     %d\n", s.Accepted)
	fmt.Fprintf(w, "  duplicate    %d\n", s.Duplicate)
	fmt.Fprintf(w, "  backpressure %d\n", s.Backpressure)
	fmt.Fprintf(w, "  failed       %d\n", s.Failed)
	if secs := s.Duration.Seconds(); secs > 0 {
		fmt.Fprintf(w, "Throughput:    %.0f ratings/s\n", float64(s.Submitted)/secs)
	}
	fmt.Fprintf(w, "Users checked: %d (%d with recommendations, %d exhausted)\n",
		s.UsersChecked, s.Possible, s.Exhausted)
	fmt.Fprintf(w, "Violations:    %d\n", len(s.Violations))
}

// ShowHelp prints usage information for the load test tool.
func ShowHelp(w io.Writer) {
	fmt.Fprint(w, `usercf load test
================

Submits synthetic ratings to a running usercf service, waits for them to be
applied, then verifies the recommendations and neighbors it serves.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -users int         Number of synthetic users (default 200)
  -items int         Size of the item catalogue (default 60)
  -per-user int      Ratings each user submits (default 20)
  -clusters int      Taste groups users are split into (default 4)
  -dup float         Fraction of ratings re-sent as duplicates (default 0.05)
  -workers int       Number of concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 10s)
  -settle duration   Time allowed for the service to apply ratings (default 30s)
  -sample int        Users whose recommendations are verified (default 25)
  -kernel string     Similarity kernel for queries (default: service default)
  -seed uint         Generator seed (default 1)
  -output string     Write generated ratings to this JSON file
  -log string        Log file (default: loadtest_TIMESTAMP.log)
  -verbose           Enable debug logging
  -help              Show this help message

Examples:
  go run ./cmd/loadtest -users 1000 -items 200 -workers 32
  go run ./cmd/loadtest -kernel euclidean -verbose
`)
}
