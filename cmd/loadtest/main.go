package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/usercf/internal/loadtest"
	"github.com/okian/usercf/pkg/logger"
)

const (
	workersPerCPU = 2
	runTimeout    = 10 * time.Minute
)

func main() {
	def := loadtest.DefaultConfig()
	var (
		baseURL    = flag.String("url", def.BaseURL, "Base URL of the service")
		users      = flag.Int("users", def.Users, "Number of synthetic users")
		items      = flag.Int("items", def.Items, "Size of the item catalogue")
		perUser    = flag.Int("per-user", def.RatingsPerUser, "Ratings each user submits")
		clusters   = flag.Int("clusters", def.Clusters, "Taste groups users are split into")
		dupRate    = flag.Float64("dup", def.DuplicateRate, "Fraction of ratings re-sent as duplicates")
		workers    = flag.Int("workers", runtime.NumCPU()*workersPerCPU, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", def.Timeout, "HTTP request timeout")
		settle     = flag.Duration("settle", def.SettleTimeout, "Time allowed for the service to apply ratings")
		sample     = flag.Int("sample", def.SampleUsers, "Users whose recommendations are verified")
		kernel     = flag.String("kernel", "", "Similarity kernel for queries (default: service default)")
		seed       = flag.Uint64("seed", def.Seed, "Generator seed")
		outputFile = flag.String("output", "", "Write generated ratings to this JSON file")
		logFile    = flag.String("log", "", "Log file (default: loadtest_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp(os.Stdout)
		return
	}

	log, closer, err := loadtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	cfg := loadtest.Config{
		BaseURL:        *baseURL,
		Users:          *users,
		Items:          *items,
		RatingsPerUser: *perUser,
		Clusters:       *clusters,
		DuplicateRate:  *dupRate,
		Workers:        *workers,
		Timeout:        *timeout,
		SettleTimeout:  *settle,
		SampleUsers:    *sample,
		Kernel:         *kernel,
		Seed:           *seed,
		OutputFile:     *outputFile,
	}

	stats, err := loadtest.Run(ctx, cfg, log)
	if stats != nil {
		loadtest.PrintSummary(os.Stdout, stats)
	}
	if err != nil {
		log.Error(ctx, "load test failed", logger.Error(err))
		cancel()
		_ = closer.Close()
		os.Exit(1)
	}
}
