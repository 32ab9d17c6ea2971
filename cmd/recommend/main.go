// Command recommend answers recommendation queries against a rating dataset
// without starting the HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/okian/usercf/internal/adapters/dataset"
	"github.com/okian/usercf/internal/domain/recommend"
	"github.com/okian/usercf/internal/domain/similarity"
	"github.com/okian/usercf/pkg/logger"
)

var errUsage = errors.New("usage")

func main() {
	if err := logger.InitWithFormat(logger.FormatText, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := run(ctx, os.Args[1:], os.Stdout, logger.Named("recommend")); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Get().Error(ctx, "recommend failed", logger.Error(err))
		os.Exit(1)
	}
}

// run parses args and prints one of: recommendations for -user, the -similar
// nearest users, or the score between -user and -with.
func run(ctx context.Context, args []string, out io.Writer, log logger.Logger) error {
	fs := flag.NewFlagSet("recommend", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		path     = fs.String("dataset", "", "Rating dataset (.json or .csv)")
		user     = fs.String("user", "", "User to query")
		kernel   = fs.String("kernel", "pearson", "Similarity kernel")
		similar  = fs.Int("similar", 0, "Print the N most similar users instead of recommendations")
		with     = fs.String("with", "", "Print the similarity between -user and this user")
		workers  = fs.Int("workers", 1, "Goroutines used to score candidate users")
		logLevel = fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" || *user == "" {
		fs.Usage()
		return fmt.Errorf("%w: -dataset and -user are required", errUsage)
	}
	if err := logger.SetLevelString(*logLevel); err != nil {
		return err
	}

	table, err := dataset.Load(*path)
	if err != nil {
		return err
	}
	log.Debug(ctx, "dataset loaded",
		logger.String("path", *path),
		logger.Int("users", len(table)),
		logger.Int("ratings", table.Count()),
	)

	engine := recommend.New(recommend.WithWorkers(*workers), recommend.WithLogger(log))
	switch {
	case *with != "":
		k, err := similarity.Lookup(*kernel)
		if err != nil {
			return err
		}
		score, err := k.Similarity(table, *user, *with)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s score between %s and %s: %.5f\n", k.Name(), *user, *with, score)
		return nil

	case *similar > 0:
		neighbors, err := engine.FindSimilarUsers(ctx, table, *user, *similar, *kernel)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nUsers similar to %s:\n", *user)
		for i, n := range neighbors {
			fmt.Fprintf(out, "%d -- %s (%.5f)\n", i+1, n.UserID, n.Score)
		}
		return nil
	}

	recs, err := engine.GenerateRecommendations(ctx, table, *user, *kernel)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nRecommendations for %s:\n", *user)
	if !recs.Possible {
		fmt.Fprintln(out, recs.Message())
		return nil
	}
	for i, item := range recs.Items {
		fmt.Fprintf(out, "%d -- %s\n", i+1, item)
	}
	return nil
}
