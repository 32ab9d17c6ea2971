package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/usercf/internal/adapters/dataset"
	"github.com/okian/usercf/internal/config"
	"github.com/okian/usercf/internal/domain/types"
	"github.com/okian/usercf/pkg/logger"
)

var sampleDataset = filepath.Join("..", "internal", "adapters", "dataset", "testdata", "movie_ratings.json")

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Addr = "127.0.0.1:0"
	cfg.WorkerCount = 2
	cfg.QueueSize = 100
	cfg.DatasetPath = sampleDataset
	return cfg
}

func TestConfigFromEnv(t *testing.T) {
	convey.Convey("Given configuration in the environment", t, func() {
		t.Setenv("USERCF_ADDR", ":8080")
		t.Setenv("USERCF_QUEUE_SIZE", "1000")
		t.Setenv("USERCF_WORKER_COUNT", "4")
		t.Setenv("USERCF_DEFAULT_KERNEL", "euclidean")

		convey.Convey("Then the service is built from it", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			stats := newService(cfg, logger.Nop()).GetStats(context.Background())
			convey.So(stats.Workers, convey.ShouldEqual, 4)
			convey.So(stats.QueueCapacity, convey.ShouldEqual, 1000)
			convey.So(stats.DefaultKernel, convey.ShouldEqual, "euclidean")
		})
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given a started service seeded with the sample dataset", t, func() {
		ctx := context.Background()
		cfg := testConfig()
		svc := newService(cfg, logger.Nop())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() { _ = svc.Stop(ctx) })
		convey.So(seed(ctx, svc, cfg.DatasetPath, logger.Nop()), convey.ShouldBeNil)

		srv := httptest.NewServer(newRouter(ctx, svc, logger.Nop()))
		convey.Reset(srv.Close)

		convey.Convey("When recommendations are requested over HTTP", func() {
			resp, err := http.Get(srv.URL + "/users/Chris%20Duncan/recommendations?kernel=euclidean")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then the ranked items are returned", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				var body types.RecommendationsResponse
				convey.So(json.NewDecoder(resp.Body).Decode(&body), convey.ShouldBeNil)
				convey.So(body.User, convey.ShouldEqual, "Chris Duncan")
				convey.So(body.Items, convey.ShouldResemble, []string{"Vertigo", "Scarface", "Goodfellas", "Roman Holiday"})
			})
		})

		convey.Convey("When the docs are requested", func() {
			resp, err := http.Get(srv.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When stats are requested", func() {
			resp, err := http.Get(srv.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()

			convey.Convey("Then they include the seeded ratings", func() {
				var stats types.Stats
				convey.So(json.NewDecoder(resp.Body).Decode(&stats), convey.ShouldBeNil)
				convey.So(stats.Users, convey.ShouldEqual, 8)
				convey.So(stats.Ratings, convey.ShouldEqual, 35)
			})
		})
	})
}

func TestSeed(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(testConfig(), logger.Nop())
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		convey.Reset(func() { _ = svc.Stop(ctx) })

		convey.Convey("Then an empty path seeds nothing", func() {
			convey.So(seed(ctx, svc, "", logger.Nop()), convey.ShouldBeNil)
			convey.So(svc.GetStats(ctx).Users, convey.ShouldEqual, 0)
		})

		convey.Convey("Then a missing dataset is an error", func() {
			err := seed(ctx, svc, filepath.Join(t.TempDir(), "missing.csv"), logger.Nop())
			convey.So(errors.Is(err, dataset.ErrLoad), convey.ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a valid configuration", t, func() {
		cfg := testConfig()

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg, logger.Nop()) }()
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					t.Fatal("run did not return after cancellation")
				}
			})
		})
	})

	convey.Convey("Given an unknown store kind", t, func() {
		cfg := testConfig()
		cfg.Store = "postgres"

		convey.Convey("Then run fails to start", func() {
			convey.So(run(context.Background(), cfg, logger.Nop()), convey.ShouldNotBeNil)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the system metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
	})
}
