package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	service "github.com/okian/usercf/internal/app"
	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it reports defaults before starting", func() {
			stats := svc.GetStats(context.Background())
			So(stats.Started, ShouldBeFalse)
			So(stats.Store, ShouldEqual, "memory")
			So(stats.DefaultKernel, ShouldEqual, similarity.KernelPearson)
			So(stats.Kernels, ShouldResemble, similarity.Names())
			So(svc.ResolveKernel(""), ShouldEqual, similarity.KernelPearson)
			So(svc.ResolveKernel("euclidean"), ShouldEqual, "euclidean")
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithDefaultKernel(similarity.KernelEuclidean),
		)

		Convey("Then the options are applied", func() {
			stats := svc.GetStats(context.Background())
			So(stats.Workers, ShouldEqual, 8)
			So(stats.QueueCapacity, ShouldEqual, 50_000)
			So(stats.DefaultKernel, ShouldEqual, similarity.KernelEuclidean)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When it is used before starting", func() {
			_, err := svc.Recommend(ctx, "alice", "")
			_, subErr := svc.SubmitRating(ctx, model.RatingEvent{UserID: "alice", ItemID: "Vertigo", Rating: 4})

			Convey("Then ErrNotStarted is returned", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(subErr, service.ErrNotStarted), ShouldBeTrue)
				So(errors.Is(svc.Seed(ctx, model.RatingTable{}), service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When it is started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats(ctx).Started, ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it is marked as stopped and stopping again is harmless", func() {
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an unknown default kernel", t, func() {
		svc := service.New(service.WithDefaultKernel("cosine"))

		Convey("Then Start fails with UnsupportedKernelError", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, similarity.ErrUnsupportedKernel), ShouldBeTrue)
		})
	})

	Convey("Given an unknown store kind", t, func() {
		svc := service.New(service.WithStore("postgres", ""))

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.GetStats(context.Background()).Started, ShouldBeFalse)
		})
	})
}

func TestService_SubmitRating(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(10))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When a rating without an event id is submitted", func() {
			sub, err := svc.SubmitRating(ctx, model.RatingEvent{UserID: " alice ", ItemID: "Vertigo", Rating: 4})

			Convey("Then an id is generated and the rating is applied", func() {
				So(err, ShouldBeNil)
				So(sub.EventID, ShouldNotBeEmpty)
				So(sub.Duplicate, ShouldBeFalse)
				So(waitFor(func() bool { return svc.GetStats(ctx).Ratings == 1 }), ShouldBeTrue)
				ratings, err := svc.UserRatings(ctx, "alice")
				So(err, ShouldBeNil)
				So(ratings, ShouldResemble, map[string]float64{"Vertigo": 4})
			})
		})

		Convey("When the same event id is submitted twice", func() {
			ev := model.RatingEvent{EventID: "e-1", UserID: "bob", ItemID: "Vertigo", Rating: 3}
			first, err := svc.SubmitRating(ctx, ev)
			So(err, ShouldBeNil)
			ev.Rating = 1
			second, err := svc.SubmitRating(ctx, ev)
			So(err, ShouldBeNil)

			Convey("Then the second is reported as a duplicate and ignored", func() {
				So(first.Duplicate, ShouldBeFalse)
				So(second.Duplicate, ShouldBeTrue)
				So(waitFor(func() bool { return svc.GetStats(ctx).Applied == 1 }), ShouldBeTrue)
				ratings, err := svc.UserRatings(ctx, "bob")
				So(err, ShouldBeNil)
				So(ratings["Vertigo"], ShouldEqual, 3)
			})
		})

		Convey("When invalid ratings are submitted", func() {
			cases := []model.RatingEvent{
				{UserID: "", ItemID: "Vertigo", Rating: 1},
				{UserID: "alice", ItemID: "  ", Rating: 1},
				{UserID: "al\x00ice", ItemID: "Vertigo", Rating: 1},
				{UserID: "alice", ItemID: "Vertigo", Rating: math.NaN()},
				{UserID: "alice", ItemID: "Vertigo", Rating: math.Inf(-1)},
			}

			Convey("Then each is rejected with ErrInvalidRating", func() {
				for _, ev := range cases {
					_, err := svc.SubmitRating(ctx, ev)
					So(errors.Is(err, service.ErrInvalidRating), ShouldBeTrue)
				}
			})
		})

		Convey("When an unknown user's ratings are requested", func() {
			_, err := svc.UserRatings(ctx, "nobody")

			Convey("Then UnknownUserError is returned", func() {
				var unknown *similarity.UnknownUserError
				So(errors.As(err, &unknown), ShouldBeTrue)
				So(unknown.User, ShouldEqual, "nobody")
			})
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
