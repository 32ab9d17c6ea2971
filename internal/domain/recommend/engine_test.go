package recommend_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/recommend"
	"github.com/okian/usercf/internal/domain/similarity"
	. "github.com/smartystreets/goconvey/convey"
)

func workedExample() model.RatingTable {
	return model.RatingTable{
		"A": {"m1": 5, "m2": 3},
		"B": {"m1": 4, "m2": 4},
		"C": {"m3": 5},
	}
}

func movieTable() model.RatingTable {
	return model.RatingTable{
		"David Smith":      {"Vertigo": 4, "Scarface": 4.5, "Raging Bull": 3, "Goodfellas": 4.5, "The Apartment": 1},
		"Brenda Peterson":  {"Vertigo": 3, "Scarface": 1.5, "Raging Bull": 1, "Goodfellas": 2, "The Apartment": 3.5, "Roman Holiday": 4.5},
		"Bill Duffy":       {"Vertigo": 4.5, "Scarface": 5, "Goodfellas": 4.5, "The Apartment": 1},
		"Samuel Miller":    {"Scarface": 3.5, "Raging Bull": 5, "Goodfellas": 5, "The Apartment": 4, "Roman Holiday": 1},
		"Julie Hammel":     {"Scarface": 2.5, "Goodfellas": 3, "Roman Holiday": 4.5},
		"Clarissa Jackson": {"Vertigo": 5, "Scarface": 4.5, "Raging Bull": 4, "Goodfellas": 2.5, "The Apartment": 1, "Roman Holiday": 1.5},
		"Adam Cohen":       {"Scarface": 4.5, "Goodfellas": 4, "The Apartment": 1, "Roman Holiday": 2.5},
		"Chris Duncan":     {"The Apartment": 1.5, "Raging Bull": 4.5},
	}
}

func TestFindSimilarUsers(t *testing.T) {
	ctx := context.Background()
	engine := recommend.New()

	Convey("Given the movie table", t, func() {
		table := movieTable()

		Convey("When topK exceeds the number of other users", func() {
			neighbors, err := engine.FindSimilarUsers(ctx, table, "David Smith", 100, similarity.KernelPearson)

			Convey("Then every other user is returned once in descending order", func() {
				So(err, ShouldBeNil)
				So(neighbors, ShouldHaveLength, len(table)-1)

				seen := map[string]bool{}
				for i, n := range neighbors {
					So(n.UserID, ShouldNotEqual, "David Smith")
					So(seen[n.UserID], ShouldBeFalse)
					seen[n.UserID] = true
					if i > 0 {
						So(neighbors[i-1].Score, ShouldBeGreaterThanOrEqualTo, n.Score)
					}
				}
			})

			Convey("Then every score matches the kernel", func() {
				for _, n := range neighbors {
					want, err := similarity.Pearson(table, "David Smith", n.UserID)
					So(err, ShouldBeNil)
					So(n.Score, ShouldEqual, want)
				}
			})
		})

		Convey("When topK is smaller", func() {
			all, err := engine.FindSimilarUsers(ctx, table, "Bill Duffy", 100, similarity.KernelEuclidean)
			So(err, ShouldBeNil)
			top, err := engine.FindSimilarUsers(ctx, table, "Bill Duffy", 3, similarity.KernelEuclidean)

			Convey("Then it is a prefix of the full ranking", func() {
				So(err, ShouldBeNil)
				So(top, ShouldResemble, all[:3])
			})
		})

		Convey("When topK is not positive", func() {
			zero, errZero := engine.FindSimilarUsers(ctx, table, "Bill Duffy", 0, similarity.KernelEuclidean)
			neg, errNeg := engine.FindSimilarUsers(ctx, table, "Bill Duffy", -2, similarity.KernelEuclidean)

			Convey("Then the result is empty", func() {
				So(errZero, ShouldBeNil)
				So(errNeg, ShouldBeNil)
				So(zero, ShouldBeEmpty)
				So(neg, ShouldBeEmpty)
			})
		})

		Convey("When the table is ranked", func() {
			before := table.Clone()
			_, err := engine.FindSimilarUsers(ctx, table, "Julie Hammel", 5, similarity.KernelPearson)

			Convey("Then it is left untouched", func() {
				So(err, ShouldBeNil)
				So(table, ShouldResemble, before)
			})
		})
	})

	Convey("Given users with equal scores", t, func() {
		table := model.RatingTable{
			"target": {"a": 3},
			"zed":    {"a": 3},
			"amy":    {"a": 3},
			"mid":    {"a": 1},
		}

		Convey("Then ties are ordered by user id", func() {
			neighbors, err := engine.FindSimilarUsers(ctx, table, "target", 10, similarity.KernelEuclidean)
			So(err, ShouldBeNil)
			So(neighbors, ShouldResemble, []model.Neighbor{
				{UserID: "amy", Score: 1},
				{UserID: "zed", Score: 1},
				{UserID: "mid", Score: 1.0 / 3},
			})
		})
	})

	Convey("Given a table with a single user", t, func() {
		table := model.RatingTable{"solo": {"a": 4}}

		Convey("Then there are no neighbors", func() {
			neighbors, err := engine.FindSimilarUsers(ctx, table, "solo", 5, similarity.KernelPearson)
			So(err, ShouldBeNil)
			So(neighbors, ShouldBeEmpty)
		})
	})

	Convey("Given invalid input", t, func() {
		table := workedExample()

		Convey("When the user is unknown", func() {
			neighbors, err := engine.FindSimilarUsers(ctx, table, "Z", 2, similarity.KernelPearson)

			Convey("Then UnknownUserError is returned with no partial result", func() {
				So(neighbors, ShouldBeNil)
				var unknown *similarity.UnknownUserError
				So(errors.As(err, &unknown), ShouldBeTrue)
				So(unknown.User, ShouldEqual, "Z")
			})
		})

		Convey("When the kernel is unsupported", func() {
			neighbors, err := engine.FindSimilarUsers(ctx, table, "A", 2, "cosine")

			Convey("Then UnsupportedKernelError is returned", func() {
				So(neighbors, ShouldBeNil)
				var unsupported *similarity.UnsupportedKernelError
				So(errors.As(err, &unsupported), ShouldBeTrue)
				So(unsupported.Kernel, ShouldEqual, "cosine")
			})
		})
	})
}

func TestGenerateRecommendations(t *testing.T) {
	ctx := context.Background()
	engine := recommend.New()

	Convey("Given the worked example", t, func() {
		table := workedExample()

		Convey("When recommending for a user with no positive neighbors", func() {
			for _, kernel := range similarity.Names() {
				recs, err := engine.GenerateRecommendations(ctx, table, "C", kernel)

				So(err, ShouldBeNil)
				So(recs.Possible, ShouldBeFalse)
				So(recs.Items, ShouldBeEmpty)
				So(recs.Message(), ShouldEqual, recommend.NoRecommendationsMessage)
			}
		})
	})

	Convey("Given neighbors of different strength", t, func() {
		table := model.RatingTable{
			"T":  {"a": 5, "b": 3},
			"U1": {"a": 5, "b": 3, "x": 4},
			"U2": {"a": 4, "b": 4, "x": 2, "y": 5},
		}

		Convey("When using the euclidean kernel", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelEuclidean)

			Convey("Then items are ranked by similarity-weighted average", func() {
				So(err, ShouldBeNil)
				So(recs.Possible, ShouldBeTrue)
				// y: 5 from U2 alone. x: (4*1 + 2*s) / (1 + s) with s = 1/(1+sqrt2) < 4.
				So(recs.Items, ShouldResemble, []string{"y", "x"})
			})
		})

		Convey("When using the pearson kernel", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelPearson)

			Convey("Then zero-variance neighbors contribute nothing", func() {
				So(err, ShouldBeNil)
				So(recs.Possible, ShouldBeTrue)
				So(recs.Items, ShouldResemble, []string{"x"})
			})
		})
	})

	Convey("Given a negatively correlated neighbor only", t, func() {
		table := model.RatingTable{
			"T": {"a": 1, "b": 2, "c": 3},
			"D": {"a": 3, "b": 2, "c": 1, "z": 5},
		}

		Convey("Then its items are not recommended", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelPearson)
			So(err, ShouldBeNil)
			So(recs.Possible, ShouldBeFalse)
		})
	})

	Convey("Given a user who rated everything", t, func() {
		table := model.RatingTable{
			"T": {"a": 4, "b": 2, "c": 5},
			"U": {"a": 4, "b": 2},
			"V": {"b": 2, "c": 5},
		}

		Convey("Then the sentinel is returned", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelEuclidean)
			So(err, ShouldBeNil)
			So(recs.Possible, ShouldBeFalse)
			So(recs.Message(), ShouldEqual, "No recommendations possible")
		})
	})

	Convey("Given a stored rating of exactly zero", t, func() {
		table := model.RatingTable{
			"T": {"a": 4, "b": 2, "c": 0},
			"U": {"a": 4, "b": 2, "c": 5},
		}

		Convey("Then the item is still treated as unseen", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelEuclidean)
			So(err, ShouldBeNil)
			So(recs.Possible, ShouldBeTrue)
			So(recs.Items, ShouldResemble, []string{"c"})
		})
	})

	Convey("Given equal aggregated scores", t, func() {
		table := model.RatingTable{
			"T": {"a": 4},
			"U": {"a": 4, "q": 3, "p": 3, "r": 5},
		}

		Convey("Then ties are ordered by item id", func() {
			recs, err := engine.GenerateRecommendations(ctx, table, "T", similarity.KernelEuclidean)
			So(err, ShouldBeNil)
			So(recs.Items, ShouldResemble, []string{"r", "p", "q"})
		})
	})

	Convey("Given the movie table", t, func() {
		table := movieTable()

		Convey("Then recommended items are always unseen by the target", func() {
			for _, user := range table.Users() {
				for _, kernel := range similarity.Names() {
					recs, err := engine.GenerateRecommendations(ctx, table, user, kernel)
					So(err, ShouldBeNil)
					for _, item := range recs.Items {
						r, ok := table.Rating(user, item)
						So(!ok || r == 0, ShouldBeTrue)
					}
				}
			}
		})
	})

	Convey("Given invalid input", t, func() {
		table := workedExample()

		Convey("When the user is unknown", func() {
			_, err := engine.GenerateRecommendations(ctx, table, "Z", similarity.KernelEuclidean)
			So(errors.Is(err, similarity.ErrUnknownUser), ShouldBeTrue)
		})

		Convey("When the kernel is unsupported", func() {
			_, err := engine.GenerateRecommendations(ctx, table, "A", "manhattan")
			So(errors.Is(err, similarity.ErrUnsupportedKernel), ShouldBeTrue)
		})

		Convey("When both are invalid", func() {
			_, err := engine.GenerateRecommendations(ctx, table, "Z", "manhattan")

			Convey("Then the unknown user is reported first", func() {
				So(errors.Is(err, similarity.ErrUnknownUser), ShouldBeTrue)
			})
		})
	})
}

func TestWorkerCountInvariance(t *testing.T) {
	ctx := context.Background()

	Convey("Given engines with different worker counts", t, func() {
		table := movieTable()
		serial := recommend.New()

		for _, workers := range []int{2, 3, 8, 64} {
			parallel := recommend.New(recommend.WithWorkers(workers))

			for _, user := range table.Users() {
				for _, kernel := range similarity.Names() {
					want, err := serial.FindSimilarUsers(ctx, table, user, math.MaxInt32, kernel)
					So(err, ShouldBeNil)
					got, err := parallel.FindSimilarUsers(ctx, table, user, math.MaxInt32, kernel)
					So(err, ShouldBeNil)
					So(got, ShouldResemble, want)

					wantRecs, err := serial.GenerateRecommendations(ctx, table, user, kernel)
					So(err, ShouldBeNil)
					gotRecs, err := parallel.GenerateRecommendations(ctx, table, user, kernel)
					So(err, ShouldBeNil)
					So(gotRecs, ShouldResemble, wantRecs)
				}
			}
		}
	})
}

func TestCancelledContext(t *testing.T) {
	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		engine := recommend.New(recommend.WithWorkers(4))

		Convey("Then scoring stops with the context error", func() {
			_, err := engine.FindSimilarUsers(ctx, movieTable(), "David Smith", 3, similarity.KernelPearson)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)

			_, err = engine.GenerateRecommendations(ctx, movieTable(), "David Smith", similarity.KernelPearson)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}
