package model_test

import (
	"testing"

	model "github.com/okian/usercf/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func sampleTable() model.RatingTable {
	return model.RatingTable{
		"alice": {"m1": 5, "m2": 3, "m3": 0},
		"bob":   {"m1": 4, "m2": 4},
		"carol": {"m4": 5},
	}
}

func TestRatingTable(t *testing.T) {
	convey.Convey("Given a rating table", t, func() {
		table := sampleTable()

		convey.Convey("When checking membership", func() {
			convey.Convey("Then known users are present and unknown ones are not", func() {
				convey.So(table.HasUser("alice"), convey.ShouldBeTrue)
				convey.So(table.HasUser("dave"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When listing users", func() {
			users := table.Users()

			convey.Convey("Then they are returned in ascending order", func() {
				convey.So(users, convey.ShouldResemble, []string{"alice", "bob", "carol"})
			})
		})

		convey.Convey("When reading ratings", func() {
			r, ok := table.Rating("alice", "m1")
			_, missing := table.Rating("alice", "m4")
			zero, zeroOK := table.Rating("alice", "m3")

			convey.Convey("Then stored values are returned and absence is reported", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r, convey.ShouldEqual, 5.0)
				convey.So(missing, convey.ShouldBeFalse)
				convey.So(zeroOK, convey.ShouldBeTrue)
				convey.So(zero, convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When counting ratings", func() {
			convey.So(table.Count(), convey.ShouldEqual, 6)
		})

		convey.Convey("When computing co-rated items", func() {
			convey.Convey("Then the intersection is sorted and symmetric", func() {
				convey.So(table.CoRated("alice", "bob"), convey.ShouldResemble, []string{"m1", "m2"})
				convey.So(table.CoRated("bob", "alice"), convey.ShouldResemble, []string{"m1", "m2"})
			})

			convey.Convey("Then disjoint users share nothing", func() {
				convey.So(table.CoRated("alice", "carol"), convey.ShouldBeEmpty)
			})

			convey.Convey("Then unknown users share nothing", func() {
				convey.So(table.CoRated("alice", "nobody"), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When cloning the table", func() {
			clone := table.Clone()
			clone.Set("alice", "m1", 1)
			clone.Set("dave", "m9", 2)

			convey.Convey("Then the original is untouched", func() {
				r, _ := table.Rating("alice", "m1")
				convey.So(r, convey.ShouldEqual, 5.0)
				convey.So(table.HasUser("dave"), convey.ShouldBeFalse)
				convey.So(clone.HasUser("dave"), convey.ShouldBeTrue)
			})
		})
	})
}

func TestRatingTableSet(t *testing.T) {
	convey.Convey("Given an empty table", t, func() {
		table := model.RatingTable{}

		convey.Convey("When setting ratings for a new user", func() {
			table.Set("erin", "m1", 3.5)
			table.Set("erin", "m1", 4.5)

			convey.Convey("Then the later rating replaces the earlier one", func() {
				r, ok := table.Rating("erin", "m1")
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(r, convey.ShouldEqual, 4.5)
				convey.So(table.Count(), convey.ShouldEqual, 1)
			})
		})
	})
}
