package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

// Rating is one submission sent to POST /ratings.
type Rating struct {
	EventID string  `json:"event_id"`
	UserID  string  `json:"user_id"`
	ItemID  string  `json:"item_id"`
	Rating  float64 `json:"rating"`
}

// generateRatings creates RatingsPerUser distinct ratings for every user.
// Users in the same cluster rate the cluster's items high and the rest low,
// so neighbors exist and every user has unseen items left.
// Ratings are never 0, which the service treats as unrated.
func generateRatings(cfg Config) []Rating {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	run := uuid.NewString()[:8]

	ratings := make([]Rating, 0, cfg.Users*cfg.RatingsPerUser)
	for u := 0; u < cfg.Users; u++ {
		user := fmt.Sprintf("lt-%s-user-%04d", run, u)
		cluster := u % cfg.Clusters
		for _, i := range rng.Perm(cfg.Items)[:cfg.RatingsPerUser] {
			ratings = append(ratings, Rating{
				EventID: uuid.NewString(),
				UserID:  user,
				ItemID:  fmt.Sprintf("item-%04d", i),
				Rating:  ratingFor(rng, i%cfg.Clusters == cluster),
			})
		}
	}
	return ratings
}

// ratingFor returns a half-star rating in [4, 5] for liked items and
// [1, 2] otherwise.
func ratingFor(rng *rand.Rand, liked bool) float64 {
	base := 1.0
	if liked {
		base = 4.0
	}
	return base + float64(rng.IntN(3))*0.5
}

// withDuplicates appends a re-send of roughly rate*len(ratings) ratings,
// keeping their event ids so the service must drop them.
func withDuplicates(ratings []Rating, rate float64, seed uint64) []Rating {
	n := int(float64(len(ratings)) * rate)
	if n == 0 {
		return ratings
	}
	rng := rand.New(rand.NewPCG(seed+1, seed))
	out := make([]Rating, len(ratings), len(ratings)+n)
	copy(out, ratings)
	for _, i := range rng.Perm(len(ratings))[:n] {
		out = append(out, ratings[i])
	}
	return out
}
