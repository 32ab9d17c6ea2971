package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/okian/usercf/internal/domain/recommend"
	"github.com/okian/usercf/internal/domain/types"
)

const neighborsToCheck = 10

// verify queries recommendations and neighbors for a sample of users and
// records every response that breaks the service's contract.
func verify(ctx context.Context, c *client, cfg Config, rated map[string]map[string]struct{}, stats *Stats) {
	users := make([]string, 0, len(rated))
	for u := range rated {
		users = append(users, u)
	}
	sort.Strings(users)
	if cfg.SampleUsers > 0 && len(users) > cfg.SampleUsers {
		users = users[:cfg.SampleUsers]
	}

	fail := func(format string, args ...any) {
		stats.Violations = append(stats.Violations, fmt.Sprintf(format, args...))
	}

	for _, user := range users {
		stats.UsersChecked++

		status, recs, err := c.recommendations(ctx, user, cfg.Kernel)
		switch {
		case err != nil:
			fail("%s: recommendations: %v", user, err)
		case status != http.StatusOK:
			fail("%s: recommendations returned status %d", user, status)
		default:
			if recs.Possible {
				stats.Possible++
			} else {
				stats.Exhausted++
			}
			for _, v := range checkRecommendations(recs, rated[user]) {
				fail("%s: %s", user, v)
			}
		}

		status, sim, err := c.similar(ctx, user, cfg.Kernel, neighborsToCheck)
		switch {
		case err != nil:
			fail("%s: similar: %v", user, err)
		case status != http.StatusOK:
			fail("%s: similar returned status %d", user, status)
		default:
			for _, v := range checkNeighbors(user, sim) {
				fail("%s: %s", user, v)
			}
		}
	}

	if status, _, err := c.recommendations(ctx, "lt-unknown-user", cfg.Kernel); err == nil && status != http.StatusNotFound {
		fail("unknown user: recommendations returned status %d, want 404", status)
	}
}

// checkRecommendations validates one recommendations body against the items
// the user is known to have rated.
func checkRecommendations(r types.RecommendationsResponse, rated map[string]struct{}) []string {
	var out []string
	if !r.Possible {
		if len(r.Items) != 0 {
			out = append(out, fmt.Sprintf("not possible but returned %d items", len(r.Items)))
		}
		if r.Message != recommend.NoRecommendationsMessage {
			out = append(out, fmt.Sprintf("not possible with message %q", r.Message))
		}
		return out
	}
	if len(r.Items) == 0 {
		out = append(out, "possible but returned no items")
	}
	seen := make(map[string]struct{}, len(r.Items))
	for _, item := range r.Items {
		if _, ok := rated[item]; ok {
			out = append(out, fmt.Sprintf("recommended already rated item %q", item))
		}
		if _, ok := seen[item]; ok {
			out = append(out, fmt.Sprintf("recommended %q twice", item))
		}
		seen[item] = struct{}{}
	}
	return out
}

// checkNeighbors validates ordering: score descending, ties by user id.
func checkNeighbors(user string, r types.SimilarUsersResponse) []string {
	var out []string
	for i, n := range r.Neighbors {
		if n.UserID == user {
			out = append(out, "user listed as its own neighbor")
		}
		if i == 0 {
			continue
		}
		prev := r.Neighbors[i-1]
		if prev.Score < n.Score || (prev.Score == n.Score && prev.UserID > n.UserID) {
			out = append(out, fmt.Sprintf("neighbors out of order at %d: %s(%g) before %s(%g)",
				i, prev.UserID, prev.Score, n.UserID, n.Score))
		}
	}
	return out
}
