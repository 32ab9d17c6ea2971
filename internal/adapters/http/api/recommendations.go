package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/recommend"
	"github.com/okian/usercf/internal/domain/types"
)

// defaultSimilarUsers is used when GET /users/{userID}/similar has no k.
const defaultSimilarUsers = 5

// RecommendDependencies defines what the recommendation handlers need.
type RecommendDependencies interface {
	ResolveKernel(kernel string) string
	Similarity(ctx context.Context, a, b, kernel string) (float64, error)
	SimilarUsers(ctx context.Context, user string, k int, kernel string) ([]model.Neighbor, error)
	Recommend(ctx context.Context, user, kernel string) (recommend.Recommendations, error)
}

// RecommendHandler serves similarity and recommendation queries.
type RecommendHandler struct {
	deps RecommendDependencies
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{deps: deps}
}

// HandleGetSimilarUsers handles GET /users/{userID}/similar?k=&kernel=.
func (h *RecommendHandler) HandleGetSimilarUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_similar_users"
	user := chi.URLParam(r, "userID")
	kernel := h.deps.ResolveKernel(r.URL.Query().Get("kernel"))

	k := defaultSimilarUsers
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "bad_request",
				wrapKind(op, ErrBadRequest, fmt.Errorf("k must be a non-negative integer, got %q", raw)))
			return
		}
		k = parsed
	}

	neighbors, err := h.deps.SimilarUsers(r.Context(), user, k, kernel)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := types.SimilarUsersResponse{User: user, Kernel: kernel, Neighbors: make([]types.Neighbor, len(neighbors))}
	for i, n := range neighbors {
		resp.Neighbors[i] = types.Neighbor{UserID: n.UserID, Score: n.Score}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetRecommendations handles GET /users/{userID}/recommendations?kernel=.
// A user with nothing left to recommend gets 200 with possible=false.
func (h *RecommendHandler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userID")
	kernel := h.deps.ResolveKernel(r.URL.Query().Get("kernel"))

	recs, err := h.deps.Recommend(r.Context(), user, kernel)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := types.RecommendationsResponse{
		User:     user,
		Kernel:   kernel,
		Possible: recs.Possible,
		Items:    recs.Items,
	}
	if resp.Items == nil {
		resp.Items = []string{}
	}
	if !recs.Possible {
		resp.Message = recommend.NoRecommendationsMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetSimilarity handles GET /similarity?a=&b=&kernel=.
func (h *RecommendHandler) HandleGetSimilarity(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_similarity"
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		writeError(w, http.StatusBadRequest, "bad_request",
			wrapKind(op, ErrBadRequest, fmt.Errorf("both a and b are required")))
		return
	}
	kernel := h.deps.ResolveKernel(q.Get("kernel"))

	score, err := h.deps.Similarity(r.Context(), a, b, kernel)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SimilarityResponse{A: a, B: b, Kernel: kernel, Score: score})
}
