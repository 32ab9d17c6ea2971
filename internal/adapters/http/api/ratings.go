package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	service "github.com/okian/usercf/internal/app"
	"github.com/okian/usercf/internal/domain/model"
	"github.com/okian/usercf/internal/domain/types"
)

const maxRatingBody = 1 << 20

// RatingDependencies defines what the ratings handler needs from the service.
type RatingDependencies interface {
	SubmitRating(ctx context.Context, ev model.RatingEvent) (service.Submission, error)
	UserRatings(ctx context.Context, user string) (map[string]float64, error)
}

// RatingsHandler handles rating submissions and reads.
type RatingsHandler struct {
	deps RatingDependencies
}

// NewRatingsHandler creates a new ratings handler.
func NewRatingsHandler(deps RatingDependencies) *RatingsHandler {
	return &RatingsHandler{deps: deps}
}

// HandlePostRating handles POST /ratings requests.
func (h *RatingsHandler) HandlePostRating(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rating"

	var req types.RatingRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRatingBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	ev := model.RatingEvent{
		EventID: req.EventID,
		UserID:  req.UserID,
		ItemID:  req.ItemID,
		Rating:  *req.Rating,
	}
	if req.TS != nil {
		ev.TS = *req.TS
	}

	sub, err := h.deps.SubmitRating(r.Context(), ev)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sub.Duplicate {
		writeJSON(w, http.StatusOK, types.RatingResponse{EventID: sub.EventID, Status: "duplicate"})
		return
	}
	writeJSON(w, http.StatusAccepted, types.RatingResponse{EventID: sub.EventID, Status: "accepted"})
}

// HandleGetUserRatings handles GET /users/{userID}/ratings requests.
func (h *RatingsHandler) HandleGetUserRatings(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "userID")
	ratings, err := h.deps.UserRatings(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.UserRatingsResponse{User: user, Ratings: ratings})
}
