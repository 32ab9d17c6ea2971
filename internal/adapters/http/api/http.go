// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	service "github.com/okian/usercf/internal/app"
	"github.com/okian/usercf/internal/domain/similarity"
	"github.com/okian/usercf/internal/domain/types"
	"github.com/okian/usercf/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	RatingDependencies
	RecommendDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	ratingsHandler   *RatingsHandler
	recommendHandler *RecommendHandler
	log              logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		ratingsHandler:   NewRatingsHandler(deps),
		recommendHandler: NewRecommendHandler(deps),
		log:              log,
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(RequestID(s.log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthHandler.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/stats", s.statsHandler.HandleStats)
		r.Post("/ratings", s.ratingsHandler.HandlePostRating)
		r.Get("/similarity", s.recommendHandler.HandleGetSimilarity)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/ratings", s.ratingsHandler.HandleGetUserRatings)
			r.Get("/similar", s.recommendHandler.HandleGetSimilarUsers)
			r.Get("/recommendations", s.recommendHandler.HandleGetRecommendations)
		})
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	s.Register(ctx, r)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}

// writeServiceError maps errors returned by the service to a status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, similarity.ErrUnknownUser):
		return http.StatusNotFound, "unknown_user"
	case errors.Is(err, similarity.ErrUnsupportedKernel):
		return http.StatusBadRequest, "unsupported_kernel"
	case errors.Is(err, service.ErrInvalidRating), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
