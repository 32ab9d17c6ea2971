package api

import (
	"context"
	"net/http"

	"github.com/okian/usercf/internal/domain/types"
)

// StatsProvider reports store, queue and worker state.
type StatsProvider interface {
	GetStats(ctx context.Context) types.Stats
}

// StatsHandler serves GET /stats. Load tests poll it to learn when
// accepted ratings have been applied, so responses are never cached.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler returns a handler reading from provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats writes the current types.Stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.provider.GetStats(r.Context()))
}
