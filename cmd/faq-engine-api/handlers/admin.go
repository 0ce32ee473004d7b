package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kotileipomo/faq-engine/internal/engine"
	"github.com/kotileipomo/faq-engine/internal/kb"
	"github.com/kotileipomo/faq-engine/internal/observability"
)

// KBHandler serves knowledge base maintenance and pickup checks.
type KBHandler struct {
	logger *observability.Logger
	engine *engine.Engine
}

// NewKBHandler creates a new knowledge base handler.
func NewKBHandler(logger *observability.Logger, e *engine.Engine) *KBHandler {
	return &KBHandler{
		logger: logger.WithComponent("api-kb"),
		engine: e,
	}
}

// ReloadResponseDTO represents a reload result.
type ReloadResponseDTO struct {
	Entries int    `json:"entries"`
	Version uint64 `json:"version"`
	FAQ     int    `json:"faq"`
	Aliases int    `json:"aliases"`
	TookMs  int64  `json:"tookMs"`
}

// StatsResponseDTO describes the active snapshot.
type StatsResponseDTO struct {
	Entries    int     `json:"entries"`
	Version    uint64  `json:"version"`
	Vocabulary int     `json:"vocabulary"`
	AvgLen     float64 `json:"avgLen"`
}

// PickupResponseDTO represents a pickup time check.
type PickupResponseDTO struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Reload handles POST /kb/reload.
func (h *KBHandler) Reload(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Reload(r.Context())
	if err != nil {
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Reload failed")
		writeError(w, http.StatusInternalServerError, "reload failed", err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, ReloadResponseDTO{
		Entries: res.Entries,
		Version: res.Version,
		FAQ:     res.FAQ,
		Aliases: res.Aliases,
		TookMs:  res.Took.Milliseconds(),
	})
}

// Stats handles GET /kb/stats.
func (h *KBHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Store().Current()
	stats := snap.Stats()
	writeJSON(w, h.logger, http.StatusOK, StatsResponseDTO{
		Entries:    snap.Len(),
		Version:    snap.Version,
		Vocabulary: len(stats.DF),
		AvgLen:     stats.AvgLen,
	})
}

// CheckPickup handles GET /pickup/check?iso=YYYY-MM-DDTHH:MM.
func (h *KBHandler) CheckPickup(w http.ResponseWriter, r *http.Request) {
	iso := strings.TrimSpace(r.URL.Query().Get("iso"))
	if iso == "" {
		writeError(w, http.StatusBadRequest, "iso is required", "")
		return
	}

	err := h.engine.CheckPickup(r.Context(), iso)
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, PickupResponseDTO{OK: true})
	case errors.Is(err, kb.ErrPickupFormat):
		writeError(w, http.StatusBadRequest, "invalid pickup time", err.Error())
	default:
		writeJSON(w, h.logger, http.StatusOK, PickupResponseDTO{Reason: err.Error()})
	}
}
