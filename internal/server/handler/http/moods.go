// Package http provides HTTP handlers for the mood store.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atinyakov/moodmap/internal/middleware"
	"github.com/atinyakov/moodmap/internal/models"
	"github.com/atinyakov/moodmap/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxLookupOwners bounds the batch lookup.
const maxLookupOwners = 100

// MoodService defines the operations required by the MoodHandler.
type MoodService interface {
	// Upsert stores m as the single mood of its owner. caller is the verified
	// platform user of the request, or 0.
	Upsert(ctx context.Context, caller int64, m models.Mood) (*models.Mood, error)
	// Recent returns moods created at or after since; a zero since selects the default window.
	Recent(ctx context.Context, since time.Time) ([]models.Mood, error)
	// ByOwner returns the owner's mood or nil.
	ByOwner(ctx context.Context, owner int64) (*models.Mood, error)
	// ByOwners returns the moods of several owners.
	ByOwners(ctx context.Context, owners []int64) ([]models.Mood, error)
}

// MoodHandler handles HTTP requests for moods.
type MoodHandler struct {
	MoodService MoodService
	Log         *zap.Logger
}

// Upsert handles PUT /api/moods. The body is a models.Mood; id and
// created_at are assigned by the store.
func (h *MoodHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var m models.Mood
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	saved, err := h.MoodService.Upsert(ctx, middleware.GetUserIDFromContext(ctx), m)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Recent handles GET /api/moods?since=<RFC3339>.
func (h *MoodHandler) Recent(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = t
	}

	moods, err := h.MoodService.Recent(r.Context(), since)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moods)
}

// ByOwner handles GET /api/moods/{owner}. An owner without a mood yields 404.
func (h *MoodHandler) ByOwner(w http.ResponseWriter, r *http.Request) {
	owner, err := strconv.ParseInt(chi.URLParam(r, "owner"), 10, 64)
	if err != nil || owner == 0 {
		http.Error(w, "invalid owner", http.StatusBadRequest)
		return
	}

	m, err := h.MoodService.ByOwner(r.Context(), owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if m == nil {
		http.Error(w, "mood not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Lookup handles POST /api/moods/lookup with {"owners": [...]}.
func (h *MoodHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owners []int64 `json:"owners"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(req.Owners) > maxLookupOwners {
		http.Error(w, "too many owners", http.StatusBadRequest)
		return
	}

	moods, err := h.MoodService.ByOwners(r.Context(), req.Owners)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, moods)
}

func (h *MoodHandler) writeError(w http.ResponseWriter, err error) {
	var failure *models.Failure
	switch {
	case errors.As(err, &failure) && errors.Is(err, models.ErrValidation):
		http.Error(w, failure.Message, http.StatusBadRequest)
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrRateLimited):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	default:
		h.Log.Error("mood request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
