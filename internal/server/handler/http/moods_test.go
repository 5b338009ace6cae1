package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
	"github.com/atinyakov/moodmap/internal/platformtoken"
	handler "github.com/atinyakov/moodmap/internal/server/handler/http"
	"github.com/atinyakov/moodmap/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeMoodService records calls and returns preconfigured results.
type fakeMoodService struct {
	upsertFunc   func(ctx context.Context, caller int64, m models.Mood) (*models.Mood, error)
	recentFunc   func(ctx context.Context, since time.Time) ([]models.Mood, error)
	byOwnerFunc  func(ctx context.Context, owner int64) (*models.Mood, error)
	byOwnersFunc func(ctx context.Context, owners []int64) ([]models.Mood, error)
}

func (f *fakeMoodService) Upsert(ctx context.Context, caller int64, m models.Mood) (*models.Mood, error) {
	return f.upsertFunc(ctx, caller, m)
}
func (f *fakeMoodService) Recent(ctx context.Context, since time.Time) ([]models.Mood, error) {
	return f.recentFunc(ctx, since)
}
func (f *fakeMoodService) ByOwner(ctx context.Context, owner int64) (*models.Mood, error) {
	return f.byOwnerFunc(ctx, owner)
}
func (f *fakeMoodService) ByOwners(ctx context.Context, owners []int64) ([]models.Mood, error) {
	return f.byOwnersFunc(ctx, owners)
}

var secret = []byte("platform-secret")

func newServer(svc handler.MoodService) http.Handler {
	h := &handler.MoodHandler{MoodService: svc, Log: zap.NewNop()}
	live := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) }
	return handler.NewRouter(h, live, secret, zap.NewNop())
}

func jsonRequest(method, target string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUpsert_BadJSON(t *testing.T) {
	h := &handler.MoodHandler{MoodService: &fakeMoodService{}, Log: zap.NewNop()}
	req := httptest.NewRequest(http.MethodPut, "/api/moods", bytes.NewBufferString("not-a-json"))
	w := httptest.NewRecorder()

	h.Upsert(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid body\n", w.Body.String())
}

func TestUpsert_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", models.Validation("pick an emoji"), http.StatusBadRequest, "pick an emoji\n"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, service.ErrForbidden.Error() + "\n"},
		{"rate limited", service.ErrRateLimited, http.StatusTooManyRequests, service.ErrRateLimited.Error() + "\n"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "internal error\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeMoodService{
				upsertFunc: func(context.Context, int64, models.Mood) (*models.Mood, error) { return nil, tc.err },
			}
			w := httptest.NewRecorder()
			newServer(svc).ServeHTTP(w, jsonRequest(http.MethodPut, "/api/moods", models.Mood{OwnerID: -1}))

			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
		})
	}
}

func TestUpsert_PassesVerifiedCaller(t *testing.T) {
	tok, err := platformtoken.Sign(secret, platformtoken.Claims{FID: 977233}, time.Hour)
	require.NoError(t, err)

	var gotCaller int64
	var gotMood models.Mood
	svc := &fakeMoodService{
		upsertFunc: func(_ context.Context, caller int64, m models.Mood) (*models.Mood, error) {
			gotCaller, gotMood = caller, m
			m.ID = "row-1"
			return &m, nil
		},
	}

	req := jsonRequest(http.MethodPut, "/api/moods", models.Mood{OwnerID: 977233, Emoji: "🌧", Note: "rainy"})
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	newServer(svc).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, int64(977233), gotCaller)
	assert.Equal(t, "rainy", gotMood.Note)

	var saved models.Mood
	require.NoError(t, json.NewDecoder(w.Body).Decode(&saved))
	assert.Equal(t, "row-1", saved.ID)
}

func TestUpsert_RejectsNonJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/moods", strings.NewReader("emoji=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	newServer(&fakeMoodService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRecent(t *testing.T) {
	since := time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)
	var gotSince time.Time
	svc := &fakeMoodService{
		recentFunc: func(_ context.Context, s time.Time) ([]models.Mood, error) {
			gotSince = s
			return []models.Mood{{ID: "a", OwnerID: -1}}, nil
		},
	}

	w := httptest.NewRecorder()
	newServer(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods?since="+since.Format(time.RFC3339), nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, since.Equal(gotSince))

	var moods []models.Mood
	require.NoError(t, json.NewDecoder(w.Body).Decode(&moods))
	require.Len(t, moods, 1)
	assert.Equal(t, "a", moods[0].ID)
}

func TestRecent_DefaultWindow(t *testing.T) {
	svc := &fakeMoodService{
		recentFunc: func(_ context.Context, s time.Time) ([]models.Mood, error) {
			assert.True(t, s.IsZero())
			return []models.Mood{}, nil
		},
	}
	w := httptest.NewRecorder()
	newServer(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestRecent_BadSince(t *testing.T) {
	w := httptest.NewRecorder()
	newServer(&fakeMoodService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestByOwner(t *testing.T) {
	svc := &fakeMoodService{
		byOwnerFunc: func(_ context.Context, owner int64) (*models.Mood, error) {
			if owner == -482913 {
				return &models.Mood{ID: "x", OwnerID: owner}, nil
			}
			return nil, nil
		},
	}
	srv := newServer(svc)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods/-482913", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var m models.Mood
	require.NoError(t, json.NewDecoder(w.Body).Decode(&m))
	assert.Equal(t, int64(-482913), m.OwnerID)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods/12", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/moods/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLookup(t *testing.T) {
	svc := &fakeMoodService{
		byOwnersFunc: func(_ context.Context, owners []int64) ([]models.Mood, error) {
			assert.Equal(t, []int64{-1, 2}, owners)
			return []models.Mood{{OwnerID: 2}}, nil
		},
	}
	w := httptest.NewRecorder()
	newServer(svc).ServeHTTP(w, jsonRequest(http.MethodPost, "/api/moods/lookup", map[string]any{"owners": []int64{-1, 2}}))

	require.Equal(t, http.StatusOK, w.Code)
	var moods []models.Mood
	require.NoError(t, json.NewDecoder(w.Body).Decode(&moods))
	assert.Len(t, moods, 1)
}

func TestLookup_TooMany(t *testing.T) {
	owners := make([]int64, 101)
	w := httptest.NewRecorder()
	newServer(&fakeMoodService{}).ServeHTTP(w, jsonRequest(http.MethodPost, "/api/moods/lookup", map[string]any{"owners": owners}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndLiveRoutes(t *testing.T) {
	srv := newServer(&fakeMoodService{})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/live", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
