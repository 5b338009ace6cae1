package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atinyakov/moodmap/internal/metrics"
	"github.com/atinyakov/moodmap/internal/platformtoken"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

var secret = []byte("platform-secret")

func TestPlatformAuth_NoHeaderPassesAnonymous(t *testing.T) {
	dummy := &dummyHandler{}
	h := PlatformAuth(secret)(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/moods", nil)
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if id := GetUserIDFromContext(dummy.ctx); id != 0 {
		t.Errorf("expected anonymous request, got user %d", id)
	}
}

func TestPlatformAuth_ValidToken(t *testing.T) {
	tok, err := platformtoken.Sign(secret, platformtoken.Claims{FID: 977233}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	dummy := &dummyHandler{}
	h := PlatformAuth(secret)(dummy)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/moods", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if id := GetUserIDFromContext(dummy.ctx); id != 977233 {
		t.Errorf("GetUserIDFromContext = %d; want 977233", id)
	}
}

func TestPlatformAuth_Rejects(t *testing.T) {
	forged, err := platformtoken.Sign([]byte("other"), platformtoken.Claims{FID: 1}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	cases := map[string]string{
		"forged token": "Bearer " + forged,
		"wrong scheme": "Basic abc",
		"garbage":      "Bearer xyz",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := PlatformAuth(secret)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/moods", nil)
			req.Header.Set("Authorization", header)
			h.ServeHTTP(rec, req)

			if dummy.called {
				t.Error("did not expect next handler to be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 Unauthorized, got %d", rec.Code)
			}
		})
	}
}

func TestGetUserIDFromContext_Empty(t *testing.T) {
	if id := GetUserIDFromContext(context.Background()); id != 0 {
		t.Errorf("expected 0, got %d", id)
	}
}

func TestWithRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/moods", nil))

	out := buf.String()
	for _, want := range []string{"request", "/api/moods", "418"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q does not contain %q", out, want)
		}
	}
}

func TestMetrics_CountsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/api/moods/{owner}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("/api/moods/{owner}", http.MethodGet, "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/moods/-5", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("counter = %v; want %v", got, before+1)
	}
}
