package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/atinyakov/moodmap/internal/platformtoken"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type fakeHost struct {
	mu            sync.Mutex
	token         string
	installStatus int
	published     []map[string]any
}

func (f *fakeHost) calls() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.published...)
}

func (f *fakeHost) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/install", func(w http.ResponseWriter, r *http.Request) {
		if f.installStatus != 0 {
			http.Error(w, "app already added", f.installStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/context", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})
	mux.HandleFunc("/publish", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.published = append(f.published, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func signedToken(t *testing.T, fid int64) string {
	t.Helper()
	tok, err := platformtoken.Sign([]byte("host"), platformtoken.Claims{FID: fid, Username: "alice"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestInitialize_InstallFailureIsTolerated(t *testing.T) {
	host := &fakeHost{token: signedToken(t, 977233), installStatus: http.StatusConflict}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client := NewHostClient(srv.URL, srv.Client(), zap.NewNop())
	pc, err := Initialize(context.Background(), client, zap.NewNop())
	require.NoError(t, err)

	require.True(t, pc.IsResolved())
	user, ok := pc.VerifiedUser()
	require.True(t, ok)
	assert.Equal(t, int64(977233), user.FID)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, client.Token())
}

func TestInitialize_NoUser(t *testing.T) {
	host := &fakeHost{}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client := NewHostClient(srv.URL, srv.Client(), zap.NewNop())
	pc, err := Initialize(context.Background(), client, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, pc.IsResolved())
	_, ok := pc.VerifiedUser()
	assert.False(t, ok)
	assert.Empty(t, client.Token())
}

func TestInitialize_ReadyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	pc, err := Initialize(context.Background(), NewHostClient(srv.URL, srv.Client(), zap.NewNop()), zap.NewNop())
	require.Error(t, err)
	assert.False(t, pc.IsResolved())
}

func TestContext_BeforeReady(t *testing.T) {
	client := NewHostClient("http://127.0.0.1:1", nil, zap.NewNop())
	_, err := client.Context(context.Background())
	assert.Error(t, err)
}

func TestPublish_TruncatesEmbeds(t *testing.T) {
	host := &fakeHost{token: signedToken(t, 5)}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(&buf), zapcore.WarnLevel)
	client := NewHostClient(srv.URL, srv.Client(), zap.New(core))
	_, err := Initialize(context.Background(), client, zap.NewNop())
	require.NoError(t, err)

	err = client.Publish(context.Background(), "🔥 test", []string{"https://a", "https://b", "https://c"})
	require.NoError(t, err)

	published := host.calls()
	require.Len(t, published, 1)
	assert.Equal(t, "🔥 test", published[0]["text"])
	assert.Equal(t, []any{"https://a", "https://b"}, published[0]["embeds"])
	assert.Contains(t, buf.String(), "too many embeds")
}

func TestPublish_ZeroEmbeds(t *testing.T) {
	host := &fakeHost{token: signedToken(t, 5)}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client := NewHostClient(srv.URL, srv.Client(), zap.NewNop())
	_, err := Initialize(context.Background(), client, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, client.Publish(context.Background(), "hi", nil))
	published := host.calls()
	require.Len(t, published, 1)
	assert.Equal(t, []any{}, published[0]["embeds"])
}

func TestPublish_RequiresVerifiedUser(t *testing.T) {
	host := &fakeHost{}
	srv := httptest.NewServer(host.handler())
	defer srv.Close()

	client := NewHostClient(srv.URL, srv.Client(), zap.NewNop())
	_, err := Initialize(context.Background(), client, zap.NewNop())
	require.NoError(t, err)

	err = client.Publish(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, ErrNoVerifiedUser)
	assert.Empty(t, host.calls())
}

func TestStandalone(t *testing.T) {
	pc, err := Initialize(context.Background(), Standalone{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrStandalone)
	assert.False(t, pc.IsResolved())
	assert.ErrorIs(t, Standalone{}.Publish(context.Background(), "x", nil), ErrNoVerifiedUser)
}

func TestResolved_IgnoresNonPositiveUser(t *testing.T) {
	pc := Resolved(&User{FID: -3})
	assert.True(t, pc.IsResolved())
	_, ok := pc.VerifiedUser()
	assert.False(t, ok)

	_, ok = Unresolved().VerifiedUser()
	assert.False(t, ok)
}
