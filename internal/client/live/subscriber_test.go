package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestURLFor(t *testing.T) {
	u, err := URLFor("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/live", u)

	u, err = URLFor("https://moods.example/base")
	require.NoError(t, err)
	assert.Equal(t, "wss://moods.example/base/api/live", u)

	_, err = URLFor("ftp://x")
	assert.Error(t, err)
}

func TestSubscriber_RefreshesOnUpsertAndReconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := conns.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"other","payload":{}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mood.upserted","payload":{"owner_id":`+map[int32]string{1: "-7", 2: "42"}[n]+`}}`))
		if n > 1 {
			// keep the second connection open until the client leaves
			_, _, _ = conn.ReadMessage()
		}
	}))
	defer srv.Close()

	wsURL, err := URLFor(srv.URL)
	require.NoError(t, err)

	var mu sync.Mutex
	var owners []int64
	sub := NewSubscriber(wsURL, zap.NewNop(), func(_ context.Context, owner int64) {
		mu.Lock()
		owners = append(owners, owner)
		mu.Unlock()
	}, WithBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(owners) == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{-7, 42}, owners)
}

func TestSubscriber_StopsWhileDisconnected(t *testing.T) {
	sub := NewSubscriber("ws://127.0.0.1:1/api/live", zap.NewNop(), func(context.Context, int64) {},
		WithBackoff(time.Hour, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
