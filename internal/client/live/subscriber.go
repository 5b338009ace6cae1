// Package live subscribes to the store's push channel and triggers a refetch
// whenever a mood changes.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const eventMoodUpserted = "mood.upserted"

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type upsertedPayload struct {
	OwnerID int64 `json:"owner_id"`
}

// Subscriber keeps a websocket to the store open, reconnecting with backoff.
type Subscriber struct {
	url        string
	dialer     *websocket.Dialer
	log        *zap.Logger
	onUpsert   func(ctx context.Context, owner int64)
	minBackoff time.Duration
	maxBackoff time.Duration
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(s *Subscriber) { s.minBackoff, s.maxBackoff = lo, hi }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Subscriber) { s.dialer = d }
}

func NewSubscriber(wsURL string, log *zap.Logger, onUpsert func(ctx context.Context, owner int64), opts ...Option) *Subscriber {
	s := &Subscriber{
		url:        wsURL,
		dialer:     websocket.DefaultDialer,
		log:        log,
		onUpsert:   onUpsert,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URLFor returns the push endpoint of the store at baseURL.
func URLFor(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/api/live"
	return u.String(), nil
}

// Run keeps the subscription alive until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	delay := s.minBackoff
	for {
		connected, err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = s.minBackoff
		}
		s.log.Debug("live connection lost, reconnecting", zap.Error(err), zap.Duration("in", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay *= 2; delay > s.maxBackoff {
			delay = s.maxBackoff
		}
	}
}

// session reads events until the connection drops. It reports whether the
// dial succeeded.
func (s *Subscriber) session(ctx context.Context) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	s.log.Info("live updates connected")
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Debug("skipping malformed live event", zap.Error(err))
			continue
		}
		if ev.Type != eventMoodUpserted {
			continue
		}
		var p upsertedPayload
		_ = json.Unmarshal(ev.Payload, &p)
		s.onUpsert(ctx, p.OwnerID)
	}
}
