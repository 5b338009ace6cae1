package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/moodmap/internal/platformtoken"
	"go.uber.org/zap"
)

// HostClient is the JSON-over-HTTP bridge to the host platform.
type HostClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger

	mu    sync.Mutex
	ready bool
	token string
	ctx   Context
}

// NewHostClient creates a bridge to the host at baseURL. A nil httpClient
// gets a 10 second timeout client.
func NewHostClient(baseURL string, httpClient *http.Client, log *zap.Logger) *HostClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HostClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		log:        log,
		ctx:        Unresolved(),
	}
}

func (h *HostClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("host %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("host %s: %s: %s", path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("host %s: invalid response: %w", path, err)
	}
	return nil
}

func (h *HostClient) Ready(ctx context.Context) error {
	if err := h.do(ctx, http.MethodPost, "/ready", nil, nil); err != nil {
		return err
	}
	h.mu.Lock()
	h.ready = true
	h.mu.Unlock()
	return nil
}

func (h *HostClient) requireReady() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return fmt.Errorf("platform not ready")
	}
	return nil
}

func (h *HostClient) Install(ctx context.Context) error {
	if err := h.requireReady(); err != nil {
		return err
	}
	return h.do(ctx, http.MethodPost, "/install", nil, nil)
}

// Context reads the signed session token from the host. A token without a
// user, or one that cannot be decoded, resolves to a context without a
// verified user rather than failing.
func (h *HostClient) Context(ctx context.Context) (Context, error) {
	if err := h.requireReady(); err != nil {
		return Unresolved(), err
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := h.do(ctx, http.MethodGet, "/context", nil, &resp); err != nil {
		return Unresolved(), err
	}

	pc := Resolved(nil)
	token := ""
	if resp.Token != "" {
		claims, err := platformtoken.ReadClaims(resp.Token)
		if err != nil {
			h.log.Info("platform context carries no verified user", zap.Error(err))
		} else {
			pc = Resolved(&User{FID: claims.FID, Username: claims.Username, DisplayName: claims.DisplayName})
			token = resp.Token
		}
	}

	h.mu.Lock()
	h.ctx, h.token = pc, token
	h.mu.Unlock()
	return pc, nil
}

// Token returns the identity token of the verified user, or "".
func (h *HostClient) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

// Publish posts a message as the verified user. Embeds beyond MaxEmbeds are
// dropped with a warning.
func (h *HostClient) Publish(ctx context.Context, text string, embeds []string) error {
	h.mu.Lock()
	_, verified := h.ctx.VerifiedUser()
	h.mu.Unlock()
	if !verified {
		return ErrNoVerifiedUser
	}

	if len(embeds) > MaxEmbeds {
		h.log.Warn("too many embeds, truncating",
			zap.Int("given", len(embeds)), zap.Int("max", MaxEmbeds))
		embeds = embeds[:MaxEmbeds]
	}
	if embeds == nil {
		embeds = []string{}
	}

	body := struct {
		Text   string   `json:"text"`
		Embeds []string `json:"embeds"`
	}{Text: text, Embeds: embeds}
	return h.do(ctx, http.MethodPost, "/publish", body, nil)
}
