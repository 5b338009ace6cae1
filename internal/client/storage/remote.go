package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
)

// RemoteStore is the client of the mood store service. It is constructed once
// at startup and handed to every component that reads or writes moods.
type RemoteStore struct {
	client  *http.Client
	baseURL string
	token   func() string
}

// NewRemoteStore creates a store client for baseURL. token, when non-nil,
// supplies the platform identity token attached to every request.
func NewRemoteStore(client *http.Client, baseURL string, token func() string) *RemoteStore {
	return &RemoteStore{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

func (s *RemoteStore) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != nil {
		if tok := s.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("server error: %s", strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("invalid response: %w", err)
	}
	return resp.StatusCode, nil
}

// Upsert writes m as the single mood of its owner and returns the stored row.
func (s *RemoteStore) Upsert(ctx context.Context, m models.Mood) (*models.Mood, error) {
	var saved models.Mood
	if _, err := s.do(ctx, http.MethodPut, "/api/moods", m, &saved); err != nil {
		return nil, fmt.Errorf("upsert mood: %w", err)
	}
	return &saved, nil
}

// GetByOwner returns the owner's mood. An owner without a mood yields nil and
// no error.
func (s *RemoteStore) GetByOwner(ctx context.Context, owner int64) (*models.Mood, error) {
	var m models.Mood
	status, err := s.do(ctx, http.MethodGet, "/api/moods/"+strconv.FormatInt(owner, 10), nil, &m)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mood of %d: %w", owner, err)
	}
	return &m, nil
}

// ListSince returns moods created at or after since, newest first.
func (s *RemoteStore) ListSince(ctx context.Context, since time.Time) ([]models.Mood, error) {
	q := url.Values{"since": {since.UTC().Format(time.RFC3339)}}
	var moods []models.Mood
	if _, err := s.do(ctx, http.MethodGet, "/api/moods?"+q.Encode(), nil, &moods); err != nil {
		return nil, fmt.Errorf("list moods: %w", err)
	}
	return moods, nil
}

// ListByOwners returns the moods of the given owners.
func (s *RemoteStore) ListByOwners(ctx context.Context, owners []int64) ([]models.Mood, error) {
	var moods []models.Mood
	body := map[string][]int64{"owners": owners}
	if _, err := s.do(ctx, http.MethodPost, "/api/moods/lookup", body, &moods); err != nil {
		return nil, fmt.Errorf("lookup moods: %w", err)
	}
	return moods, nil
}
