// Package service provides the business logic of the mood store, delegating
// persistence to a repository and caching to an optional feed cache.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/atinyakov/moodmap/internal/metrics"
	"github.com/atinyakov/moodmap/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrForbidden is returned when a verified owner id does not match the caller.
	ErrForbidden = errors.New("owner does not match the authenticated user")
	// ErrRateLimited is returned when an owner exceeds its upsert budget.
	ErrRateLimited = errors.New("too many mood updates")
)

// MoodRepository defines the persistence operations needed by MoodService.
type MoodRepository interface {
	// Upsert stores m, replacing the row of the same owner if any.
	Upsert(ctx context.Context, m models.Mood) (*models.Mood, error)
	// GetByOwner returns the owner's row or nil.
	GetByOwner(ctx context.Context, owner int64) (*models.Mood, error)
	// ListSince returns rows created at or after since, newest first.
	ListSince(ctx context.Context, since time.Time) ([]models.Mood, error)
	// ListByOwners returns the rows of the given owners.
	ListByOwners(ctx context.Context, owners []int64) ([]models.Mood, error)
}

// FeedCache caches recent feeds and counts upserts per owner.
type FeedCache interface {
	FeedVersion(ctx context.Context) (int64, error)
	RecentMoods(ctx context.Context, version int64, since time.Time) ([]models.Mood, bool, error)
	StoreRecentMoods(ctx context.Context, version int64, since time.Time, moods []models.Mood) error
	InvalidateRecentMoods(ctx context.Context) error
	AllowUpsert(ctx context.Context, owner int64, limit int, window time.Duration) (bool, error)
}

// Events receives a notification after every successful upsert.
type Events interface {
	MoodUpserted(owner int64)
}

// MoodService implements upsert-by-owner and the recent feed.
type MoodService struct {
	repo        MoodRepository
	cache       FeedCache
	events      Events
	window      time.Duration
	upsertLimit int
	log         *zap.Logger
	now         func() time.Time
}

// Option configures a MoodService.
type Option func(*MoodService)

// WithCache enables the feed cache and the rate limiter.
func WithCache(c FeedCache) Option {
	return func(s *MoodService) { s.cache = c }
}

// WithEvents registers the upsert listener.
func WithEvents(e Events) Option {
	return func(s *MoodService) { s.events = e }
}

// WithUpsertLimit sets the number of upserts an owner may issue per minute.
func WithUpsertLimit(n int) Option {
	return func(s *MoodService) { s.upsertLimit = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MoodService) { s.now = now }
}

// NewMoodService constructs a MoodService. window is the default reach of the
// recent feed.
func NewMoodService(repo MoodRepository, window time.Duration, log *zap.Logger, opts ...Option) *MoodService {
	s := &MoodService{repo: repo, window: window, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert validates m and stores it as the single mood of m.OwnerID.
// caller is the verified user id of the request, or 0 when the request carries
// no platform token. Positive owners must equal caller; negative owners are
// device-synthesized and accepted as is.
func (s *MoodService) Upsert(ctx context.Context, caller int64, m models.Mood) (*models.Mood, error) {
	if err := m.Validate(); err != nil {
		metrics.MoodUpsertsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if m.OwnerID > 0 && m.OwnerID != caller {
		metrics.MoodUpsertsTotal.WithLabelValues("forbidden").Inc()
		return nil, ErrForbidden
	}
	if s.cache != nil {
		allowed, err := s.cache.AllowUpsert(ctx, m.OwnerID, s.upsertLimit, time.Minute)
		if err != nil {
			s.log.Warn("rate limit check failed", zap.Error(err))
		}
		if !allowed {
			metrics.MoodUpsertsTotal.WithLabelValues("limited").Inc()
			return nil, ErrRateLimited
		}
	}

	// The id only sticks on first insert; a conflicting owner keeps its row id.
	m.ID = uuid.NewString()
	m.CreatedAt = s.now().UTC()

	saved, err := s.repo.Upsert(ctx, m)
	if err != nil {
		metrics.MoodUpsertsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.MoodUpsertsTotal.WithLabelValues("ok").Inc()

	if s.cache != nil {
		if err := s.cache.InvalidateRecentMoods(ctx); err != nil {
			s.log.Warn("failed to invalidate feed cache", zap.Error(err))
		}
	}
	if s.events != nil {
		s.events.MoodUpserted(saved.OwnerID)
	}
	return saved, nil
}

// Recent returns moods created at or after since, newest first. A zero since
// means now minus the configured window. Cached pages are keyed by the minute
// so concurrent clients share them.
func (s *MoodService) Recent(ctx context.Context, since time.Time) ([]models.Mood, error) {
	if since.IsZero() {
		since = s.now().Add(-s.window)
	}
	page := since.Truncate(time.Minute)

	var (
		version int64
		cached  bool
	)
	if s.cache != nil {
		v, err := s.cache.FeedVersion(ctx)
		if err != nil {
			s.log.Debug("feed cache version unavailable", zap.Error(err))
		} else {
			version, cached = v, true
		}
	}
	if cached {
		moods, ok, err := s.cache.RecentMoods(ctx, version, page)
		if err != nil {
			s.log.Debug("feed cache read failed", zap.Error(err))
		}
		if ok {
			metrics.MoodFeedReadsTotal.WithLabelValues("cache").Inc()
			return filterSince(moods, since), nil
		}
	}

	moods, err := s.repo.ListSince(ctx, page)
	if err != nil {
		return nil, err
	}
	metrics.MoodFeedReadsTotal.WithLabelValues("db").Inc()

	if cached {
		if err := s.cache.StoreRecentMoods(ctx, version, page, moods); err != nil {
			s.log.Debug("feed cache write failed", zap.Error(err))
		}
	}
	return filterSince(moods, since), nil
}

// ByOwner returns the owner's mood or nil.
func (s *MoodService) ByOwner(ctx context.Context, owner int64) (*models.Mood, error) {
	return s.repo.GetByOwner(ctx, owner)
}

// ByOwners returns the moods of the given owners, newest first.
func (s *MoodService) ByOwners(ctx context.Context, owners []int64) ([]models.Mood, error) {
	moods, err := s.repo.ListByOwners(ctx, owners)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(moods, func(i, j int) bool { return moods[i].CreatedAt.After(moods[j].CreatedAt) })
	return moods, nil
}

func filterSince(moods []models.Mood, since time.Time) []models.Mood {
	out := make([]models.Mood, 0, len(moods))
	for _, m := range moods {
		if !m.CreatedAt.Before(since) {
			out = append(out, m)
		}
	}
	return out
}
