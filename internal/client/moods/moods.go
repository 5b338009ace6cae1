// Package moods keeps the client's in-memory mood collection consistent with
// the store: one entry per owner, optimistic on submit, reconciled by refetch.
package moods

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/moodmap/internal/client/platform"
	"github.com/atinyakov/moodmap/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecentWindow is how far back the map shows moods.
const RecentWindow = 72 * time.Hour

// Store is the persistent mood store.
type Store interface {
	Upsert(ctx context.Context, m models.Mood) (*models.Mood, error)
	ListSince(ctx context.Context, since time.Time) ([]models.Mood, error)
	ListByOwners(ctx context.Context, owners []int64) ([]models.Mood, error)
	// GetByOwner returns the owner's row, or nil when there is none.
	GetByOwner(ctx context.Context, owner int64) (*models.Mood, error)
}

// Publisher posts to the external social network.
type Publisher interface {
	Publish(ctx context.Context, text string, embeds []string) error
}

// Identity supplies the effective owner id.
type Identity interface {
	EffectiveID() (int64, error)
	VerifiedUser() (*platform.User, bool)
	KnownIDs() []int64
}

// Submission is a mood the user asked to save.
type Submission struct {
	Emoji    string
	Note     string
	Location *models.LocationCandidate
	Share    bool
}

// Result of a successful submission. SecondaryErr is set when the mood was
// saved but publishing it failed.
type Result struct {
	Mood         *models.Mood
	SecondaryErr error
}

// Reconciler owns the in-memory mood collection. Nothing else writes it.
type Reconciler struct {
	mu        sync.Mutex
	store     Store
	publisher Publisher
	identity  Identity
	log       *zap.Logger
	now       func() time.Time
	window    time.Duration
	appURL    string
	onChange  func([]models.Mood)

	moods []models.Mood
	own   *models.Mood
	// fetchSeq is bumped by every fetch and every local write; a fetch result
	// is applied only if nothing happened since it started.
	fetchSeq uint64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithWindow(d time.Duration) Option {
	return func(r *Reconciler) { r.window = d }
}

// WithAppURL sets the link attached to published moods.
func WithAppURL(u string) Option {
	return func(r *Reconciler) { r.appURL = u }
}

// WithOnChange registers a callback receiving the collection after every change.
func WithOnChange(f func([]models.Mood)) Option {
	return func(r *Reconciler) { r.onChange = f }
}

func NewReconciler(store Store, publisher Publisher, id Identity, log *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:     store,
		publisher: publisher,
		identity:  id,
		log:       log,
		now:       time.Now,
		window:    RecentWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build checks the submission preconditions and returns the row to persist.
// It makes no network call.
func (r *Reconciler) Build(s Submission) (models.Mood, error) {
	owner, err := r.identity.EffectiveID()
	if err != nil {
		return models.Mood{}, &models.Failure{Kind: models.ErrValidation, Message: "identity not available", Err: err}
	}
	if s.Location == nil {
		return models.Mood{}, models.Validation("choose a location first")
	}
	if !s.Location.Usable() {
		return models.Mood{}, models.Validation("location is not resolved yet")
	}
	m := models.Mood{
		ID:               "local-" + uuid.NewString(),
		OwnerID:          owner,
		LocationLabel:    s.Location.Label,
		Latitude:         s.Location.Coords.Lat,
		Longitude:        s.Location.Coords.Lng,
		Emoji:            strings.TrimSpace(s.Emoji),
		Note:             strings.TrimSpace(s.Note),
		CreatedAt:        r.now().UTC(),
		ShareRequested:   s.Share,
		IsRandomLocation: s.Location.Source == models.SourcePreset,
	}
	if u, ok := r.identity.VerifiedUser(); ok {
		m.DisplayName, m.Username = u.DisplayName, u.Username
	}
	if err := m.Validate(); err != nil {
		return models.Mood{}, err
	}
	return m, nil
}

// Submit saves the user's mood. The collection shows it immediately; on
// success it is reconciled with the store, on failure the owner's previous
// entry is restored. A publish failure does not undo the save.
func (r *Reconciler) Submit(ctx context.Context, s Submission) (*Result, error) {
	m, err := r.Build(s)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev, hadPrev := r.entryLocked(m.OwnerID)
	r.putLocked(m)
	r.fetchSeq++
	r.unlockAndNotify()

	saved, err := r.store.Upsert(ctx, m)
	if err != nil {
		r.mu.Lock()
		if hadPrev {
			r.putLocked(prev)
		} else {
			r.removeLocked(m.OwnerID)
		}
		r.fetchSeq++
		r.unlockAndNotify()
		r.log.Warn("mood upsert failed", zap.Int64("owner", m.OwnerID), zap.Error(err))
		return nil, models.Provider("could not save your mood", err)
	}

	r.mu.Lock()
	r.putLocked(*saved)
	own := *saved
	r.own = &own
	r.unlockAndNotify()

	if err := r.Refresh(ctx); err != nil {
		r.log.Warn("refetch after upsert failed", zap.Error(err))
	}

	res := &Result{Mood: saved}
	if s.Share {
		res.SecondaryErr = r.publish(ctx, *saved)
	}
	return res, nil
}

func (r *Reconciler) publish(ctx context.Context, m models.Mood) error {
	if _, ok := r.identity.VerifiedUser(); !ok {
		r.log.Debug("share skipped, no verified user", zap.Int64("owner", m.OwnerID))
		return nil
	}
	var embeds []string
	if r.appURL != "" {
		embeds = append(embeds, r.appURL)
	}
	if err := r.publisher.Publish(ctx, PublishText(m), embeds); err != nil {
		r.log.Warn("publish failed", zap.Error(err))
		return models.Secondary("mood saved, but sharing failed", err)
	}
	return nil
}

// PublishText is the message posted for m.
func PublishText(m models.Mood) string {
	text := strings.TrimSpace(m.Emoji + " " + m.Note)
	if m.LocationLabel != "" {
		text += "\n📍 " + m.LocationLabel
	}
	return text
}

// Refresh replaces the collection with the store's recent window. The result
// is dropped if a newer fetch or a local write happened meanwhile.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.fetchSeq++
	seq := r.fetchSeq
	since := r.now().Add(-r.window)
	r.mu.Unlock()

	list, err := r.store.ListSince(ctx, since)
	if err != nil {
		return models.Provider("could not load moods", err)
	}

	r.mu.Lock()
	if seq != r.fetchSeq {
		r.mu.Unlock()
		r.log.Debug("discarding superseded mood fetch")
		return nil
	}
	r.moods = dedupe(list)
	if r.own != nil {
		if m, ok := r.entryLocked(r.own.OwnerID); ok {
			r.own = &m
		}
	}
	r.unlockAndNotify()
	return nil
}

// LoadOwn fetches the user's existing mood, regardless of age, so the form
// can be prefilled. The effective id's row wins over an older anonymous one.
func (r *Reconciler) LoadOwn(ctx context.Context) (*models.Mood, error) {
	ids := r.identity.KnownIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	own, err := r.fetchOwn(ctx, ids)
	if err != nil {
		return nil, models.Provider("could not load your mood", err)
	}
	r.mu.Lock()
	r.own = own
	r.mu.Unlock()
	if own == nil {
		return nil, nil
	}
	m := *own
	return &m, nil
}

// fetchOwn looks a single id up by key and falls back to a batch query when
// an older anonymous id is also known.
func (r *Reconciler) fetchOwn(ctx context.Context, ids []int64) (*models.Mood, error) {
	if len(ids) == 1 {
		return r.store.GetByOwner(ctx, ids[0])
	}
	list, err := r.store.ListByOwners(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		for i := range list {
			if list[i].OwnerID == id {
				m := list[i]
				return &m, nil
			}
		}
	}
	return nil, nil
}

// OwnMood returns the latest known mood of the current user, or nil.
func (r *Reconciler) OwnMood() *models.Mood {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.own == nil {
		return nil
	}
	m := *r.own
	return &m
}

// Moods returns the collection, newest first.
func (r *Reconciler) Moods() []models.Mood {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Mood(nil), r.moods...)
}

func (r *Reconciler) entryLocked(owner int64) (models.Mood, bool) {
	for _, m := range r.moods {
		if m.OwnerID == owner {
			return m, true
		}
	}
	return models.Mood{}, false
}

// putLocked replaces the owner's entry in place, or inserts m first.
func (r *Reconciler) putLocked(m models.Mood) {
	for i := range r.moods {
		if r.moods[i].OwnerID == m.OwnerID {
			r.moods[i] = m
			return
		}
	}
	r.moods = append([]models.Mood{m}, r.moods...)
}

func (r *Reconciler) removeLocked(owner int64) {
	out := r.moods[:0]
	for _, m := range r.moods {
		if m.OwnerID != owner {
			out = append(out, m)
		}
	}
	r.moods = out
}

func (r *Reconciler) unlockAndNotify() {
	var snapshot []models.Mood
	if r.onChange != nil {
		snapshot = append(snapshot, r.moods...)
	}
	r.mu.Unlock()
	if r.onChange != nil {
		r.onChange(snapshot)
	}
}

// dedupe keeps the newest row per owner and sorts newest first.
func dedupe(list []models.Mood) []models.Mood {
	sorted := append([]models.Mood(nil), list...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	seen := make(map[int64]struct{}, len(sorted))
	out := make([]models.Mood, 0, len(sorted))
	for _, m := range sorted {
		if _, ok := seen[m.OwnerID]; ok {
			continue
		}
		seen[m.OwnerID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Describe renders a failure for the user.
func Describe(err error) string {
	var f *models.Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return fmt.Sprintf("unexpected error: %v", err)
}
