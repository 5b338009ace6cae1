package geo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/atinyakov/moodmap/internal/models"
	"go.uber.org/zap"
)

const (
	// QuietPeriod is how long input must stay unchanged before a lookup fires.
	QuietPeriod = 800 * time.Millisecond
	// MinQueryLength is the shortest trimmed input that is looked up.
	MinQueryLength = 3

	lookupTimeout = 10 * time.Second
	freeTextZoom  = 12
	deviceZoom    = 14
)

// State is the resolver's user-facing state.
type State int

const (
	// Idle: no candidate and no lookup scheduled.
	Idle State = iota
	// Pending: a lookup is scheduled and waiting for the quiet period.
	Pending
	// Resolving: a lookup is in flight.
	Resolving
	// Resolved: a usable candidate is available.
	Resolved
	// NotFound: the last lookup found nothing.
	NotFound
	// Failed: the last lookup failed.
	Failed
)

func (s State) String() string {
	return [...]string{"idle", "pending", "resolving", "resolved", "not-found", "failed"}[s]
}

// Timer is the handle of a scheduled callback.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// debounceState is the trailing-edge debounce bookkeeping.
type debounceState struct {
	pendingTimer         Timer
	lastIssuedInputValue string
}

// Snapshot is a copy of the resolver state.
type Snapshot struct {
	State     State
	Input     string
	Candidate *models.LocationCandidate
	Err       error
	// Random is set while the random-location mode disables text input.
	Random bool
}

// Resolver turns location input into a LocationCandidate. Free text is
// looked up after a quiet period; device positions and presets resolve
// immediately.
type Resolver struct {
	mu        sync.Mutex
	ctx       context.Context
	geocoder  Geocoder
	afterFunc AfterFunc
	intn      func(n int) int
	log       *zap.Logger
	onChange  func(Snapshot)

	debounce debounceState
	// seq is bumped by every input change; a lookup result only applies when
	// its seq is still current.
	seq       uint64
	state     State
	input     string
	candidate *models.LocationCandidate
	err       error
	random    bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithAfterFunc replaces time.AfterFunc.
func WithAfterFunc(f AfterFunc) ResolverOption {
	return func(r *Resolver) { r.afterFunc = f }
}

// WithIntn replaces the random source of the preset picker.
func WithIntn(f func(n int) int) ResolverOption {
	return func(r *Resolver) { r.intn = f }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(f func(Snapshot)) ResolverOption {
	return func(r *Resolver) { r.onChange = f }
}

// NewResolver creates a resolver. ctx bounds every lookup it issues.
func NewResolver(ctx context.Context, g Geocoder, log *zap.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{ctx: ctx, geocoder: g, afterFunc: realAfterFunc, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// cancelPending must be called with r.mu held.
func (r *Resolver) cancelPending() {
	if r.debounce.pendingTimer != nil {
		r.debounce.pendingTimer.Stop()
		r.debounce.pendingTimer = nil
	}
	r.seq++
}

func (r *Resolver) snapshot() Snapshot {
	s := Snapshot{State: r.state, Input: r.input, Err: r.err, Random: r.random}
	if r.candidate != nil {
		c := *r.candidate
		s.Candidate = &c
	}
	return s
}

func (r *Resolver) unlockAndNotify() {
	s := r.snapshot()
	r.mu.Unlock()
	if r.onChange != nil {
		r.onChange(s)
	}
}

// Input handles a change of the free-text field. It is ignored while the
// random-location mode is on.
func (r *Resolver) Input(text string) {
	r.mu.Lock()
	if r.random {
		r.mu.Unlock()
		return
	}
	r.cancelPending()
	r.input = text
	r.candidate, r.err = nil, nil

	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < MinQueryLength {
		r.state = Idle
	} else {
		r.state = Pending
		seq := r.seq
		r.debounce.pendingTimer = r.afterFunc(QuietPeriod, func() { r.lookup(seq, query) })
	}
	r.unlockAndNotify()
}

func (r *Resolver) lookup(seq uint64, query string) {
	r.mu.Lock()
	if seq != r.seq {
		r.mu.Unlock()
		return
	}
	r.debounce.pendingTimer = nil
	r.debounce.lastIssuedInputValue = query
	r.state = Resolving
	r.unlockAndNotify()

	ctx, cancel := context.WithTimeout(r.ctx, lookupTimeout)
	defer cancel()
	place, err := r.geocoder.Forward(ctx, query)

	r.mu.Lock()
	if seq != r.seq || query != r.debounce.lastIssuedInputValue {
		r.mu.Unlock()
		r.log.Debug("discarding superseded geocode result", zap.String("query", query))
		return
	}
	switch {
	case err == nil:
		label := place.Label
		if label == "" {
			label = query
		}
		r.state, r.err = Resolved, nil
		r.candidate = &models.LocationCandidate{
			Coords:   place.Coords,
			Label:    label,
			Zoom:     freeTextZoom,
			Source:   models.SourceFreeText,
			Resolved: true,
		}
	case errors.Is(err, models.ErrNotFound):
		r.state, r.err = NotFound, err
	default:
		var f *models.Failure
		if !errors.As(err, &f) {
			err = models.Provider("location lookup failed", err)
		}
		r.state, r.err = Failed, err
	}
	r.unlockAndNotify()
}

// SetRandom switches the random-location mode. Turning it on picks a catalog
// landmark uniformly and disables text input; turning it off clears the
// candidate and resolves the typed text again.
func (r *Resolver) SetRandom(on bool) {
	r.mu.Lock()
	if !on {
		if !r.random {
			r.mu.Unlock()
			return
		}
		r.random = false
		text := r.input
		r.mu.Unlock()
		r.Input(text)
		return
	}
	r.cancelPending()
	r.random = true
	r.state, r.err = Resolved, nil
	r.candidate = RandomLandmark(r.intn).Candidate()
	r.unlockAndNotify()
}

// UseDevice sets the device position as the candidate and returns. The label
// is filled in by a background reverse lookup and only applies if the
// candidate is still current when it arrives.
func (r *Resolver) UseDevice(coords models.Coordinates) error {
	if !coords.Valid() {
		return models.Validation("device position out of range")
	}
	r.mu.Lock()
	r.cancelPending()
	seq := r.seq
	r.random = false
	r.input = ""
	r.state, r.err = Resolved, nil
	r.candidate = &models.LocationCandidate{Coords: coords, Zoom: deviceZoom, Source: models.SourceDevice}
	r.unlockAndNotify()

	go r.label(seq, coords)
	return nil
}

func (r *Resolver) label(seq uint64, coords models.Coordinates) {
	ctx, cancel := context.WithTimeout(r.ctx, lookupTimeout)
	defer cancel()
	label, err := r.geocoder.Reverse(ctx, coords)
	if err != nil {
		r.log.Debug("reverse geocode failed", zap.Error(err))
		return
	}
	if label == "" {
		return
	}

	r.mu.Lock()
	if seq != r.seq || r.candidate == nil {
		r.mu.Unlock()
		r.log.Debug("discarding superseded device label", zap.String("label", label))
		return
	}
	c := *r.candidate
	c.Label = label
	r.candidate = &c
	r.unlockAndNotify()
}

// Seed installs an already resolved candidate, e.g. the location of the
// mood being edited.
func (r *Resolver) Seed(c models.LocationCandidate) {
	r.mu.Lock()
	r.cancelPending()
	r.random = c.Source == models.SourcePreset
	r.input = ""
	if !r.random {
		r.input = c.Label
	}
	if c.Source == models.SourceFreeText {
		c.Resolved = true
	}
	r.candidate = &c
	r.state, r.err = Resolved, nil
	r.unlockAndNotify()
}

// Reset cancels any pending lookup and clears all state.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cancelPending()
	r.debounce.lastIssuedInputValue = ""
	r.state, r.input, r.candidate, r.err, r.random = Idle, "", nil, nil, false
	r.unlockAndNotify()
}

// Snapshot returns a copy of the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Candidate returns the current candidate, or nil.
func (r *Resolver) Candidate() *models.LocationCandidate {
	return r.Snapshot().Candidate
}
