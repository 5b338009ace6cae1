// Package identity determines the effective actor id of a session: the
// platform-verified user when the host supplies one, otherwise an anonymous
// id synthesized once per device.
package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/atinyakov/moodmap/internal/client/platform"
	"github.com/atinyakov/moodmap/internal/client/storage"
	"go.uber.org/zap"
)

// Status is the resolution state of the provider.
type Status int

const (
	// Undetermined means at least one signal is still outstanding.
	Undetermined Status = iota
	// Determined means the effective id is latched for the session.
	Determined
	// Blocked means no usable id could be established.
	Blocked
)

func (s Status) String() string {
	switch s {
	case Determined:
		return "determined"
	case Blocked:
		return "blocked"
	default:
		return "undetermined"
	}
}

var (
	// ErrUndetermined is returned while the effective id is not known yet.
	ErrUndetermined = errors.New("identity not determined yet")
	// ErrBlocked is returned when both identity sources failed.
	ErrBlocked = errors.New("identity unavailable: platform and device storage both failed")
)

// DeviceStore is the device-local storage holding the synthesized id.
type DeviceStore interface {
	Int(key string) (int64, bool, error)
	SetInt(key string, v int64) error
}

// NewAnonymousID returns -(random in [1, 2_000_000_000]).
func NewAnonymousID() int64 {
	return -(rand.Int64N(2_000_000_000) + 1)
}

// Provider latches one effective id from two independent signals.
type Provider struct {
	mu  sync.Mutex
	log *zap.Logger

	platformDone bool
	platformCtx  platform.Context
	platformErr  error

	localDone bool
	localID   int64
	localErr  error

	status    Status
	effective int64
	user      *platform.User

	onChange func(Status)
}

// NewProvider returns an undetermined provider. onChange, if not nil, is
// called once when the status leaves Undetermined.
func NewProvider(log *zap.Logger, onChange func(Status)) *Provider {
	return &Provider{log: log, platformCtx: platform.Unresolved(), onChange: onChange}
}

// ResolvePlatform records the outcome of the host handshake.
func (p *Provider) ResolvePlatform(pc platform.Context, err error) {
	p.mu.Lock()
	if p.platformDone {
		p.mu.Unlock()
		return
	}
	p.platformDone, p.platformCtx, p.platformErr = true, pc, err
	changed := p.latch()
	p.mu.Unlock()
	p.notify(changed)
}

// ResolveLocal reads the synthesized id from store, creating and persisting
// one with generate when absent. A failed write still yields an id for this
// session; only a failed read counts as a failed signal.
func (p *Provider) ResolveLocal(store DeviceStore, generate func() int64) {
	id, err := loadOrCreate(store, generate, p.log)

	p.mu.Lock()
	if p.localDone {
		p.mu.Unlock()
		return
	}
	p.localDone, p.localID, p.localErr = true, id, err
	changed := p.latch()
	p.mu.Unlock()
	p.notify(changed)
}

func loadOrCreate(store DeviceStore, generate func() int64, log *zap.Logger) (int64, error) {
	id, ok, err := store.Int(storage.AnonymousIDKey)
	if err != nil {
		return 0, fmt.Errorf("read anonymous id: %w", err)
	}
	if ok && id < 0 {
		return id, nil
	}
	id = generate()
	if err := store.SetInt(storage.AnonymousIDKey, id); err != nil {
		log.Warn("anonymous id not persisted, it will change next session", zap.Error(err))
	}
	return id, nil
}

// latch must be called with p.mu held. It reports whether the status changed.
func (p *Provider) latch() bool {
	if p.status != Undetermined || !p.platformDone || !p.localDone {
		return false
	}

	if user, ok := p.platformCtx.VerifiedUser(); ok && p.platformErr == nil {
		p.status, p.effective, p.user = Determined, user.FID, user
		return true
	}
	if p.platformErr != nil {
		p.log.Info("platform unavailable, using anonymous identity", zap.Error(p.platformErr))
	}
	if p.localErr == nil {
		p.status, p.effective = Determined, p.localID
		return true
	}
	p.status = Blocked
	p.log.Error("identity blocked",
		zap.NamedError("platform", p.platformErr), zap.NamedError("local", p.localErr))
	return true
}

func (p *Provider) notify(changed bool) {
	if changed && p.onChange != nil {
		p.onChange(p.Status())
	}
}

// Resolve runs both signals concurrently and returns the resulting status.
func (p *Provider) Resolve(ctx context.Context, plat platform.Platform, store DeviceStore) Status {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.ResolvePlatform(platform.Initialize(ctx, plat, p.log))
	}()
	go func() {
		defer wg.Done()
		p.ResolveLocal(store, NewAnonymousID)
	}()
	wg.Wait()
	return p.Status()
}

// Status returns the current resolution state.
func (p *Provider) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// EffectiveID returns the latched id, ErrUndetermined or ErrBlocked.
func (p *Provider) EffectiveID() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status {
	case Determined:
		return p.effective, nil
	case Blocked:
		return 0, ErrBlocked
	default:
		return 0, ErrUndetermined
	}
}

// VerifiedUser returns the platform user the id was taken from, if any.
func (p *Provider) VerifiedUser() (*platform.User, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil, false
	}
	u := *p.user
	return &u, true
}

// KnownIDs returns every id this device may have written under: the
// effective id and, when it differs, the stored anonymous id.
func (p *Provider) KnownIDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []int64
	if p.status == Determined {
		ids = append(ids, p.effective)
	}
	if p.localDone && p.localErr == nil && p.localID != p.effective {
		ids = append(ids, p.localID)
	}
	return ids
}
