// Package platform talks to the host platform the map page runs inside:
// readiness, the optional install action, the user context and publishing.
package platform

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// MaxEmbeds is the number of attachment URLs a published message may carry.
const MaxEmbeds = 2

var (
	// ErrNoVerifiedUser is returned by Publish when the host reported no verified user.
	ErrNoVerifiedUser = errors.New("publishing requires a verified platform user")
	// ErrStandalone is returned when the page is not running inside a host.
	ErrStandalone = errors.New("not running inside a platform host")
)

// User is the verified platform identity.
type User struct {
	FID         int64
	Username    string
	DisplayName string
}

// Context is what the host reports about the session. It is either
// unresolved, or resolved with an optional verified user.
type Context struct {
	resolved bool
	user     *User
}

// Unresolved is the context before, or without, a successful host read.
func Unresolved() Context {
	return Context{}
}

// Resolved returns a resolved context. A nil user, or one whose FID is not
// positive, means the host has no verified user.
func Resolved(u *User) Context {
	if u != nil && u.FID <= 0 {
		u = nil
	}
	return Context{resolved: true, user: u}
}

// IsResolved reports whether the host answered the context read.
func (c Context) IsResolved() bool {
	return c.resolved
}

// VerifiedUser returns the verified user, if the context carries one.
func (c Context) VerifiedUser() (*User, bool) {
	if !c.resolved || c.user == nil {
		return nil, false
	}
	u := *c.user
	return &u, true
}

// Platform is the host SDK surface the app needs.
type Platform interface {
	// Ready must complete before any other call is made.
	Ready(ctx context.Context) error
	// Install asks the host to register the app. It is optional and idempotent.
	Install(ctx context.Context) error
	// Context reads the session context.
	Context(ctx context.Context) (Context, error)
	// Publish posts text with up to MaxEmbeds attachment URLs.
	Publish(ctx context.Context, text string, embeds []string) error
}

// Initialize runs the startup handshake: readiness, then the optional install,
// then the context read. Any install failure is logged and ignored. A failed
// readiness or context read yields an unresolved context and the error.
func Initialize(ctx context.Context, p Platform, log *zap.Logger) (Context, error) {
	if err := p.Ready(ctx); err != nil {
		return Unresolved(), err
	}
	if err := p.Install(ctx); err != nil {
		log.Info("platform install skipped", zap.Error(err))
	}
	pc, err := p.Context(ctx)
	if err != nil {
		return Unresolved(), err
	}
	return pc, nil
}

// Standalone is the Platform used outside a host. Readiness always fails so
// identity falls back to the device id.
type Standalone struct{}

func (Standalone) Ready(context.Context) error   { return ErrStandalone }
func (Standalone) Install(context.Context) error { return ErrStandalone }
func (Standalone) Context(context.Context) (Context, error) {
	return Unresolved(), ErrStandalone
}
func (Standalone) Publish(context.Context, string, []string) error {
	return ErrNoVerifiedUser
}
