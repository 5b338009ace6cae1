// Package camera mediates between programmatic recenter requests and live
// user manipulation of the map.
package camera

import (
	"sync"

	"github.com/atinyakov/moodmap/internal/models"
	"go.uber.org/zap"
)

// Purpose tells what a camera request is for.
type Purpose int

const (
	// PurposeOwnLocation recenters on the user's own location. Completing it
	// marks the camera as centered.
	PurposeOwnLocation Purpose = iota
	// PurposePreset jumps to a catalog landmark.
	PurposePreset
)

func (p Purpose) String() string {
	if p == PurposePreset {
		return "recenter-to-preset"
	}
	return "recenter-to-own-location"
}

// Request is one programmatic camera transition.
type Request struct {
	Target   models.Coordinates
	Zoom     int
	Animated bool
	Purpose  Purpose
}

// State of the controller.
type State int

const (
	Idle State = iota
	ProgrammaticMove
	UserInteracting
)

func (s State) String() string {
	return [...]string{"idle", "programmatic-move", "user-interacting"}[s]
}

// Gesture is a user gesture start reported by the map surface. Generic move
// events are not gestures: the surface emits those for programmatic moves too.
type Gesture int

const (
	DragStart Gesture = iota
	ZoomStart
	TouchStart
)

func (g Gesture) String() string {
	return [...]string{"drag-start", "zoom-start", "touch-start"}[g]
}

// Completion is passed to the completion callback once per honored request.
type Completion struct {
	Request Request
	// Interrupted is set when a user gesture stopped the move.
	Interrupted bool
}

// Surface is the map rendering surface.
type Surface interface {
	JumpTo(target models.Coordinates, zoom int)
	// FlyTo animates to target and calls done when the animation ends on its own.
	FlyTo(target models.Coordinates, zoom int, done func())
	// Stop halts any running animation without calling its done.
	Stop()
}

// Controller serializes camera requests. A new request overrides the one in
// flight; only the latest request completes.
type Controller struct {
	// cmd orders surface commands of concurrent callers.
	cmd     sync.Mutex
	mu      sync.Mutex
	surface Surface
	log     *zap.Logger

	state   State
	current Request
	seq     uint64

	centered   bool
	centeredOn models.Coordinates

	onComplete func(Completion)
}

// NewController creates an idle controller. onComplete may be nil.
func NewController(s Surface, log *zap.Logger, onComplete func(Completion)) *Controller {
	return &Controller{surface: s, log: log, onComplete: onComplete}
}

// Request issues req, overriding any move in flight.
func (c *Controller) Request(req Request) {
	c.cmd.Lock()
	defer c.cmd.Unlock()

	c.mu.Lock()
	superseded := c.state == ProgrammaticMove
	c.seq++
	seq := c.seq
	c.state = ProgrammaticMove
	c.current = req
	c.mu.Unlock()

	if superseded {
		c.log.Debug("camera request superseded", zap.Stringer("purpose", req.Purpose))
		c.surface.Stop()
	}
	if !req.Animated {
		c.surface.JumpTo(req.Target, req.Zoom)
		c.finish(seq, false)
		return
	}
	c.surface.FlyTo(req.Target, req.Zoom, func() { c.finish(seq, false) })
}

func (c *Controller) finish(seq uint64, interrupted bool) {
	c.mu.Lock()
	if seq != c.seq || c.state != ProgrammaticMove {
		c.mu.Unlock()
		return
	}
	req := c.current
	c.state = Idle
	if req.Purpose == PurposeOwnLocation {
		c.centered, c.centeredOn = true, req.Target
	}
	c.mu.Unlock()
	c.complete(Completion{Request: req, Interrupted: interrupted})
}

func (c *Controller) complete(done Completion) {
	if c.onComplete != nil {
		c.onComplete(done)
	}
}

// Gesture handles the start of a user gesture. A move in flight is stopped
// and completes as interrupted. Either way the camera is no longer centered.
func (c *Controller) Gesture(g Gesture) {
	c.mu.Lock()
	prev := c.state
	req := c.current
	c.state = UserInteracting
	c.centered = false
	if prev == ProgrammaticMove {
		// late done callbacks of the stopped move must not complete it again
		c.seq++
	}
	c.mu.Unlock()

	if prev != ProgrammaticMove {
		return
	}
	c.log.Debug("camera move interrupted", zap.Stringer("gesture", g))
	c.cmd.Lock()
	c.surface.Stop()
	c.cmd.Unlock()
	c.complete(Completion{Request: req, Interrupted: true})
}

// GestureEnd handles the end of a user gesture.
func (c *Controller) GestureEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == UserInteracting {
		c.state = Idle
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Centered reports whether the last completed own-location recenter still holds.
func (c *Controller) Centered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.centered
}

// CanRecenter reports whether a recenter to target would do anything: there
// is a target and the camera is not already centered on it.
func (c *Controller) CanRecenter(target *models.Coordinates) bool {
	if target == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.centered || c.centeredOn != *target
}
