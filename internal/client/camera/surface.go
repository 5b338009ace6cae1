package camera

import (
	"sync"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
	"go.uber.org/zap"
)

// VirtualSurface is a headless Surface: FlyTo lands after a fixed duration.
type VirtualSurface struct {
	mu       sync.Mutex
	duration time.Duration
	log      *zap.Logger

	position models.Coordinates
	zoom     int
	flight   *time.Timer
}

func NewVirtualSurface(duration time.Duration, log *zap.Logger) *VirtualSurface {
	return &VirtualSurface{duration: duration, log: log, zoom: 2}
}

func (s *VirtualSurface) JumpTo(target models.Coordinates, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.position, s.zoom = target, zoom
	s.log.Debug("camera jumped", zap.Stringer("target", target), zap.Int("zoom", zoom))
}

func (s *VirtualSurface) FlyTo(target models.Coordinates, zoom int, done func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	var t *time.Timer
	t = time.AfterFunc(s.duration, func() {
		s.mu.Lock()
		if s.flight != t {
			s.mu.Unlock()
			return
		}
		s.flight = nil
		s.position, s.zoom = target, zoom
		s.mu.Unlock()
		s.log.Debug("camera landed", zap.Stringer("target", target), zap.Int("zoom", zoom))
		done()
	})
	s.flight = t
}

func (s *VirtualSurface) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *VirtualSurface) stopLocked() {
	if s.flight != nil {
		s.flight.Stop()
		s.flight = nil
	}
}

// Position returns where the camera currently rests.
func (s *VirtualSurface) Position() (models.Coordinates, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.zoom
}

// Flying reports whether an animation is running.
func (s *VirtualSurface) Flying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight != nil
}
