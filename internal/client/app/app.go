// Package app is the page-level orchestrator: it owns the view state and
// routes user actions to identity, location, camera and mood components.
package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/atinyakov/moodmap/internal/client/camera"
	"github.com/atinyakov/moodmap/internal/client/geo"
	"github.com/atinyakov/moodmap/internal/client/identity"
	"github.com/atinyakov/moodmap/internal/client/moods"
	"github.com/atinyakov/moodmap/internal/models"
	"go.uber.org/zap"
)

// View is the screen currently shown.
type View int

const (
	ViewMap View = iota
	ViewList
	ViewAddMood
	ViewClusterDetail
)

func (v View) String() string {
	return [...]string{"map", "list", "add-mood", "cluster-detail"}[v]
}

// ownZoom is used when recentering on a mood that has no zoom hint.
const ownZoom = 12

// AddMoodFormState is the transient state of the add-mood form.
type AddMoodFormState struct {
	Emoji string
	Note  string
	Share bool
	// Err is the inline validation error of the last submit.
	Err        error
	Submitting bool
	// Editing is set when the form was prefilled from the user's own mood.
	Editing bool
}

func (f *AddMoodFormState) reset() {
	*f = AddMoodFormState{Share: true}
}

// Identity reports whether submitting is possible.
type Identity interface {
	Status() identity.Status
}

// Controller holds the view-state machine.
type Controller struct {
	mu       sync.Mutex
	log      *zap.Logger
	identity Identity
	resolver *geo.Resolver
	camera   *camera.Controller
	moods    *moods.Reconciler

	view    View
	form    AddMoodFormState
	banner  error
	cluster string
}

func New(id Identity, r *geo.Resolver, cam *camera.Controller, rec *moods.Reconciler, log *zap.Logger) *Controller {
	c := &Controller{log: log, identity: id, resolver: r, camera: cam, moods: rec}
	c.form.reset()
	return c
}

// Load hydrates the user's own mood and the recent feed. Failures become the banner.
func (c *Controller) Load(ctx context.Context) {
	if c.identity.Status() == identity.Blocked {
		c.setBanner(identity.ErrBlocked)
	}
	if _, err := c.moods.LoadOwn(ctx); err != nil {
		c.setBanner(err)
	}
	c.Refresh(ctx)
}

// Refresh refetches the recent window.
func (c *Controller) Refresh(ctx context.Context) {
	if err := c.moods.Refresh(ctx); err != nil {
		c.log.Warn("refresh failed", zap.Error(err))
		c.setBanner(err)
	}
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Form() AddMoodFormState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

func (c *Controller) ShowMap() {
	c.Close()
}

func (c *Controller) ShowList() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view = ViewList
	c.cluster = ""
}

// OpenAddMood shows the form, prefilled from the user's own mood when one exists.
func (c *Controller) OpenAddMood() {
	own := c.moods.OwnMood()

	c.mu.Lock()
	c.view = ViewAddMood
	c.cluster = ""
	c.form.reset()
	if own != nil {
		c.form.Emoji, c.form.Note, c.form.Share = own.Emoji, own.Note, own.ShareRequested
		c.form.Editing = true
	}
	c.mu.Unlock()

	if own == nil {
		c.resolver.Reset()
		return
	}
	source := models.SourceFreeText
	if own.IsRandomLocation {
		source = models.SourcePreset
	}
	c.resolver.Seed(models.LocationCandidate{
		Coords:   own.Coordinates(),
		Label:    own.LocationLabel,
		Zoom:     ownZoom,
		Source:   source,
		Resolved: true,
	})
}

// Close returns to the map and clears every piece of transient state.
func (c *Controller) Close() {
	c.mu.Lock()
	c.view = ViewMap
	c.form.reset()
	c.banner = nil
	c.cluster = ""
	c.mu.Unlock()
	c.resolver.Reset()
}

func (c *Controller) editForm(f func(*AddMoodFormState)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.view != ViewAddMood {
		return models.Validation("open the add-mood form first")
	}
	f(&c.form)
	c.form.Err = nil
	return nil
}

func (c *Controller) SetEmoji(e string) error {
	return c.editForm(func(f *AddMoodFormState) { f.Emoji = strings.TrimSpace(e) })
}

func (c *Controller) SetNote(n string) error {
	return c.editForm(func(f *AddMoodFormState) { f.Note = n })
}

func (c *Controller) SetShare(on bool) error {
	return c.editForm(func(f *AddMoodFormState) { f.Share = on })
}

// Where feeds free text to the location resolver.
func (c *Controller) Where(text string) error {
	if c.View() != ViewAddMood {
		return models.Validation("open the add-mood form first")
	}
	c.resolver.Input(text)
	return nil
}

// SetRandom toggles the random-location mode. Picking a landmark jumps the
// camera there.
func (c *Controller) SetRandom(on bool) error {
	if c.View() != ViewAddMood {
		return models.Validation("open the add-mood form first")
	}
	c.resolver.SetRandom(on)
	if !on {
		return nil
	}
	if cand := c.resolver.Candidate(); cand != nil {
		c.camera.Request(camera.Request{Target: cand.Coords, Zoom: cand.Zoom, Animated: true, Purpose: camera.PurposePreset})
	}
	return nil
}

// UseDeviceLocation makes the device position the candidate and flies there.
func (c *Controller) UseDeviceLocation(coords models.Coordinates) error {
	if c.View() != ViewAddMood {
		return models.Validation("open the add-mood form first")
	}
	if err := c.resolver.UseDevice(coords); err != nil {
		return err
	}
	if cand := c.resolver.Candidate(); cand != nil {
		c.camera.Request(camera.Request{Target: cand.Coords, Zoom: cand.Zoom, Animated: true, Purpose: camera.PurposeOwnLocation})
	}
	return nil
}

// CanSubmit reports whether the submit button is enabled.
func (c *Controller) CanSubmit() bool {
	if c.identity.Status() != identity.Determined {
		return false
	}
	if !c.resolver.Candidate().Usable() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view == ViewAddMood && !c.form.Submitting && c.form.Emoji != ""
}

// Submit saves the form. Validation errors stay inline on the form; store
// and publish failures become the banner. On success the form closes and the
// camera recenters on the saved mood.
func (c *Controller) Submit(ctx context.Context) (*models.Mood, error) {
	c.mu.Lock()
	if c.view != ViewAddMood {
		c.mu.Unlock()
		return nil, models.Validation("open the add-mood form first")
	}
	if c.form.Submitting {
		c.mu.Unlock()
		return nil, models.Validation("already submitting")
	}
	c.form.Submitting, c.form.Err = true, nil
	sub := moods.Submission{Emoji: c.form.Emoji, Note: c.form.Note, Share: c.form.Share}
	c.mu.Unlock()

	cand := c.resolver.Candidate()
	sub.Location = cand
	res, err := c.moods.Submit(ctx, sub)

	if err != nil {
		c.mu.Lock()
		c.form.Submitting = false
		if errors.Is(err, models.ErrValidation) {
			c.form.Err = err
		} else {
			c.banner = err
		}
		c.mu.Unlock()
		return nil, err
	}

	c.Close()
	if res.SecondaryErr != nil {
		c.setBanner(res.SecondaryErr)
	}
	zoom := cand.Zoom
	if zoom == 0 {
		zoom = ownZoom
	}
	c.camera.Request(camera.Request{Target: res.Mood.Coordinates(), Zoom: zoom, Animated: true, Purpose: camera.PurposeOwnLocation})
	return res.Mood, nil
}

// recenterTarget is the location candidate while one exists, else the
// user's own mood.
func (c *Controller) recenterTarget() (*models.Coordinates, int) {
	if cand := c.resolver.Candidate(); cand != nil {
		return &cand.Coords, cand.Zoom
	}
	if own := c.moods.OwnMood(); own != nil {
		coords := own.Coordinates()
		return &coords, ownZoom
	}
	return nil, 0
}

// CanRecenter reports whether the recenter button is enabled.
func (c *Controller) CanRecenter() bool {
	target, _ := c.recenterTarget()
	return c.camera.CanRecenter(target)
}

// Recenter flies to the recenter target.
func (c *Controller) Recenter() error {
	target, zoom := c.recenterTarget()
	if target == nil {
		return models.Validation("no location to recenter on")
	}
	if !c.camera.CanRecenter(target) {
		return nil
	}
	c.camera.Request(camera.Request{Target: *target, Zoom: zoom, Animated: true, Purpose: camera.PurposeOwnLocation})
	return nil
}

func (c *Controller) Gesture(g camera.Gesture) {
	c.camera.Gesture(g)
}

func (c *Controller) GestureEnd() {
	c.camera.GestureEnd()
}

// Clusters returns the map markers.
func (c *Controller) Clusters() []Cluster {
	return Clusters(c.moods.Moods())
}

// Moods returns the feed, newest first.
func (c *Controller) Moods() []models.Mood {
	return c.moods.Moods()
}

// OpenCluster shows the moods of one marker.
func (c *Controller) OpenCluster(key string) error {
	for _, cl := range c.Clusters() {
		if cl.Key == key {
			c.mu.Lock()
			c.view, c.cluster = ViewClusterDetail, key
			c.mu.Unlock()
			return nil
		}
	}
	return models.NotFound("no such cluster")
}

// ClusterDetail returns the open cluster, recomputed from the current moods.
func (c *Controller) ClusterDetail() (Cluster, bool) {
	c.mu.Lock()
	key := c.cluster
	c.mu.Unlock()
	if key == "" {
		return Cluster{}, false
	}
	for _, cl := range c.Clusters() {
		if cl.Key == key {
			return cl, true
		}
	}
	return Cluster{}, false
}

// Banner returns the dismissible error, or nil.
func (c *Controller) Banner() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner = nil
}

func (c *Controller) setBanner(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.banner = err
}

// Location returns the resolver state shown next to the location field.
func (c *Controller) Location() geo.Snapshot {
	return c.resolver.Snapshot()
}
