package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/moodmap/internal/client/app"
	"github.com/atinyakov/moodmap/internal/client/camera"
	"github.com/atinyakov/moodmap/internal/client/geo"
	"github.com/atinyakov/moodmap/internal/client/identity"
	"github.com/atinyakov/moodmap/internal/client/moods"
	"github.com/atinyakov/moodmap/internal/client/storage"
	"github.com/atinyakov/moodmap/internal/models"
)

const help = `commands:
  map | list | add | close | cluster <key>
  emoji [e] | note [text] | where <text> | here <lat> <lng> | random on|off | share [on|off] | submit
  recenter | drag | zoom | touch | release
  dismiss | whoami | help | exit`

// surface is the camera position the shell reports.
type surface interface {
	Position() (models.Coordinates, int)
}

type shell struct {
	mu      sync.Mutex
	in      *bufio.Reader
	out     *bufio.Writer
	app     *app.Controller
	surface surface
	ids     *identity.Provider
	now     func() time.Time
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
	_ = s.out.Flush()
}

// locationChanged reports asynchronous resolver updates.
func (s *shell) locationChanged(snap geo.Snapshot) {
	switch snap.State {
	case geo.Resolved:
		if snap.Candidate != nil {
			s.printf("\nlocation: %s (%s)\n", cmpLabel(snap.Candidate.Label, snap.Candidate.Coords.String()), snap.Candidate.Source)
		}
	case geo.NotFound:
		s.printf("\nlocation: nothing found for %q, try different text\n", strings.TrimSpace(snap.Input))
	case geo.Failed:
		s.printf("\nlocation lookup failed: %s\n", moods.Describe(snap.Err))
	}
}

func cmpLabel(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func (s *shell) run(ctx context.Context) {
	s.printf("%s\n", help)
	s.render()
	for ctx.Err() == nil {
		s.printf("moodmap> ")
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			if !errors.Is(err, io.EOF) {
				s.printf("read failed: %v\n", err)
			}
			return
		}
		if quit := s.exec(ctx, strings.TrimSpace(line)); quit {
			s.printf("Bye\n")
			return
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error

	switch cmd {
	case "":
		return false
	case "help":
		s.printf("%s\n", help)
		return false
	case "exit", "quit":
		return true
	case "map":
		s.app.ShowMap()
	case "list":
		s.app.ShowList()
	case "add":
		s.app.OpenAddMood()
	case "close":
		s.app.Close()
	case "cluster":
		err = s.app.OpenCluster(rest)
	case "emoji":
		if rest == "" {
			rest, err = storage.PromptField(s.in, s.out, "emoji", s.app.Form().Emoji)
			_ = s.out.Flush()
		}
		if err == nil {
			err = s.app.SetEmoji(rest)
		}
	case "note":
		if rest == "" {
			rest, err = storage.PromptField(s.in, s.out, "note", s.app.Form().Note)
			_ = s.out.Flush()
		}
		if err == nil {
			err = s.app.SetNote(rest)
		}
	case "share":
		on := s.app.Form().Share
		switch rest {
		case "":
			on, err = storage.PromptYesNo(s.in, s.out, "share to your feed", on)
			_ = s.out.Flush()
		default:
			on, err = parseOnOff(rest)
		}
		if err == nil {
			err = s.app.SetShare(on)
		}
	case "where":
		err = s.app.Where(rest)
	case "here":
		var c models.Coordinates
		if c, err = parseCoords(rest); err == nil {
			err = s.app.UseDeviceLocation(c)
		}
	case "random":
		var on bool
		if on, err = parseOnOff(rest); err == nil {
			err = s.app.SetRandom(on)
		}
	case "submit":
		var m *models.Mood
		if m, err = s.app.Submit(ctx); err == nil {
			s.printf("saved %s %s at %s\n", m.Emoji, m.Note, cmpLabel(m.LocationLabel, m.Coordinates().String()))
		}
	case "recenter":
		err = s.app.Recenter()
	case "drag":
		s.app.Gesture(camera.DragStart)
	case "zoom":
		s.app.Gesture(camera.ZoomStart)
	case "touch":
		s.app.Gesture(camera.TouchStart)
	case "release":
		s.app.GestureEnd()
	case "dismiss":
		s.app.Dismiss()
	case "whoami":
		s.whoami()
		return false
	default:
		s.printf("unknown command %q, type 'help'\n", cmd)
		return false
	}

	if err != nil {
		s.printf("error: %s\n", moods.Describe(err))
	}
	s.render()
	return false
}

func (s *shell) whoami() {
	id, err := s.ids.EffectiveID()
	if err != nil {
		s.printf("identity: %s (%v)\n", s.ids.Status(), err)
		return
	}
	if u, ok := s.ids.VerifiedUser(); ok {
		s.printf("identity: @%s (%s), id %d\n", u.Username, u.DisplayName, id)
		return
	}
	s.printf("identity: anonymous device, id %d\n", id)
}

func (s *shell) render() {
	var b strings.Builder
	if banner := s.app.Banner(); banner != nil {
		fmt.Fprintf(&b, "! %s (dismiss to hide)\n", moods.Describe(banner))
	}
	now := time.Now()
	if s.now != nil {
		now = s.now()
	}

	switch s.app.View() {
	case app.ViewMap:
		pos, zoom := s.surface.Position()
		fmt.Fprintf(&b, "[map] camera %s z%d", pos, zoom)
		if s.app.CanRecenter() {
			b.WriteString(", recenter available")
		}
		b.WriteString("\n")
		for _, cl := range s.app.Clusters() {
			fmt.Fprintf(&b, "  %s x%d  %s\n", cl.Moods[0].Emoji, len(cl.Moods), cl.Key)
		}
	case app.ViewList:
		b.WriteString("[list]\n")
		for _, m := range s.app.Moods() {
			b.WriteString("  " + formatMood(m, now) + "\n")
		}
	case app.ViewClusterDetail:
		cl, ok := s.app.ClusterDetail()
		if !ok {
			b.WriteString("[cluster] gone\n")
			break
		}
		fmt.Fprintf(&b, "[cluster] %s\n", cmpLabel(cl.Label, cl.Coords.String()))
		for _, m := range cl.Moods {
			b.WriteString("  " + formatMood(m, now) + "\n")
		}
	case app.ViewAddMood:
		f := s.app.Form()
		loc := s.app.Location()
		title := "new mood"
		if f.Editing {
			title = "edit your mood"
		}
		fmt.Fprintf(&b, "[%s] emoji=%q note=%q share=%t\n", title, f.Emoji, f.Note, f.Share)
		fmt.Fprintf(&b, "  location: %s", loc.State)
		if loc.Candidate != nil {
			fmt.Fprintf(&b, " %s", cmpLabel(loc.Candidate.Label, loc.Candidate.Coords.String()))
		}
		if loc.Random {
			b.WriteString(" (random, text input disabled)")
		}
		b.WriteString("\n")
		if f.Err != nil {
			fmt.Fprintf(&b, "  %s\n", moods.Describe(f.Err))
		}
		fmt.Fprintf(&b, "  submit %s\n", enabled(s.app.CanSubmit()))
	}
	s.printf("%s", b.String())
}

func enabled(ok bool) string {
	if ok {
		return "enabled"
	}
	return "disabled"
}

func formatMood(m models.Mood, now time.Time) string {
	who := m.Username
	if who == "" {
		who = "anonymous"
	} else {
		who = "@" + who
	}
	line := fmt.Sprintf("%s %s", m.Emoji, who)
	if m.Note != "" {
		line += " " + strconv.Quote(m.Note)
	}
	if m.LocationLabel != "" {
		line += " in " + m.LocationLabel
	}
	return line + ", " + ago(now.Sub(m.CreatedAt))
}

// ago renders a duration the way feed entries show their age.
func ago(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "y", "true":
		return true, nil
	case "off", "no", "n", "false":
		return false, nil
	}
	return false, models.Validation("expected on or off")
}

func parseCoords(s string) (models.Coordinates, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) != 2 {
		return models.Coordinates{}, models.Validation("usage: here <lat> <lng>")
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lng, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		return models.Coordinates{}, models.Validation("coordinates must be numbers")
	}
	return models.Coordinates{Lat: lat, Lng: lng}, nil
}
