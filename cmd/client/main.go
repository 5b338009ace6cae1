// Package main runs the interactive mood map client: it resolves the user's
// identity, connects to the mood store and drives the map from typed commands.
package main

import (
	"bufio"
	"cmp"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atinyakov/moodmap/internal/client/app"
	"github.com/atinyakov/moodmap/internal/client/camera"
	"github.com/atinyakov/moodmap/internal/client/geo"
	"github.com/atinyakov/moodmap/internal/client/identity"
	"github.com/atinyakov/moodmap/internal/client/live"
	"github.com/atinyakov/moodmap/internal/client/moods"
	"github.com/atinyakov/moodmap/internal/client/platform"
	"github.com/atinyakov/moodmap/internal/client/storage"
	"github.com/atinyakov/moodmap/internal/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const flightDuration = 1200 * time.Millisecond

var (
	version   string
	buildDate string
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL     string
		devicePath  string
		caFile      string
		geocoderURL string
		geocoderKey string
		platformURL string
		appURL      string
		logLevel    string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", cmp.Or(os.Getenv("MOODMAP_URL"), "http://localhost:8080"), "mood store base URL")
	flag.StringVar(&devicePath, "device", cmp.Or(os.Getenv("MOODMAP_DEVICE"), "moodmap-device.json"), "device-local state file")
	flag.StringVar(&caFile, "ca", os.Getenv("MOODMAP_CA"), "path to CA cert of the store")
	flag.StringVar(&geocoderURL, "geocoder-url", cmp.Or(os.Getenv("GEOCODER_URL"), "https://maps.googleapis.com/maps/api/geocode/json"), "geocoding endpoint")
	flag.StringVar(&geocoderKey, "geocoder-key", os.Getenv("GEOCODER_KEY"), "geocoding API key")
	flag.StringVar(&platformURL, "platform-url", os.Getenv("PLATFORM_URL"), "host platform bridge URL (empty runs standalone)")
	flag.StringVar(&appURL, "app-url", os.Getenv("APP_URL"), "link attached to shared moods")
	flag.StringVar(&logLevel, "log-level", cmp.Or(os.Getenv("LOG_LEVEL"), "warn"), "log level")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("Moodmap Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	lg := logger.New()
	if err := lg.InitConsole(logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := lg.Log
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, err := newTransports(caFile)
	if err != nil {
		log.Fatal("cannot build http clients", zap.Error(err))
	}

	device := storage.NewLocalStorage(devicePath)
	if err := device.Load(); err != nil {
		log.Warn("device storage unreadable", zap.Error(err))
	}

	var plat platform.Platform = platform.Standalone{}
	token := func() string { return "" }
	if platformURL != "" {
		host := platform.NewHostClient(platformURL, tr.web, log)
		plat, token = host, host.Token
	}

	ids := identity.NewProvider(log, nil)
	ids.Resolve(ctx, plat, device)

	out := bufio.NewWriter(os.Stdout)
	sh := &shell{in: bufio.NewReader(os.Stdin), out: out, ids: ids}

	store := storage.NewRemoteStore(tr.store, baseURL, token)
	resolver := geo.NewResolver(ctx, geo.NewGoogleClient(geocoderURL, geocoderKey, tr.web), log,
		geo.WithOnChange(sh.locationChanged))
	surface := camera.NewVirtualSurface(flightDuration, log)
	cam := camera.NewController(surface, log, func(c camera.Completion) {
		log.Debug("camera move finished", zap.Stringer("purpose", c.Request.Purpose), zap.Bool("interrupted", c.Interrupted))
	})
	rec := moods.NewReconciler(store, plat, ids, log, moods.WithAppURL(appURL))

	sh.app = app.New(ids, resolver, cam, rec, log)
	sh.surface = surface
	sh.app.Load(ctx)

	if wsURL, err := live.URLFor(baseURL); err != nil {
		log.Warn("live updates disabled", zap.Error(err))
	} else {
		sub := live.NewSubscriber(wsURL, log, func(ctx context.Context, owner int64) {
			log.Debug("mood changed", zap.Int64("owner", owner))
			sh.app.Refresh(ctx)
		}, live.WithDialer(tr.dialer))
		go func() { _ = sub.Run(ctx) }()
	}

	sh.run(ctx)
}
