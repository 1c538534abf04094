// Command pocketbench watches a Pocket Tanks game, waits for each shot to
// settle and reports where it landed relative to the opponent.
//
// Frames come from a screenshot directory, a recorded video, a capture
// device or a screenshot URL. Outcomes are stored in SQLite and served on
// a small HTTP/websocket API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-pocketbench/internal/config"
	"github.com/teslashibe/go-pocketbench/internal/log"
	"github.com/teslashibe/go-pocketbench/pkg/capture"
	"github.com/teslashibe/go-pocketbench/pkg/motion"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/store"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
	"github.com/teslashibe/go-pocketbench/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Config file (YAML or JSON)")
	source := flag.String("source", "", "Screenshot directory or video file")
	device := flag.Int("device", -1, "Capture device index")
	url := flag.String("url", "", "Screenshot URL to poll")
	fps := flag.Float64("fps", 0, "Frame rate for directories and polling")
	height := flag.Int("height", -1, "Downscale frames to this height (0 keeps size)")
	preset := flag.String("preset", "", "Turn preset: fast, standard or explosive")
	turns := flag.Int("turns", 0, "Stop after this many turns (0 = until the source ends)")
	port := flag.Int("port", 0, "HTTP API port (overrides config)")
	noWeb := flag.Bool("no-web", false, "Disable the HTTP API")
	hold := flag.Bool("hold", false, "Keep serving the API after the source ends")
	db := flag.String("db", "", "Outcome database path (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	// Command line flags win over file and environment.
	if *source != "" {
		cfg.Capture.Path = *source
	}
	if *device >= 0 {
		cfg.Capture.Device = *device
	}
	if *url != "" {
		cfg.Capture.URL = *url
	}
	if *fps > 0 {
		cfg.Capture.FPS = *fps
	}
	if *height >= 0 {
		cfg.Capture.Height = *height
	}
	if *preset != "" {
		cfg.Turn.Preset = *preset
	}
	if *port > 0 {
		cfg.Web.Port = *port
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *db != "" {
		cfg.Store.Path = *db
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *turns, *hold); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("pocketbench failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, maxTurns int, hold bool) error {
	turnCfg, err := cfg.Turn.Resolve()
	if err != nil {
		return err
	}
	estimator, err := motion.New(cfg.Motion)
	if err != nil {
		return err
	}
	locator, err := tanks.New(cfg.Tanks, tanks.WithLogger(log.Component("tanks")))
	if err != nil {
		return err
	}
	analyzer, err := outcome.New(cfg.Outcome, outcome.WithLogger(log.Component("outcome")))
	if err != nil {
		return err
	}
	tuning := pipeline.NewTuning(turnCfg)

	src, err := capture.Open(cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	var opts []pipeline.Option
	opts = append(opts, pipeline.WithLogger(log.Component("pipeline")))

	var history *store.Store
	if cfg.Store.Enabled {
		history, err = store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer history.Close()
		opts = append(opts, pipeline.WithRecorder(history))
	}

	var server *web.Server
	if cfg.Web.Enabled {
		webOpts := []web.Option{
			web.WithTuning(tuning),
			web.WithSettings(cfg),
			web.WithLogger(log.Component("web")),
		}
		if history != nil {
			webOpts = append(webOpts, web.WithHistory(history))
		}
		server = web.NewServer(webOpts...)
		opts = append(opts, pipeline.WithPublisher(server))
	}

	watcher, err := pipeline.New(cfg.Pipeline, pipeline.Parts{
		Estimator: estimator,
		Locator:   locator,
		Analyzer:  analyzer,
		Tuning:    tuning,
	}, opts...)
	if err != nil {
		return err
	}

	log.Info("watching",
		"path", cfg.Capture.Path,
		"device", cfg.Capture.Device,
		"url", cfg.Capture.URL,
		"preset", cfg.Turn.Preset,
		"threshold", turnCfg.MotionThreshold,
		"stable_frames", turnCfg.StableFrames,
	)

	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stopServe := context.WithCancel(gctx)
	if server != nil {
		g.Go(func() error {
			return server.ListenAndServe(serveCtx, cfg.Web.Addr())
		})
	}
	g.Go(func() error {
		n, err := watcher.Run(gctx, src, maxTurns)
		log.Info("watch finished", "turns", n)
		if !hold || err != nil {
			stopServe()
		}
		return err
	})
	err = g.Wait()
	stopServe()
	return err
}
