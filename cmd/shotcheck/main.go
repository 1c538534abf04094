// Command shotcheck scores recorded pre/post screenshot pairs without
// watching a live game. Results are printed as JSON lines.
//
//	shotcheck pre1.png post1.png pre2.png post2.png
//	shotcheck -dir shots/   # pairs NAME_pre.png with NAME_post.png
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/teslashibe/go-pocketbench/internal/config"
	"github.com/teslashibe/go-pocketbench/internal/log"
	"github.com/teslashibe/go-pocketbench/pkg/capture"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/tanks"
)

type pair struct {
	name, pre, post string
}

type line struct {
	Name    string               `json:"name"`
	Tanks   *tanks.Result        `json:"tanks,omitempty"`
	Outcome *outcome.MoveOutcome `json:"outcome,omitempty"`
	Error   string               `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "Config file (YAML or JSON)")
	dir := flag.String("dir", "", "Directory of NAME_pre/NAME_post screenshots")
	workers := flag.Int("j", runtime.NumCPU(), "Pairs analysed in parallel")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	log.Init(cfg.Log.Level)

	var pairs []pair
	if *dir != "" {
		pairs, err = pairsInDir(*dir)
	} else {
		pairs, err = pairsFromArgs(flag.Args())
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "shotcheck: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed, err := check(ctx, cfg, pairs, *workers)
	if err != nil {
		log.Error("shotcheck failed", "err", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func check(ctx context.Context, cfg *config.Config, pairs []pair, workers int) (int, error) {
	locator, err := tanks.New(cfg.Tanks, tanks.WithLogger(log.Component("tanks")))
	if err != nil {
		return 0, err
	}
	analyzer, err := outcome.New(cfg.Outcome, outcome.WithLogger(log.Component("outcome")))
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(os.Stdout)
	failed := 0

	var jobs []pipeline.Job
	for _, p := range pairs {
		pre, err := capture.ReadImage(p.pre, 0)
		if err != nil {
			failed++
			enc.Encode(line{Name: p.name, Error: err.Error()})
			continue
		}
		post, err := capture.ReadImage(p.post, 0)
		if err != nil {
			failed++
			enc.Encode(line{Name: p.name, Error: err.Error()})
			continue
		}
		jobs = append(jobs, pipeline.Job{Name: p.name, Pre: pre, Post: post})
	}

	results, err := pipeline.AnalyzeBatch(ctx, locator, analyzer, jobs, workers)
	if err != nil {
		return failed, err
	}
	for _, r := range results {
		if r.Err != nil {
			failed++
			enc.Encode(line{Name: r.Name, Error: r.Err.Error()})
			continue
		}
		if err := enc.Encode(line{Name: r.Name, Tanks: &r.Tanks, Outcome: &r.Outcome}); err != nil {
			return failed, err
		}
	}
	return failed, nil
}

func pairsFromArgs(args []string) ([]pair, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, fmt.Errorf("expected PRE POST image pairs, got %d arguments", len(args))
	}
	pairs := make([]pair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name := strings.TrimSuffix(filepath.Base(args[i]), filepath.Ext(args[i]))
		pairs = append(pairs, pair{name: name, pre: args[i], post: args[i+1]})
	}
	return pairs, nil
}

// pairsInDir matches NAME_pre.EXT with NAME_post.EXT.
func pairsInDir(dir string) ([]pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			files[e.Name()] = filepath.Join(dir, e.Name())
		}
	}

	var pairs []pair
	for fname, path := range files {
		ext := filepath.Ext(fname)
		base, ok := strings.CutSuffix(strings.TrimSuffix(fname, ext), "_pre")
		if !ok {
			continue
		}
		post, ok := files[base+"_post"+ext]
		if !ok {
			log.Warn("no post screenshot", "pre", path)
			continue
		}
		pairs = append(pairs, pair{name: base, pre: path, post: post})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no NAME_pre/NAME_post pairs in %s", dir)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].name < pairs[j].name })
	return pairs, nil
}
