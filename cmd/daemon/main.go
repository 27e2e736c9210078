// SPDX-License-Identifier: MIT

// The daemon keeps a display surface synchronized with a remote image
// resource: it polls for changes, extracts metadata for captions, sequences
// transitions and serves the control API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gjbm2/screen-machine-sub000/internal/api"
	"github.com/gjbm2/screen-machine-sub000/internal/cache"
	"github.com/gjbm2/screen-machine-sub000/internal/config"
	"github.com/gjbm2/screen-machine-sub000/internal/daemon"
	"github.com/gjbm2/screen-machine-sub000/internal/engine"
	"github.com/gjbm2/screen-machine-sub000/internal/history"
	dslog "github.com/gjbm2/screen-machine-sub000/internal/log"
	"github.com/gjbm2/screen-machine-sub000/internal/metadata"
	"github.com/gjbm2/screen-machine-sub000/internal/mode"
	"github.com/gjbm2/screen-machine-sub000/internal/params"
	"github.com/gjbm2/screen-machine-sub000/internal/resource"
	"github.com/gjbm2/screen-machine-sub000/internal/staleness"
	"github.com/gjbm2/screen-machine-sub000/internal/telemetry"
	"github.com/gjbm2/screen-machine-sub000/internal/transition"
	"github.com/gjbm2/screen-machine-sub000/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		l := dslog.WithComponent("main")
		l.Fatal().Err(err).Msg("daemon failed")
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Auto-load ${DISPSYNC_DATA_DIR}/config.yaml when no explicit path is given.
	if configPath == "" {
		dataDir := config.ParseString("DISPSYNC_DATA_DIR", "./data")
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			configPath = autoPath
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	dslog.Configure(dslog.Config{Level: cfg.LogLevel, Service: "dispsync"})
	logger := dslog.WithComponent("main")
	logger.Info().
		Str("event", "daemon.config").
		Str("config_path", configPath).
		Str("listen", cfg.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Msg("configuration loaded")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "dispsync",
		ServiceVersion: version.Version,
		Environment:    config.ParseString("DISPSYNC_ENV", "production"),
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	// Resource access: HTTP and file sources behind one resolver.
	fileSrc := resource.NewFileSource(dslog.WithComponent("resource"))
	resolver := resource.NewResolver(resource.NewHTTPSource(), fileSrc)

	// Metadata cache: Redis when configured, in-process otherwise.
	var metaCache cache.MetadataCache
	var closeCache func() error
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{Addr: cfg.RedisAddr}, dslog.WithComponent("cache"))
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		metaCache = redisCache
		closeCache = redisCache.Close
	} else {
		metaCache = cache.NewMemoryCache(10 * time.Minute)
	}

	// Mode flag store.
	var modeStore mode.Store
	var closeModeStore func() error
	switch cfg.StateStore {
	case "badger":
		badgerStore, err := mode.OpenBadgerStore(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			return fmt.Errorf("open state store: %w", err)
		}
		modeStore = badgerStore
		closeModeStore = badgerStore.Close
	case "memory":
		modeStore = mode.NewMemStore()
	default:
		modeStore = mode.NewFileStore(filepath.Join(cfg.DataDir, "mode.json"))
	}

	historyStore, err := history.NewStore(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	eng := engine.New(
		staleness.NewDetector(resolver, dslog.WithComponent("staleness")),
		metadata.NewExtractor(resolver, metaCache, metadata.Options{
			WaitTimeout: cfg.ExtractWaitTimeout,
			CacheTTL:    cfg.MetaCacheTTL,
		}, dslog.WithComponent("metadata")),
		transition.NewController(preloader{resolver}, transition.Config{
			FadeFast: cfg.FadeFast,
			FadeSlow: cfg.FadeSlow,
		}, dslog.WithComponent("transition")),
		mode.NewReconciler(modeStore, dslog.WithComponent("mode")),
		historyStore,
		engine.Config{
			MinPeriod:       cfg.MinPeriod,
			DebugPollPeriod: cfg.DebugPollPeriod,
		},
		engine.Callbacks{
			Render: func(u engine.ViewUpdate) {
				l := dslog.WithComponent("view")
				l.Info().
					Str("event", "view.rendered").
					Str("resource", u.ImageRef).
					Str("caption", u.CaptionText).
					Bool("transitioning", u.IsTransitioning).
					Msg("view updated")
			},
			OnError: func(f *engine.Failure) {
				l := dslog.WithComponent("view")
				l.Warn().
					Err(f.Err).
					Str("event", "view.degraded").
					Str("kind", string(f.Kind)).
					Msg("non-fatal pipeline failure")
			},
		},
		dslog.WithComponent("engine"),
	)

	if cfg.DefaultQuery != "" {
		eng.ApplyParams(params.Decode(cfg.DefaultQuery))
	}

	// A local file resource gets a watcher so edits show up without waiting
	// for the next poll.
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	if p := eng.Params(); p.ResourceRef != "" && !strings.HasPrefix(p.ResourceRef, "http") {
		if err := fileSrc.Watch(watchCtx, p.ResourceRef, eng.Kick); err != nil {
			logger.Warn().Err(err).
				Str("event", "watch.unavailable").
				Str("resource", p.ResourceRef).
				Msg("file watch unavailable, relying on polling")
		}
	}

	server := api.NewServer(eng, dslog.WithComponent("api"), api.WithHistory(historyStore))

	mgr := daemon.NewManager(cfg.ListenAddr, server.Handler(), eng, dslog.Base())
	mgr.RegisterShutdownHook("history-store", func(context.Context) error {
		return historyStore.Close()
	})
	if closeModeStore != nil {
		mgr.RegisterShutdownHook("mode-store", func(context.Context) error {
			return closeModeStore()
		})
	}
	if closeCache != nil {
		mgr.RegisterShutdownHook("metadata-cache", func(context.Context) error {
			return closeCache()
		})
	}
	mgr.RegisterShutdownHook("telemetry", tracing.Shutdown)

	// Prune old check history once a day.
	pruneCtx, cancelPrune := context.WithCancel(ctx)
	defer cancelPrune()
	go pruneHistory(pruneCtx, historyStore, cfg.HistoryRetention)

	return mgr.Start(ctx)
}

// preloader verifies the next image is fetchable before the reveal starts.
type preloader struct {
	resolver *resource.Resolver
}

func (p preloader) Preload(ctx context.Context, ref string) error {
	_, err := p.resolver.Fetch(ctx, ref, resource.FetchOptions{})
	return err
}

func pruneHistory(ctx context.Context, store *history.Store, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l := dslog.WithComponent("history")
			pruned, err := store.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				l.Warn().Err(err).
					Str("event", "history.prune_failed").
					Msg("could not prune check history")
				continue
			}
			l.Debug().
				Str("event", "history.pruned").
				Int64("entries", pruned).
				Msg("old check history removed")
		}
	}
}
