// Package main is the entry point for the podible feed server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"

	"github.com/podibleapp/podible-server/internal/api"
	"github.com/podibleapp/podible-server/internal/config"
	"github.com/podibleapp/podible-server/internal/library"
	"github.com/podibleapp/podible-server/internal/logger"
	"github.com/podibleapp/podible-server/internal/mdns"
	"github.com/podibleapp/podible-server/internal/probe"
	"github.com/podibleapp/podible-server/internal/scanner"
	"github.com/podibleapp/podible-server/internal/search"
	"github.com/podibleapp/podible-server/internal/transcode"
	"github.com/podibleapp/podible-server/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// apiKey distinguishes the key in the container from other strings.
type apiKey string

func main() {
	injector := do.New()

	do.Provide(injector, provideConfig)
	do.Provide(injector, provideLogger)
	do.Provide(injector, provideAPIKey)

	do.Provide(injector, provideProbeCache)
	do.Provide(injector, provideIndex)
	do.Provide(injector, provideStatusStore)
	do.Provide(injector, provideQueue)
	do.Provide(injector, provideSearch)

	do.Provide(injector, provideScanner)
	do.Provide(injector, provideWorker)
	do.Provide(injector, provideServer)

	if err := run(injector); err != nil {
		fmt.Fprintf(os.Stderr, "podible: %v\n", err)
		os.Exit(1)
	}
}

func provideConfig(do.Injector) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

func provideLogger(i do.Injector) (*slog.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return logger.New(logger.Config{
		Format: cfg.Logger.Format,
		Level:  logger.ParseLevel(cfg.Logger.Level),
	}), nil
}

func provideAPIKey(i do.Injector) (apiKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	key, err := api.LoadOrCreateKey(filepath.Join(cfg.DataDir, "api-key.txt"))
	return apiKey(key), err
}

func provideProbeCache(i do.Injector) (*probe.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	cache := probe.NewCache(filepath.Join(cfg.DataDir, "probe-cache.json"), probe.NewFFProbe(), log)
	cache.Load()
	return cache, nil
}

func provideIndex(i do.Injector) (*library.Index, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	index := library.NewIndex(filepath.Join(cfg.DataDir, "library-index.json"), log)
	index.Load()
	return index, nil
}

func provideStatusStore(i do.Injector) (*transcode.StatusStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	store := transcode.NewStatusStore(filepath.Join(cfg.DataDir, "transcode-status.json"), log)
	store.Load()
	return store, nil
}

func provideQueue(do.Injector) (*transcode.Queue, error) {
	return transcode.NewQueue(), nil
}

func provideSearch(i do.Injector) (*search.Index, error) {
	return search.New(do.MustInvoke[*slog.Logger](i))
}

func provideScanner(i do.Injector) (*scanner.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*slog.Logger](i)
	index := do.MustInvoke[*library.Index](i)
	idx := do.MustInvoke[*search.Index](i)

	return scanner.New(scanner.Config{
		Roots:   cfg.Roots,
		DataDir: cfg.DataDir,
		Probe:   do.MustInvoke[*probe.Cache](i),
		Status:  do.MustInvoke[*transcode.StatusStore](i),
		Queue:   do.MustInvoke[*transcode.Queue](i),
		Index:   index,
		OnComplete: func() {
			if err := idx.Rebuild(index.Sorted()); err != nil {
				log.Error("search rebuild failed", "error", err)
			}
		},
		Logger: log,
	}), nil
}

func provideWorker(i do.Injector) (*transcode.Worker, error) {
	log := do.MustInvoke[*slog.Logger](i)
	index := do.MustInvoke[*library.Index](i)
	idx := do.MustInvoke[*search.Index](i)

	converter, err := transcode.NewFFmpeg(log)
	if err != nil {
		return nil, err
	}

	onPromote := func() {
		if err := idx.Rebuild(index.Sorted()); err != nil {
			log.Error("search rebuild failed", "error", err)
		}
	}

	return transcode.NewWorker(
		do.MustInvoke[*transcode.Queue](i),
		do.MustInvoke[*transcode.StatusStore](i),
		index,
		converter,
		onPromote,
		log,
	), nil
}

func provideServer(i do.Injector) (*api.Server, error) {
	return api.NewServer(api.Deps{
		Config: do.MustInvoke[*config.Config](i),
		Index:  do.MustInvoke[*library.Index](i),
		Status: do.MustInvoke[*transcode.StatusStore](i),
		Queue:  do.MustInvoke[*transcode.Queue](i),
		Probes: do.MustInvoke[*probe.Cache](i),
		Search: do.MustInvoke[*search.Index](i),
		APIKey: string(do.MustInvoke[apiKey](i)),
		Logger: do.MustInvoke[*slog.Logger](i),
	}), nil
}

func run(injector do.Injector) error {
	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*slog.Logger](injector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scn := do.MustInvoke[*scanner.Scanner](injector)
	worker := do.MustInvoke[*transcode.Worker](injector)
	server := do.MustInvoke[*api.Server](injector)

	worker.Start()
	defer worker.Stop()

	// Filesystem changes trigger a debounced rescan.
	w, err := watcher.New(func() { scn.Scan(ctx) }, watcher.Options{}, log)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, root := range cfg.Roots {
		if err := w.Watch(root); err != nil {
			log.Warn("cannot watch library root", "root", root, "error", err)
		}
	}
	w.Start()
	defer w.Stop()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	advertiser := mdns.NewService(log)
	if cfg.Server.AdvertiseMDNS {
		if err := advertiser.Start(cfg.Server.Port); err != nil {
			log.Warn("mDNS advertisement unavailable", "error", err)
		}
		defer advertiser.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("listening", "addr", httpServer.Addr, "roots", cfg.Roots, "data_dir", cfg.DataDir)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		scn.Scan(groupCtx)
		return nil
	})

	return group.Wait()
}
