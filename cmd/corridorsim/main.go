package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/udisondev/corridor/internal/asset"
	"github.com/udisondev/corridor/internal/billboard"
	"github.com/udisondev/corridor/internal/catalog"
	"github.com/udisondev/corridor/internal/config"
	"github.com/udisondev/corridor/internal/corridor"
	"github.com/udisondev/corridor/internal/db"
	"github.com/udisondev/corridor/internal/rescache"
	"github.com/udisondev/corridor/internal/scene"
	"github.com/udisondev/corridor/internal/streamer"
	"github.com/udisondev/corridor/internal/trace"
)

const DefaultConfigPath = "config/corridor.yaml"

func main() {
	duration := flag.Duration("duration", 0, "stop after this much wall-clock time (0 = until signal)")
	ticks := flag.Int("ticks", 0, "run this many ticks as fast as possible, then exit")
	statusEvery := flag.Duration("status", 5*time.Second, "progress log interval")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if *duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, *duration)
		defer stop()
	}

	if err := run(ctx, *ticks, *statusEvery); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ticks int, statusEvery time.Duration) error {
	cfgPath := DefaultConfigPath
	if p := os.Getenv("CORRIDOR_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("corridor simulator starting",
		"config", cfgPath,
		"tick_rate_hz", cfg.TickRateHz,
		"cache_budget", humanize.IBytes(uint64(cfg.Cache.MemoryBudgetBytes)),
		"catalog", cfg.Catalog.Source)

	var opts []corridor.Option
	if cfg.Trace.Enabled {
		path := filepath.Join(cfg.Trace.Dir, fmt.Sprintf("trace-%s.jsonl.zst", time.Now().UTC().Format("20060102-150405")))
		w, err := trace.Create(path)
		if err != nil {
			return fmt.Errorf("opening trace: %w", err)
		}
		defer func() {
			if err := w.Close(); err != nil {
				slog.Warn("closing trace", "error", err)
			}
			slog.Info("trace written", "path", w.Path(), "records", w.Count())
		}()
		opts = append(opts, corridor.WithRecorder(w))
	}

	cache, err := asset.NewCache(cfg.Cache, newLoader(cfg.Assets))
	if err != nil {
		return fmt.Errorf("creating texture cache: %w", err)
	}
	defer func() {
		slog.Info("texture cache purged", "entries", cache.Purge())
	}()

	graph := scene.NewMemGraph()
	registry := scene.NewRegistry()
	defer registry.Shutdown()

	tiles, err := streamer.New(cfg.Streamer, streamer.NewRoadBuilder(graph, registry, cfg.Streamer.TileLength), cache)
	if err != nil {
		return fmt.Errorf("creating streamer: %w", err)
	}

	billboards, err := billboard.NewManager(cfg.Billboards, cache, billboard.NewSceneBuilder(graph, registry))
	if err != nil {
		tiles.Dispose()
		return fmt.Errorf("creating billboard manager: %w", err)
	}

	opts = append(opts, corridor.WithCacheStats(cache.Stats))

	rt := corridor.NewRuntime(corridor.NewViewer(cfg.Viewer), tiles, billboards, opts...)
	defer rt.Close()

	if err := loadCatalog(ctx, cfg, billboards); err != nil {
		return err
	}

	if ticks > 0 {
		interval := cfg.TickInterval()
		for range ticks {
			if ctx.Err() != nil {
				break
			}
			rt.Step(interval)
		}
		rt.LogSummary()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting corridor runtime", "interval", cfg.TickInterval())
		if err := rt.Run(gctx, cfg.TickInterval()); err != nil {
			return fmt.Errorf("corridor runtime: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(statusEvery)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				last := rt.Last()
				slog.Info("progress",
					"tick", last.Tick,
					"z", humanize.FormatFloat("#,###.", last.Z),
					"speed", humanize.FormatFloat("#.#", last.Speed),
					"tiles", last.Tiles,
					"billboards_loaded", last.Loaded,
					"cache_used", humanize.IBytes(uint64(max(last.CacheBytes, 0))))
			}
		}
	})

	err = g.Wait()
	rt.LogSummary()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("simulator error: %w", err)
	}
	return nil
}

func newLoader(cfg config.AssetsConfig) rescache.Loader[*asset.Texture] {
	if cfg.Loader == config.LoaderFile {
		slog.Info("using file texture loader", "root", cfg.Root)
		return asset.NewFileLoader(cfg.Root)
	}
	l := asset.NewProceduralLoader(cfg.Width, cfg.Height, cfg.Latency)
	l.FailPrefix = cfg.FailPrefix
	slog.Info("using procedural texture loader", "width", cfg.Width, "height", cfg.Height, "latency", cfg.Latency)
	return l
}

// loadCatalog fills the billboard manager from the configured source.
func loadCatalog(ctx context.Context, cfg config.Corridor, m *billboard.Manager) error {
	if cfg.Catalog.Source == config.CatalogYAML {
		if err := m.LoadPlacements(ctx, catalog.File{Path: cfg.Catalog.Path}); err != nil {
			return fmt.Errorf("loading catalog: %w", err)
		}
		return nil
	}

	dsn := cfg.Database.DSN()
	database, err := db.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, dsn); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	repo := database.Billboards()
	if cfg.Catalog.SeedFromFile {
		if err := seedCatalog(ctx, repo, cfg.Catalog.Path); err != nil {
			return err
		}
	}

	if err := m.LoadPlacements(ctx, repo); err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	return nil
}

// seedCatalog imports the yaml catalog into an empty billboards table.
func seedCatalog(ctx context.Context, repo *db.BillboardRepository, path string) error {
	n, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if n > 0 {
		slog.Info("catalog already seeded", "billboards", n)
		return nil
	}

	placements, err := catalog.File{Path: path}.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if err := repo.InsertAll(ctx, placements); err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	slog.Info("catalog seeded", "billboards", len(placements), "from", path)
	return nil
}
