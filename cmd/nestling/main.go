package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nestling/internal/analyzer"
	"nestling/internal/api"
	"nestling/internal/cache"
	"nestling/internal/config"
	"nestling/internal/history"
	"nestling/internal/httpserver"
	"nestling/internal/models"
	"nestling/internal/setup"
	"nestling/internal/store"
)

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

// openStore builds the configured event store. The returned func releases
// its resources.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (history.EventStore, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewInstrumented(store.NewMemory()), func() {}, nil
	case "api":
		client := api.NewClient(api.Options{
			BaseURL:   cfg.API.BaseURL,
			APIKey:    cfg.API.APIKey,
			ChunkDays: cfg.API.ChunkDays,
			Timeout:   cfg.APITimeout(),
			Logger:    logger,
		})
		return store.NewInstrumented(client), func() {}, nil
	default:
		db, err := store.OpenSQL(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store.NewInstrumented(db), func() { db.Close() }, nil
	}
}

func serve(ctx context.Context, vm *history.ViewModel, cfg *config.Config, logger *zap.Logger) error {
	if err := vm.SelectRange(ctx, models.Range24h); err != nil {
		logger.Warn("initial load failed", zap.Error(err))
	}
	srv := &http.Server{
		Addr: cfg.Server.ListenAddr,
		Handler: httpserver.NewRouter(vm, httpserver.Options{
			MetricsEnabled: cfg.Server.MetricsEnabled,
			Logger:         logger,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	var (
		configPath string
		rangeFlag  string
		filterFlag string
		search     string
		more       int
		scenario   string
		seed       int64
		seedYAML   bool
		month      string
	)

	flag.StringVar(&configPath, "config", "config.yaml", "Path to the config file")
	flag.StringVar(&rangeFlag, "range", "24h", "History range: 24h, 7d or 30d")
	flag.StringVar(&filterFlag, "filter", "all", "Type filter: all, feeds, diapers, sleep, tummy, cry")
	flag.StringVar(&search, "search", "", "Search text, e.g. \"last feed\"")
	flag.IntVar(&more, "more", 0, "Number of older pages to load after the range")
	flag.StringVar(&scenario, "seed", "", "Seed the store with a scenario ("+scenarioNames()+")")
	flag.Int64Var(&seed, "seed-random", 1, "Random seed for the realistic scenario")
	flag.BoolVar(&seedYAML, "seed-yaml", false, "Print the seeded events as YAML")
	flag.StringVar(&month, "month", "", "Print calendar counts of a preloaded month (YYYY-MM)")
	dumpCache := flag.Bool("dump-cache", false, "Print the month cache after loading")
	serveHTTP := flag.Bool("serve", false, "Serve the JSON API instead of printing")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *debug {
		cfg.Debug = true
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	loc := cfg.Location()
	if scenario != "" {
		sc, err := setup.ParseScenario(scenario)
		if err != nil {
			log.Fatalf("Invalid scenario: %v", err)
		}
		seeded, err := setup.NewSeeder(events, cfg.History.SubjectID, time.Now(), seed).Apply(ctx, sc)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		logger.Info("seeded scenario", zap.String("scenario", string(sc)), zap.Int("events", len(seeded)))
		if seedYAML {
			if err := setup.WriteYAML(os.Stdout, seeded); err != nil {
				log.Fatalf("Writing YAML failed: %v", err)
			}
		}
	}

	vm := history.New(events, cfg.History.SubjectID, history.Options{
		Location:        loc,
		PageSizeDays:    cfg.History.PageSizeDays,
		MaxLookbackDays: cfg.History.MaxLookbackDays,
		UndoWindow:      cfg.UndoWindow(),
		PreloadEnabled:  cfg.PreloadEnabled(),
		Logger:          logger,
	})
	defer vm.Close()

	if *serveHTTP {
		if err := serve(ctx, vm, cfg, logger); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	rng, err := models.ParseRange(rangeFlag)
	if err != nil {
		log.Fatalf("Invalid range: %v", err)
	}
	filter, err := models.ParseTypeFilter(filterFlag)
	if err != nil {
		log.Fatalf("Invalid filter: %v", err)
	}

	if cfg.Debug {
		fmt.Printf("Loading %s history for %s in %s\n", rng, cfg.History.SubjectID, loc)
	}
	if err := vm.SelectRange(ctx, rng); err != nil {
		log.Fatalf("Loading history failed: %v", err)
	}
	for i := 0; i < more; i++ {
		loaded, err := vm.LoadMore(ctx)
		if err != nil {
			log.Fatalf("Loading more history failed: %v", err)
		}
		if !loaded {
			break
		}
	}
	vm.SetFilter(filter)
	vm.SetSearchText(search)

	analyzer.PrintSnapshot(os.Stdout, vm.Snapshot(), loc)

	if *dumpCache || month != "" {
		vm.WaitPreloads()
	}
	if month != "" {
		start, err := cache.KeyToMonth(month, loc)
		if err != nil {
			log.Fatalf("Invalid month: %v", err)
		}
		counts, ok := vm.MonthCounts(start)
		if !ok {
			fmt.Printf("\nMonth %s is not cached\n", month)
		} else {
			analyzer.PrintMonthCounts(os.Stdout, month, counts)
		}
	}
	if *dumpCache {
		fmt.Printf("\nMonth Cache:\n")
		vm.Cache().Dump(os.Stdout)
	}
}

func scenarioNames() string {
	names := make([]string, len(setup.Scenarios))
	for i, s := range setup.Scenarios {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
