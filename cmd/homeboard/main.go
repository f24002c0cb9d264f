package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata" // Zone database for minimal containers.

	"homeboard/internal/appliance"
	"homeboard/internal/bot"
	"homeboard/internal/cache"
	"homeboard/internal/calendar"
	"homeboard/internal/config"
	"homeboard/internal/fetcher"
	"homeboard/internal/filter"
	"homeboard/internal/icsfeed"
	"homeboard/internal/obs"
	"homeboard/internal/scheduler"
	"homeboard/internal/storage"
	"homeboard/internal/waste"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	metrics := obs.NewMetrics()
	svc := newServices(cfg, store, metrics, log)

	b, err := bot.New(cfg.TelegramBotToken, cfg, svc, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(store, svc, cfg, b, log.With("component", "scheduler"))
	sched.SetObserver(metrics)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, metrics, log)
	}

	log.Info("starting homeboard",
		"waste", cfg.Waste.Enabled(),
		"pihole", cfg.Pihole.Enabled(),
		"calendars", len(cfg.Calendar.Sources),
		"work", cfg.Work.Enabled(),
	)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("homeboard stopped")
}

// newServices builds the backends for every configured feature. Features
// without configuration stay nil.
func newServices(cfg *config.Config, store storage.Storage, m *obs.Metrics, log *slog.Logger) bot.Services {
	loc := cfg.Location()
	cacheOpts := []cache.Option{cache.WithObserver(m.ObserveCache)}
	web := fetcher.New(&http.Client{Timeout: 30 * time.Second})

	svc := bot.Services{Journal: store}

	if cfg.Waste.Enabled() {
		svc.Waste = waste.NewResolver(web, waste.Config{
			BaseURL: cfg.Waste.APIURL,
			Address: waste.Address{
				Region:      cfg.Waste.Region,
				Street:      cfg.Waste.Street,
				HouseNumber: cfg.Waste.HouseNumber,
			},
			Location: loc,
		}, log.With("component", "waste"), cacheOpts...)
	}
	if cfg.Waste.RecyclingCenterURL != "" {
		svc.RecyclingCenter = waste.NewRecyclingCenter(web, cfg.Waste.RecyclingCenterURL, log.With("component", "recycling_center"), cacheOpts...)
	}
	if cfg.Waste.NewsURL != "" {
		rules := filter.MustCompile(waste.DefaultNoticeRules)
		svc.Notices = waste.NewNewsFeed(web, cfg.Waste.NewsURL, rules, log.With("component", "notices"), cacheOpts...)
	}

	if cfg.Calendar.Enabled() {
		backend := calendar.NewBackend(web, calendar.BackendConfig{
			BaseURL: cfg.Calendar.APIURL,
			Token:   cfg.Calendar.Token,
			Display: loc,
		}, log.With("component", "calendar"))
		svc.Calendars = calendar.NewAggregator(backend, cfg.Calendar.Workers, log.With("component", "calendar"))
	}

	if cfg.Work.Enabled() {
		svc.Work = icsfeed.New(web, icsfeed.Config{
			URL:      cfg.Work.URL,
			Calendar: "Arbeit",
			Display:  loc,
		}, log.With("component", "work_calendar"))
	}

	if cfg.Pihole.Enabled() {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.Pihole.InsecureTLS {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // appliances use self-signed certificates
		}
		lan := fetcher.New(&http.Client{Timeout: appliance.DefaultTimeout, Transport: transport})
		primary := appliance.NewClient(lan, appliance.Config{
			Name:     "primary",
			BaseURL:  cfg.Pihole.PrimaryURL,
			Password: cfg.Pihole.PrimaryPassword,
		}, log)
		backup := appliance.NewClient(lan, appliance.Config{
			Name:     "backup",
			BaseURL:  cfg.Pihole.BackupURL,
			Password: cfg.Pihole.BackupPassword,
		}, log)
		svc.DNS = appliance.NewCoordinator(primary, backup, log.With("component", "pihole"),
			appliance.WithConsistencyObserver(m.ObserveInconsistency))
	}

	return svc
}

func serveMetrics(ctx context.Context, addr string, m *obs.Metrics, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
