package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"world-state-engine/internal/adapters/audit"
	"world-state-engine/internal/adapters/catalog"
	"world-state-engine/internal/adapters/discord"
	"world-state-engine/internal/adapters/discord/commands"
	"world-state-engine/internal/adapters/httpapi"
	"world-state-engine/internal/adapters/storage/memory"
	"world-state-engine/internal/adapters/storage/postgres"
	"world-state-engine/internal/config"
	"world-state-engine/internal/core/ports"
	"world-state-engine/internal/core/services/control"
	"world-state-engine/internal/core/services/crisis"
	"world-state-engine/internal/core/services/maintenance"
	"world-state-engine/internal/core/services/orders"
	"world-state-engine/internal/core/services/population"
	"world-state-engine/internal/core/services/progression"
	"world-state-engine/internal/platform/otel"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// catalogSource is everything the engines look up as reference data.
type catalogSource interface {
	ports.SkillCatalog
	ports.ZoneCatalog
	ports.TemplateCatalog
}

type App struct {
	config  *config.Config
	store   ports.Repository
	sinks   []io.Closer
	discord *discordgo.Session
	router  *commands.Router

	maintenance *maintenance.Service
	control     *control.Resolver

	httpServer    *http.Server
	metricsServer *http.Server
	otelShutdown  func(context.Context) error

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workers      sync.WaitGroup

	registeredCommands []*discordgo.ApplicationCommand
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{config: cfg}

	otelShutdown, err := otel.Setup(ctx, cfg.OtelEndpoint, cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	app.otelShutdown = otelShutdown

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.store = store

	cat, err := newCatalog(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	journal := audit.NewJournal(cfg.AuditDir)
	index, err := audit.OpenIndex(cfg.AuditIndexPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open audit index: %w", err)
	}
	app.sinks = []io.Closer{journal, index}
	events := audit.NewFanout(journal, index, audit.LogSink{})

	if cfg.DiscordEnabled() {
		session, err := discord.NewSession(cfg.Token)
		if err != nil {
			app.closeStorage()
			return nil, err
		}
		app.discord = session
		events.Add(discord.NewFeed(session, cfg.DiscordGuildID, cfg.DiscordOpsChannel))
	}

	policy := cfg.Policy

	maint := maintenance.NewService(maintenance.Dependencies{
		Store:  store,
		Events: events,
	})
	if err := maint.Load(ctx); err != nil {
		app.closeStorage()
		return nil, err
	}
	app.maintenance = maint

	ledger := progression.NewLedger(progression.Dependencies{
		Policy:  policy.Progression,
		Store:   store,
		Catalog: cat,
		Events:  events,
		Gate:    maint,
	})
	pop := population.NewService(population.Dependencies{
		Policy: policy.Population,
		Store:  store,
		Events: events,
		Gate:   maint,
	})
	resolver := control.NewResolver(control.Dependencies{
		Policy: policy.Control,
		Store:  store,
		Events: events,
		Gate:   maint,
	})
	if err := resolver.Seed(ctx, policy.Catalog.Regions); err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("seed regions: %w", err)
	}
	app.control = resolver

	validator := orders.NewService(orders.Dependencies{
		Policy:          policy.Orders,
		PolicyVersion:   policy.Version,
		CategoryTimeout: cfg.CategoryTimeout,
		Store:           store,
		Regions:         store,
		Catalog:         cat,
		Events:          events,
		Gate:            maint,
	})
	coordinator := crisis.NewCoordinator(crisis.Dependencies{
		Policy: policy.Impact,
		Store:  store,
		Events: events,
		Gate:   maint,
	})

	handler, err := httpapi.NewHandler(httpapi.Services{
		Progression: ledger,
		Population:  pop,
		Control:     resolver,
		Orders:      validator,
		Crisis:      coordinator,
		Maintenance: maint,
	})
	if err != nil {
		app.closeStorage()
		return nil, fmt.Errorf("build http handler: %w", err)
	}
	app.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if app.discord != nil {
		bot := &commands.BotHandler{
			OpsChannel:  cfg.DiscordOpsChannel,
			Maintenance: maint,
			Fatigue:     ledger,
			Regions:     resolver,
		}
		admin := func(h commands.CommandHandler) commands.CommandHandler {
			return commands.Chain(h, commands.WithLogging, commands.WithAdmin)
		}
		router := commands.NewRouter()
		router.Register("maintenance-start", admin(bot.StartMaintenance))
		router.Register("maintenance-end", admin(bot.EndMaintenance))
		router.Register("maintenance-list", admin(bot.ListMaintenance))
		router.Register("reset-fatigue", admin(bot.ResetFatigue))
		router.Register("region-status", commands.Chain(bot.RegionStatus, commands.WithLogging))

		app.discord.AddHandler(commands.ReadyHandler)
		app.discord.AddHandler(router.HandleFunc())
		app.router = router
	}

	return app, nil
}

func newStore(ctx context.Context, cfg *config.Config) (ports.Repository, error) {
	switch cfg.StorageDriver {
	case "memory":
		slog.Warn("Using in-memory storage; state is lost on restart")
		return memory.NewStore(), nil
	default:
		store, err := postgres.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to storage: %w", err)
		}
		return store, nil
	}
}

func newCatalog(cfg *config.Config) (catalogSource, error) {
	if cfg.CatalogURL != "" {
		slog.Info("Using remote catalog", "url", cfg.CatalogURL)
		return catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout), nil
	}
	static, err := catalog.NewStatic(cfg.Policy.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load static catalog: %w", err)
	}
	return static, nil
}

func (a *App) Run() error {
	a.startMetricsServer()
	a.startHTTPServer()

	a.workerCtx, a.workerCancel = context.WithCancel(context.Background())
	a.workers.Add(2)
	go func() {
		defer a.workers.Done()
		a.control.Start(a.workerCtx, a.config.ActivationInterval)
	}()
	go func() {
		defer a.workers.Done()
		a.maintenance.Start(a.workerCtx, a.config.ActivationInterval)
	}()

	if a.discord != nil {
		if err := a.discord.Open(); err != nil {
			return fmt.Errorf("open discord session: %w", err)
		}
		userID := a.discord.State.User.ID
		cmds := commands.GetApplicationCommands()
		commands.CleanupCommands(a.discord, a.registeredCommands, userID, a.config.DiscordGuildID)
		a.registeredCommands = commands.RegisterCommands(a.discord, cmds, userID, a.config.DiscordGuildID)
		slog.Info("Operator console online", "commands", a.router.Names())
	}

	slog.Info("World state engine is online", "http_addr", a.config.HTTPAddr, "storage", a.config.StorageDriver)
	return nil
}

func (a *App) startHTTPServer() {
	go func() {
		slog.Info("Starting API server", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	}()
}

func (a *App) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsServer = &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "addr", a.metricsServer.Addr)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
}

// Shutdown stops intake first, then workers, then the sinks and storage they write to.
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down...")
	var errs []error

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server: %w", err))
		}
	}

	if a.workerCancel != nil {
		a.workerCancel()
	}
	a.workers.Wait()

	if a.discord != nil {
		if a.discord.State != nil && a.discord.State.User != nil {
			commands.CleanupCommands(a.discord, a.registeredCommands, a.discord.State.User.ID, a.config.DiscordGuildID)
		}
		if err := a.discord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("discord: %w", err))
		}
	}

	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}

	errs = append(errs, a.closeStorage())

	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (a *App) closeStorage() error {
	var errs []error
	for _, sink := range a.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.sinks = nil
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	return errors.Join(errs...)
}
