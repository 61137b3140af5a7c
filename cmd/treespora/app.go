package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/events"
	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/metrics"
	"github.com/treespora/planner/planning"
	plansummarizer "github.com/treespora/planner/processor/plan-summarizer"
	planningapi "github.com/treespora/planner/processor/planning-api"
	taskgenerator "github.com/treespora/planner/processor/task-generator"
	taskreader "github.com/treespora/planner/processor/task-reader"
	"github.com/treespora/planner/storage"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *storage.Store
	metrics   *metrics.Metrics
	publisher *events.Publisher

	generator  *taskgenerator.Generator
	trigger    taskgenerator.Trigger
	summarizer *plansummarizer.Component
	reader     *taskreader.Component
	api        *planningapi.Component
}

// NewApp opens the store, connects the event publisher and builds every
// component. Extra client options are applied after the defaults.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, clientOpts ...llm.ClientOption) (*App, error) {
	store, err := storage.Open(ctx, cfg.Database, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	publisher, err := events.Connect(cfg.NATS, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	app := &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		metrics:   metrics.New(),
		publisher: publisher,
	}
	if err := app.build(clientOpts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(clientOpts []llm.ClientOption) error {
	opts := append([]llm.ClientOption{
		llm.WithLogger(a.logger),
		llm.WithCallRecorder(a.store),
		llm.WithObserver(a.metrics),
	}, clientOpts...)
	client := llm.NewClient(a.cfg.Registry(), opts...)
	gateway := planning.NewGateway(client, a.logger)

	taskConfig := taskgenerator.ConfigFrom(a.cfg)
	generator, err := taskgenerator.NewGenerator(a.store, gateway, taskConfig,
		taskgenerator.WithLogger(a.logger),
		taskgenerator.WithPublisher(a.publisher),
		taskgenerator.WithObserver(a.metrics),
	)
	if err != nil {
		return fmt.Errorf("create task generator: %w", err)
	}
	a.generator = generator
	a.trigger = taskgenerator.NewTrigger(generator, taskConfig, a.logger)

	summarizer, err := plansummarizer.NewComponent(a.store, gateway, plansummarizer.ConfigFrom(a.cfg),
		plansummarizer.WithLogger(a.logger),
		plansummarizer.WithTaskTrigger(a.trigger),
		plansummarizer.WithPublisher(a.publisher),
		plansummarizer.WithObserver(a.metrics),
	)
	if err != nil {
		return fmt.Errorf("create plan summarizer: %w", err)
	}
	a.summarizer = summarizer
	a.reader = taskreader.NewComponent(a.store, a.logger)

	api, err := planningapi.NewComponent(a.summarizer, a.generator, a.reader, planningapi.ConfigFrom(a.cfg),
		planningapi.WithLogger(a.logger),
		planningapi.WithObserver(a.metrics),
		planningapi.WithMetricsHandler(a.metrics.Handler()),
	)
	if err != nil {
		return fmt.Errorf("create planning api: %w", err)
	}
	a.api = api
	return nil
}

// Serve runs the HTTP server, and the background task worker when async
// generation is enabled, until ctx ends. It then shuts the server down
// within the configured timeout.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.api.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if d, ok := a.trigger.(*taskgenerator.Dispatcher); ok {
		g.Go(func() error {
			return d.Run(gctx)
		})
	}

	g.Go(func() error {
		a.logger.Info("Treespora ready",
			"version", Version,
			"addr", a.cfg.HTTP.Addr,
			"api_prefix", a.cfg.HTTP.APIPrefix,
			"environment", a.cfg.App.Environment,
			"events", a.publisher.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("Shutting down HTTP server", "timeout", a.cfg.HTTP.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the event connection and the store.
func (a *App) Close() {
	a.publisher.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close store", "error", err)
	}
}
