// Package bootstrap wires the whole server together: configuration,
// logging, storage, the platform gateway, the generation pipeline, the
// publish scheduler and the HTTP surface.
package bootstrap

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"autopost-server-go/internal/domain/account"
	"autopost-server-go/internal/domain/challenge"
	"autopost-server-go/internal/domain/eventbus"
	"autopost-server-go/internal/domain/generation"
	"autopost-server-go/internal/domain/media"
	"autopost-server-go/internal/domain/publish"
	"autopost-server-go/internal/domain/session"
	sessionstore "autopost-server-go/internal/domain/session/store"
	"autopost-server-go/internal/domain/social"
	"autopost-server-go/internal/domain/task"
	"autopost-server-go/internal/platform/config"
	"autopost-server-go/internal/platform/errors"
	"autopost-server-go/internal/platform/logging"
	"autopost-server-go/internal/platform/storage"
	"autopost-server-go/internal/scheduler"
	httptransport "autopost-server-go/internal/transport/http"
	"autopost-server-go/internal/transport/http/webapi"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      errors.Kind
	Execute   stepFn
}

type appState struct {
	config     *config.Config
	configPath string
	logger     *logging.Logger

	accounts     *account.Repository
	sessionStore sessionstore.Store
	registry     *challenge.Registry
	verifier     *challenge.Verifier
	gateway      social.Client
	sessions     *session.Manager
	mediaDir     *media.Dir
	pipeline     *generation.Pipeline
	bus          *eventbus.Bus
	orchestrator *publish.Orchestrator
	dispatcher   *task.Dispatcher
}

// Run starts the whole service lifecycle: init graph, HTTP server, cron
// scheduler and graceful shutdown.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil {
		return errors.New(errors.KindBootstrap, "bootstrap.Run", "config/logger not initialised")
	}
	logBootstrapGraph(steps, logger)

	defer func() {
		if state.sessionStore != nil {
			if err := state.sessionStore.Close(context.Background()); err != nil {
				logger.WarnTag("session", "store close: %v", err)
			}
		}
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("bootstrap", "server stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *logging.Logger) {
	logger.InfoTag("bootstrap", "initialisation order")
	for _, step := range steps {
		logger.InfoTag("bootstrap", "  %s - %s", step.ID, step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return errors.New(errors.KindBootstrap, "execute init steps", "nil bootstrap state")
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return errors.New(errors.KindBootstrap, errors.Op(step.ID),
					fmt.Sprintf("dependency %s not satisfied", dep))
			}
		}
		if step.Execute == nil {
			return errors.New(errors.KindBootstrap, errors.Op(step.ID), "missing execute function")
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *errors.Error
			if stderrors.As(err, &typed) {
				return err
			}
			kind := step.Kind
			if kind == "" {
				kind = errors.KindBootstrap
			}
			return errors.Wrap(err, kind, errors.Op(step.ID), "bootstrap step failed")
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the initialisation steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    errors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      errors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      errors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "session:init-store",
			Title:     "Initialise session store",
			DependsOn: []string{"storage:init-database"},
			Kind:      errors.KindStorage,
			Execute:   initSessionStoreStep,
		},
		{
			ID:        "platform:init-gateway",
			Title:     "Initialise platform gateway",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      errors.KindTransport,
			Execute:   initGatewayStep,
		},
		{
			ID:        "session:init-manager",
			Title:     "Initialise session manager",
			DependsOn: []string{"session:init-store", "platform:init-gateway"},
			Kind:      errors.KindBootstrap,
			Execute:   initSessionManagerStep,
		},
		{
			ID:        "generation:init-pipeline",
			Title:     "Initialise generation pipeline",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      errors.KindGeneration,
			Execute:   initPipelineStep,
		},
		{
			ID:        "publish:init-orchestrator",
			Title:     "Initialise publish orchestrator",
			DependsOn: []string{"session:init-manager", "generation:init-pipeline", "storage:init-database"},
			Kind:      errors.KindPublish,
			Execute:   initOrchestratorStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := config.NewLoader().Load()
	if err != nil {
		return errors.Wrap(err, errors.KindConfig, "config:load", "load configuration")
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return errors.New(errors.KindBootstrap, "logging:init-provider", "config not loaded")
	}
	logger, err := logging.New(logging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return errors.Wrap(err, errors.KindBootstrap, "logging:init-provider", "initialise logging")
	}
	state.logger = logger
	logging.DefaultLogger = logger
	logger.InfoTag("bootstrap", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if err := storage.InitDatabase(state.config.Store.SQLite.Path); err != nil {
		return errors.Wrap(err, errors.KindStorage, "storage:init-database", "initialise database")
	}
	state.accounts = account.NewRepository(storage.GetDB())
	return nil
}

func initSessionStoreStep(_ context.Context, state *appState) error {
	cfg := sessionstore.Config{Driver: state.config.Store.Driver}
	if cfg.Driver == sessionstore.DriverRedis {
		cfg.Redis = &sessionstore.RedisConfig{
			Addr:     state.config.Store.Redis.Addr,
			Username: state.config.Store.Redis.Username,
			Password: state.config.Store.Redis.Password,
			DB:       state.config.Store.Redis.DB,
			Prefix:   state.config.Store.Redis.Prefix,
		}
	}
	store, err := sessionstore.New(cfg, sessionstore.Dependencies{SQLiteDB: storage.GetDB()})
	if err != nil {
		return errors.Wrap(err, errors.KindStorage, "session:init-store", "create session store")
	}
	state.sessionStore = store
	state.logger.InfoTag("session", "session store ready, driver=%s", state.config.Store.Driver)
	return nil
}

func initGatewayStep(_ context.Context, state *appState) error {
	if state.config.Platform.GatewayURL == "" {
		return errors.New(errors.KindConfig, "platform:init-gateway", "gateway url is required")
	}
	state.gateway = social.NewGateway(state.config.Platform.GatewayURL, state.config.Platform.Timeout)
	return nil
}

func initSessionManagerStep(_ context.Context, state *appState) error {
	state.registry = challenge.NewRegistry()
	state.sessions = session.NewManager(state.gateway, state.sessionStore, state.registry, state.logger)
	state.verifier = challenge.NewVerifier(state.gateway, state.registry, state.sessionStore, state.logger)
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	gen := state.config.Generation

	var text generation.TextProvider
	switch gen.TextProvider {
	case "openai":
		text = generation.NewOpenAITextProvider(gen.OpenAI.APIKey, gen.OpenAI.BaseURL, gen.OpenAI.ModelName)
	default:
		text = generation.NewEndpointTextProvider(gen.TextURL, gen.Timeout)
	}
	image := generation.NewEndpointImageProvider(gen.ImageURL, gen.Timeout)

	dir, err := media.NewDir(gen.MediaDir)
	if err != nil {
		return errors.Wrap(err, errors.KindGeneration, "generation:init-pipeline", "create media directory")
	}
	state.mediaDir = dir
	state.pipeline = generation.NewPipeline(text, image, dir, state.logger, generation.Options{
		RequireText: gen.RequireText,
	})
	state.logger.InfoTag("generation", "pipeline ready, text provider=%s", gen.TextProvider)
	return nil
}

func initOrchestratorStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New()
	state.bus.AttachLogger(state.logger)
	state.dispatcher = task.NewDispatcher(state.logger)
	state.orchestrator = publish.NewOrchestrator(
		state.accounts,
		state.sessions,
		state.pipeline,
		state.gateway,
		state.mediaDir,
		state.bus,
		state.logger,
		publish.Options{},
	)
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	if state.config.Publish.CronEnabled {
		if err := startScheduler(state, g, groupCtx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		state.logger.WarnTag("scheduler", "cron disabled, publish cycles run on demand only")
	}
	return nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	logger := state.logger

	service, err := webapi.NewService(webapi.Dependencies{
		Config:       state.config,
		Logger:       logger,
		Accounts:     state.accounts,
		Sessions:     state.sessions,
		Registry:     state.registry,
		Verifier:     state.verifier,
		Client:       state.gateway,
		Orchestrator: state.orchestrator,
		Dispatcher:   state.dispatcher,
		MediaDir:     state.mediaDir,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.KindTransport, "webapi:new-service", "create webapi service")
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:         state.config,
		Logger:         logger,
		AuthMiddleware: service.AuthMiddleware(),
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httptransport.APIResponse{
			Success: false,
			Data:    gin.H{},
			Message: "not found",
			Code:    http.StatusNotFound,
		})
	})

	if err := service.Register(groupCtx, httpRouter.API, httpRouter.Secured); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:    state.config.Server.IP + ":" + strconv.Itoa(state.config.Server.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "server listening on %s", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server shut down gracefully")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func startScheduler(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	runner := scheduler.NewRunner(state.dispatcher, state.orchestrator, state.logger)
	if err := runner.Start(groupCtx); err != nil {
		return err
	}
	g.Go(func() error {
		<-groupCtx.Done()
		runner.Stop()
		return nil
	})
	return nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *logging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("bootstrap", "shutdown signal received: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("bootstrap", "shutdown timed out, forcing exit")
		return stderrors.New("shutdown timed out")
	}
	return nil
}
