package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/handlers"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/models"
	"github.com/ternarybob/lectern/internal/services/chat"
	"github.com/ternarybob/lectern/internal/services/chunker"
	"github.com/ternarybob/lectern/internal/services/events"
	"github.com/ternarybob/lectern/internal/services/index"
	"github.com/ternarybob/lectern/internal/services/ingestion"
	"github.com/ternarybob/lectern/internal/services/lectures"
	"github.com/ternarybob/lectern/internal/services/llm"
	"github.com/ternarybob/lectern/internal/services/retrieval"
	"github.com/ternarybob/lectern/internal/services/scheduler"
	"github.com/ternarybob/lectern/internal/services/summary"
	"github.com/ternarybob/lectern/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Capabilities
	Embedder  interfaces.Embedder
	Generator interfaces.Generator

	// Core services
	Index            *index.Index
	LectureService   *lectures.Service
	IngestionService *ingestion.Service
	RetrievalEngine  *retrieval.Engine
	ChatService      *chat.Service
	SummaryService   *summary.Service

	// Event-driven services
	EventService     interfaces.EventService
	SchedulerService *scheduler.Service

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	LectureHandler *handlers.LectureHandler
	ChatHandler    *handlers.ChatHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies, building the
// embedder and generator from the configured providers
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx := context.Background()

	embedder, err := llm.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	generator, err := llm.NewGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return NewWithCapabilities(cfg, logger, embedder, generator)
}

// NewWithCapabilities initializes the application around the given embedder and generator
func NewWithCapabilities(cfg *common.Config, logger arbor.ILogger, embedder interfaces.Embedder, generator interfaces.Generator) (*App, error) {
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Embedder:  embedder,
		Generator: generator,
	}

	ctx := context.Background()

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.recoverState(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.initHandlers()

	if err := app.initScheduler(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	logger.Info().
		Str("chunk_backend", cfg.Storage.ChunkBackend).
		Int("chunk_budget", cfg.Chunking.Budget).
		Int("chunk_overlap", cfg.Chunking.Overlap).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger, optionally pgvector for chunks)
func (a *App) initDatabase(ctx context.Context) error {
	storageManager, err := storage.NewStorageManager(ctx, a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = storageManager

	a.Logger.Debug().
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage initialized")
	return nil
}

// initServices builds the pipeline services around the capabilities
func (a *App) initServices() error {
	cfg := a.Config
	embedder := a.Embedder
	generator := a.Generator

	chunks, err := chunker.New(cfg.Chunking.Budget, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	a.Index = index.NewIndex(embedder, a.StorageManager.ChunkStorage(), cfg.Retrieval.EmbedWorkers, a.Logger)

	a.LectureService = lectures.NewService(a.StorageManager.LectureStorage(), a.Logger)

	a.IngestionService = ingestion.NewService(
		a.StorageManager.LectureStorage(),
		a.StorageManager.ChatHistoryStorage(),
		chunks,
		a.Index,
		a.EventService,
		common.ParseDurationOr(cfg.Ingestion.MaxDuration, 0),
		a.Logger,
	)

	a.RetrievalEngine = retrieval.NewEngine(
		a.StorageManager.LectureStorage(),
		embedder,
		a.Index,
		retrieval.Options{
			DedupOverlap: cfg.Retrieval.DedupOverlap,
			MinScore:     cfg.Retrieval.MinScore,
			OverFetch:    cfg.Retrieval.OverFetch,
			MaxTopK:      cfg.Retrieval.MaxTopK,
			Timeout:      common.ParseDurationOr(cfg.Retrieval.QueryTimeout, 30*time.Second),
		},
		a.Logger,
	)

	a.ChatService = chat.NewService(
		a.StorageManager.LectureStorage(),
		a.StorageManager.ChatHistoryStorage(),
		a.RetrievalEngine,
		generator,
		a.EventService,
		a.IngestionService,
		chat.Options{
			TopK:        cfg.Chat.TopK,
			Temperature: cfg.Chat.Temperature,
			Timeout:     common.ParseDurationOr(cfg.Chat.Timeout, 2*time.Minute),
		},
		a.Logger,
	)

	a.SummaryService = summary.NewService(
		a.StorageManager.LectureStorage(),
		a.Index,
		generator,
		summary.Options{
			ContextBudget: cfg.Summary.ContextBudget,
			Branching:     cfg.Summary.Branching,
			Temperature:   cfg.Chat.Temperature,
			Timeout:       common.ParseDurationOr(cfg.Summary.Timeout, 10*time.Minute),
		},
		a.Logger,
	)

	return nil
}

// recoverState fails ingestions a previous process left behind and loads the
// chunk sets of completed lectures into the in-memory index
func (a *App) recoverState(ctx context.Context) error {
	failed, err := a.IngestionService.RecoverInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted ingestions: %w", err)
	}

	completed, err := a.StorageManager.LectureStorage().ListLecturesByStatus(ctx, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to list completed lectures: %w", err)
	}
	ids := make([]string, 0, len(completed))
	for _, l := range completed {
		ids = append(ids, l.ID)
	}
	if err := a.Index.Load(ctx, ids); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	a.Logger.Info().
		Int("interrupted", failed).
		Int("loaded_lectures", len(ids)).
		Msg("Index recovered")
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.LectureHandler = handlers.NewLectureHandler(a.LectureService, a.IngestionService, a.Logger)
	a.ChatHandler = handlers.NewChatHandler(
		a.RetrievalEngine,
		a.ChatService,
		a.SummaryService,
		a.Config.Retrieval.DefaultTopK,
		a.Logger,
	)
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
}

func (a *App) initScheduler() error {
	a.SchedulerService = scheduler.NewService(a.Logger)
	if err := a.SchedulerService.RegisterStaleSweep(&a.Config.Ingestion, a.IngestionService); err != nil {
		return err
	}
	return a.SchedulerService.Start()
}

// Close shuts down all services in reverse dependency order
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	// In-flight ingestions are cancelled and recorded as failed before storage closes
	if a.IngestionService != nil {
		a.IngestionService.Shutdown()
		a.Logger.Info().Msg("Ingestion service stopped")
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
