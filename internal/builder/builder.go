package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/api"
	formapi "github.com/intakeflow/intake-backend/internal/api/form"
	"github.com/intakeflow/intake-backend/internal/config"
	"github.com/intakeflow/intake-backend/internal/flow"
	"github.com/intakeflow/intake-backend/internal/integration/llm"
	"github.com/intakeflow/intake-backend/internal/integration/schemaregistry"
	"github.com/intakeflow/intake-backend/internal/pipeline"
	"github.com/intakeflow/intake-backend/internal/pkg/validator"
	"github.com/intakeflow/intake-backend/internal/repository"
	"github.com/intakeflow/intake-backend/internal/usecase/form"
)

func Build() (*App, error) {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := setupLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
	)

	// Session memory store is optional: without a database the service runs
	// stateless and trusts the client-supplied history.
	var db *pgxpool.Pool
	var memoryStore form.MemoryStore
	if cfg.DatabaseURL != "" {
		db, err = setupDatabase(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("setup database: %w", err)
		}

		logger.Info("Running database migrations")
		if err := repository.RunMigrations(cfg.DatabaseURL); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		memoryStore = repository.NewSessionMemoryPostgres(db)
		logger.Info("Session memory store initialized")
	} else {
		logger.Info("No DATABASE_URL set, running without session memory store")
	}

	// LLM connector (with mock support)
	var lmClient pipeline.LMClient
	if cfg.EnableMocks {
		logger.Info("Using mock LLM connector")
		lmClient = llm.NewMockConnector(logger)
	} else {
		logger.Info("Using OpenAI-compatible LLM connector")
		lmClient = llm.NewConnector(cfg.LLMConnectorCfg, logger)
	}

	// Schema registry (static fallback when no registry is deployed)
	var versions pipeline.SchemaVersionSource
	if cfg.SchemaRegistryCfg.Url != "" {
		versions = schemaregistry.NewConnector(cfg.SchemaRegistryCfg, logger)
	} else {
		versions = schemaregistry.StaticVersion(cfg.SchemaRegistryCfg.DefaultVersion)
	}

	pipelineSvc := pipeline.NewService(lmClient, versions, logger, pipeline.Config{
		PlannerLM:  cfg.LLMConnectorCfg.PlannerLM(cfg.EnableMocks),
		RendererLM: cfg.LLMConnectorCfg.RendererLM(cfg.EnableMocks),

		PlannerCacheTTL:    cfg.PipelineCfg.PlannerCacheTTL,
		RenderCacheTTL:     cfg.PipelineCfg.RenderCacheTTL,
		RenderCacheEnabled: cfg.PipelineCfg.RenderCacheEnabled,

		TokenOverageAllowance: cfg.PipelineCfg.TokenOverageAllowance,
		TriggerPosition:       cfg.PipelineCfg.TriggerPosition,
		DefaultSchemaVersion:  cfg.SchemaRegistryCfg.DefaultVersion,

		Flow: flow.Options{
			MaxBatchCalls:        cfg.PipelineCfg.MaxBatches,
			MinStepsPerBatch:     cfg.PipelineCfg.MinStepsPerBatch,
			MaxStepsPerBatch:     cfg.PipelineCfg.MaxStepsPerBatch,
			DefaultStepsPerBatch: cfg.PipelineCfg.DefaultStepsPerBatch,
			TokenBudgetTotal:     cfg.PipelineCfg.TokenBudgetTotal,
		},
	})
	logger.Info("Step pipeline initialized")

	formUC := form.NewUsecase(pipelineSvc, memoryStore)
	logger.Info("Use cases initialized")

	formHandler := formapi.NewHandler(formUC, versions, validator.NewValidator())
	logger.Info("API handlers initialized")

	router := api.SetupRouter(formHandler, logger)
	logger.Info("HTTP router configured")

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		db:     db,
		logger: logger,
	}, nil
}
