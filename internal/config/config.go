package config

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/intakeflow/intake-backend/internal/entity"
	pkgRetry "github.com/intakeflow/intake-backend/internal/pkg/retry"
)

// Config holds the application configuration
type Config struct {
	// Server configuration
	ServerAddr string `env:"SERVER_ADDR,notEmpty"`

	// Database configuration (session memory store; optional)
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConns          int           `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns          int           `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// External service configurations
	LLMConnectorCfg   LLMConnectorConfig   `envPrefix:"LLM_"`
	SchemaRegistryCfg SchemaRegistryConfig `envPrefix:"SCHEMA_REGISTRY_"`

	// Pipeline configuration
	PipelineCfg PipelineConfig `envPrefix:"PIPELINE_"`

	// Logging configuration
	LogLevel string `env:"LOG_LEVEL,notEmpty"`

	// Mock configuration
	EnableMocks bool `env:"ENABLE_MOCKS" envDefault:"false"`

	// Environment (set from flag, not from env var)
	Environment string
}

// LLMConnectorConfig configures the OpenAI-compatible provider plus the two
// independently tunable programs.
type LLMConnectorConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`

	PlannerModel       string        `env:"PLANNER_MODEL" envDefault:"gpt-4o-mini"`
	PlannerTemperature float32       `env:"PLANNER_TEMPERATURE" envDefault:"0.7"`
	PlannerMaxTokens   int           `env:"PLANNER_MAX_TOKENS" envDefault:"2000"`
	PlannerTimeout     time.Duration `env:"PLANNER_TIMEOUT" envDefault:"20s"`

	RendererModel       string        `env:"RENDERER_MODEL" envDefault:"gpt-4o-mini"`
	RendererTemperature float32       `env:"RENDERER_TEMPERATURE" envDefault:"0.7"`
	RendererMaxTokens   int           `env:"RENDERER_MAX_TOKENS" envDefault:"2000"`
	RendererTimeout     time.Duration `env:"RENDERER_TIMEOUT" envDefault:"20s"`
}

// PlannerLM resolves the planner program config. Never fails: a missing key
// or model comes back as Configured=false with the reason attached, checked
// once at orchestrator entry.
func (c LLMConnectorConfig) PlannerLM(mocksEnabled bool) entity.LMConfig {
	return resolveLM(c.PlannerModel, c.PlannerTemperature, c.PlannerMaxTokens, c.PlannerTimeout, c.APIKey, mocksEnabled)
}

// RendererLM resolves the renderer program config.
func (c LLMConnectorConfig) RendererLM(mocksEnabled bool) entity.LMConfig {
	return resolveLM(c.RendererModel, c.RendererTemperature, c.RendererMaxTokens, c.RendererTimeout, c.APIKey, mocksEnabled)
}

func resolveLM(model string, temperature float32, maxTokens int, timeout time.Duration, apiKey string, mocksEnabled bool) entity.LMConfig {
	cfg := entity.LMConfig{
		Model:       strings.TrimSpace(model),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
		Configured:  true,
	}
	if cfg.Model == "" {
		cfg.Configured = false
		cfg.Reason = "model not set"
		return cfg
	}
	if strings.TrimSpace(apiKey) == "" && !mocksEnabled {
		cfg.Configured = false
		cfg.Reason = "LLM_API_KEY not set"
	}
	return cfg
}

// SchemaRegistryConfig configures the UI contract version lookup.
type SchemaRegistryConfig struct {
	HTTPClientConfig
	VersionEndpoint string               `env:"VERSION_ENDPOINT" envDefault:"/schema/version"`
	DefaultVersion  string               `env:"DEFAULT_VERSION" envDefault:"0"`
	CacheTTL        time.Duration        `env:"CACHE_TTL" envDefault:"5m"`
	Retry           pkgRetry.RetryConfig `envPrefix:"RETRY_"`
}

// PipelineConfig carries the orchestrator knobs.
type PipelineConfig struct {
	PlannerCacheTTL    time.Duration `env:"PLANNER_CACHE_TTL" envDefault:"15m"`
	RenderCacheTTL     time.Duration `env:"RENDER_CACHE_TTL" envDefault:"10m"`
	RenderCacheEnabled bool          `env:"RENDER_CACHE" envDefault:"true"`

	TokenOverageAllowance int `env:"TOKEN_OVERAGE_ALLOWANCE" envDefault:"250"`
	TriggerPosition       int `env:"TRIGGER_POSITION" envDefault:"3"`

	MaxBatches           int `env:"MAX_BATCHES" envDefault:"3"`
	MinStepsPerBatch     int `env:"MIN_STEPS_PER_BATCH" envDefault:"2"`
	MaxStepsPerBatch     int `env:"MAX_STEPS_PER_BATCH" envDefault:"4"`
	DefaultStepsPerBatch int `env:"DEFAULT_STEPS_PER_BATCH" envDefault:"8"`
	TokenBudgetTotal     int `env:"TOKEN_BUDGET_TOTAL" envDefault:"3000"`
}

type HTTPClientConfig struct {
	RequestTimeout        time.Duration `env:"TIMEOUT" envDefault:"10s"`
	ConnTimeout           time.Duration `env:"CONN_TIMEOUT" envDefault:"5s"`
	KeepAlive             time.Duration `env:"KEEP_ALIVE" envDefault:"30s"`
	IdleConnTimeout       time.Duration `env:"IDLE_CONN_TIMEOUT" envDefault:"90s"`
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT" envDefault:"10s"`
	Token                 string        `env:"TOKEN"`
	Url                   string        `env:"SERVICE_URL"`
}

func LoadConfig() (*Config, error) {
	envFlag := flag.String("env", "local", "Environment to run (local, prod, or custom)")
	flag.Parse()

	envFile := getEnvFile(*envFlag)
	// Try to load env file, but don't fail if it's missing.
	// In containerized/prod environments variables are usually set externally.
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("Warning: could not load %s file (this is ok if env vars are set externally): %v\n", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.Environment = *envFlag

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *Config) error {
	var errors []string

	if cfg.DBMaxConns < 1 || cfg.DBMaxConns > 200 {
		errors = append(errors, fmt.Sprintf("DB_MAX_CONNS must be between 1 and 200, got %d", cfg.DBMaxConns))
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errors = append(errors, fmt.Sprintf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS(%d), got %d", cfg.DBMaxConns, cfg.DBMinConns))
	}

	p := cfg.PipelineCfg
	if p.MaxBatches < 1 || p.MaxBatches > 10 {
		errors = append(errors, fmt.Sprintf("PIPELINE_MAX_BATCHES must be between 1 and 10, got %d", p.MaxBatches))
	}
	if p.MinStepsPerBatch < 1 || p.MinStepsPerBatch > p.MaxStepsPerBatch {
		errors = append(errors, fmt.Sprintf("PIPELINE_MIN_STEPS_PER_BATCH must be between 1 and PIPELINE_MAX_STEPS_PER_BATCH(%d), got %d", p.MaxStepsPerBatch, p.MinStepsPerBatch))
	}
	if p.TokenOverageAllowance < 0 {
		errors = append(errors, fmt.Sprintf("PIPELINE_TOKEN_OVERAGE_ALLOWANCE must be non-negative, got %d", p.TokenOverageAllowance))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func getEnvFile(environment string) string {
	switch environment {
	case "prod", "production":
		return ".env.prod"
	case "local", "dev", "development":
		return ".env.local"
	default:
		return fmt.Sprintf(".env.%s", environment)
	}
}
