package schemaregistry

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/config"
	"github.com/intakeflow/intake-backend/internal/integration/common"
	pkghttp "github.com/intakeflow/intake-backend/pkg/http"
)

// Connector fetches the UI contract schema version from the registry
// service. The version changes rarely, so lookups are cached and any
// failure falls back to the configured default rather than failing a form
// request over a metadata fetch.
type Connector struct {
	config    config.SchemaRegistryConfig
	connector *pkghttp.Connector
	logger    *zap.Logger

	mu        sync.RWMutex
	cached    string
	fetchedAt time.Time
}

func NewConnector(cfg config.SchemaRegistryConfig, logger *zap.Logger) *Connector {
	return &Connector{
		config:    cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

type versionResponse struct {
	Version string `json:"version"`
}

// ContractVersion returns the current schema version string. Registry
// errors degrade to the configured default.
func (c *Connector) ContractVersion(ctx context.Context) string {
	if v := c.cachedVersion(); v != "" {
		return v
	}
	if strings.TrimSpace(c.config.Url) == "" {
		return c.config.DefaultVersion
	}

	var resp versionResponse
	err := retry.Do(
		func() error {
			return c.connector.DoRequest(ctx, http.MethodGet, c.config.VersionEndpoint, nil, &resp)
		},
		append(c.config.Retry.ToRetryOptions(), retry.Context(ctx))...,
	)
	if err != nil {
		ctxzap.Warn(ctx, "schema registry fetch failed, using default version",
			zap.String("default", c.config.DefaultVersion),
			zap.Error(err),
		)
		return c.config.DefaultVersion
	}

	version := strings.TrimSpace(resp.Version)
	if version == "" {
		return c.config.DefaultVersion
	}

	c.mu.Lock()
	c.cached = version
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return version
}

func (c *Connector) cachedVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cached == "" {
		return ""
	}
	ttl := c.config.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if time.Since(c.fetchedAt) > ttl {
		return ""
	}
	return c.cached
}

// StaticVersion is a fixed version source for mocks and tests.
type StaticVersion string

func (v StaticVersion) ContractVersion(context.Context) string { return string(v) }
