package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/deepaktammali/litellm/internal/auth"
	"github.com/deepaktammali/litellm/internal/cache"
	"github.com/deepaktammali/litellm/internal/config"
	"github.com/deepaktammali/litellm/internal/observability"
	customersvc "github.com/deepaktammali/litellm/internal/services/customer"
	spendsvc "github.com/deepaktammali/litellm/internal/services/spend"
	"github.com/deepaktammali/litellm/internal/store"
)

// Container aggregates runtime dependencies for handlers and services.
type Container struct {
	Config            *config.Config
	DBPool            *pgxpool.Pool
	Redis             *redis.Client
	Auth              *auth.Service
	Customers         *customersvc.Service
	Spend             *spendsvc.Service
	Observability     *observability.Provider
	ReportingLocation *time.Location
}

// NewContainer builds a dependency container from the provided primitives.
// The Redis client may be nil; customer caching is then disabled.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("db pool is required")
	}

	locName := strings.TrimSpace(cfg.Reporting.Timezone)
	if locName == "" {
		locName = "UTC"
	}
	reportingLoc, err := time.LoadLocation(locName)
	if err != nil {
		return nil, fmt.Errorf("load reporting timezone: %w", err)
	}

	pg := store.NewPostgres(pool)

	authSvc, err := auth.NewService(cfg.Auth, pg)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	customerCache := cache.NewCustomerCache(redisClient, cfg.Cache.CustomerTTL)

	obsProvider, err := observability.Setup(ctx, cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}

	return &Container{
		Config:            cfg,
		DBPool:            pool,
		Redis:             redisClient,
		Auth:              authSvc,
		Customers:         customersvc.NewService(pg, customerCache, obsProvider),
		Spend:             spendsvc.NewService(pg, pg, reportingLoc),
		Observability:     obsProvider,
		ReportingLocation: reportingLoc,
	}, nil
}

// ReportingLoc returns the configured reporting timezone location (defaults to UTC).
func (c *Container) ReportingLoc() *time.Location {
	if c != nil && c.ReportingLocation != nil {
		return c.ReportingLocation
	}
	return time.UTC
}
