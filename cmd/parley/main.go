package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/parleyhq/parley/pkg/api"
	"github.com/parleyhq/parley/pkg/async"
	"github.com/parleyhq/parley/pkg/auth"
	"github.com/parleyhq/parley/pkg/config"
	"github.com/parleyhq/parley/pkg/middleware"
	"github.com/parleyhq/parley/pkg/observability"
	"github.com/parleyhq/parley/pkg/storage/postgres"
	"github.com/parleyhq/parley/pkg/tenant"
)

func main() {
	var (
		seed         = flag.Bool("seed", false, "Ensure the default tenant and super admin exist before serving")
		seedTenant   = flag.String("seed-tenant", "Default", "Tenant name used with -seed")
		seedDomain   = flag.String("seed-domain", "", "Tenant domain used with -seed")
		seedEmail    = flag.String("seed-email", "admin@localhost", "Super admin email used with -seed")
		seedPassword = flag.String("seed-password", "", "Super admin password used with -seed")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger, seedOptions{
		enabled:  *seed,
		tenant:   *seedTenant,
		domain:   *seedDomain,
		email:    *seedEmail,
		password: *seedPassword,
	}); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

type seedOptions struct {
	enabled  bool
	tenant   string
	domain   string
	email    string
	password string
}

func run(cfg *config.Config, logger *observability.Logger, seed seedOptions) error {
	store, err := postgres.NewStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer store.Close()
	logger.Info("Connected to PostgreSQL")

	redisClient, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	authSvc := auth.NewService(store.Users, store.Tokens,
		auth.WithAccessTTL(cfg.Auth.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
	)
	tenantSvc := tenant.NewService(store.Tenants)
	resolver := tenant.NewResolver(store.Tenants, authSvc)
	limiter := middleware.NewAttemptLimiter(redisClient, "throttle")

	if seed.enabled {
		if err := ensureSeedData(context.Background(), logger, store, tenantSvc, seed); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	server := api.NewServer(api.ServerConfig{
		Storage:     store.Resources,
		Auth:        authSvc,
		Tenants:     tenantSvc,
		Users:       store.Users,
		Resolver:    resolver,
		TenantStore: store.Tenants,
		Limiter:     limiter,
		Throttle: &middleware.ThrottleConfig{
			MaxAttempts: cfg.Auth.ThrottleMaxAttempts,
			Window:      cfg.Auth.ThrottleWindow,
		},
		Logger:         logger,
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Debug:          cfg.Server.Debug,
	})

	var handler http.Handler = server
	if metrics != nil {
		handler = metrics.InstrumentHandler("/api/v1", server)
	}

	apiSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(store.GetDB(), redisClient))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      healthMux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, apiSrv, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthSrv.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return redisClient.Close()
	})
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		return store.Close()
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	taskLogger := logger.Named("tasks")
	async.Every(sweepCtx, taskLogger, time.Hour, time.Minute, "token sweep", func(ctx context.Context) error {
		n, err := store.Tokens.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			taskLogger.Infof("Swept %d expired tokens", n)
		}
		return nil
	})

	if metrics != nil {
		async.Every(sweepCtx, taskLogger, 15*time.Second, 5*time.Second, "db pool stats", func(context.Context) error {
			metrics.ObserveDBStats(store.GetDB().Stats())
			return nil
		})
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("API server listening on %s", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthSrv.Addr)
		if err := healthSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	// A listener failure should take the process down rather than wait for
	// a signal that may never come.
	serveErr := make(chan error, 1)
	go func() { serveErr <- g.Wait() }()

	waitErr := make(chan error, 1)
	go func() { waitErr <- shutdown.WaitForShutdown() }()

	select {
	case err := <-serveErr:
		return err
	case err := <-waitErr:
		if err != nil {
			return err
		}
		return <-serveErr
	}
}

// ensureSeedData creates the default tenant and a super admin when they do
// not exist yet. Used on first boot of a fresh installation.
func ensureSeedData(ctx context.Context, logger *observability.Logger, store *postgres.Storage, tenants *tenant.Service, seed seedOptions) error {
	if seed.password == "" {
		return errors.New("-seed requires -seed-password")
	}

	user, err := store.Users.FindByEmail(ctx, seed.email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		hash, err := auth.HashPassword(seed.password)
		if err != nil {
			return err
		}
		now := time.Now()
		user = &auth.AdminUser{
			ID:           uuid.NewString(),
			Email:        seed.email,
			PasswordHash: hash,
			FullName:     "Super Admin",
			Permissions:  []string{"*"},
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Users.Create(ctx, user); err != nil {
			return err
		}
		logger.Infof("Seeded super admin %s", seed.email)
	case err != nil:
		return err
	}

	t, err := findSeedTenant(ctx, store, user.ID, seed)
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		t, err = tenants.Register(ctx, seed.tenant, seed.domain, "", nil)
		if err != nil {
			return err
		}
		logger.Infof("Seeded tenant %q with app key %s", t.Name, t.AppKey)
	case err != nil:
		return err
	}

	member, err := store.Users.MemberOfTenant(ctx, user.ID, t.ID)
	if err != nil {
		return err
	}
	if !member {
		return store.Users.AttachTenant(ctx, user.ID, t.ID)
	}
	return nil
}

// findSeedTenant locates the tenant the super admin should belong to, by
// domain when one was given and otherwise by the admin's first membership.
func findSeedTenant(ctx context.Context, store *postgres.Storage, userID string, seed seedOptions) (*tenant.Tenant, error) {
	if seed.domain != "" {
		return store.Tenants.FindByDomain(ctx, seed.domain)
	}
	return store.Tenants.FindFirstForUser(ctx, userID)
}
