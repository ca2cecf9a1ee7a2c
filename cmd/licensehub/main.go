package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/licensehub/licensehub/cmd/licensehub/cli"
	"github.com/licensehub/licensehub/internal/app"
	"github.com/licensehub/licensehub/internal/audit"
	"github.com/licensehub/licensehub/internal/auth"
	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/observability"
	"github.com/licensehub/licensehub/internal/platform/cache"
	"github.com/licensehub/licensehub/internal/platform/db"
	"github.com/licensehub/licensehub/internal/staff"
	"github.com/licensehub/licensehub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := cli.RunJobs(ctx, os.Stdout, redisOpts(cfg), os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// storage groups the backend-specific collaborators.
type storage struct {
	registry licensing.Registry
	trail    licensing.AuditTrail
	staff    staff.Repository
	denylist auth.Denylist
	close    func()
}

func openStorage(ctx context.Context, cfg *app.Config, logger *slog.Logger) (storage, error) {
	if cfg.StorageBackend == app.StorageMemory {
		logger.Warn("using in-memory storage, data is lost on restart")
		return storage{
			registry: licensing.NewMemoryRegistry(),
			trail:    audit.NewMemoryLog(),
			staff:    staff.NewMemoryRepository(),
			denylist: auth.NewMemoryDenylist(),
			close:    func() {},
		}, nil
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns, cfg.StorageTimeout)
	if err != nil {
		return storage{}, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return storage{}, fmt.Errorf("migrate: %w", err)
		}
	}
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		pool.Close()
		return storage{}, fmt.Errorf("connect redis: %w", err)
	}
	return storage{
		registry: licensing.NewPGRegistry(pool),
		trail:    audit.NewLogger(pool),
		staff:    staff.NewRepository(pool),
		denylist: auth.NewRedisDenylist(redisClient, ""),
		close:    closer(pool, redisClient, logger),
	}, nil
}

func closer(pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger) func() {
	return func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
		pool.Close()
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	metrics := observability.NewMetrics()

	staffService := staff.NewService(store.staff, logger, staff.ServiceConfig{
		InitialPassword: cfg.StaffInitialPassword,
		Location:        cfg.Location(),
	})
	if cfg.BootstrapAdminEmail != "" {
		admin, created, err := staffService.Bootstrap(ctx, staff.CreateInput{
			StaffNo: "ADMIN-001",
			Name:    cfg.BootstrapAdminName,
			Email:   cfg.BootstrapAdminEmail,
		}, cfg.BootstrapAdminPass)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			logger.Info("bootstrap admin created", slog.String("email", admin.Email))
		}
	}

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL, nil)
	if err != nil {
		return err
	}
	authService := auth.NewService(staffService, tokens, store.denylist, logger)

	licensingService := licensing.NewService(
		store.registry,
		store.trail,
		staffService,
		licensing.NewMetrics(metrics.Registerer()),
		logger,
		licensing.ServiceConfig{Location: cfg.Location(), StorageTimeout: cfg.StorageTimeout},
	)

	var jobHandler *jobs.Handler
	if cfg.StorageBackend == app.StoragePostgres {
		jobClient := jobs.NewClient(redisOpts(cfg))
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts(cfg))
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, jobClient, cfg.ExpiryReminderDays, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    auth.NewHandler(logger, authService),
		CompanyHandler: licensing.NewHandler(logger, licensingService),
		StaffHandler:   staff.NewHandler(logger, staffService),
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("storage", cfg.StorageBackend),
			slog.String("timezone", cfg.LicenseTimezone),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func redisOpts(cfg *app.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
