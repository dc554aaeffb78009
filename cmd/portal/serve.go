package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/clientportal/portal/internal/access"
	"github.com/clientportal/portal/internal/accessrequests"
	"github.com/clientportal/portal/internal/app"
	"github.com/clientportal/portal/internal/audit"
	audithttp "github.com/clientportal/portal/internal/audit/http"
	"github.com/clientportal/portal/internal/auth"
	"github.com/clientportal/portal/internal/companies"
	"github.com/clientportal/portal/internal/dashboard"
	"github.com/clientportal/portal/internal/digitalaudits"
	jobmetrics "github.com/clientportal/portal/internal/jobs"
	"github.com/clientportal/portal/internal/observability"
	"github.com/clientportal/portal/internal/platform/cache"
	"github.com/clientportal/portal/internal/platform/db"
	"github.com/clientportal/portal/internal/projects"
	"github.com/clientportal/portal/internal/rbac"
	"github.com/clientportal/portal/internal/shared"
	"github.com/clientportal/portal/internal/store"
	"github.com/clientportal/portal/internal/tenant"
	"github.com/clientportal/portal/internal/users"
	"github.com/clientportal/portal/jobs"
)

const shutdownGrace = 10 * time.Second

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return fmt.Errorf("init jobs client: %w", err)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	recorderMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	st := store.New(pool)
	engine := access.NewEngine(st, access.WithObserver(metrics))
	graph := tenant.NewGraph(st)
	keys := shared.NewIdempotencyStore(pool)

	tokens, err := auth.NewTokenIssuer(cfg.AuthSecret, cfg.AuthIssuer, cfg.AuthTokenTTL)
	if err != nil {
		return fmt.Errorf("init token issuer: %w", err)
	}
	authService := auth.NewService(st, tokens,
		auth.WithRevoker(auth.NewRevocationList(redisClient, "portal:revoked:")),
		auth.WithRegistration(cfg.AuthAllowRegistration),
		auth.WithLogger(logger),
	)
	recorder := audit.NewRecorder(st, logger, audit.WithQueue(jobsClient), audit.WithMetrics(recorderMetrics))
	authn := auth.NewMiddleware(authService, recorder, logger)

	rbacService := rbac.NewService()
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	companyService := companies.NewService(companies.NewRepository(st), engine, graph)
	userService := users.NewService(users.NewRepository(st), engine,
		users.WithNotifier(jobsClient),
		users.WithLogger(logger),
	)
	projectService := projects.NewService(projects.NewRepository(st), engine)
	auditService := digitalaudits.NewService(digitalaudits.NewRepository(st), engine, graph)
	requestService := accessrequests.NewService(accessrequests.NewRepository(st), engine, graph,
		accessrequests.WithKeyStore(keys),
		accessrequests.WithLogger(logger),
	)
	dashboardService := dashboard.NewService(st, engine, graph)
	activityService := audit.NewService(st)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		Authenticate:   authn.Handler,
		AuthHandler:    auth.NewHandler(logger, authService),
		AccessRequests: accessrequests.NewHandler(logger, requestService),
		Companies:      companies.NewHandler(logger, companyService),
		Users:          users.NewHandler(logger, userService, rbacMiddleware),
		Projects:       projects.NewHandler(logger, projectService),
		Audits:         digitalaudits.NewHandler(logger, auditService),
		Dashboard:      dashboard.NewHandler(logger, dashboardService),
		Activity:       audithttp.NewHandler(logger, activityService, rbacService),
		Permissions:    rbac.NewPermissionsHandler(logger, rbacService),
		JobHandler:     jobs.NewHandler(inspector, logger),
	})
	server := app.NewServer(cfg, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
