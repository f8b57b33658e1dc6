package workflowsaas

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/workflow-saas/internal/audit"
	"github.com/magabrotheeeer/workflow-saas/internal/cache"
	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/http/handlers/health"
	"github.com/magabrotheeeer/workflow-saas/internal/http/middlewarectx"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/jwt"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/ratelimit"
	"github.com/magabrotheeeer/workflow-saas/internal/lib/sl"
	"github.com/magabrotheeeer/workflow-saas/internal/metrics"
	"github.com/magabrotheeeer/workflow-saas/internal/migrations"
	"github.com/magabrotheeeer/workflow-saas/internal/models"
	"github.com/magabrotheeeer/workflow-saas/internal/notify"
	"github.com/magabrotheeeer/workflow-saas/internal/paymentprovider"
	accountservice "github.com/magabrotheeeer/workflow-saas/internal/services/account"
	authservice "github.com/magabrotheeeer/workflow-saas/internal/services/auth"
	billingservice "github.com/magabrotheeeer/workflow-saas/internal/services/billing"
	entitlementservice "github.com/magabrotheeeer/workflow-saas/internal/services/entitlement"
	workflowservice "github.com/magabrotheeeer/workflow-saas/internal/services/workflow"
	"github.com/magabrotheeeer/workflow-saas/internal/storage/repository"
)

const (
	shutdownTimeout = 15 * time.Second
	throttleIdle    = 10 * time.Minute
)

// App HTTP API вместе с фоновыми задачами очистки ограничителей.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
	limiter  *ratelimit.Limiter
	throttle *middlewarectx.UserThrottle
	sweep    time.Duration
}

// New поднимает соединения, применяет миграции и собирает роутер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		logger: logger,
		db:     db,
		sweep:  cfg.SweepInterval,
	}

	deps := Deps{
		Log:     logger,
		Limits:  cfg.RateLimits,
		Metrics: metrics.New(prometheus.DefaultRegisterer),
		DB:      db,
	}

	if cfg.RedisAddress != "" {
		c, err := cache.InitServer(ctx, cfg.RedisConnection)
		if err != nil {
			if cfg.Backend == "redis" {
				a.close()
				return nil, err
			}
			logger.Warn("redis unavailable, continuing without it", sl.Err(err))
		} else {
			a.cache = c
			deps.Redis = c
		}
	}

	switch cfg.Backend {
	case "redis":
		deps.Store = ratelimit.NewRedisStore(a.cache.Db)
	default:
		a.limiter = ratelimit.New()
		deps.Store = a.limiter
	}

	var ch rabbitmq.Channel
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			a.close()
			return nil, err
		}
		a.conn = conn
		a.ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			a.close()
			return nil, err
		}
		ch = a.ch
	} else {
		logger.Warn("rabbitmq url is empty, notifications will only be logged")
	}
	publisher := notify.New(ch, logger)

	tiers := models.PlanTiers{
		StarterPriceID:    cfg.StarterPriceID,
		ProPriceID:        cfg.ProPriceID,
		EnterprisePriceID: cfg.EnterprisePriceID,
	}
	auditor := audit.NewWriter(db, logger)
	provider := paymentprovider.NewClient(cfg.StripeSecretKey, nil)

	deps.Auth = authservice.NewAuthService(logger, db, jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL), publisher, auditor)
	deps.Billing = billingservice.NewManager(logger, db, provider, auditor, billingservice.ManagerConfig{
		Tiers:     tiers,
		AppURL:    cfg.AppURL,
		TrialDays: cfg.TrialDays,
	})
	deps.Reconciler = billingservice.NewReconciler(logger, db, publisher, deps.Metrics)
	deps.Verifier = paymentprovider.NewVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance)
	deps.Entitlement = entitlementservice.New(logger, db, tiers, cfg.GracePeriod, deps.Metrics)
	deps.Account = accountservice.New(logger, db, provider, auditor)
	deps.Workflows = workflowservice.New(db, auditor)

	a.throttle = middlewarectx.NewUserThrottle(logger, cfg.UserPerMinute, cfg.UserBurst, throttleIdle, deps.Metrics)
	deps.Throttle = a.throttle

	router := chi.NewRouter()
	RegisterRoutes(router, deps)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return a, nil
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	if a.limiter != nil {
		go a.limiter.Run(ctx, a.sweep)
	}
	go a.throttle.Run(ctx, a.sweep)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}

var _ health.Pinger = (*repository.Storage)(nil)
