// cmd/admissions-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admissions-portal/internal/api"
	"admissions-portal/internal/common/aws"
	"admissions-portal/internal/common/camunda"
	"admissions-portal/internal/common/config"
	"admissions-portal/internal/common/database"
	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/common/observability"
	"admissions-portal/internal/form/drafts"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/schema"
	"admissions-portal/internal/form/session"
	"admissions-portal/internal/form/steps"
	"admissions-portal/internal/form/store"
	"admissions-portal/internal/form/submission"

	savedraft "admissions-portal/internal/services/applications/save-draft"
	sendconfirmation "admissions-portal/internal/services/applications/send-confirmation"
	submitapplication "admissions-portal/internal/services/applications/submit-application"
	searchprograms "admissions-portal/internal/services/catalog/search-programs"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

// backendServices is the in-process admissions backend.
type backendServices struct {
	drafts       *savedraft.Service
	applications *submitapplication.Service
	catalog      *searchprograms.Service
	checks       map[string]api.Check
	closers      []func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console", "")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting admissions server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("backendMode", cfg.Form.BackendMode),
		zap.String("mirror", cfg.Form.MirrorBackend),
	)

	obs, err := observability.New(observability.Options{ServiceName: cfg.App.Name})
	if err != nil {
		zapLog.Fatal("observability init failed", zap.Error(err))
	}

	ctx := context.Background()
	validator := steps.NewValidator(steps.DefaultRegistry(), schema.ApplicantSchema())
	checks := map[string]api.Check{}
	var closers []func() error

	// --- Redis (snapshot mirror and submission quota) ---
	var rdb *database.RedisClient
	if cfg.Form.MirrorBackend == config.MirrorRedis || cfg.Submission.DailyQuota > 0 {
		rdb = database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return rdb.Ping(ctx)
		}, 10, 1*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		checks["redis"] = rdb.Ping
		closers = append(closers, rdb.Close)
		zapLog.Info("Redis connected successfully")
	}

	// --- Backend ---
	var (
		backend  gateway.Backend
		services *backendServices
	)
	switch cfg.Form.BackendMode {
	case config.BackendHTTP:
		backend = gateway.NewHTTPGateway(cfg.Form.BackendURL, config.GetDuration(cfg.Form.BackendTimeout))
		zapLog.Info("Using remote admissions backend", zap.String("url", cfg.Form.BackendURL))
	default:
		services = buildBackend(ctx, cfg, rdb, validator, zapLog, log)
		backend = gateway.NewLocalGateway(services.drafts, services.applications)
		for name, check := range services.checks {
			checks[name] = check
		}
		closers = append(closers, services.closers...)
	}

	// --- Wizard sessions ---
	mirror := buildMirror(cfg, rdb, zapLog)
	manager := session.NewManager(session.Config{
		StorageKey: cfg.Form.StorageKey,
		Drafts: drafts.Config{
			Debounce:    config.GetDuration(cfg.Form.DraftDebounce),
			AckDuration: config.GetDuration(cfg.Form.DraftAckDuration),
			MaxRetries:  cfg.Form.DraftMaxRetries,
			SaveTimeout: config.GetDuration(cfg.Form.BackendTimeout),
		},
		Submission: submission.Config{
			RedirectDelay:   config.GetDuration(cfg.Form.RedirectDelay),
			ConfirmationURL: cfg.Form.ConfirmationURL,
			Timeout:         config.GetDuration(cfg.Form.BackendTimeout),
		},
	}, session.Dependencies{
		Validator:     validator,
		Mirror:        mirror,
		Backend:       backend,
		Observability: obs,
		Logger:        log,
		OnRedirect: func(sessionID, url string) {
			zapLog.Info("Confirmation redirect", zap.String("sessionId", sessionID), zap.String("url", url))
		},
	})

	deps := api.Dependencies{
		Sessions:       manager,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	}
	if services != nil {
		deps.Drafts = services.drafts
		deps.Applications = services.applications
		if services.catalog != nil {
			deps.Catalog = services.catalog
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewServer(deps).Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Health & Metrics Server ---
	healthSrv := &http.Server{
		Addr:    cfg.Server.HealthAddress,
		Handler: api.HealthRouter(checks),
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Server.HealthAddress))
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Idle session eviction ---
	idle := config.GetDuration(cfg.Form.SessionIdle)
	stopEviction := make(chan struct{})
	go func() {
		ticker := time.NewTicker(evictionInterval(idle))
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := manager.EvictIdle(idle); n > 0 {
					zapLog.Info("Evicted idle sessions", zap.Int("count", n), zap.Int("remaining", manager.Len()))
				}
			case <-stopEviction:
				return
			}
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping API server", zap.Error(err))
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	close(stopEviction)
	manager.Close()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zapLog.Error("Error closing dependency", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down observability", zap.Error(err))
	}

	zapLog.Info("Admissions server stopped gracefully")
}

func evictionInterval(idle time.Duration) time.Duration {
	interval := idle / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

func buildMirror(cfg *config.Config, rdb *database.RedisClient, zapLog *zap.Logger) store.Mirror {
	switch cfg.Form.MirrorBackend {
	case config.MirrorRedis:
		return store.NewRedisMirror(rdb.Client, config.GetDuration(cfg.Form.SnapshotTTL))
	case config.MirrorFile:
		m, err := store.NewFileMirror(cfg.Form.MirrorDir)
		if err != nil {
			zapLog.Fatal("snapshot directory unusable", zap.String("dir", cfg.Form.MirrorDir), zap.Error(err))
		}
		return m
	default:
		return store.NewMemoryMirror()
	}
}

func buildBackend(
	ctx context.Context,
	cfg *config.Config,
	rdb *database.RedisClient,
	validator *steps.Validator,
	zapLog *zap.Logger,
	log logger.Logger,
) *backendServices {
	out := &backendServices{checks: map[string]api.Check{}}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err := retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("postgres schema setup failed", zap.Error(err))
	}
	out.checks["postgres"] = pg.Ping
	out.closers = append(out.closers, pg.Close)
	zapLog.Info("PostgreSQL connected successfully")

	// --- Program catalog (optional) ---
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		catalogCfg := searchprograms.LoadConfig()
		catalogCfg.Index = cfg.Database.Elasticsearch.ProgramIndex
		out.catalog = searchprograms.NewService(catalogCfg, es.Client, log)
		out.checks["elasticsearch"] = es.Ping
	}

	// --- Notifications ---
	var notifier submitapplication.Notifier
	if cfg.Submission.SendConfirmation {
		var (
			sesClient sendconfirmation.SESService
			snsClient sendconfirmation.SNSService
		)
		if cfg.Integrations.AWS.SES.Enabled || cfg.Integrations.AWS.SNS.Enabled {
			awsCfg, err := aws.LoadConfig(ctx, cfg.Integrations.AWS.Region)
			if err != nil {
				zapLog.Fatal("aws config failed", zap.Error(err))
			}
			if cfg.Integrations.AWS.SES.Enabled {
				sesClient = aws.NewSESClient(awsCfg)
			}
			if cfg.Integrations.AWS.SNS.Enabled {
				snsClient = aws.NewSNSClient(awsCfg)
			}
		}
		notifier = sendconfirmation.NewService(&sendconfirmation.Config{
			EmailEnabled: cfg.Notifications.Email.Enabled,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
			Subject:      cfg.Notifications.Email.Subject,
			SMSSenderID:  cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
			Timeout:      15 * time.Second,
		}, sesClient, snsClient, log)
	}

	// --- Camunda (optional) ---
	var process submitapplication.ProcessStarter
	if cfg.Camunda.Enabled {
		var zb *camunda.Client
		err := retryWithBackoff(func() error {
			var err error
			zb, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		process = zb
		out.checks["camunda"] = zb.HealthCheck
		out.closers = append(out.closers, zb.Close)
		zapLog.Info("Zeebe client connected successfully")
	}

	var redisClient *redis.Client
	if rdb != nil {
		redisClient = rdb.Client
	}

	deps := submitapplication.ServiceDependencies{
		DB:        pg.DB,
		Redis:     redisClient,
		Validator: validator,
		Process:   process,
		Notifier:  notifier,
		Logger:    log,
	}
	if out.catalog != nil {
		deps.Catalog = out.catalog
	}
	out.applications = submitapplication.NewService(deps, &submitapplication.Config{
		DailyQuota:       cfg.Submission.DailyQuota,
		ProcessID:        cfg.Submission.ProcessID,
		StartProcess:     cfg.Submission.StartProcess && process != nil,
		SendConfirmation: cfg.Submission.SendConfirmation,
		Timeout:          30 * time.Second,
	})
	out.drafts = savedraft.NewService(savedraft.LoadConfig(), pg.DB, log)
	return out
}
