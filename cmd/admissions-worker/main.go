// cmd/admissions-worker/main.go
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

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"admissions-portal/internal/api"
	"admissions-portal/internal/common/aws"
	"admissions-portal/internal/common/camunda"
	"admissions-portal/internal/common/config"
	"admissions-portal/internal/common/database"
	"admissions-portal/internal/common/logger"
	sendconfirmation "admissions-portal/internal/services/applications/send-confirmation"
	searchprograms "admissions-portal/internal/services/catalog/search-programs"

	sac "admissions-portal/internal/workers/admission/send-application-confirmation"
	uas "admissions-portal/internal/workers/admission/update-application-status"
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

func startWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log *zap.Logger) worker.JobWorker {
	w := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Name(taskType).
		Open()

	log.Info("Worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeoutMs", wcfg.Timeout),
	)
	return w
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console", "")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting admissions worker...", zap.String("environment", cfg.App.Environment))

	ctx := context.Background()
	checks := map[string]api.Check{}

	// --- Init Zeebe Client with retry ---
	var zb *camunda.Client
	err = retryWithBackoff(func() error {
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
	checks["camunda"] = zb.HealthCheck
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
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
	defer pg.Close()
	checks["postgres"] = pg.Ping
	zapLog.Info("PostgreSQL connected successfully")

	// --- Program titles (optional) ---
	var catalog sac.ProgramCatalog
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch, nil)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		catalogCfg := searchprograms.LoadConfig()
		catalogCfg.Index = cfg.Database.Elasticsearch.ProgramIndex
		catalog = searchprograms.NewService(catalogCfg, es.Client, log)
		checks["elasticsearch"] = es.Ping
	}

	// --- Notifications ---
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
	notifier := sendconfirmation.NewService(&sendconfirmation.Config{
		EmailEnabled: cfg.Notifications.Email.Enabled && sesClient != nil,
		SMSEnabled:   cfg.Notifications.SMS.Enabled && snsClient != nil,
		FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
		Subject:      cfg.Notifications.Email.Subject,
		SMSSenderID:  cfg.Integrations.AWS.SNS.DefaultSMSSenderID,
		Timeout:      15 * time.Second,
	}, sesClient, snsClient, log)

	// --- Register workers ---
	var workers []worker.JobWorker

	if wcfg := config.GetWorkerConfig(cfg, sac.TaskType); wcfg.Enabled {
		handler := sac.NewHandler(
			&sac.Config{Timeout: config.GetDuration(wcfg.Timeout)},
			pg.DB, notifier, catalog, log,
		)
		workers = append(workers, startWorker(zb.Zeebe(), sac.TaskType, wcfg, handler.Handle, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, uas.TaskType); wcfg.Enabled {
		ucfg := uas.LoadConfig()
		ucfg.Timeout = config.GetDuration(wcfg.Timeout)
		handler := uas.NewHandler(ucfg, pg.DB, log)
		workers = append(workers, startWorker(zb.Zeebe(), uas.TaskType, wcfg, handler.Handle, zapLog))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

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

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zb.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Admissions worker stopped gracefully")
}
