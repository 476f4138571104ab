// Command automationd is the composition root: it loads configuration,
// wires every repository, domain service, and Task Executor, and runs the
// Unified Lifecycle Manager's startup/shutdown sequence around them.
//
// Grounded on the teacher's cmd/scheduler/main.go: config.Load -> logger ->
// signal.NotifyContext -> postgres.NewPool -> construct components ->
// start background loops -> serve metrics -> wait -> graceful shutdown.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sparvidata/automation-core/config"
	"github.com/sparvidata/automation-core/internal/authn"
	"github.com/sparvidata/automation-core/internal/domain"
	"github.com/sparvidata/automation-core/internal/email"
	"github.com/sparvidata/automation-core/internal/eventbus"
	"github.com/sparvidata/automation-core/internal/executor"
	"github.com/sparvidata/automation-core/internal/health"
	"github.com/sparvidata/automation-core/internal/history"
	"github.com/sparvidata/automation-core/internal/infrastructure/postgres"
	ctxlog "github.com/sparvidata/automation-core/internal/log"
	"github.com/sparvidata/automation-core/internal/lifecycle"
	"github.com/sparvidata/automation-core/internal/metadatamgr"
	"github.com/sparvidata/automation-core/internal/metrics"
	"github.com/sparvidata/automation-core/internal/notify"
	"github.com/sparvidata/automation-core/internal/orchestrator"
	"github.com/sparvidata/automation-core/internal/schedule"
	"github.com/sparvidata/automation-core/internal/statustracker"
	httptransport "github.com/sparvidata/automation-core/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	// Repositories
	scheduledJobRepo := postgres.NewScheduledJobRepository(pool)
	automationJobRepo := postgres.NewAutomationJobRepository(pool)
	automationRunRepo := postgres.NewAutomationRunRepository(pool)
	connectionRepo := postgres.NewConnectionRepository(pool)
	configRepo := postgres.NewAutomationConnectionConfigRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	metadataRepo := postgres.NewConnectionMetadataRepository(pool)
	schemaChangeRepo := postgres.NewSchemaChangeRepository(pool)
	profileHistoryRepo := postgres.NewProfileHistoryRepository(pool)
	validationRuleRepo := postgres.NewValidationRuleRepository(pool)
	validationResultRepo := postgres.NewValidationResultRepository(pool)
	notificationSettingsRepo := postgres.NewNotificationSettingsRepository(pool)

	// Domain services
	bus := eventbus.New(eventRepo, logger)
	tracker := statustracker.New(automationJobRepo, logger)
	scheduleMgr := schedule.NewManager(configRepo, scheduledJobRepo, logger)
	metadataMgrClient := metadatamgr.NewClient(cfg.MetadataManagerURL)
	historySvc := history.New(profileHistoryRepo)

	orch := orchestrator.New(scheduleMgr, tracker, automationJobRepo, automationRunRepo, bus, logger, orchestrator.Config{
		WorkerCount:  cfg.WorkerCount,
		TickInterval: time.Duration(cfg.DispatchIntervalSec) * time.Second,
	})

	schedulerCtx := orch.SchedulerContext()
	orch.RegisterExecutor(domain.AutomationMetadataRefresh, executor.NewMetadataRefreshExecutor(connectionRepo, metadataMgrClient, schedulerCtx))
	orch.RegisterExecutor(domain.AutomationSchemaChangeDetect, executor.NewSchemaChangeExecutor(connectionRepo, metadataRepo, schemaChangeRepo, schedulerCtx))
	orch.RegisterExecutor(domain.AutomationValidationAutomation, executor.NewValidationExecutor(connectionRepo, validationRuleRepo, validationResultRepo, metadataMgrClient, schedulerCtx))

	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	notifier := notify.New(notificationSettingsRepo, sender, logger)
	notifier.Subscribe(bus)

	verifier := authn.New(cfg.ClerkJWKSURL, []byte(cfg.JWTSecret))

	router := httptransport.NewRouter(httptransport.Dependencies{
		Connections:          connectionRepo,
		Schedules:            scheduleMgr,
		Orchestrator:         orch,
		Tracker:              tracker,
		History:              historySvc,
		ValidationRules:      validationRuleRepo,
		NotificationSettings: notificationSettingsRepo,
		Verifier:             verifier,
		Logger:               logger,
	})

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	enableAutomation := lifecycle.ShouldEnableAutomation(cfg.Env, cfg.DisableAutomation, cfg.EnableAutomationScheduler)
	lm := lifecycle.New(logger, enableAutomation)

	lm.AddStep("http_server", func(ctx context.Context) error {
		go func() {
			logger.Info("http server started", "port", cfg.Port)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server", "error", err)
			}
		}()
		return nil
	})
	lm.AddStep("metrics_server", func(ctx context.Context) error {
		go func() {
			logger.Info("metrics server started", "port", cfg.MetricsPort)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", "error", err)
			}
		}()
		return nil
	})
	lm.AddAutomationStep("orchestrator", func(ctx context.Context) error {
		orch.Start(ctx)
		return nil
	})

	lm.AddShutdownStep("orchestrator", func(ctx context.Context) error {
		orch.Stop()
		return nil
	})
	lm.AddShutdownStep("http_server", func(ctx context.Context) error {
		return httpSrv.Shutdown(ctx)
	})
	lm.AddShutdownStep("metrics_server", func(ctx context.Context) error {
		return metricsSrv.Shutdown(ctx)
	})

	lm.Start(ctx)

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	lm.Stop(shutdownCtx)

	logger.Info("automationd shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
