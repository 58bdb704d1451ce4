package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/ledger-engine/internal/app"
	"github.com/segyhp/ledger-engine/internal/config"
	"github.com/segyhp/ledger-engine/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	a, err := app.New(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zlog.Fatal("Invalid scheduler timezone", zap.Error(err))
	}

	cronLog := cronLogger{zlog.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	if err := setupCronJobs(c, a); err != nil {
		zlog.Fatal("Error scheduling salary credit job", zap.Error(err))
	}

	c.Start()
	zlog.Info("Scheduler started", zap.String("salary_credit_spec", cfg.Scheduler.SalaryCreditSpec), zap.String("timezone", loc.String()))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down scheduler...")
	<-c.Stop().Done()
	zlog.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, a *app.App) error {
	// Daily salary credits for everyone present today
	_, err := c.AddFunc(a.Config.Scheduler.SalaryCreditSpec, func() {
		creditToday(context.Background(), a)
	})
	return err
}

func creditToday(ctx context.Context, a *app.App) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	now, err := a.Store.Now(ctx)
	if err != nil {
		a.Logger.Error("salary credit skipped, store clock unavailable", zap.Error(err))
		return
	}

	credited, err := a.Payroll.CreditDay(ctx, now)
	if err != nil {
		a.Logger.Error("salary credit finished with failures", zap.Int("credited", credited), zap.Error(err))
		return
	}
	a.Logger.Info("salary credit finished", zap.Int("credited", credited))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
