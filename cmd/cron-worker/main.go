package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/persiashop/storefront-backend/internal/bootstrap"
	"github.com/persiashop/storefront-backend/internal/cron"
	"github.com/persiashop/storefront-backend/internal/users"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/redis"
)

func main() {
	proc := bootstrap.Start("cron-worker", true)
	cfg := proc.Config
	ctx := context.Background()

	database := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	// one lock per environment: staging and prod may share a redis
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := redis.NewLock(redisClient, redisClient.LockKey("maintenance", env), cfg.Maintenance.LockTTL)
	proc.Must("cron lock", err)

	codeJob, err := cron.NewVerificationCodeJob(cron.VerificationCodeJobParams{
		Logger:        proc.Log,
		Codes:         users.NewRepository(database.DB()),
		UsedRetention: cfg.Maintenance.UsedCodeRetention,
	})
	proc.Must("verification code job", err)

	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:    proc.Log,
		Outbox:    outbox.NewRepository(database.DB()),
		DLQ:       outbox.NewDLQRepository(database.DB()),
		Retention: cfg.Outbox.Retention,
	})
	proc.Must("outbox retention job", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger: proc.Log,
		Schedule: cron.NewSchedule(cfg.Maintenance.Interval,
			cron.Entry{Job: codeJob, Every: cfg.Maintenance.CodePurgeInterval},
			cron.Entry{Job: outboxJob},
		),
		Lock:    lock,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must("cron service", err)

	if err := proc.RunWorker(nil, service.Run); err != nil {
		os.Exit(1)
	}
}
