// cmd/auditor/main.go runs the audit drainer on its own: it pops admin
// actions from the Redis queue and persists them to PostgreSQL in batches.
// Run it when the API servers start with AUDIT_DRAIN_INPROCESS=false.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/skillstake/internal/audit"
	"github.com/jason-s-yu/skillstake/internal/cache"
	"github.com/jason-s-yu/skillstake/internal/config"
	"github.com/jason-s-yu/skillstake/internal/database"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatalf("the auditor needs STORE_DRIVER=%s", config.DriverPostgres)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("migrate: %v", err)
	}

	// The drainer only writes admin actions, so the store never publishes.
	store := database.New(pool, nil, logger.WithField("component", "store"))
	d := audit.NewDrainer(audit.RedisSource{Client: rdb, Queue: cache.QueueName()}, store,
		cfg.AuditBatchSize, cfg.AuditFlushDelay, logger.WithField("component", "audit"))

	logger.Infof("skillstake auditor started, draining %s", cache.QueueName())
	d.Run(ctx)
	logger.Info("auditor shutdown complete")
}
