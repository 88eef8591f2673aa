// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jason-s-yu/skillstake/internal/achievements"
	"github.com/jason-s-yu/skillstake/internal/audit"
	"github.com/jason-s-yu/skillstake/internal/auth"
	"github.com/jason-s-yu/skillstake/internal/backend"
	"github.com/jason-s-yu/skillstake/internal/backend/memory"
	"github.com/jason-s-yu/skillstake/internal/cache"
	"github.com/jason-s-yu/skillstake/internal/chat"
	"github.com/jason-s-yu/skillstake/internal/config"
	"github.com/jason-s-yu/skillstake/internal/database"
	"github.com/jason-s-yu/skillstake/internal/handlers"
	"github.com/jason-s-yu/skillstake/internal/lobby"
	"github.com/jason-s-yu/skillstake/internal/social"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.FeedDriver == config.DriverRedis {
		if rdb, err = cache.Connect(ctx); err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
	}

	var feed backend.Feed
	if rdb != nil {
		feed = cache.NewFeed(rdb, logger.WithField("component", "feed"))
	} else {
		feed = memory.NewFeed()
	}

	var (
		be       backend.Backend
		drainers sync.WaitGroup
	)
	drainCtx, stopDrain := context.WithCancel(context.Background())
	defer stopDrain()

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("postgres: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		store := database.New(pool, feed, logger.WithField("component", "store"))
		if err := store.SeedAchievements(ctx, achievements.Catalog()); err != nil {
			logger.Fatalf("seed achievements: %v", err)
		}
		be = store.Backend()

		// With Redis available admin actions go through the queue and the
		// drainer writes them in batches, here or in cmd/auditor.
		if rdb != nil {
			be.Auditor = cache.NewAuditQueue(rdb)
		}
		if rdb != nil && cfg.AuditDrainInProcess {
			d := audit.NewDrainer(audit.RedisSource{Client: rdb, Queue: cache.QueueName()}, store,
				cfg.AuditBatchSize, cfg.AuditFlushDelay, logger.WithField("component", "audit"))
			drainers.Add(1)
			go func() {
				defer drainers.Done()
				d.Run(drainCtx)
			}()
		}
	case config.DriverMemory:
		store := memory.New(feed, logger.WithField("component", "store"))
		store.SeedAchievements(achievements.Catalog())
		be = store.Backend()
		logger.Warn("using the in-memory store; data is lost on restart")
	}

	var sessions *auth.Sessions
	if cfg.JWTPrivateKeyPath != "" {
		sessions, err = auth.LoadSessions(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenTTL)
	} else {
		logger.Warn("JWT_PRIVATE_KEY_PATH not set; generating an ephemeral signing key")
		sessions, err = auth.NewSessions(cfg.TokenTTL)
	}
	if err != nil {
		logger.Fatalf("sessions: %v", err)
	}

	ach := achievements.NewService(be.Achievements, be.Social, logger.WithField("component", "achievements"))
	soc := social.NewService(be.Social, be.Users, logger.WithField("component", "social"))
	srv := &handlers.Server{
		Auth:           auth.NewService(be.Users, sessions, auth.DefaultHashParams, logger.WithField("component", "auth")),
		Lobbies:        lobby.NewService(be.Lobbies, be.Auditor, ach, logger.WithField("component", "lobby")).WithNotifier(be.Social),
		Browser:        lobby.NewBrowser(be.Lobbies),
		Chat:           chat.NewService(be.Chat, logger.WithField("component", "chat")),
		Achievements:   ach,
		Social:         soc,
		Feed:           be.Feed,
		Log:            logger,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.Production,
		TokenTTL:       cfg.TokenTTL,
	}

	sweeper, err := social.StartPresenceSweeper(soc, cfg.PresenceTTL, cfg.PresenceSweep, logger.WithField("component", "presence"))
	if err != nil {
		logger.Fatalf("presence sweeper: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// Streams hold their request context; the signal ends them.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		logger.Infof("Running on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := sweeper.Stop(); err != nil {
		logger.Warnf("presence sweeper shutdown: %v", err)
	}
	stopDrain()
	drainers.Wait()
}
