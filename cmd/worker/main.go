package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/go-equip/internal/authz"
	"github.com/hugh/go-equip/internal/database"
	"github.com/hugh/go-equip/internal/invitation"
	"github.com/hugh/go-equip/internal/orgcontext"
	"github.com/hugh/go-equip/internal/tasks"
	"github.com/hugh/go-equip/pkg/config"
	"github.com/hugh/go-equip/pkg/queue"
	"github.com/hugh/go-equip/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting go-equip worker", "concurrency", cfg.Worker.Concurrency)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// The sweep only needs ExpireStale, but the service is built the same
	// way the API builds it.
	contexts := orgcontext.NewStore(db)
	invitations := invitation.NewService(db, authz.NewGate(contexts, contexts, logger), logger,
		invitation.WithTTL(cfg.Invitation.TTL()),
		invitation.WithAcceptURLBase(cfg.Invitation.AcceptURLBase),
	)

	logQueueBacklog(cfg, logger)

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	// Create task handler
	handler := tasks.NewHandler(logger, tasks.NewLogMailer(logger), invitations)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	var scheduler *asynq.Scheduler
	if cfg.Invitation.SweepCron != "" {
		scheduler = queue.NewScheduler(&cfg.Redis, logger)
		entryID, err := scheduler.Register(cfg.Invitation.SweepCron, tasks.NewExpireInvitationsTask(), asynq.Queue("low"))
		if err != nil {
			logger.Error("failed to register invitation sweep", "cron", cfg.Invitation.SweepCron, "error", err)
			os.Exit(1)
		}
		next, err := util.NextCronTime(cfg.Invitation.SweepCron, time.Now())
		if err != nil {
			logger.Error("invalid invitation sweep schedule", "cron", cfg.Invitation.SweepCron, "error", err)
			os.Exit(1)
		}
		logger.Info("invitation sweep scheduled",
			"cron", cfg.Invitation.SweepCron,
			"entry_id", entryID,
			"next_run", next,
		)

		go func() {
			if err := scheduler.Run(); err != nil {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	// srv.Run blocks until SIGTERM/SIGINT, then drains in-flight tasks
	logger.Info("worker started, waiting for tasks...")
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	if scheduler != nil {
		scheduler.Shutdown()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

// logQueueBacklog reports pending work left over from a previous run.
func logQueueBacklog(cfg *config.Config, logger *slog.Logger) {
	inspector := queue.NewInspector(&cfg.Redis)
	defer inspector.Close()

	queues, err := inspector.Queues()
	if err != nil {
		logger.Warn("failed to inspect queues", "error", err)
		return
	}
	for _, name := range queues {
		info, err := inspector.GetQueueInfo(name)
		if err != nil {
			continue
		}
		logger.Info("queue backlog",
			"queue", name,
			"pending", info.Pending,
			"retry", info.Retry,
			"archived", info.Archived,
		)
	}
}
