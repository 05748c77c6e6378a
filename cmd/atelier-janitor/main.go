// The atelier-janitor binary runs periodic cleanup: expired magic links
// and stale invitations.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/config"
	"github.com/atelierhq/atelier/pkg/studio"
)

var (
	schedule = flag.String("schedule", "*/30 * * * *", "Cron schedule for cleanup runs")
	runOnce  = flag.Bool("run-once", false, "Run cleanup once and exit")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("configuration error")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("failed to ping database")
	}

	authStore := auth.NewStore(db)
	invitations := studio.NewInvitationService(db, nil, nil, 0)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if n, err := authStore.DeleteExpiredMagicLinks(ctx); err != nil {
			logger.WithError(err).Error("magic link cleanup failed")
		} else if n > 0 {
			logger.WithField("removed", n).Info("expired magic links removed")
		}

		if n, err := invitations.DeleteExpired(ctx); err != nil {
			logger.WithError(err).Error("invitation cleanup failed")
		} else if n > 0 {
			logger.WithField("removed", n).Info("expired invitations removed")
		}
	}

	if *runOnce {
		cleanup()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, cleanup); err != nil {
		logger.WithError(err).Fatal("invalid cron schedule")
	}
	c.Start()
	logger.WithField("schedule", *schedule).Info("janitor started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	<-c.Stop().Done()
}
