// main.go
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

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Kaung2240/VoteX/auth"
	"github.com/Kaung2240/VoteX/ballot"
	"github.com/Kaung2240/VoteX/cache"
	"github.com/Kaung2240/VoteX/config"
	"github.com/Kaung2240/VoteX/controllers"
	"github.com/Kaung2240/VoteX/logging"
	"github.com/Kaung2240/VoteX/mailer"
	"github.com/Kaung2240/VoteX/models"
	"github.com/Kaung2240/VoteX/routes"
	"github.com/Kaung2240/VoteX/scheduler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		l := logging.Base()
		l.Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logging.Configure(logging.Config{Level: cfg.LogLevel})
	logger := logging.WithComponent("api")
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return err
	}
	logger.Info().Str("type", cfg.DatabaseType).Msg("database connected")
	if err := models.Migrate(db); err != nil {
		return err
	}
	if err := models.SeedCategories(db, cfg.DefaultCategories); err != nil {
		return err
	}

	var resultsCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}, logging.WithComponent("cache"))
		if err != nil {
			return err
		}
		defer rc.Close()
		resultsCache = rc
	}

	var mail mailer.Mailer = mailer.LogMailer{Logger: logging.WithComponent("mailer")}
	if cfg.SMTPAddr != "" {
		mail = mailer.SMTPMailer{Addr: cfg.SMTPAddr, User: cfg.SMTPUser, Password: cfg.SMTPPassword, From: cfg.MailFrom}
	}

	sealer, err := ballot.NewSealer(cfg.Key(), cfg.ReceiptShares, cfg.ReceiptThreshold)
	if err != nil {
		return err
	}

	h := controllers.New(controllers.Handler{
		DB:     db,
		Cfg:    cfg,
		Issuer: auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Sealer: sealer,
		Cache:  resultsCache,
		Mailer: mail,
		Logger: logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           routes.SetupRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}
	notifier := scheduler.NewNotifier(db, cfg.NotifyInterval, cfg.ReminderLead, logging.WithComponent("notifier"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return notifier.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
