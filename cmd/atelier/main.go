package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atelierhq/atelier/pkg/api"
	"github.com/atelierhq/atelier/pkg/auth"
	"github.com/atelierhq/atelier/pkg/config"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/media"
	appmw "github.com/atelierhq/atelier/pkg/middleware"
	"github.com/atelierhq/atelier/pkg/observability"
	"github.com/atelierhq/atelier/pkg/projects"
	"github.com/atelierhq/atelier/pkg/studio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.ParseLevel(cfg.Observability.LogLevel), os.Stdout)
	logger.Info("starting atelier")

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.WithError(err).Error("database connection failed")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdle)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Error("database ping failed")
		os.Exit(1)
	}

	if err := runMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("migrations failed")
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, falling back to in-memory cache")
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var idCache identity.Cache
	if redisClient != nil {
		idCache = identity.NewRedisCache(redisClient, cfg.IdentityCache.TTL)
	} else {
		idCache = identity.NewMemoryCache(cfg.IdentityCache.MaxSize, cfg.IdentityCache.TTL)
	}
	resolver := identity.NewResolver(identity.NewStore(db), idCache, logger)

	jwt := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authStore := auth.NewStore(db)

	var oidcAuth *auth.OIDCAuthenticator
	if cfg.Auth.OIDCIssuer != "" {
		oidcAuth, err = auth.NewOIDCAuthenticator(ctx, auth.OIDCConfig{
			Issuer:       cfg.Auth.OIDCIssuer,
			ClientID:     cfg.Auth.OIDCClientID,
			ClientSecret: cfg.Auth.OIDCSecret,
			RedirectURL:  cfg.Auth.OIDCRedirectURL,
		})
		if err != nil {
			logger.WithError(err).Error("oidc provider discovery failed")
			os.Exit(1)
		}
	}

	studioSvc := studio.NewService(db, resolver, logger)
	invitationSvc := studio.NewInvitationService(db, studio.NewLogMailer(logger), studioSvc, 7*24*time.Hour)
	projectSvc := projects.NewService(db, logger)

	var mediaSvc *media.Service
	if cfg.S3.Bucket != "" {
		storage, err := media.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			logger.WithError(err).Error("object storage setup failed")
			os.Exit(1)
		}
		mediaSvc = media.NewService(db, storage, logger, metrics)
	} else {
		logger.Warn("no s3 bucket configured, media routes disabled")
	}

	var rateLimiter *appmw.RateLimiter
	if redisClient != nil {
		rateLimiter = appmw.NewRateLimiter(redisClient, logger, 300, time.Minute)
	}

	server := api.NewServer(api.Deps{
		Logger:        logger,
		Metrics:       metrics,
		Authenticator: appmw.NewAuthenticator(jwt, logger),
		RateLimiter:   rateLimiter,
		IdentityMW:    identity.NewMiddleware(resolver),
		Auth:          api.NewAuthHandlers(authStore, jwt, oidcAuth, auth.NewLogMailer(logger), logger, cfg.Auth.MagicLinkTTL),
		Identity:      api.NewIdentityHandlers(resolver),
		Studios:       studioSvc,
		Invitations:   invitationSvc,
		Projects:      projectSvc,
		Media:         mediaSvc,
	})

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      metrics.InstrumentHandler("api", server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// metrics and health probes on a separate port
	opsMux := http.NewServeMux()
	opsMux.Handle("/metrics", metrics.Handler())
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db, redisClient))
	opsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
		Handler: opsMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	shutdown.RegisterServer("api", apiServer)
	shutdown.RegisterServer("ops", opsServer)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}

	go func() {
		logger.WithField("addr", opsServer.Addr).Info("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("ops server failed")
		}
	}()

	go func() {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	}()

	shutdown.Wait()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	if err := auth.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := identity.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := identity.SeedRoles(ctx, db); err != nil {
		return err
	}
	if err := studio.RunMigrations(ctx, db); err != nil {
		return err
	}
	if err := projects.RunMigrations(ctx, db); err != nil {
		return err
	}
	return media.RunMigrations(ctx, db)
}
