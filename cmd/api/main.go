package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loomos.org/internal/auth"
	"loomos.org/internal/config"
	"loomos.org/internal/gateway"
	"loomos.org/internal/httpapi"
	"loomos.org/internal/obs"
	"loomos.org/internal/session"
	"loomos.org/internal/store/pg"
	"loomos.org/internal/stream"
	"loomos.org/internal/tenant"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	authOpts := []auth.ServiceOption{
		auth.WithIssuer(cfg.Issuer),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	}

	// Redis is optional; without it logout still rotates refresh tokens but
	// live access tokens run to their natural expiry.
	var revoker auth.Revoker
	if cfg.RedisURL != "" {
		redisRevoker, err := session.NewRedisRevoker(cfg.RedisURL)
		if err != nil {
			log.Fatalf("connect redis: %v", err)
		}
		defer redisRevoker.Close()
		revoker = redisRevoker
		authOpts = append(authOpts, auth.WithRevoker(redisRevoker))
	}

	sessions, err := auth.NewService(store.Users(), store.RefreshTokens(), cfg.AuthSecret, authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	resolver, err := tenant.NewResolver(store.Organizations(), cfg.AppDomain)
	if err != nil {
		log.Fatalf("tenant resolver: %v", err)
	}

	pipeline, err := gateway.NewPipeline(sessions, resolver)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	var plans config.PlanDefaults
	if cfg.PlanDefaultsPath != "" {
		plans, err = config.LoadPlanDefaults(cfg.PlanDefaultsPath)
		if err != nil {
			log.Fatalf("plan defaults: %v", err)
		}
	}

	api := httpapi.New(httpapi.Deps{
		Pipeline:      pipeline,
		Sessions:      sessions,
		Users:         store.Users(),
		RefreshTokens: store.RefreshTokens(),
		Organizations: store.Organizations(),
		Announcements: store.Announcements(),
		Revoker:       revoker,
		Stream:        stream.New(),
		PlanDefaults:  plans,
		Ready:         httpapi.ReadyProbe{Pinger: store},
		Version:       version,
		CookieSecure:  cfg.CookieSecure,
		RateBurst:     cfg.RateBurst,
		RatePerSecond: cfg.RatePerSecond,
		MaxBodyBytes:  cfg.MaxBodyBytes,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting loomos-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
