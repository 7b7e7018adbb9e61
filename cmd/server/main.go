package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/nandanugg/fleet-gps/config"
	"github.com/nandanugg/fleet-gps/module/core"
	"github.com/nandanugg/fleet-gps/module/core/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	config.NewLogger(cfg.Log)

	policy, err := policyFrom(cfg.Tracking)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := config.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	mqttClient, err := config.NewMQTT(cfg.MQTT)
	if err != nil {
		return err
	}
	defer mqttClient.Disconnect(250)

	dialAMQP := func() (*amqp.Connection, error) {
		return config.NewRabbitMQ(cfg.RabbitMQ, "fleet-server")
	}
	coreModule, err := core.Build(db, dialAMQP, mqttClient, core.Options{
		Policy:         policy,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("core module: %w", err)
	}
	defer func() { _ = coreModule.Close() }()

	if err := coreModule.StartSubscribers(); err != nil {
		return fmt.Errorf("start subscribers: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.HTTP.AllowedOrigins))

	health := config.NewHealthChecker(db, coreModule.EventBus, mqttClient)
	health.Register(r)

	coreModule.RegisterRoutes(&r.RouterGroup)

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		coreModule.RunJanitor(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AddAllowHeaders("X-Tenant-ID", "X-User-ID")
	return cors.New(c)
}

func policyFrom(t config.TrackingConfig) (service.Policy, error) {
	loc, err := t.Location()
	if err != nil {
		return service.Policy{}, err
	}
	return service.Policy{
		MinDistanceMeters: t.MinDistanceMeters,
		MinInterval:       t.MinInterval,
		MovingSpeedKmh:    t.MovingSpeedKmh,
		StaleAfter:        t.StaleAfter,
		EvictAfter:        t.EvictAfter,
		BatchTimeout:      t.BatchTimeout,
		SimplifyTolerance: t.SimplifyTolerance,
		EmitInitialEnter:  t.EmitInitialEnter,
		GeofenceCacheTTL:  t.GeofenceCacheTTL,
		Location:          loc,
		StatsConcurrency:  t.StatsConcurrency,
		MaxBatchSize:      t.MaxBatchSize,
	}, nil
}
