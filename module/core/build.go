package core

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	handler "github.com/nandanugg/fleet-gps/module/core/internal/handler/http"
	"github.com/nandanugg/fleet-gps/module/core/internal/handler/subscriber"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/database/postgres"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/publisher/rabbitmq"
	"github.com/nandanugg/fleet-gps/module/core/internal/repository/publisher/socket"
	"github.com/nandanugg/fleet-gps/module/core/service"
)

const fanoutTimeout = 5 * time.Second

type routeRegistrar interface {
	Register(r *gin.RouterGroup)
}

type Options struct {
	Policy         service.Policy
	AllowedOrigins []string
}

type Module struct {
	Tracker     *service.LiveTracker
	IngestSvc   *service.IngestService
	RouteSvc    *service.RouteService
	GeofenceSvc *service.GeofenceService
	SessionSvc  *service.SessionService
	Hub         *socket.Hub
	EventBus    *rabbitmq.EventPublisher

	policy     service.Policy
	handlers   []routeRegistrar
	subscriber *subscriber.LocationSubscriber
}

// Build wires the core. dialAMQP is called again whenever the event bus
// connection drops.
func Build(db *sql.DB, dialAMQP func() (*amqp.Connection, error), mqttClient mqtt.Client, opts Options) (*Module, error) {
	pointRepo := postgres.NewPointRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	vehicleRepo := postgres.NewVehicleRepo(db)
	geofenceRepo := postgres.NewGeofenceRepo(db)
	eventRepo := postgres.NewGeofenceEventRepo(db)

	eventPub, err := rabbitmq.NewEventPublisher(dialAMQP)
	if err != nil {
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	hub := socket.NewHub(socket.DefaultSendBuffer)

	fanout := service.NewFanout(fanoutTimeout,
		service.Sink{Name: "websocket", Publisher: hub},
		service.Sink{Name: "rabbitmq", Publisher: eventPub},
	)

	policy := opts.Policy
	tracker := service.NewLiveTracker(policy)
	evaluator := service.NewGeofenceEvaluator(geofenceRepo, eventRepo, policy)

	ingestSvc := service.NewIngestService(pointRepo, sessionRepo, vehicleRepo, tracker, evaluator, fanout, policy)
	routeSvc := service.NewRouteService(pointRepo, sessionRepo, policy)
	geofenceSvc := service.NewGeofenceService(geofenceRepo, eventRepo, evaluator)
	sessionSvc := service.NewSessionService(sessionRepo, vehicleRepo, tracker, evaluator, fanout)

	return &Module{
		Tracker:     tracker,
		IngestSvc:   ingestSvc,
		RouteSvc:    routeSvc,
		GeofenceSvc: geofenceSvc,
		SessionSvc:  sessionSvc,
		Hub:         hub,
		EventBus:    eventPub,
		policy:      policy,
		handlers: []routeRegistrar{
			handler.NewGpsHandler(ingestSvc, tracker, routeSvc),
			handler.NewGeofenceHandler(geofenceSvc),
			handler.NewSessionHandler(sessionSvc),
			handler.NewStreamHandler(hub, opts.AllowedOrigins),
		},
		subscriber: subscriber.NewLocationSubscriber(mqttClient, ingestSvc),
	}, nil
}

// RegisterRoutes mounts the API under r behind the identity middleware.
func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	api := r.Group("/api/v1", handler.Identity())
	for _, h := range m.handlers {
		h.Register(api)
	}
}

func (m *Module) StartSubscribers() error {
	return m.subscriber.Start()
}

// RunJanitor evicts long-silent vehicles until ctx is done. It returns
// immediately when eviction is disabled.
func (m *Module) RunJanitor(ctx context.Context) {
	if m.policy.EvictAfter <= 0 {
		return
	}
	interval := m.policy.EvictAfter / 4
	if interval < time.Second {
		interval = time.Second
	}
	m.Tracker.RunJanitor(ctx, interval)
}

// Close releases the event bus connection.
func (m *Module) Close() error {
	return m.EventBus.Close()
}
