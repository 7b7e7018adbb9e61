package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

// Devices publish batches on /fleet/<tenant>/driver/<userId>/gps and
// receive the outcome on the same topic suffixed with /ack.
const (
	topicPattern = "/fleet/+/driver/+/gps"
	ackSuffix    = "/ack"
)

type ingestService interface {
	Ingest(ctx context.Context, b *domain.Batch) (*domain.BatchResult, error)
}

type ackPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type ackMessage struct {
	Result *domain.BatchResult `json:"result,omitempty"`
	Error  string              `json:"error,omitempty"`
}

type LocationSubscriber struct {
	client    mqtt.Client
	acks      ackPublisher
	ingestSvc ingestService
}

func NewLocationSubscriber(client mqtt.Client, ingestSvc ingestService) *LocationSubscriber {
	return &LocationSubscriber{
		client:    client,
		acks:      client,
		ingestSvc: ingestSvc,
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(topicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	tenantID, driverID, err := parseTopic(msg.Topic())
	if err != nil {
		slog.Warn("ignoring message on unexpected topic", "topic", msg.Topic(), "err", err)
		return
	}

	var batch domain.Batch
	if err := json.Unmarshal(msg.Payload(), &batch); err != nil {
		slog.Warn("invalid gps batch", "tenant", tenantID, "driver", driverID, "err", err)
		s.ack(msg.Topic(), ackMessage{Error: "invalid payload"})
		return
	}
	batch.TenantID = tenantID
	batch.DriverID = driverID

	result, err := s.ingestSvc.Ingest(context.Background(), &batch)
	if err != nil {
		slog.Warn("gps batch refused", "tenant", tenantID, "driver", driverID, "vehicle", batch.VehicleID, "err", err)
		s.ack(msg.Topic(), ackMessage{Error: err.Error()})
		return
	}

	slog.Info("gps batch ingested",
		"tenant", tenantID, "vehicle", batch.VehicleID,
		"accepted", result.Accepted, "rejected", len(result.Rejected), "skipped", len(result.Skipped))
	s.ack(msg.Topic(), ackMessage{Result: result})
}

func (s *LocationSubscriber) ack(topic string, m ackMessage) {
	if s.acks == nil {
		return
	}
	body, err := json.Marshal(m)
	if err != nil {
		slog.Error("marshal ack", "err", err)
		return
	}
	token := s.acks.Publish(topic+ackSuffix, 1, false, body)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Warn("ack publish failed", "topic", topic, "err", err)
		}
	}()
}

// parseTopic extracts tenant and driver from /fleet/<tenant>/driver/<userId>/gps.
func parseTopic(topic string) (tenantID, driverID string, err error) {
	parts := strings.Split(strings.TrimPrefix(topic, "/"), "/")
	if len(parts) != 5 || parts[0] != "fleet" || parts[2] != "driver" || parts[4] != "gps" {
		return "", "", fmt.Errorf("topic %q does not match %s", topic, topicPattern)
	}
	if parts[1] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("topic %q has empty tenant or driver", topic)
	}
	return parts[1], parts[3], nil
}
