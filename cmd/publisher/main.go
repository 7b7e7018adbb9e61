package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type pointMessage struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	Accuracy   float64   `json:"accuracy"`
	RecordedAt time.Time `json:"recordedAt"`
}

type batchMessage struct {
	VehicleID string         `json:"vehicleId"`
	Points    []pointMessage `json:"points"`
}

// driver walks a random route starting near the Jakarta depot.
type driver struct {
	userID    string
	vehicleID string
	lat, lon  float64
	heading   float64
}

const metersPerDegree = 111_320.0

func (d *driver) step(at time.Time, seconds float64) pointMessage {
	d.heading = math.Mod(d.heading+(rand.Float64()-0.5)*40+360, 360)
	speedKmh := 20 + rand.Float64()*40
	if rand.Float64() < 0.15 {
		speedKmh = 0
	}
	meters := speedKmh / 3.6 * seconds
	rad := d.heading * math.Pi / 180
	d.lat += meters * math.Cos(rad) / metersPerDegree
	d.lon += meters * math.Sin(rad) / (metersPerDegree * math.Cos(d.lat*math.Pi/180))

	return pointMessage{
		Latitude:   d.lat,
		Longitude:  d.lon,
		Speed:      speedKmh,
		Heading:    d.heading,
		Accuracy:   3 + rand.Float64()*7,
		RecordedAt: at.UTC(),
	}
}

func main() {
	broker := flag.String("broker", envOr("MQTT_BROKER", "tcp://localhost:1883"), "mqtt broker url")
	tenant := flag.String("tenant", "acme", "tenant id")
	drivers := flag.String("drivers", "driver-1:veh-1,driver-2:veh-2", "comma separated userId:vehicleId pairs")
	interval := flag.Duration("interval", 5*time.Second, "time between fixes")
	batchSize := flag.Int("batch", 3, "fixes per published batch")
	flag.Parse()

	if *interval <= 0 || *batchSize <= 0 {
		fmt.Fprintln(os.Stderr, "error: interval and batch must be positive")
		os.Exit(1)
	}

	fleet, err := parseDrivers(*drivers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID("fleet-mock-publisher")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		slog.Error("mqtt connect", "err", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)

	for _, d := range fleet {
		ackTopic := topicFor(*tenant, d.userID) + "/ack"
		client.Subscribe(ackTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			slog.Info("ack", "topic", msg.Topic(), "body", string(msg.Payload()))
		})
	}

	slog.Info("publishing", "broker", *broker, "tenant", *tenant, "drivers", len(fleet), "interval", *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	pending := make(map[string][]pointMessage, len(fleet))
	for now := range ticker.C {
		for _, d := range fleet {
			pending[d.userID] = append(pending[d.userID], d.step(now, interval.Seconds()))
			if len(pending[d.userID]) < *batchSize {
				continue
			}

			payload, _ := json.Marshal(batchMessage{VehicleID: d.vehicleID, Points: pending[d.userID]})
			pending[d.userID] = nil

			topic := topicFor(*tenant, d.userID)
			token := client.Publish(topic, 1, false, payload)
			token.Wait()
			if err := token.Error(); err != nil {
				slog.Warn("publish failed", "topic", topic, "err", err)
				continue
			}
			slog.Info("published batch", "topic", topic, "vehicle", d.vehicleID, "points", *batchSize)
		}
	}
}

func topicFor(tenant, userID string) string {
	return fmt.Sprintf("/fleet/%s/driver/%s/gps", tenant, userID)
}

func parseDrivers(s string) ([]*driver, error) {
	var out []*driver
	for _, pair := range strings.Split(s, ",") {
		user, vehicle, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || user == "" || vehicle == "" {
			return nil, fmt.Errorf("invalid driver pair %q", pair)
		}
		out = append(out, &driver{
			userID:    user,
			vehicleID: vehicle,
			lat:       -6.2088 + (rand.Float64()-0.5)*0.01,
			lon:       106.8456 + (rand.Float64()-0.5)*0.01,
			heading:   rand.Float64() * 360,
		})
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
