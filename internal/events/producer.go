// Package events publishes journey lifecycle events for downstream
// consumers (fleet cache, analytics).
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/example/pmv-rental/internal/journey"
)

// JourneyCompleted is the wire form of a finished rental.
type JourneyCompleted struct {
	EventID     string    `json:"event_id"`
	ServiceID   string    `json:"service_id"`
	UserID      string    `json:"user_id"`
	VehicleID   string    `json:"vehicle_id"`
	StationID   string    `json:"station_id"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	CompletedAt time.Time `json:"completed_at"`
	AvgSpeedKmh float64   `json:"avg_speed_kmh"`
	DistanceKm  float64   `json:"distance_km"`
	DurationSec int64     `json:"duration_seconds"`
	CostCents   int64     `json:"cost_cents"`
}

// FromCompletion builds the event for a backend completion.
func FromCompletion(c journey.Completion) JourneyCompleted {
	return JourneyCompleted{
		EventID:     uuid.NewString(),
		ServiceID:   c.Service.String(),
		UserID:      c.User.String(),
		VehicleID:   c.Vehicle.String(),
		StationID:   c.Station.String(),
		Lat:         c.Location.Lat,
		Lon:         c.Location.Lon,
		CompletedAt: c.At,
		AvgSpeedKmh: c.AvgSpeedKmh,
		DistanceKm:  c.DistanceKm,
		DurationSec: int64(c.Duration.Seconds()),
		CostCents:   c.Cost.Cents(),
	}
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &Producer{writer: w}
}

// PublishJourneyCompleted writes the event keyed by vehicle so per-vehicle
// ordering holds for the fleet cache.
func (p *Producer) PublishJourneyCompleted(ev JourneyCompleted) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.VehicleID), Value: b})
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
