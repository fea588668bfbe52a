// Package events announces accepted profiles to downstream systems.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"onboard/internal/platform/kafka"
	"onboard/internal/profile/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/circuit"
)

const TypeProfileCompleted = "profile.completed"

// ProfileCompleted is emitted once per accepted completion.
type ProfileCompleted struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	OrgID             string          `json:"orgId"`
	Category          models.Category `json:"category"`
	Name              string          `json:"name"`
	DocumentsUploaded int             `json:"documentsUploaded"`
	CompletedAt       time.Time       `json:"completedAt"`
}

// NewProfileCompleted builds the event for a completed draft.
func NewProfileCompleted(orgID id.OrgID, d *models.ProfileDraft) ProfileCompleted {
	ev := ProfileCompleted{
		ID:                uuid.NewString(),
		Type:              TypeProfileCompleted,
		OrgID:             orgID.String(),
		Category:          d.Category,
		Name:              d.Identity.Name,
		DocumentsUploaded: d.UploadedCount(),
	}
	if d.CompletedAt != nil {
		ev.CompletedAt = *d.CompletedAt
	}
	return ev
}

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Kafka publishes events keyed by organization so all events of one
// facility land on the same partition.
type Kafka struct {
	producer producer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewKafka(p producer, logger *slog.Logger) *Kafka {
	return &Kafka{
		producer: p,
		breaker:  circuit.New("kafka-events", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		logger:   logger,
	}
}

func (k *Kafka) PublishProfileCompleted(ctx context.Context, ev ProfileCompleted) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	err = k.producer.Publish(ctx, kafka.Message{
		Key:     []byte(ev.OrgID),
		Value:   value,
		Headers: map[string]string{"event_type": ev.Type, "event_id": ev.ID},
	})
	if err != nil {
		if _, change := k.breaker.RecordFailure(); change.Opened {
			k.logger.WarnContext(ctx, "event publishing degraded", "breaker", k.breaker.Name())
		}
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "event publishing recovered", "breaker", k.breaker.Name())
	}
	return nil
}

// Health reports an error while repeated publish failures keep the breaker open.
func (k *Kafka) Health(context.Context) error {
	if k.breaker.IsOpen() {
		return fmt.Errorf("event publishing degraded: circuit %s is %s", k.breaker.Name(), k.breaker.State())
	}
	return nil
}

// Memory records events in order. Used when no broker is configured.
type Memory struct {
	mu     sync.Mutex
	events []ProfileCompleted
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PublishProfileCompleted(_ context.Context, ev ProfileCompleted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []ProfileCompleted {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProfileCompleted(nil), m.events...)
}
