// Package events describes the change notifications written to the
// clinic_events topic and publishes them through Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"vetclinic/utils"
)

const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

const (
	EntityDoctor    = "doctor"
	EntityService   = "service"
	EntityPromotion = "promotion"
	EntityReview    = "review"
)

type Event struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Entity     string          `json:"entity"`
	EntityID   uint            `json:"entity_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Name returns the event type in the "<entity>_<action>" form, e.g.
// "doctor_created".
func (e Event) Name() string {
	return e.Entity + "_" + e.Event
}

func New(action, entity string, id uint, data interface{}) (Event, error) {
	ev := Event{
		ID:         uuid.NewString(),
		Event:      action,
		Entity:     entity,
		EntityID:   id,
		OccurredAt: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("failed to marshal event data: %w", err)
		}
		ev.Data = raw
	}
	return ev, nil
}

func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if ev.Entity == "" || ev.Event == "" {
		return Event{}, fmt.Errorf("event %q is missing entity or action", ev.ID)
	}
	return ev, nil
}

// Publisher sends events to one topic. A nil Publisher or one without a
// producer drops events silently.
type Publisher struct {
	kafka utils.KafkaProducer
	topic string
	wg    sync.WaitGroup
}

func NewPublisher(kafka utils.KafkaProducer, topic string) *Publisher {
	return &Publisher{kafka: kafka, topic: topic}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.kafka != nil
}

// Publish sends the event synchronously. Events of one entity share a key
// so they land on the same partition in order.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if !p.Enabled() {
		return nil
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	key := []byte(ev.Entity + ":" + strconv.FormatUint(uint64(ev.EntityID), 10))
	if err := p.kafka.SendMessage(ctx, p.topic, key, value); err != nil {
		return fmt.Errorf("failed to send %s event: %w", ev.Name(), err)
	}
	return nil
}

// PublishAsync builds and sends an event in the background, logging
// failures instead of returning them.
func (p *Publisher) PublishAsync(action, entity string, id uint, data interface{}) {
	if !p.Enabled() {
		return
	}
	ev, err := New(action, entity, id, data)
	if err != nil {
		log.Printf("Failed to build Kafka event: %v", err)
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.Publish(ctx, ev); err != nil {
			log.Printf("Failed to send Kafka message: %v", err)
		}
	}()
}

// Wait blocks until every PublishAsync send has finished. Call it before
// closing the producer.
func (p *Publisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
