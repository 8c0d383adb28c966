package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

type sentMessage struct {
	topic      string
	key, value []byte
}

type fakeProducer struct {
	mu    sync.Mutex
	sent  []sentMessage
	delay time.Duration
}

func (f *fakeProducer) SendMessage(ctx context.Context, topic string, key, value []byte) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{topic, key, value})
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestPublishRoundTrip(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewPublisher(producer, "clinic_events")

	ev, err := New(Updated, EntityService, 42, map[string]string{"name": "Grooming"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(producer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(producer.sent))
	}
	msg := producer.sent[0]
	if msg.topic != "clinic_events" || string(msg.key) != "service:42" {
		t.Errorf("unexpected topic/key %q %q", msg.topic, msg.key)
	}

	got, err := Decode(msg.value)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Name() != "service_updated" || got.EntityID != 42 || got.ID == "" {
		t.Errorf("unexpected event %+v", got)
	}
	var data map[string]string
	if err := json.Unmarshal(got.Data, &data); err != nil || data["name"] != "Grooming" {
		t.Errorf("data not preserved: %s (%v)", got.Data, err)
	}
}

func TestDisabledPublisher(t *testing.T) {
	var nilPub *Publisher
	if nilPub.Enabled() {
		t.Error("nil publisher reports enabled")
	}
	if err := nilPub.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("nil publisher returned %v", err)
	}
	nilPub.PublishAsync(Created, EntityDoctor, 1, nil)

	if err := NewPublisher(nil, "t").Publish(context.Background(), Event{}); err != nil {
		t.Errorf("publisher without producer returned %v", err)
	}
}

func TestDecodeRejectsIncompleteEvents(t *testing.T) {
	if _, err := Decode([]byte(`{"id":"x","event":"created"}`)); err == nil {
		t.Error("expected error for event without entity")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestWaitDrainsAsyncSends(t *testing.T) {
	producer := &fakeProducer{delay: 50 * time.Millisecond}
	pub := NewPublisher(producer, "clinic_events")

	for id := uint(1); id <= 3; id++ {
		pub.PublishAsync(Created, EntityDoctor, id, nil)
	}
	pub.Wait()

	producer.mu.Lock()
	defer producer.mu.Unlock()
	if len(producer.sent) != 3 {
		t.Errorf("sent %d messages before Wait returned, want 3", len(producer.sent))
	}

	var nilPub *Publisher
	nilPub.Wait()
}
