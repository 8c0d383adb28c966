package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"vetclinic/events"
	"vetclinic/models"
	"vetclinic/utils"
)

type fakeIndex struct {
	put     map[uint]models.Service
	removed []uint
	err     error
	notify  chan uint
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{put: map[uint]models.Service{}}
}

func (f *fakeIndex) Put(ctx context.Context, s models.Service) error {
	if f.err != nil {
		return f.err
	}
	f.put[s.ID] = s
	if f.notify != nil {
		f.notify <- s.ID
	}
	return nil
}

func (f *fakeIndex) Remove(ctx context.Context, id uint) error {
	f.removed = append(f.removed, id)
	return nil
}

type fakeReader struct {
	messages chan kafka.Message
	closed   bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-f.messages:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	repo  *models.GormRepository
	redis *miniredis.Miniredis
	index *fakeIndex
	c     *ClinicConsumer
}

func newFixture(t *testing.T, reader MessageReader) *fixture {
	t.Helper()
	repo, err := models.NewGormRepository(models.DriverSQLite, ":memory:", false)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	srv := miniredis.RunT(t)
	client, err := utils.NewRedisClient(srv.Addr(), "")
	if err != nil {
		t.Fatalf("Failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	index := newFakeIndex()
	c := newClinicConsumer(repo, utils.NewPageCache(client, time.Minute), index, reader)
	return &fixture{repo: repo, redis: srv, index: index, c: c}
}

func encode(t *testing.T, action, entity string, id uint) []byte {
	t.Helper()
	ev, err := events.New(action, entity, id, nil)
	if err != nil {
		t.Fatalf("events.New failed: %v", err)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Failed to encode event: %v", err)
	}
	return b
}

func TestHandleServiceEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	service := models.Service{Name: "Checkup", Description: "d", Price: decimal.NewFromInt(10)}
	if err := f.repo.DB().Create(&service).Error; err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	if err := f.c.Handle(ctx, encode(t, events.Created, events.EntityService, service.ID)); err != nil {
		t.Fatalf("Handle(created) failed: %v", err)
	}
	if got, ok := f.index.put[service.ID]; !ok || got.Name != "Checkup" || got.IsActive {
		t.Errorf("indexed service = %+v, %v", got, ok)
	}

	if err := f.c.Handle(ctx, encode(t, events.Deleted, events.EntityService, service.ID)); err != nil {
		t.Fatalf("Handle(deleted) failed: %v", err)
	}
	if err := f.c.Handle(ctx, encode(t, events.Updated, events.EntityService, 404)); err != nil {
		t.Fatalf("Handle(updated, missing) failed: %v", err)
	}
	if len(f.index.removed) != 2 || f.index.removed[0] != service.ID || f.index.removed[1] != 404 {
		t.Errorf("removed = %v", f.index.removed)
	}
}

func TestHandleInvalidatesHomePage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.redis.Set(utils.HomePageKey("2026-10-19"), "{}")

	if err := f.c.Handle(ctx, encode(t, events.Updated, events.EntityReview, 3)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if f.redis.Exists(utils.HomePageKey("2026-10-19")) {
		t.Error("home page still cached after a review event")
	}
	if len(f.index.put)+len(f.index.removed) != 0 {
		t.Error("review event touched the service index")
	}
}

func TestHandleErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, raw := range []string{`not json`, `{"id":"x"}`} {
		if err := f.c.Handle(ctx, []byte(raw)); err == nil {
			t.Errorf("Handle(%s) expected an error", raw)
		}
	}

	service := models.Service{Name: "Checkup", Description: "d", IsActive: true}
	if err := f.repo.DB().Create(&service).Error; err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	f.index.err = errors.New("es down")
	if err := f.c.Handle(ctx, encode(t, events.Updated, events.EntityService, service.ID)); err == nil {
		t.Error("index failure was swallowed")
	}
}

func TestHandleWithoutIndex(t *testing.T) {
	f := newFixture(t, nil)
	f.c.index = nil
	if err := f.c.Handle(context.Background(), encode(t, events.Created, events.EntityService, 1)); err != nil {
		t.Errorf("Handle without an index failed: %v", err)
	}
}

func TestRunProcessesUntilStopped(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	f := newFixture(t, reader)
	service := models.Service{Name: "Checkup", Description: "d", IsActive: true}
	if err := f.repo.DB().Create(&service).Error; err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	f.index.notify = make(chan uint, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.c.Run(ctx)
		close(done)
	}()

	reader.messages <- kafka.Message{Value: encode(t, events.Created, events.EntityService, service.ID)}
	select {
	case id := <-f.index.notify:
		if id != service.ID {
			t.Errorf("indexed service %d, want %d", id, service.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service was never indexed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	f.c.Stop()
	f.c.Stop()
	if !reader.closed {
		t.Error("Stop did not close the reader")
	}
}
