package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"vetclinic/events"
	"vetclinic/models"
	"vetclinic/monitoring"
	"vetclinic/utils"
)

// ServiceIndexer keeps the search index in step with the services table.
type ServiceIndexer interface {
	Put(ctx context.Context, service models.Service) error
	Remove(ctx context.Context, id uint) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Options struct {
	Broker string
	Topic  string
	Group  string
}

// ClinicConsumer reads clinic_events and refreshes the derived state: the
// service search index and the cached home page.
type ClinicConsumer struct {
	repo     models.Repository
	cache    *utils.PageCache
	index    ServiceIndexer
	reader   MessageReader
	retry    time.Duration
	shutdown chan struct{}
	once     sync.Once
}

func NewClinicConsumer(repo models.Repository, cache *utils.PageCache, index ServiceIndexer, opts Options) *ClinicConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{opts.Broker},
		Topic:   opts.Topic,
		GroupID: opts.Group,
		MaxWait: 10 * time.Second,
	})
	return newClinicConsumer(repo, cache, index, reader)
}

func newClinicConsumer(repo models.Repository, cache *utils.PageCache, index ServiceIndexer, reader MessageReader) *ClinicConsumer {
	return &ClinicConsumer{
		repo:     repo,
		cache:    cache,
		index:    index,
		reader:   reader,
		retry:    5 * time.Second,
		shutdown: make(chan struct{}),
	}
}

// Start runs the consumer in the background until Stop is called or ctx
// is done.
func (c *ClinicConsumer) Start(ctx context.Context) {
	log.Println("Starting Kafka consumer...")
	go c.Run(ctx)
}

// Run blocks, processing messages until Stop is called or ctx is done.
func (c *ClinicConsumer) Run(ctx context.Context) {
	for {
		select {
		case <-c.shutdown:
			return
		case <-ctx.Done():
			return
		default:
			c.processMessage(ctx)
		}
	}
}

func (c *ClinicConsumer) Stop() {
	c.once.Do(func() {
		close(c.shutdown)
		if err := c.reader.Close(); err != nil {
			log.Printf("Error closing Kafka reader: %v", err)
		}
	})
}

func (c *ClinicConsumer) processMessage(ctx context.Context) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
			return
		}
		log.Printf("Kafka read error: %v (will retry)", err)
		select {
		case <-time.After(c.retry):
		case <-ctx.Done():
		case <-c.shutdown:
		}
		return
	}

	if err := c.Handle(ctx, msg.Value); err != nil {
		log.Printf("Failed to process Kafka message at offset %d: %v", msg.Offset, err)
	}
}

// Handle applies one encoded event.
func (c *ClinicConsumer) Handle(ctx context.Context, value []byte) error {
	ev, err := events.Decode(value)
	if err != nil {
		monitoring.EventsConsumed.WithLabelValues("invalid").Inc()
		return err
	}
	monitoring.EventsConsumed.WithLabelValues(ev.Name()).Inc()

	// Любое изменение может затронуть главную страницу.
	c.cache.InvalidateHome(ctx)

	if ev.Entity == events.EntityService {
		if err := c.syncService(ctx, ev); err != nil {
			return fmt.Errorf("%s for service %d: %w", ev.Name(), ev.EntityID, err)
		}
	}
	log.Printf("Processed %s event for %s %d", ev.Name(), ev.Entity, ev.EntityID)
	return nil
}

func (c *ClinicConsumer) syncService(ctx context.Context, ev events.Event) error {
	if c.index == nil {
		return nil
	}
	if ev.Event == events.Deleted {
		return c.index.Remove(ctx, ev.EntityID)
	}

	service, err := c.repo.GetService(ctx, ev.EntityID)
	if errors.Is(err, models.ErrNotFound) {
		// Deleted after the event was written.
		return c.index.Remove(ctx, ev.EntityID)
	}
	if err != nil {
		return err
	}
	return c.index.Put(ctx, *service)
}
