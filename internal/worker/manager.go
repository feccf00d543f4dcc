package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"bookshelf/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second

	// readErrorBackoff is the pause after a failed XREADGROUP
	readErrorBackoff = time.Second
)

// ManagerConfig holds configuration for the worker manager.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration

	// ConsumerPrefix names this process inside the consumer group. It defaults
	// to the hostname so that replicas do not replay each other's pending entries.
	ConsumerPrefix string
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// Stats counts what the workers have done since Start.
type Stats struct {
	Batches  int64
	Events   int64
	Failures int64 // batches whose handling reported an error
}

// Manager runs the consumers of the list event stream. Every entry is acked
// after its batch is handled, failed or not: cache entries expire on their
// own TTL, so redelivery would buy nothing.
type Manager struct {
	consumer queue.Consumer
	handler  *Handler
	cfg      ManagerConfig

	batches  atomic.Int64
	events   atomic.Int64
	failures atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	if cfg.ConsumerPrefix == "" {
		cfg.ConsumerPrefix = defaultConsumerPrefix()
	}

	return &Manager{consumer: consumer, handler: handler, cfg: cfg}
}

// Start creates the consumer group if needed and launches the workers.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.consumer.EnsureGroup(ctx, queue.StreamLists, queue.ConsumerGroupLists); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	for i := 1; i <= m.cfg.WorkerCount; i++ {
		w := &streamWorker{
			manager: m,
			tag:     fmt.Sprintf("[Worker-%d]", i),
			name:    fmt.Sprintf("%s-%d", m.cfg.ConsumerPrefix, i),
		}
		m.wg.Add(1)
		go w.run(ctx)
	}

	log.Printf("[Manager] Started %d workers stream=%s group=%s prefix=%s",
		m.cfg.WorkerCount, queue.StreamLists, queue.ConsumerGroupLists, m.cfg.ConsumerPrefix)
	return nil
}

// Stop cancels the workers and waits for the batch in flight to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()

	s := m.Stats()
	log.Printf("[Manager] Stopped batches=%d events=%d failures=%d", s.Batches, s.Events, s.Failures)
}

func (m *Manager) Stats() Stats {
	return Stats{
		Batches:  m.batches.Load(),
		Events:   m.events.Load(),
		Failures: m.failures.Load(),
	}
}

// streamWorker is one consumer of the group.
type streamWorker struct {
	manager *Manager
	tag     string
	name    string
}

func (w *streamWorker) run(ctx context.Context) {
	defer w.manager.wg.Done()

	// Entries delivered to this consumer name before a restart come first.
	w.drainPending(ctx)

	for ctx.Err() == nil {
		messages, err := w.manager.consumer.Read(ctx, queue.StreamLists, queue.ConsumerGroupLists,
			w.name, w.manager.cfg.BatchSize, w.manager.cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("%s Read failed: %v", w.tag, err)
			select {
			case <-ctx.Done():
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		w.handle(ctx, messages)
	}
	log.Printf("%s Stopped", w.tag)
}

func (w *streamWorker) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		messages, err := w.manager.consumer.ReadPending(ctx, queue.StreamLists, queue.ConsumerGroupLists,
			w.name, w.manager.cfg.BatchSize)
		if err != nil {
			log.Printf("%s ReadPending failed: %v", w.tag, err)
			return
		}
		if len(messages) == 0 {
			return
		}
		log.Printf("%s Replaying %d pending entries", w.tag, len(messages))
		w.handle(ctx, messages)
	}
}

func (w *streamWorker) handle(ctx context.Context, messages []queue.Message) {
	if len(messages) == 0 {
		return
	}

	events := make([]queue.ListEvent, len(messages))
	ids := make([]string, len(messages))
	for i, msg := range messages {
		events[i] = msg.Event
		ids[i] = msg.ID
	}

	m := w.manager
	m.batches.Add(1)
	m.events.Add(int64(len(events)))
	if err := m.handler.HandleBatch(ctx, events); err != nil {
		m.failures.Add(1)
		log.Printf("%s Batch of %d failed: %v", w.tag, len(events), err)
	}

	if err := m.consumer.Ack(ctx, queue.StreamLists, queue.ConsumerGroupLists, ids...); err != nil {
		log.Printf("%s Ack of %d entries failed: %v", w.tag, len(ids), err)
	}
}

func defaultConsumerPrefix() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return fmt.Sprintf("worker-%d", os.Getpid())
	}
	return host
}
