package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	defaultBuffer  = 1024
	writeTimeout   = 5 * time.Second
)

// Dispatcher persists audit entries off the request path. Entries are routed
// to a fixed set of workers by hashing the entity id, so the entries of one
// entity are written in the order they were recorded.
type Dispatcher struct {
	workers []chan domain.AuditLog
	repo    ports.AuditRepository
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers, each
// buffering up to buffer entries. Non-positive values fall back to defaults.
func NewDispatcher(numWorkers, buffer int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuditLog, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuditLog, buffer)
	}
	return d
}

// Start launches all worker goroutines. Writes inherit ctx values but not its
// cancellation; workers exit once Shutdown has drained their channel.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(base, i, ch)
	}
}

// Enqueue hands entry to its worker without blocking. It reports false when
// the worker's buffer is full or the dispatcher is shut down.
func (d *Dispatcher) Enqueue(entry domain.AuditLog) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		return false
	}

	idx := d.shardIndex(entry)
	select {
	case d.workers[idx] <- entry:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return true
	default:
		metrics.AuditWritesTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Shutdown stops accepting entries and waits for queued ones to be written,
// or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps an entry deterministically to a worker index.
func (d *Dispatcher) shardIndex(entry domain.AuditLog) int {
	key := entry.Entity
	if entry.EntityID != nil {
		key += ":" + *entry.EntityID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuditLog) {
	defer d.wg.Done()
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))

	for entry := range ch {
		depth.Dec()
		d.write(ctx, id, entry)
	}
}

func (d *Dispatcher) write(ctx context.Context, id int, entry domain.AuditLog) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	start := time.Now()
	err := d.repo.Insert(ctx, &entry)
	metrics.AuditWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.AuditWritesTotal.WithLabelValues("error").Inc()
		d.log.Error().Err(err).
			Str("action", entry.Action).
			Str("entity", entry.Entity).
			Int("worker_id", id).
			Msg("audit write failed")
		return
	}
	metrics.AuditWritesTotal.WithLabelValues("ok").Inc()
}
