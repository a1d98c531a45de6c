package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/api/metrics"
	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher persists audit events on a fixed set of workers, sharded by the
// caller identifier so one caller's events are written in order.
type Dispatcher struct {
	workers []chan domain.AuthEvent
	repo    ports.AuditRepository
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, repo ports.AuditRepository, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan domain.AuthEvent, numWorkers),
		repo:    repo,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.AuthEvent, channelBuffer)
	}
	return d
}

var _ ports.AuditRecorder = (*Dispatcher)(nil)

// Start launches all worker goroutines. Workers drain their queues and stop
// when ctx is cancelled; Wait blocks until they have.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		i, ch := i, ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runWorker(ctx, i, ch)
		}()
	}
}

// Wait blocks until every worker started by Start has returned. Events
// recorded after that are never persisted, so cancel the dispatcher only once
// nothing can call Record.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Record hands event to its worker. It never blocks: when the worker's
// channel is full the event is dropped and counted.
func (d *Dispatcher) Record(event domain.AuthEvent) {
	idx := d.shardIndex(event.CallerID)
	select {
	case d.workers[idx] <- event:
		metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.AuditDroppedTotal.Inc()
		d.log.Warn().
			Str("operation", string(event.Operation)).
			Int("worker_id", idx).
			Msg("audit queue full, event dropped")
	}
}

// shardIndex maps a caller identifier deterministically to a worker index.
func (d *Dispatcher) shardIndex(callerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(callerID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.AuthEvent) {
	depth := metrics.AuditQueueDepth.WithLabelValues(strconv.Itoa(id))
	// The requests that produced the events have already returned.
	insertCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued, then stop.
			for {
				select {
				case event := <-ch:
					d.insert(insertCtx, id, event)
				default:
					depth.Set(0)
					return
				}
			}
		case event, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			d.insert(insertCtx, id, event)
		}
	}
}

func (d *Dispatcher) insert(ctx context.Context, workerID int, event domain.AuthEvent) {
	if err := d.repo.Insert(ctx, &event); err != nil {
		d.log.Error().Err(err).
			Str("event_id", event.ID).
			Str("operation", string(event.Operation)).
			Int("worker_id", workerID).
			Msg("audit insert failed")
	}
}
