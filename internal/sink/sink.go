// Package sink fans order-state changes out to best-effort collaborators.
// Sink failures are logged and never reach the caller; notification is
// non-blocking so a slow mirror cannot back-pressure the request path.
package sink

import (
	"log/slog"
	"sync"

	"github.com/benx421/payment-reconciler/internal/models"
)

// Sink receives order-state changes. Implementations may be slow or
// unavailable; the fan-out isolates callers from both.
type Sink interface {
	Name() string
	Notify(record *models.Order) error
}

// Fanout dispatches order snapshots to all registered sinks from a single
// worker goroutine fed by a bounded queue. When the queue is full the
// notification is dropped and logged rather than blocking the caller.
type Fanout struct {
	logger *slog.Logger
	sinks  []Sink
	queue  chan models.Order
	done   chan struct{}
	once   sync.Once
}

// NewFanout creates a Fanout and starts its delivery worker
func NewFanout(logger *slog.Logger, queueSize int, sinks ...Sink) *Fanout {
	f := &Fanout{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan models.Order, queueSize),
		done:   make(chan struct{}),
	}

	go f.run()
	return f
}

// Notify enqueues an order snapshot for delivery. Never blocks.
func (f *Fanout) Notify(record *models.Order) {
	if record == nil {
		return
	}

	select {
	case f.queue <- *record:
	default:
		f.logger.Warn("sink queue full, dropping notification",
			"merchant_transaction_id", record.MerchantTransactionID,
		)
	}
}

// Close stops the worker after draining queued notifications
func (f *Fanout) Close() {
	f.once.Do(func() {
		close(f.queue)
		<-f.done
	})
}

func (f *Fanout) run() {
	defer close(f.done)

	for record := range f.queue {
		for _, s := range f.sinks {
			if err := s.Notify(&record); err != nil {
				f.logger.Error("sink notification failed",
					"sink", s.Name(),
					"merchant_transaction_id", record.MerchantTransactionID,
					"error", err,
				)
			}
		}
	}
}
