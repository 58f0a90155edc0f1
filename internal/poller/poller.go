package poller

import (
	"context"
	"sync"
	"time"

	"github.com/alexisrja/RemitPay/internal/metrics"
	"github.com/alexisrja/RemitPay/internal/models"
	"github.com/alexisrja/RemitPay/internal/patterns"
	"github.com/alexisrja/RemitPay/internal/remit"
	log "github.com/sirupsen/logrus"
)

// Finalizer is what the controller drives on every tick.
type Finalizer interface {
	Finalize(ctx context.Context, id string) (*models.Transaction, remit.FinalizeOutcome, error)
}

// Controller watches pending transactions in the background: every
// interval it calls Finalize until the transaction reaches a terminal
// state or the attempt budget runs out. At most one watcher exists per
// transaction id, and hitting the budget leaves the transaction PENDING
// so the user can still complete it manually.
type Controller struct {
	finalizer   Finalizer
	interval    time.Duration
	maxAttempts int

	mu       sync.Mutex
	watchers map[string]chan struct{}
	closed   bool
	wg       sync.WaitGroup
}

// DefaultInterval and DefaultMaxAttempts give the ~120 second consent
// window: 24 checks, 5 seconds apart.
const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 24
)

func NewController(f Finalizer, interval time.Duration, maxAttempts int) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Controller{
		finalizer:   f,
		interval:    interval,
		maxAttempts: maxAttempts,
		watchers:    make(map[string]chan struct{}),
	}
}

// Watch starts a background watcher for the transaction. Returns false
// if one is already outstanding or the controller is closed.
func (c *Controller) Watch(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if _, ok := c.watchers[id]; ok {
		return false
	}
	done := make(chan struct{})
	c.watchers[id] = done
	c.wg.Add(1)
	go c.run(id, done)
	return true
}

// Cancel stops the watcher for a transaction, if any.
func (c *Controller) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if done, ok := c.watchers[id]; ok {
		close(done)
		delete(c.watchers, id)
	}
}

// Close cancels every watcher and waits for them to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	for id, done := range c.watchers {
		close(done)
		delete(c.watchers, id)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) run(id string, done chan struct{}) {
	defer c.wg.Done()
	defer c.remove(id, done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempts := 0; attempts < c.maxAttempts; {
		select {
		case <-done:
			return
		case <-ticker.C:
			attempts++
			metrics.PollAttempts.Inc()

			ctx, cancel := patterns.WithTimeout(patterns.FinalizeTimeout)
			tx, outcome, err := c.finalizer.Finalize(ctx, id)
			cancel()

			if err != nil {
				log.WithFields(log.Fields{
					"transaction_id": id,
					"error":          err.Error(),
				}).Warn("Stopping authorization poll")
				return
			}

			switch outcome {
			case remit.OutcomeCompleted, remit.OutcomeFailed:
				log.WithFields(log.Fields{
					"transaction_id": id,
					"status":         tx.Status,
					"attempts":       attempts,
				}).Info("Authorization poll reached terminal state")
				return
			case remit.OutcomeAlreadyProcessed:
				if tx.Status.Terminal() {
					return
				}
			}
		}
	}

	// Budget exhausted: the transaction stays PENDING, completion is
	// still possible through the manual endpoint.
	metrics.PollTimeouts.Inc()
	log.WithFields(log.Fields{
		"transaction_id": id,
		"attempts":       c.maxAttempts,
	}).Warn("Authorization poll timed out without a terminal state")
}

func (c *Controller) remove(id string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Only remove our own registration; Cancel may already have replaced
	// it with a newer watcher.
	if current, ok := c.watchers[id]; ok && current == done {
		delete(c.watchers, id)
	}
}
