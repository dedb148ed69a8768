package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("notify: queue is full")
	ErrStopped   = errors.New("notify: dispatcher stopped")
)

// Config tunes the dispatcher.
type Config struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	// Retention is how long finished tasks stay queryable.
	Retention time.Duration
}

// DefaultConfig returns a small pool suitable for a single wedding.
func DefaultConfig() Config {
	return Config{
		Workers:     2,
		QueueSize:   64,
		SendTimeout: 15 * time.Second,
		Retention:   24 * time.Hour,
	}
}

type job struct {
	id string
	n  Notification
}

// Dispatcher runs notifications on a fixed pool of workers fed by a bounded
// queue. Submitters never wait on the relay.
type Dispatcher struct {
	relay  Relay
	config Config
	logger *slog.Logger

	jobs chan job
	done chan struct{}
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	mu      sync.RWMutex
	tasks   map[string]*Task
	stopped bool

	now func() time.Time
}

// NewDispatcher builds a dispatcher. A nil relay marks every task skipped,
// which keeps local development working without a mail relay.
func NewDispatcher(relay Relay, cfg Config, logger *slog.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	return &Dispatcher{
		relay:  relay,
		config: cfg,
		logger: logger,
		jobs:   make(chan job, cfg.QueueSize),
		done:   make(chan struct{}),
		tasks:  make(map[string]*Task),
		now:    time.Now,
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting notification dispatcher", slog.Int("workers", d.config.Workers))
		for i := 0; i < d.config.Workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop rejects new submissions, lets the workers finish what is already
// queued and waits for them.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down notification dispatcher")
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.done)
		d.wg.Wait()
	})
}

// Submit enqueues n and returns its task id. It never blocks.
func (d *Dispatcher) Submit(n Notification) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return "", ErrStopped
	}
	d.prune()

	now := d.now()
	t := &Task{
		ID:          uuid.NewString(),
		Kind:        n.Kind,
		State:       StatePending,
		SubmittedBy: n.SubmittedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	select {
	case d.jobs <- job{id: t.ID, n: n}:
	default:
		return "", ErrQueueFull
	}
	d.tasks[t.ID] = t
	return t.ID, nil
}

// Status returns a copy of the task.
func (d *Dispatcher) Status(id string) (Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case j := <-d.jobs:
			d.run(j)
		case <-d.done:
			// Drain whatever was queued before Stop.
			for {
				select {
				case j := <-d.jobs:
					d.run(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(j job) {
	if d.relay == nil {
		d.finish(j.id, StateSkipped, "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.config.SendTimeout)
	defer cancel()

	start := d.now()
	if err := d.relay.Send(ctx, j.n, j.id); err != nil {
		d.logger.Error("notification failed",
			slog.String("taskID", j.id),
			slog.String("kind", j.n.Kind),
			slog.String("error", err.Error()),
		)
		d.finish(j.id, StateFailed, err.Error())
		return
	}

	d.logger.Info("notification sent",
		slog.String("taskID", j.id),
		slog.String("kind", j.n.Kind),
		slog.Duration("duration", d.now().Sub(start)),
	)
	d.finish(j.id, StateSent, "")
}

func (d *Dispatcher) finish(id string, state State, errText string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tasks[id]
	if !ok {
		return
	}
	t.State = state
	t.Error = errText
	t.UpdatedAt = d.now()
}

// prune drops finished tasks older than the retention window. Caller holds mu.
func (d *Dispatcher) prune() {
	cutoff := d.now().Add(-d.config.Retention)
	for id, t := range d.tasks {
		if t.State != StatePending && t.UpdatedAt.Before(cutoff) {
			delete(d.tasks, id)
		}
	}
}
