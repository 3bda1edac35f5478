// Package scheduler bounds how many git processes run at the same time.
//
// Every task asks the Scheduler for an admission ticket before it spawns a
// process and hands the ticket back once the process has fully terminated.
// Tickets are granted in strict FIFO order across every chain sharing the
// Scheduler, so a task queued earlier is never overtaken by a later one.
//
//	sched := scheduler.New(2)
//	release, err := sched.Admit(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/metrics"
)

// DefaultConcurrency is the number of processes allowed to run at once when
// no limit is configured.
const DefaultConcurrency = 2

// Release returns an admission ticket. Calling it more than once is a no-op.
type Release func()

type ticket struct {
	id        int
	ready     chan struct{}
	release   Release
	requested time.Time
}

// Stats is a snapshot of the scheduler's queues.
type Stats struct {
	Pending     int
	Running     int
	Concurrency int
}

// Scheduler is a FIFO admission gate for process slots.
type Scheduler struct {
	mu          sync.Mutex
	concurrency int
	pending     []*ticket
	running     []*ticket
	nextID      int

	logger  *log.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

// Option configures a Scheduler instance.
type Option func(*Scheduler)

// WithLogger sets the logger used for queue traces.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger.Named("scheduler")
	}
}

// WithMetrics reports queue lengths and admission latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithClock sets the clock used to time admissions.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// New creates a scheduler admitting at most concurrency tickets at a time.
// Values below 1 are treated as 1.
func New(concurrency int, opts ...Option) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}

	s := &Scheduler{
		concurrency: concurrency,
		logger:      log.Nop(),
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("Constructed", "concurrency", concurrency)
	return s
}

// Admit blocks until a process slot is available or ctx is done.
//
// The returned Release must be called once the process guarded by the ticket
// has terminated, on every path including errors.
func (s *Scheduler) Admit(ctx context.Context) (Release, error) {
	s.mu.Lock()
	s.nextID++
	t := &ticket{
		id:        s.nextID,
		ready:     make(chan struct{}),
		requested: s.clock.Now(),
	}
	s.pending = append(s.pending, t)
	s.logger.Debug("Scheduling", "id", t.id)
	s.scheduleLocked()
	s.mu.Unlock()

	select {
	case <-t.ready:
		s.metrics.ObserveAdmission(s.clock.Since(t.requested), false)
		return t.release, nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	if removeTicket(&s.pending, t) {
		s.logger.Debug("Abandoned", "id", t.id)
		s.observeLocked()
		s.mu.Unlock()
		s.metrics.ObserveAdmission(0, true)
		return nil, ctx.Err()
	}
	s.mu.Unlock()

	// Admitted between ctx firing and taking the lock.
	t.release()
	s.metrics.ObserveAdmission(0, true)
	return nil, ctx.Err()
}

// Stats returns the current queue lengths.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Pending:     len(s.pending),
		Running:     len(s.running),
		Concurrency: s.concurrency,
	}
}

// Concurrency returns the configured slot count.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// scheduleLocked moves pending tickets into free slots, oldest first.
// The caller must hold s.mu.
func (s *Scheduler) scheduleLocked() {
	if len(s.pending) == 0 || len(s.running) >= s.concurrency {
		s.logger.Debug("Schedule attempt ignored",
			"pending", len(s.pending),
			"running", len(s.running),
			"concurrency", s.concurrency)
		s.observeLocked()
		return
	}

	for len(s.pending) > 0 && len(s.running) < s.concurrency {
		next := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.running = append(s.running, next)

		var once sync.Once
		next.release = func() {
			once.Do(func() { s.complete(next) })
		}

		s.logger.Debug("Attempting", "id", next.id)
		close(next.ready)
	}
	s.observeLocked()
}

func (s *Scheduler) complete(t *ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("Completing", "id", t.id)
	removeTicket(&s.running, t)
	s.scheduleLocked()
}

func (s *Scheduler) observeLocked() {
	s.metrics.ObserveScheduler(len(s.running), len(s.pending))
}

func removeTicket(list *[]*ticket, t *ticket) bool {
	for i, candidate := range *list {
		if candidate == t {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
