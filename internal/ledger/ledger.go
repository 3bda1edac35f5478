// Package ledger tracks the tasks queued on one execution chain so that a
// fatal failure can purge everything still waiting behind it.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/felixgeelhaar/gitpipe/internal/log"
	"github.com/felixgeelhaar/gitpipe/internal/metrics"
	"github.com/felixgeelhaar/gitpipe/internal/task"
)

// Entry is the bookkeeping record of one queued task.
type Entry struct {
	ID      string
	Name    string
	Seq     int
	Task    *task.Task
	Queued  time.Time
	Started time.Time
	Logger  *log.Logger
}

// Ledger records pending tasks in push order.
type Ledger struct {
	mu      sync.Mutex
	pending []*Entry
	purged  map[*Entry]error
	seq     int

	logger  *log.Logger
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the parent logger for per-task loggers.
func WithLogger(logger *log.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithMetrics counts purges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		purged: make(map[*Entry]error),
		logger: log.Nop(),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Push records t as queued and returns its entry.
func (l *Ledger) Push(t *task.Task) *Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	name := fmt.Sprintf("%s#%d", t.Name(), l.seq)
	e := &Entry{
		ID:     uuid.NewString(),
		Name:   name,
		Seq:    l.seq,
		Task:   t,
		Queued: l.clock.Now(),
	}
	e.Logger = l.logger.Named("task").With("task_name", name, "task_id", e.ID)
	l.pending = append(l.pending, e)

	e.Logger.Debug("Adding task to the queue", "commands", t.Commands)
	return e
}

// Attempt marks e as started. It fails with the purge error when a fatal
// failure force-completed e, and with a plain error for unknown entries.
func (l *Ledger) Attempt(e *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.purged[e]; ok {
		delete(l.purged, e)
		return err
	}
	if indexOf(l.pending, e) < 0 {
		return fmt.Errorf("ledger: task %s is not queued", e.Name)
	}

	e.Started = l.clock.Now()
	e.Logger.Debug("Starting task")
	return nil
}

// Complete removes e from the ledger. Unknown entries are ignored.
func (l *Ledger) Complete(e *Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.pending, e)
	if i < 0 {
		return
	}
	e.Logger.Debug("Completing task")
	l.pending = append(l.pending[:i], l.pending[i+1:]...)
}

// Fatal force-completes every tracked entry with err and returns how many
// were purged. The origin entry is logged as the failure; every other entry
// fails its next Attempt with the same err.
func (l *Ledger) Fatal(err error, origin *Entry) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for _, e := range l.pending {
		if e == origin {
			e.Logger.WithError(err).Error("Failed")
			continue
		}
		e.Logger.Debug("Failing queued task due to an earlier error", "error", err.Error())
		l.purged[e] = err
		purged++
	}
	l.pending = nil

	l.metrics.ObservePurge(purged)
	return purged
}

// Len returns the number of queued entries that have not been purged.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func indexOf(list []*Entry, e *Entry) int {
	for i, candidate := range list {
		if candidate == e {
			return i
		}
	}
	return -1
}
