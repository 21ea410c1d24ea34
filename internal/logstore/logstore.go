// Package logstore provides a persistent, embeddable log sink backed by a
// single SQLite file.
//
// A Store funnels every operation against the file through one goroutine, so
// it is safe for concurrent use. Writes are queued and return immediately;
// Open, Close and the queries wait for their turn and return the result.
// Entries older than the retention window are pruned lazily, piggybacking on
// writes and reads. An idle store does not prune.
//
// There is no cancellation: a stalled SQLite call stalls the whole queue.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultFilterSeverity is the least severe level a new Store persists.
const DefaultFilterSeverity = SeverityWarning

// Echoer receives every entry the store accepts, before it is queued.
type Echoer interface {
	Echo(e Entry)
}

// Option configures a Store.
type Option func(*Store)

// WithFilterSeverity sets the least severe level that Write persists.
func WithFilterSeverity(s Severity) Option {
	return func(st *Store) { st.filter = s }
}

// WithPruneLimitDays sets how many days of entries are kept.
func WithPruneLimitDays(days float64) Option {
	return func(st *Store) { st.limitDays = days }
}

// WithPruneFrequencySecs sets the minimum interval between prune passes.
func WithPruneFrequencySecs(secs float64) Option {
	return func(st *Store) { st.frequencySecs = secs }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(st *Store) { st.log = log }
}

// WithEcho copies accepted entries to e, usually a console.
func WithEcho(e Echoer) Option {
	return func(st *Store) { st.echo = e }
}

// WithClock replaces time.Now for pruning decisions and default timestamps.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// Store is a log sink backed by one SQLite file. The zero value is not
// usable; call New.
type Store struct {
	path string
	log  *slog.Logger
	echo Echoer
	now  func() time.Time

	limitDays     float64
	frequencySecs float64

	mu     sync.RWMutex
	filter Severity
	closed bool

	engine *engine
	exec   *executor
	pruner *pruner
}

// New creates a store for the file at path. It starts the store's worker but
// does not touch the file until Open. An empty path is a programming error.
func New(path string, opts ...Option) *Store {
	if path == "" {
		panic("logstore: empty store path")
	}

	s := &Store{
		path:          path,
		filter:        DefaultFilterSeverity,
		limitDays:     DefaultPruneLimitDays,
		frequencySecs: DefaultPruneFrequencySecs,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	s.engine = newEngine(path, s.log)
	s.exec = newExecutor(s.log)
	s.pruner = newPruner(s.exec, s.engine, s.log, s.now, s.limitDays, s.frequencySecs)
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Open creates the file and schema if needed. Opening an open store is a
// no-op.
func (s *Store) Open() error {
	err := s.exec.do(func() error {
		return s.engine.open(context.Background())
	})
	if errors.Is(err, ErrClosed) {
		return &StoreError{Kind: ErrOpenFailed, Msg: err.Error(), Err: err}
	}
	return err
}

// Close closes the file and stops the worker once queued writes have run.
// Calling it again returns nil. The worker is stopped even if closing the
// file fails.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.exec.do(func() error {
		return s.engine.close()
	})
	s.exec.stop()
	return err
}

// FilterSeverity returns the least severe level Write persists.
func (s *Store) FilterSeverity() Severity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetFilterSeverity changes the least severe level Write persists.
func (s *Store) SetFilterSeverity(sev Severity) {
	s.mu.Lock()
	s.filter = sev
	s.mu.Unlock()
}

// PruneLimitDays returns the retention window in days.
func (s *Store) PruneLimitDays() float64 {
	days, _ := s.pruner.settings()
	return days
}

// SetPruneLimitDays changes the retention window. It is not persisted, so set
// it before the first write after every start.
func (s *Store) SetPruneLimitDays(days float64) {
	s.pruner.setLimitDays(days)
}

// PruneFrequencySecs returns the minimum interval between prune passes.
func (s *Store) PruneFrequencySecs() float64 {
	_, secs := s.pruner.settings()
	return secs
}

// SetPruneFrequencySecs changes the minimum interval between prune passes.
func (s *Store) SetPruneFrequencySecs(secs float64) {
	s.pruner.setFrequencySecs(secs)
}

// Write queues e for insertion and returns without waiting. Entries less
// severe than the filter are dropped without touching the queue. Insert
// failures are logged, never returned.
func (s *Store) Write(e Entry) {
	if !e.Severity.AtLeast(s.FilterSeverity()) {
		return
	}
	e = e.withDefaults(s.now())

	if s.echo != nil {
		s.echo.Echo(e)
	}

	s.pruner.maybeRun()
	err := s.exec.submit(func() {
		if err := s.engine.insertEntry(context.Background(), e); err != nil {
			s.reportDropped("failed to write log entry", e, err)
		}
	})
	if err != nil {
		s.reportDropped("dropped log entry", e, err)
	}
}

// reportDropped logs a lost entry and tells the echo channel about it.
func (s *Store) reportDropped(msg string, e Entry, err error) {
	s.log.Warn(msg, "severity", e.Severity.String(), "error", err)
	if s.echo != nil {
		s.echo.Echo(Entry{
			Timestamp: s.now(),
			Severity:  SeverityError,
			Message:   fmt.Sprintf("logstore: %s: %v", msg, err),
		})
	}
}

// QueryRange returns entries between start and end inclusive that are at least
// as severe as minSeverity, oldest first. A zero start is unbounded; a zero
// end means now.
func (s *Store) QueryRange(start, end time.Time, minSeverity Severity) ([]Entry, error) {
	return s.query(start, end, minSeverity, -1, true)
}

// QueryRecent returns at most maxCount entries that are at least as severe as
// minSeverity, newest first.
func (s *Store) QueryRecent(maxCount int, minSeverity Severity) ([]Entry, error) {
	if maxCount <= 0 {
		return nil, nil
	}
	return s.query(time.Time{}, time.Time{}, minSeverity, maxCount, false)
}

func (s *Store) query(start, end time.Time, minSeverity Severity, maxRows int, ascending bool) ([]Entry, error) {
	s.pruner.maybeRun()

	var entries []Entry
	err := s.exec.do(func() error {
		if end.IsZero() {
			end = s.now()
		}
		var err error
		entries, err = s.engine.queryRange(context.Background(), start, end, minSeverity, maxRows, ascending)
		return err
	})
	if errors.Is(err, ErrClosed) {
		return nil, &StoreError{Kind: ErrQueryFailed, Msg: err.Error(), Err: err}
	}
	return entries, err
}

// Prune deletes entries older than the retention window now, regardless of
// when the last pass ran, and returns how many were removed.
func (s *Store) Prune() (int64, error) {
	var n int64
	err := s.exec.do(func() error {
		var err error
		n, err = s.pruner.force()
		return err
	})
	if errors.Is(err, ErrClosed) {
		return 0, &StoreError{Kind: ErrPruneFailed, Msg: err.Error(), Err: err}
	}
	return n, err
}

// Count returns the number of stored entries.
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.exec.do(func() error {
		var err error
		n, err = s.engine.count(context.Background())
		return err
	})
	if errors.Is(err, ErrClosed) {
		return 0, &StoreError{Kind: ErrQueryFailed, Msg: err.Error(), Err: err}
	}
	return n, err
}
