package logstore

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultPruneLimitDays     = 7.0
	DefaultPruneFrequencySecs = 3600.0

	secondsPerDay = 24 * 60 * 60
)

// pruneState is where the policy sits relative to the executor queue.
type pruneState int

const (
	pruneIdle pruneState = iota
	pruneCheckScheduled
)

// pruner deletes entries older than the retention window. It has no timer:
// checks are queued by Write and the queries, and lastCheck only moves on
// the executor goroutine.
type pruner struct {
	exec   *executor
	engine *engine
	log    *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	limitDays     float64
	frequencySecs float64
	pending       int // checks queued but not yet run

	lastCheck time.Time // executor goroutine only
}

func newPruner(exec *executor, eng *engine, log *slog.Logger, now func() time.Time, limitDays, frequencySecs float64) *pruner {
	return &pruner{
		exec:          exec,
		engine:        eng,
		log:           log,
		now:           now,
		limitDays:     limitDays,
		frequencySecs: frequencySecs,
		lastCheck:     time.Unix(0, 0),
	}
}

func (p *pruner) settings() (limitDays, frequencySecs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limitDays, p.frequencySecs
}

func (p *pruner) setLimitDays(days float64) {
	p.mu.Lock()
	p.limitDays = days
	p.mu.Unlock()
}

func (p *pruner) setFrequencySecs(secs float64) {
	p.mu.Lock()
	p.frequencySecs = secs
	p.mu.Unlock()
}

func (p *pruner) state() pruneState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending > 0 {
		return pruneCheckScheduled
	}
	return pruneIdle
}

// maybeRun queues a prune-or-skip decision behind everything already queued.
// Every request gets its own check so a read always sees a decision made
// after the writes queued before it.
func (p *pruner) maybeRun() {
	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	if err := p.exec.submit(p.check); err != nil {
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	}
}

func (p *pruner) check() {
	defer func() {
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
	}()

	limitDays, frequencySecs := p.settings()
	now := p.now()
	if now.Sub(p.lastCheck).Seconds() < frequencySecs {
		return
	}
	if !p.engine.isOpen() {
		return
	}
	p.lastCheck = now

	n, err := p.run(now, limitDays)
	if err != nil {
		p.log.Warn("failed to prune log store", "limit_days", limitDays, "error", err)
		return
	}
	if n > 0 {
		p.log.Debug("pruned log store", "deleted", n, "limit_days", limitDays)
	}
}

// force runs a prune pass immediately. It must be called on the executor.
func (p *pruner) force() (int64, error) {
	limitDays, _ := p.settings()
	now := p.now()
	p.lastCheck = now
	return p.run(now, limitDays)
}

func (p *pruner) run(now time.Time, limitDays float64) (int64, error) {
	cutoff := toSeconds(now) - limitDays*secondsPerDay
	return p.engine.deleteOlderThan(context.Background(), cutoff)
}
