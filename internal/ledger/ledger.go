// Package ledger implements the durable per-identity usage quota ledger.
//
// The ledger owns the check-and-admit / commit-on-success contract used by
// request admission: CheckAndGet applies the calendar reset window and
// compares the current counter against the configured maximum, and Commit
// charges one unit after the upstream call actually succeeded. All state
// transitions run under a single mutex covering the whole
// load-check-reset-save sequence.
//
// Persistence is deliberately fail-open: a store that cannot be loaded is
// treated as empty, and a failed save is logged and swallowed. Availability
// of the relay outweighs quota-accounting precision.
package ledger

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Store is the durable snapshot backend for the ledger.
//
// Save replaces the full snapshot: identities absent from the map must not
// survive in the store.
type Store interface {
	Load(ctx context.Context) (map[string]Record, error)
	Save(ctx context.Context, records map[string]Record) error
	Close() error
}

// Limits carries the per-category maxima and the reset period. A snapshot is
// fetched from the LimitsProvider on every operation so config reloads take
// effect without restarting.
type Limits struct {
	MaxQuestions        int
	MaxImageGenerations int
	Period              Period
}

// maxFor returns the configured maximum for a category.
func (l Limits) maxFor(category Category) int {
	if category == CategoryImageGenerations {
		return l.MaxImageGenerations
	}
	return l.MaxQuestions
}

// LimitsProvider supplies the latest limits snapshot.
type LimitsProvider func() Limits

// CheckResult is the outcome of a quota check.
type CheckResult struct {
	Admitted bool   // Whether the request may proceed.
	Current  int    // Counter value before any increment.
	Max      int    // Configured maximum for the category.
	Period   Period // Active reset period, for error messages.
}

// CategoryUsage summarizes one category for the usage endpoint.
type CategoryUsage struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	Remaining int `json:"remaining"`
}

// UsageSnapshot is the read-only view served by GET /usage.
type UsageSnapshot struct {
	Questions        CategoryUsage
	ImageGenerations CategoryUsage
	ResetPeriod      Period
}

// Ledger is the process-scoped usage ledger service. Construct one at
// startup and pass it into request handlers; it is never package-global.
type Ledger struct {
	mu     sync.Mutex
	store  Store
	limits LimitsProvider
	nowFn  func() time.Time
}

// New constructs a Ledger. nowFn defaults to time.Now when nil.
func New(store Store, limits LimitsProvider, nowFn func() time.Time) *Ledger {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Ledger{store: store, limits: limits, nowFn: nowFn}
}

// CheckAndGet loads or lazily creates the record for an identity, applies
// the reset window, and reports whether the request fits under the quota
// for the category. It never fails: persistence errors degrade to an empty
// ledger, which admits everyone.
func (l *Ledger) CheckAndGet(ctx context.Context, id string, category Category) CheckResult {
	limits := l.limits()

	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.loadLocked(ctx)
	now := l.nowFn()

	record, exists := records[id]
	if !exists {
		records[id] = newRecord(now)
		l.saveLocked(ctx, records)
		max := limits.maxFor(category)
		return CheckResult{Admitted: max > 0, Current: 0, Max: max, Period: limits.Period}
	}

	if resetDue(record.LastReset, now, limits.Period) {
		record = newRecord(now)
		records[id] = record
		l.saveLocked(ctx, records)
	}

	current := record.count(category)
	max := limits.maxFor(category)
	return CheckResult{Admitted: current < max, Current: current, Max: max, Period: limits.Period}
}

// Commit charges one unit against the category and persists the snapshot.
// It must only be called after a successful upstream call for a request that
// was previously admitted for the same category.
func (l *Ledger) Commit(ctx context.Context, id string, category Category) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.loadLocked(ctx)
	record, exists := records[id]
	if !exists {
		record = newRecord(l.nowFn())
	}
	if record.Counters == nil {
		record.Counters = make(map[Category]int)
	}
	record.Counters[category]++
	records[id] = record
	l.saveLocked(ctx, records)
}

// Usage returns the current per-category usage for an identity. It performs
// the same reset-window check as the quota path, so an elapsed window zeroes
// the caller's counters as a side effect.
func (l *Ledger) Usage(ctx context.Context, id string) UsageSnapshot {
	limits := l.limits()

	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.loadLocked(ctx)
	now := l.nowFn()

	record, exists := records[id]
	if exists && resetDue(record.LastReset, now, limits.Period) {
		record = newRecord(now)
		records[id] = record
		l.saveLocked(ctx, records)
	}

	questions := record.count(CategoryQuestions)
	images := record.count(CategoryImageGenerations)
	return UsageSnapshot{
		Questions: CategoryUsage{
			Current:   questions,
			Max:       limits.MaxQuestions,
			Remaining: limits.MaxQuestions - questions,
		},
		ImageGenerations: CategoryUsage{
			Current:   images,
			Max:       limits.MaxImageGenerations,
			Remaining: limits.MaxImageGenerations - images,
		},
		ResetPeriod: limits.Period,
	}
}

// EvictIdle drops records whose last reset is older than maxIdle and
// returns how many were removed. Without this the ledger grows without
// bound as fingerprints churn.
func (l *Ledger) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.loadLocked(ctx)
	cutoff := l.nowFn().Add(-maxIdle)

	evicted := 0
	for id, record := range records {
		last, errParse := time.Parse(time.RFC3339, record.LastReset)
		if errParse != nil || last.Before(cutoff) {
			delete(records, id)
			evicted++
		}
	}
	if evicted > 0 {
		l.saveLocked(ctx, records)
		log.WithField("evicted", evicted).Info("ledger: dropped stale identities")
	}
	return evicted
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// loadLocked fetches the snapshot, treating any failure as an empty ledger.
// Caller must hold the mutex.
func (l *Ledger) loadLocked(ctx context.Context) map[string]Record {
	records, errLoad := l.store.Load(ctx)
	if errLoad != nil {
		log.WithError(errLoad).Warn("ledger: load failed, treating as empty")
		return make(map[string]Record)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	return records
}

// saveLocked persists the snapshot, logging and swallowing failures so a
// broken store never aborts the request being served. Caller must hold the
// mutex.
func (l *Ledger) saveLocked(ctx context.Context, records map[string]Record) {
	if errSave := l.store.Save(ctx, records); errSave != nil {
		log.WithError(errSave).Warn("ledger: save failed")
	}
}
