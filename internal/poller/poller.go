package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"perimeter-state-sync/internal/cache"
	"perimeter-state-sync/internal/cascade"
	"perimeter-state-sync/internal/fence"
	"perimeter-state-sync/internal/prod"
)

var (
	ErrFetchFailed     = errors.New("production fetch failed")
	ErrCacheFailed     = errors.New("cache update failed")
	ErrWriteBackFailed = errors.New("production write-back failed")
)

// checkpointEpsilon guarantees the next cycle never reprocesses the same
// instant the last one ended on.
const checkpointEpsilon = time.Millisecond

type productionStore interface {
	FetchChangedSince(ctx context.Context, since time.Time) ([]prod.DeviceRow, error)
	FetchAllTracked(ctx context.Context) ([]prod.DeviceRow, error)
	WriteStatus(ctx context.Context, name, status string) error
}

type changeNotifier interface {
	Publish(ctx context.Context, records []cache.DeviceRecord) error
}

type Config struct {
	Prod     productionStore
	Cache    *cache.Store
	Notifier changeNotifier // optional
	Lookback time.Duration  // checkpoint default when the store has no tracked rows
}

// Poller runs the reconciliation cycle: fetch production changes since the
// checkpoint, classify and cascade them through the cache, echo derived
// statuses back, advance the checkpoint. It owns the checkpoint explicitly
// and expects to be driven by a single goroutine.
type Poller struct {
	prod       productionStore
	cache      *cache.Store
	notifier   changeNotifier
	lookback   time.Duration
	checkpoint time.Time
}

func New(cfg Config) *Poller {
	return &Poller{
		prod:     cfg.Prod,
		cache:    cfg.Cache,
		notifier: cfg.Notifier,
		lookback: cfg.Lookback,
	}
}

func (p *Poller) Checkpoint() time.Time {
	return p.checkpoint
}

// Init seeds the checkpoint from the cache, or performs the one-time
// backfill when the cache is empty. Backfill classifies each row directly
// without cascading; cascades only apply to observed changes.
func (p *Poller) Init(ctx context.Context) error {
	const fn = "Poller:Init"

	max, ok, err := p.cache.MaxLastSetTime(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
	}
	if ok {
		p.checkpoint = max
		slog.InfoContext(ctx, "Checkpoint initialized from cache", "checkpoint", p.checkpoint)
		return nil
	}

	slog.InfoContext(ctx, "Cache is empty, performing initial backfill...")
	rows, err := p.prod.FetchAllTracked(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrFetchFailed, err)
	}
	if len(rows) == 0 {
		p.checkpoint = time.Now().Add(-p.lookback)
		slog.InfoContext(ctx, "No tracked devices in production, using lookback checkpoint",
			"checkpoint", p.checkpoint)
		return nil
	}

	tx, err := p.cache.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
	}

	var latest time.Time
	for _, row := range rows {
		cat := fence.Classify(row.RawState)
		rec := buildRecord(row, nil)
		rec.EffectiveState = fence.DirectEffective(cat, row.RawState)
		if err := tx.Upsert(ctx, rec); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
		}
		if row.SetTime.After(latest) {
			latest = row.SetTime
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
	}

	p.checkpoint = latest
	slog.InfoContext(ctx, "Backfill complete", "devices", len(rows), "checkpoint", p.checkpoint)
	return nil
}

// RunCycle processes one poll cycle. Any store error aborts the cycle:
// the cache transaction is rolled back and the checkpoint stays put, so the
// next cycle retries the same changes.
func (p *Poller) RunCycle(ctx context.Context) error {
	const fn = "Poller:RunCycle"

	rows, err := p.prod.FetchChangedSince(ctx, p.checkpoint)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrFetchFailed, err)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.cache.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
	}

	var (
		maxSeen   = p.checkpoint
		pending   = make(map[string]cache.DeviceRecord)
		echoOrder []string
		skipped   int
	)
	for _, row := range rows {
		if row.SetTime.After(maxSeen) {
			maxSeen = row.SetTime
		}

		prev, found, err := tx.Get(ctx, row.Name)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
		}

		cat := fence.Classify(row.RawState)
		if found && prev.RawState == row.RawState && !forcedReevaluation(cat, row.RawState, prev) {
			skipped++
			continue
		}

		var prevPtr *cache.DeviceRecord
		if found {
			prevPtr = &prev
		}
		rec := buildRecord(row, prevPtr)
		if rec.DeviceType == fence.TypeUnknown {
			slog.InfoContext(ctx, "Unparseable device name, tagging as unknown", "device", row.Name)
		}
		if cat == fence.CategoryUnknown {
			slog.InfoContext(ctx, "Unrecognized status text, no cascade applied",
				"device", row.Name, "raw_state", row.RawState)
		}
		affected, err := cascade.Apply(ctx, tx, cat, rec)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
		}
		for _, rec := range affected {
			if _, queued := pending[rec.Name]; !queued {
				echoOrder = append(echoOrder, rec.Name)
			}
			pending[rec.Name] = rec
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCacheFailed, err)
	}

	// Write-back failures after the cache commit leave the stores divergent
	// for devices already written; the cycle retries from the unchanged
	// checkpoint and reproduces the same cascade outcome.
	for i, name := range echoOrder {
		if err := p.prod.WriteStatus(ctx, name, pending[name].RawState); err != nil {
			slog.ErrorContext(ctx, "Partial production write-back",
				"written", i, "pending", len(echoOrder)-i, "device", name, "error", err)
			return fmt.Errorf("%s:%w:%w", fn, ErrWriteBackFailed, err)
		}
	}

	if p.notifier != nil && len(echoOrder) > 0 {
		records := make([]cache.DeviceRecord, 0, len(echoOrder))
		for _, name := range echoOrder {
			records = append(records, pending[name])
		}
		if err := p.notifier.Publish(ctx, records); err != nil {
			slog.ErrorContext(ctx, "Error publishing state changes", "error", err)
		}
	}

	p.checkpoint = maxSeen.Add(checkpointEpsilon)
	slog.InfoContext(ctx, "Cycle complete",
		"rows", len(rows),
		"skipped", skipped,
		"written", len(echoOrder),
		"checkpoint", p.checkpoint,
	)
	return nil
}

// forcedReevaluation guards against a cached record that never got its
// cascade applied: an incoming fail-denoting status always reprocesses
// unless the cache already shows Fail.
func forcedReevaluation(cat fence.Category, raw string, prev cache.DeviceRecord) bool {
	impliesFail := cat == fence.ZoneFail ||
		(cat == fence.GlobalLinkEvent && !fence.LinkConnected(raw))
	return impliesFail && prev.EffectiveState != fence.EffectiveFail
}

// buildRecord maps a production row onto a cache record, re-parsing identity
// each time because production may rename devices independently of status.
// The effective state carries over from the previous record (Unknown for a
// first observation); the cascade engine owns any change to it.
func buildRecord(row prod.DeviceRow, prev *cache.DeviceRecord) cache.DeviceRecord {
	rec := cache.DeviceRecord{
		Name:           row.Name,
		RawState:       row.RawState,
		EffectiveState: fence.EffectiveUnknown,
		LastSetTime:    row.SetTime,
		DeviceType:     fence.TypeOf(row.Name, row.RawState),
	}
	if prev != nil {
		rec.EffectiveState = prev.EffectiveState
	}
	if id, ok := fence.ParseIdentity(row.Name); ok && rec.DeviceType != fence.TypeUnknown {
		rec.ControllerID = &id.ControllerID
		rec.Line = &id.Line
		if rec.DeviceType == fence.TypeFenceZone {
			zone := id.Zone
			rec.Zone = &zone
		}
	}
	return rec
}
