package cascade

import (
	"context"
	"errors"
	"fmt"

	"perimeter-state-sync/internal/cache"
	"perimeter-state-sync/internal/fence"
)

var ErrCascadeFailed = errors.New("cascade application failed")

// Tx is the slice of a cache transaction the engine needs. The engine never
// holds store references outside the transaction it is handed.
type Tx interface {
	Upsert(ctx context.Context, rec cache.DeviceRecord) error
	ListByControllerLine(ctx context.Context, controller, line int) ([]cache.DeviceRecord, error)
}

// Apply persists the changed device and every device its new category drags
// along, and returns the full affected set for production write-back. The
// record must already carry the incoming raw state, set time and re-parsed
// identity; Apply owns the effective states and canonical raw strings.
//
// An empty result means nothing is echoed to the production store.
func Apply(ctx context.Context, tx Tx, cat fence.Category, rec cache.DeviceRecord) ([]cache.DeviceRecord, error) {
	const fn = "cascade:Apply"

	var (
		affected []cache.DeviceRecord
		err      error
	)
	switch cat {
	case fence.ZoneFail:
		affected, err = applyZoneFail(ctx, tx, rec)
	case fence.ZoneNormal:
		affected, err = applyZoneNormal(ctx, tx, rec)
	case fence.ZoneAlarm:
		rec.EffectiveState = fence.EffectiveAlarm
		if err = tx.Upsert(ctx, rec); err == nil {
			affected = []cache.DeviceRecord{rec}
		}
	case fence.GlobalLinkEvent:
		affected, err = applyGlobalLink(ctx, tx, rec)
	default:
		// Unrecognized status: record the observation, leave the effective
		// state alone, echo nothing.
		err = tx.Upsert(ctx, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrCascadeFailed, err)
	}
	return affected, nil
}

// applyZoneFail fails the changed zone and every zone at or beyond it on the
// same line. Zones before the failed one are untouched.
func applyZoneFail(ctx context.Context, tx Tx, rec cache.DeviceRecord) ([]cache.DeviceRecord, error) {
	rec.EffectiveState = fence.EffectiveFail
	if id, ok := identityOf(rec); ok {
		rec.RawState = fence.CanonicalZoneStatus(id, fence.EffectiveFail)
	}
	if err := tx.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	affected := []cache.DeviceRecord{rec}

	if rec.ControllerID == nil || rec.Line == nil || rec.Zone == nil {
		return affected, nil
	}

	mates, err := tx.ListByControllerLine(ctx, *rec.ControllerID, *rec.Line)
	if err != nil {
		return nil, err
	}
	for _, mate := range mates {
		if mate.Name == rec.Name || mate.DeviceType != fence.TypeFenceZone {
			continue
		}
		if mate.Zone == nil || *mate.Zone < *rec.Zone {
			continue
		}
		mate.EffectiveState = fence.EffectiveFail
		if id, ok := identityOf(mate); ok {
			mate.RawState = fence.CanonicalZoneStatus(id, fence.EffectiveFail)
		}
		if err := tx.Upsert(ctx, mate); err != nil {
			return nil, err
		}
		affected = append(affected, mate)
	}
	return affected, nil
}

// applyZoneNormal distinguishes a line-wide recovery (any device on the line
// is failed) from a local update of a single healthy zone.
func applyZoneNormal(ctx context.Context, tx Tx, rec cache.DeviceRecord) ([]cache.DeviceRecord, error) {
	if rec.ControllerID == nil || rec.Line == nil {
		rec.EffectiveState = fence.EffectiveNormal
		if err := tx.Upsert(ctx, rec); err != nil {
			return nil, err
		}
		return []cache.DeviceRecord{rec}, nil
	}

	mates, err := tx.ListByControllerLine(ctx, *rec.ControllerID, *rec.Line)
	if err != nil {
		return nil, err
	}
	lineFailed := false
	for _, mate := range mates {
		if mate.EffectiveState == fence.EffectiveFail {
			lineFailed = true
			break
		}
	}

	rec.EffectiveState = fence.EffectiveNormal
	if id, ok := identityOf(rec); ok {
		rec.RawState = fence.CanonicalZoneStatus(id, fence.EffectiveNormal)
	}
	if err := tx.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	affected := []cache.DeviceRecord{rec}

	if !lineFailed {
		return affected, nil
	}

	// Line-wide recovery: the whole line comes back to Normal.
	for _, mate := range mates {
		if mate.Name == rec.Name {
			continue
		}
		mate.EffectiveState = fence.EffectiveNormal
		mate.RawState = canonicalFor(mate, fence.EffectiveNormal)
		if err := tx.Upsert(ctx, mate); err != nil {
			return nil, err
		}
		affected = append(affected, mate)
	}
	return affected, nil
}

// applyGlobalLink maps connectivity to Normal/Fail and applies it to every
// device on the link's (controller, line). Scope is per line, not system
// wide; the triggering device alone is affected when its name never parsed.
func applyGlobalLink(ctx context.Context, tx Tx, rec cache.DeviceRecord) ([]cache.DeviceRecord, error) {
	connected := fence.LinkConnected(rec.RawState)
	eff := fence.EffectiveFail
	if connected {
		eff = fence.EffectiveNormal
	}

	rec.EffectiveState = eff
	rec.RawState = fence.CanonicalLinkStatus(connected)
	if err := tx.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	affected := []cache.DeviceRecord{rec}

	if rec.ControllerID == nil || rec.Line == nil {
		return affected, nil
	}

	mates, err := tx.ListByControllerLine(ctx, *rec.ControllerID, *rec.Line)
	if err != nil {
		return nil, err
	}
	for _, mate := range mates {
		if mate.Name == rec.Name {
			continue
		}
		mate.EffectiveState = eff
		mate.RawState = canonicalFor(mate, eff)
		if err := tx.Upsert(ctx, mate); err != nil {
			return nil, err
		}
		affected = append(affected, mate)
	}
	return affected, nil
}

// canonicalFor regenerates a type-appropriate raw string so a cascaded
// record re-classifies to the state it was given.
func canonicalFor(rec cache.DeviceRecord, eff fence.Effective) string {
	switch rec.DeviceType {
	case fence.TypeGlobalLink:
		return fence.CanonicalLinkStatus(eff == fence.EffectiveNormal)
	case fence.TypeFenceZone:
		if id, ok := identityOf(rec); ok {
			return fence.CanonicalZoneStatus(id, eff)
		}
	}
	return rec.RawState
}

func identityOf(rec cache.DeviceRecord) (fence.Identity, bool) {
	if rec.ControllerID == nil || rec.Line == nil || rec.Zone == nil {
		return fence.Identity{}, false
	}
	return fence.Identity{
		ControllerID: *rec.ControllerID,
		Line:         *rec.Line,
		Zone:         *rec.Zone,
	}, true
}
