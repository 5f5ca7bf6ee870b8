package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"perimeter-state-sync/internal/fence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{
		Path:           ":memory:",
		MigrationsPath: "../../migrations",
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func intp(n int) *int { return &n }

func zoneRecord(controller, line, zone int, eff fence.Effective, setTime time.Time) DeviceRecord {
	id := fence.Identity{ControllerID: controller, Line: line, Zone: zone}
	return DeviceRecord{
		Name:           fenceName(controller, line, zone),
		RawState:       fence.CanonicalZoneStatus(id, eff),
		EffectiveState: eff,
		LastSetTime:    setTime,
		ControllerID:   intp(controller),
		Line:           intp(line),
		Zone:           intp(zone),
		DeviceType:     fence.TypeFenceZone,
	}
}

func fenceName(controller, line, zone int) string {
	return fmt.Sprintf("Fence Controller FC-%d Line %d Zone Z%d", controller, line, zone)
}

func Test_UpsertGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	setTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)

	rec := zoneRecord(14, 0, 22, fence.EffectiveNormal, setTime)
	require.NoError(t, tx.Upsert(ctx, rec))

	got, found, err := tx.Get(ctx, rec.Name)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec.RawState, got.RawState)
	assert.Equal(t, fence.EffectiveNormal, got.EffectiveState)
	assert.Equal(t, 22, *got.Zone)
	assert.True(t, setTime.Equal(got.LastSetTime))

	// update in place
	rec.EffectiveState = fence.EffectiveFail
	rec.RawState = fence.CanonicalZoneStatus(fence.Identity{ControllerID: 14, Line: 0, Zone: 22}, fence.EffectiveFail)
	require.NoError(t, tx.Upsert(ctx, rec))
	require.NoError(t, tx.Commit())

	got, found, err = store.Get(ctx, rec.Name)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, fence.EffectiveFail, got.EffectiveState)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Get(context.Background(), "no such device")
	assert.NoError(t, err)
	assert.False(t, found)
}

func Test_RollbackDiscardsMutations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, zoneRecord(1, 0, 1, fence.EffectiveNormal, time.Now().UTC())))
	require.NoError(t, tx.Rollback())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func Test_ListByControllerLine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	setTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	// out of order on purpose, plus a neighbor line and controller
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 23, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 21, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 22, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 1, 5, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(9, 0, 1, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Commit())

	records, err := store.ListByControllerLine(ctx, 14, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 21, *records[0].Zone)
	assert.Equal(t, 22, *records[1].Zone)
	assert.Equal(t, 23, *records[2].Zone)
}

func Test_MaxLastSetTime(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.MaxLastSetTime(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 1, fence.EffectiveNormal, newer)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 2, fence.EffectiveNormal, older)))
	require.NoError(t, tx.Commit())

	max, ok, err := store.MaxLastSetTime(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, newer.Equal(max))
}

func Test_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	setTime := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 21, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 0, 22, fence.EffectiveFail, setTime)))
	require.NoError(t, tx.Upsert(ctx, zoneRecord(14, 1, 1, fence.EffectiveNormal, setTime)))
	require.NoError(t, tx.Upsert(ctx, DeviceRecord{
		Name:           "Perimeter Link",
		RawState:       fence.LinkConnectedTxt,
		EffectiveState: fence.EffectiveNormal,
		LastSetTime:    setTime,
		ControllerID:   intp(14),
		Line:           intp(0),
		DeviceType:     fence.TypeGlobalLink,
	}))
	require.NoError(t, tx.Commit())

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalDevices)
	require.Len(t, stats.Controllers, 1)
	assert.Equal(t, 14, stats.Controllers[0].ControllerID)
	assert.Equal(t, 4, stats.Controllers[0].TotalDevices)
	require.Len(t, stats.Controllers[0].Lines, 2)
	assert.Equal(t, []int{21, 22}, stats.Controllers[0].Lines[0].Zones)
	assert.Equal(t, 3, stats.Controllers[0].Lines[0].ZoneCount)
	require.Len(t, stats.DeviceTypes, 2)
}
