package prod

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4"
)

var (
	ErrSelectFailed = errors.New("production select operation failed")
	ErrUpdateFailed = errors.New("production update operation failed")
)

// Tracked population: fence zone devices by name prefix, the perimeter link
// device by its status marker.
const trackedFilter = `
	(dvcname_txt LIKE 'Fence Controller FC-%'
	 OR dvcCurrentStateUser_TXT LIKE '%axe_Elfar%')`

// FetchChangedSince returns tracked rows whose state changed after the given
// checkpoint, oldest first.
func (db *DB) FetchChangedSince(ctx context.Context, since time.Time) ([]DeviceRow, error) {
	const fn = "DB:FetchChangedSince"
	var rows []DeviceRow
	err := pgxscan.Select(ctx, db.pool, &rows, `
		SELECT
			dvcname_txt AS name,
			dvcCurrentStateUser_TXT AS raw_state,
			dvcCurrentStateSetTime_DTM AS set_time
		FROM device_tbl
		WHERE `+trackedFilter+`
		  AND dvcCurrentStateSetTime_DTM > $1
		ORDER BY dvcCurrentStateSetTime_DTM ASC
	`, since)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []DeviceRow{}, nil
		}
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return rows, nil
}

// FetchAllTracked returns the whole tracked population, used for the one-time
// backfill when the cache starts empty.
func (db *DB) FetchAllTracked(ctx context.Context) ([]DeviceRow, error) {
	const fn = "DB:FetchAllTracked"
	var rows []DeviceRow
	err := pgxscan.Select(ctx, db.pool, &rows, `
		SELECT
			dvcname_txt AS name,
			dvcCurrentStateUser_TXT AS raw_state,
			dvcCurrentStateSetTime_DTM AS set_time
		FROM device_tbl
		WHERE `+trackedFilter+`
		ORDER BY dvcCurrentStateSetTime_DTM ASC
	`)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []DeviceRow{}, nil
		}
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return rows, nil
}

// WriteStatus echoes a derived status string back to the production store.
// The change timestamp is left alone so echoes are never refetched as new
// changes. Idempotent per call; last writer wins per device.
func (db *DB) WriteStatus(ctx context.Context, name, status string) error {
	const fn = "DB:WriteStatus"
	_, err := db.pool.Exec(ctx, `
		UPDATE device_tbl
		SET dvcCurrentStateUser_TXT = $2
		WHERE dvcname_txt = $1
	`, name, status)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrUpdateFailed, err)
	}
	return nil
}
