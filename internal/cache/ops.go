package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"perimeter-state-sync/internal/fence"
)

var (
	ErrTransactionStartFailed = errors.New("cache transaction start failed")
	ErrSelectFailed           = errors.New("cache select operation failed")
	ErrUpsertFailed           = errors.New("cache upsert operation failed")
	ErrCommitFailed           = errors.New("cache commit failed")
)

const recordColumns = `
	dvcname_txt,
	last_state,
	effective_state,
	last_set_time,
	controller_id,
	line,
	zone,
	device_type,
	updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx so that reads work the
// same inside and outside a cycle transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tx is one cycle's atomic unit of cache mutations.
type Tx struct {
	tx *sql.Tx
}

func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	const fn = "Store:Begin"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrTransactionStartFailed, err)
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error {
	const fn = "Tx:Commit"
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrCommitFailed, err)
	}
	return nil
}

func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func (t *Tx) Get(ctx context.Context, name string) (DeviceRecord, bool, error) {
	return getRecord(ctx, t.tx, name)
}

func (t *Tx) Upsert(ctx context.Context, rec DeviceRecord) error {
	return upsertRecord(ctx, t.tx, rec)
}

func (t *Tx) ListByControllerLine(ctx context.Context, controller, line int) ([]DeviceRecord, error) {
	return listByControllerLine(ctx, t.tx, controller, line)
}

func (s *Store) Get(ctx context.Context, name string) (DeviceRecord, bool, error) {
	return getRecord(ctx, s.db, name)
}

func (s *Store) ListByControllerLine(ctx context.Context, controller, line int) ([]DeviceRecord, error) {
	return listByControllerLine(ctx, s.db, controller, line)
}

func (s *Store) All(ctx context.Context) ([]DeviceRecord, error) {
	const fn = "Store:All"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM device_state_cache
		ORDER BY dvcname_txt`)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows, fn)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	const fn = "Store:Count"
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_state_cache`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return n, nil
}

// MaxLastSetTime returns the newest change time recorded in the cache.
// ok=false means the cache holds no timestamped records yet.
//
// The bare column is selected instead of MAX() because aggregate
// expressions carry no decltype in sqlite, so the driver would hand
// back TEXT that database/sql cannot scan into a time.Time.
func (s *Store) MaxLastSetTime(ctx context.Context) (time.Time, bool, error) {
	const fn = "Store:MaxLastSetTime"
	var max time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT last_set_time
		FROM device_state_cache
		WHERE last_set_time IS NOT NULL
		ORDER BY last_set_time DESC
		LIMIT 1`).Scan(&max)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return max, true, nil
}

func getRecord(ctx context.Context, q querier, name string) (DeviceRecord, bool, error) {
	const fn = "cache:getRecord"
	row := q.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM device_state_cache
		WHERE dvcname_txt = ?`, name)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeviceRecord{}, false, nil
		}
		return DeviceRecord{}, false, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return rec, true, nil
}

func upsertRecord(ctx context.Context, q querier, rec DeviceRecord) error {
	const fn = "cache:upsertRecord"
	_, err := q.ExecContext(ctx, `
		INSERT INTO device_state_cache (
			dvcname_txt,
			last_state,
			effective_state,
			last_set_time,
			controller_id,
			line,
			zone,
			device_type,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (dvcname_txt) DO UPDATE SET
			last_state      = excluded.last_state,
			effective_state = excluded.effective_state,
			last_set_time   = excluded.last_set_time,
			controller_id   = excluded.controller_id,
			line            = excluded.line,
			zone            = excluded.zone,
			device_type     = excluded.device_type,
			updated_at      = CURRENT_TIMESTAMP
	`, rec.Name, rec.RawState, string(rec.EffectiveState), rec.LastSetTime,
		nullInt(rec.ControllerID), nullInt(rec.Line), nullInt(rec.Zone),
		string(rec.DeviceType))
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrUpsertFailed, err)
	}
	return nil
}

func listByControllerLine(ctx context.Context, q querier, controller, line int) ([]DeviceRecord, error) {
	const fn = "cache:listByControllerLine"
	rows, err := q.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM device_state_cache
		WHERE controller_id = ? AND line = ?
		ORDER BY zone`, controller, line)
	if err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	defer rows.Close()
	return scanRecords(rows, fn)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(r rowScanner) (DeviceRecord, error) {
	var (
		rec         DeviceRecord
		effective   string
		deviceType  string
		lastSetTime sql.NullTime
		controller  sql.NullInt64
		lineNo      sql.NullInt64
		zone        sql.NullInt64
	)
	err := r.Scan(
		&rec.Name,
		&rec.RawState,
		&effective,
		&lastSetTime,
		&controller,
		&lineNo,
		&zone,
		&deviceType,
		&rec.UpdatedAt,
	)
	if err != nil {
		return DeviceRecord{}, err
	}
	rec.EffectiveState = fence.Effective(effective)
	rec.DeviceType = fence.DeviceType(deviceType)
	if lastSetTime.Valid {
		rec.LastSetTime = lastSetTime.Time
	}
	rec.ControllerID = intPtr(controller)
	rec.Line = intPtr(lineNo)
	rec.Zone = intPtr(zone)
	return rec, nil
}

func scanRecords(rows *sql.Rows, fn string) ([]DeviceRecord, error) {
	var records []DeviceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return records, nil
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
