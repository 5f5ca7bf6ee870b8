package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats is a rollup of the cache contents, used by the debug endpoints to
// inspect cascade scope (which zones share a controller and line).
type Stats struct {
	TotalDevices int               `json:"total_devices"`
	Controllers  []ControllerStats `json:"controllers"`
	DeviceTypes  []TypeStats       `json:"device_types"`
}

type ControllerStats struct {
	ControllerID int         `json:"controller_id"`
	TotalDevices int         `json:"total_devices"`
	Lines        []LineStats `json:"lines"`
}

type LineStats struct {
	Line      int   `json:"line"`
	ZoneCount int   `json:"zone_count"`
	Zones     []int `json:"zones"`
}

type TypeStats struct {
	DeviceType string `json:"device_type"`
	Count      int    `json:"count"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	const fn = "Store:Stats"
	stats := Stats{}

	total, err := s.Count(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.TotalDevices = total

	rows, err := s.db.QueryContext(ctx, `
		SELECT controller_id, line, zone
		FROM device_state_cache
		WHERE controller_id IS NOT NULL AND line IS NOT NULL
		ORDER BY controller_id, line, zone`)
	if err != nil {
		return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var controller, line int
		var zone sql.NullInt64
		if err := rows.Scan(&controller, &line, &zone); err != nil {
			return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
		}

		if len(stats.Controllers) == 0 || stats.Controllers[len(stats.Controllers)-1].ControllerID != controller {
			stats.Controllers = append(stats.Controllers, ControllerStats{ControllerID: controller})
		}
		ctrl := &stats.Controllers[len(stats.Controllers)-1]
		ctrl.TotalDevices++

		if len(ctrl.Lines) == 0 || ctrl.Lines[len(ctrl.Lines)-1].Line != line {
			ctrl.Lines = append(ctrl.Lines, LineStats{Line: line})
		}
		ln := &ctrl.Lines[len(ctrl.Lines)-1]
		ln.ZoneCount++
		if zone.Valid {
			ln.Zones = append(ln.Zones, int(zone.Int64))
		}
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}

	typeRows, err := s.db.QueryContext(ctx, `
		SELECT device_type, COUNT(*)
		FROM device_state_cache
		GROUP BY device_type
		ORDER BY device_type`)
	if err != nil {
		return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var ts TypeStats
		if err := typeRows.Scan(&ts.DeviceType, &ts.Count); err != nil {
			return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
		}
		stats.DeviceTypes = append(stats.DeviceTypes, ts)
	}
	if err := typeRows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}

	return stats, nil
}
