package prod

import "time"

// DeviceRow is one tracked device as the production store reports it.
type DeviceRow struct {
	Name     string    `db:"name"`
	RawState string    `db:"raw_state"`
	SetTime  time.Time `db:"set_time"`
}
