package cache

import (
	"time"

	"perimeter-state-sync/internal/fence"
)

// DeviceRecord is one tracked device in the cache, keyed by its production
// name. Identity fields are nil when not applicable: Zone is set only for
// fence zones, ControllerID and Line only when the name parses.
type DeviceRecord struct {
	Name           string
	RawState       string
	EffectiveState fence.Effective
	LastSetTime    time.Time
	ControllerID   *int
	Line           *int
	Zone           *int
	DeviceType     fence.DeviceType
	UpdatedAt      time.Time
}
