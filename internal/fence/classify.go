package fence

import (
	"fmt"
	"strings"
)

// Production status vocabulary. The link device reports connectivity as
// axe_ElfarConnected / axe_ElfarDisconnected; fence zone statuses carry a
// "Fence " scope marker plus Fail/Normal/Alarm keywords.
const (
	LinkMarker       = "axe_Elfar"
	LinkConnectedTxt = "axe_ElfarConnected"
	LinkDisconnTxt   = "axe_ElfarDisconnected"

	fenceMarker = "Fence "
)

// Classify maps a raw status string to its semantic category. Precedence is
// fixed: the link marker dominates, then fence Fail, then Normal, then Alarm.
// Classification never consults the cached device type because production
// updates status text independently of identity.
func Classify(raw string) Category {
	switch {
	case strings.Contains(raw, LinkMarker):
		return GlobalLinkEvent
	case strings.Contains(raw, fenceMarker) && strings.Contains(raw, "Fail"):
		return ZoneFail
	case strings.Contains(raw, "Normal"):
		return ZoneNormal
	case strings.Contains(raw, "Alarm"):
		return ZoneAlarm
	default:
		return CategoryUnknown
	}
}

// LinkConnected reports whether a GlobalLinkEvent status denotes a live link.
func LinkConnected(raw string) bool {
	return strings.Contains(raw, "Connected") && !strings.Contains(raw, "Disconnected")
}

// CanonicalZoneStatus regenerates the raw status text the engine writes back
// to the production store for a cascaded fence zone. The result classifies
// back to the category that produced it.
func CanonicalZoneStatus(id Identity, eff Effective) string {
	return fmt.Sprintf("Fence Zone Z%d Line %d FC-%d %s", id.Zone, id.Line, id.ControllerID, eff)
}

// CanonicalLinkStatus is the write-back text for the global-link device.
func CanonicalLinkStatus(connected bool) string {
	if connected {
		return LinkConnectedTxt
	}
	return LinkDisconnTxt
}

// DirectEffective maps a category straight to an effective state with no
// cascading. Used for backfill seeding, where rules are applied per row.
func DirectEffective(cat Category, raw string) Effective {
	switch cat {
	case GlobalLinkEvent:
		if LinkConnected(raw) {
			return EffectiveNormal
		}
		return EffectiveFail
	case ZoneFail:
		return EffectiveFail
	case ZoneNormal:
		return EffectiveNormal
	case ZoneAlarm:
		return EffectiveAlarm
	default:
		return EffectiveUnknown
	}
}

// TypeOf derives the device type for one observation: the link marker in the
// status text wins, otherwise a parseable fence name, otherwise unknown.
func TypeOf(name, raw string) DeviceType {
	if strings.Contains(raw, LinkMarker) {
		return TypeGlobalLink
	}
	if _, ok := ParseIdentity(name); ok {
		return TypeFenceZone
	}
	return TypeUnknown
}
