package fence

// Effective is the derived status for a device, distinct from the raw
// status text observed in the production store.
type Effective string

const (
	EffectiveNormal  Effective = "Normal"
	EffectiveFail    Effective = "Fail"
	EffectiveAlarm   Effective = "Alarm"
	EffectiveUnknown Effective = "Unknown"
)

type DeviceType string

const (
	TypeFenceZone  DeviceType = "Fence Controller"
	TypeGlobalLink DeviceType = "axe_Elfar"
	TypeUnknown    DeviceType = "Unknown"
)

// Category is the semantic class of a raw status string.
type Category string

const (
	GlobalLinkEvent Category = "global_link_event"
	ZoneFail        Category = "zone_fail"
	ZoneNormal      Category = "zone_normal"
	ZoneAlarm       Category = "zone_alarm"
	CategoryUnknown Category = "unknown"
)

// Identity locates a device on the perimeter: controller, line within the
// controller, zone index within the line.
type Identity struct {
	ControllerID int
	Line         int
	Zone         int
}
