package fence

import (
	"regexp"
	"strconv"
)

// The device name is the single source of truth for identity, e.g.
// "Fence Controller FC-14 Line 0 Zone Z22".
var namePattern = regexp.MustCompile(`FC-(\d+)\s+Line\s+(\d+)\s+Zone\s+Z(\d+)`)

// ParseIdentity extracts (controller, line, zone) from a device name.
// A name that does not match the fence naming scheme yields ok=false;
// absence is the only failure signal.
func ParseIdentity(name string) (Identity, bool) {
	m := namePattern.FindStringSubmatch(name)
	if m == nil {
		return Identity{}, false
	}
	// the submatches are digit-only by construction
	controller, _ := strconv.Atoi(m[1])
	line, _ := strconv.Atoi(m[2])
	zone, _ := strconv.Atoi(m[3])
	return Identity{ControllerID: controller, Line: line, Zone: zone}, true
}
