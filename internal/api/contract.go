package api

// Device is the display-facing view of one cached record. Color follows the
// map rendering convention: blue for healthy, red for everything else.
type Device struct {
	Name           string `json:"name"`
	LastState      string `json:"last_state"`
	EffectiveState string `json:"effective_state"`
	Color          string `json:"color"`
	LastSetTime    string `json:"last_set_time"`
	UpdatedAt      string `json:"updated_at"`
	ControllerID   *int   `json:"controller_id"`
	Line           *int   `json:"line"`
	Zone           *int   `json:"zone"`
	DeviceType     string `json:"device_type"`
}

type GetDevicesResponse struct {
	Devices []Device `json:"devices"`
}
