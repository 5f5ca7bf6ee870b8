package kafka

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
)

// Writer is the slice of kafka-go's writer the notifier needs; mocked in tests.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// StateChange is the payload published for every device whose derived state
// a cycle changed.
type StateChange struct {
	Name           string `json:"name"`
	RawState       string `json:"raw_state"`
	EffectiveState string `json:"effective_state"`
	LastSetTime    int64  `json:"last_set_time"`
	DeviceType     string `json:"device_type"`
	ControllerID   *int   `json:"controller_id"`
	Line           *int   `json:"line"`
	Zone           *int   `json:"zone"`
}

type StructuredConnectRecord struct {
	Schema  Schema      `json:"schema"`
	Payload StateChange `json:"payload"`
}

type Schema struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Fields   []Field `json:"fields"`
	Optional bool    `json:"optional"`
}

type Field struct {
	Field    string `json:"field"`
	Type     string `json:"type"`
	Optional bool   `json:"optional,omitempty"`
}

var StructuredSchema = Schema{
	Type:     "struct",
	Name:     "DeviceStateChange",
	Optional: false,
	Fields: []Field{
		{Field: "name", Type: "string"},
		{Field: "raw_state", Type: "string"},
		{Field: "effective_state", Type: "string"},
		{Field: "last_set_time", Type: "int64"},
		{Field: "device_type", Type: "string"},
		{Field: "controller_id", Type: "int32", Optional: true},
		{Field: "line", Type: "int32", Optional: true},
		{Field: "zone", Type: "int32", Optional: true},
	},
}
