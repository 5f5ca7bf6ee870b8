package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"perimeter-state-sync/internal/cache"
	k "perimeter-state-sync/internal/kafka"

	"github.com/segmentio/kafka-go"
)

var (
	ErrMarshalRecord = errors.New("error marshalling state change record")
	ErrWriteMessage  = errors.New("error writing state change message")
)

type Config struct {
	Brokers string
	Topic   string
}

// Notifier publishes derived state changes for downstream display
// consumers. Publishing is best effort; a failed publish never fails the
// reconciliation cycle that produced it.
type Notifier struct {
	writer k.Writer
}

func New(cfg Config) *Notifier {
	return &Notifier{
		writer: kafka.NewWriter(kafka.WriterConfig{
			Brokers: []string{cfg.Brokers},
			Topic:   cfg.Topic,
		}),
	}
}

func (n *Notifier) Publish(ctx context.Context, records []cache.DeviceRecord) error {
	const fn = "Notifier:Publish"

	messages := make([]kafka.Message, 0, len(records))
	for _, rec := range records {
		record := k.StructuredConnectRecord{
			Schema: k.StructuredSchema,
			Payload: k.StateChange{
				Name:           rec.Name,
				RawState:       rec.RawState,
				EffectiveState: string(rec.EffectiveState),
				LastSetTime:    rec.LastSetTime.UnixMilli(),
				DeviceType:     string(rec.DeviceType),
				ControllerID:   rec.ControllerID,
				Line:           rec.Line,
				Zone:           rec.Zone,
			},
		}
		out, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("%s:%w:%w", fn, ErrMarshalRecord, err)
		}
		messages = append(messages, kafka.Message{Key: []byte(rec.Name), Value: out})
	}

	if err := n.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrWriteMessage, err)
	}
	slog.InfoContext(ctx, "Published state changes", "count", len(messages))
	return nil
}

func (n *Notifier) Close(ctx context.Context) {
	slog.InfoContext(ctx, "Closing notifier resources...")
	n.writer.Close()
}
