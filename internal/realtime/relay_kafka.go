package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaRelay broadcasts envelopes over a topic. Every instance reads with
// its own consumer group so each one sees every envelope.
type KafkaRelay struct {
	writer *kafka.Writer
	reader *kafka.Reader
	log    *slog.Logger
}

func NewKafkaRelay(brokers []string, topic, origin string, log *slog.Logger) *KafkaRelay {
	if log == nil {
		log = slog.Default()
	}
	return &KafkaRelay{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     "rental-gateway-" + origin,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    10e6,
		}),
		log: log.With("relay", "kafka"),
	}
}

func (r *KafkaRelay) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	// keyed by recipient so one user's envelopes stay on one partition
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.UserID),
		Value: payload,
		Time:  time.Now(),
	})
}

func (r *KafkaRelay) Subscribe(ctx context.Context, fn func(Envelope)) error {
	for {
		m, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			r.log.Warn("relay read failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(relayRetryDelay):
			}
			continue
		}
		var env Envelope
		if err := json.Unmarshal(m.Value, &env); err != nil {
			r.log.Warn("dropping malformed envelope", "offset", m.Offset, "error", err)
			continue
		}
		fn(env)
	}
}

func (r *KafkaRelay) Close() error {
	return errors.Join(r.writer.Close(), r.reader.Close())
}
