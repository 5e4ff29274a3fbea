package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamNotifier publishes notifications to a Redis stream. Delivery to
// email/push/chat is done by whoever consumes the stream.
type StreamNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
		maxLen: 100000,
	}
}

func (n *StreamNotifier) Notify(ctx context.Context, kind string, recipientID uuid.UUID, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	_, err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":         kind,
			"recipient_id": recipientID.String(),
			"payload":      string(data),
			"timestamp":    time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
