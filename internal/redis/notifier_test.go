package redisclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamNotifier_Notify(t *testing.T) {
	_, client := setupTestRedis(t)
	n := NewStreamNotifier(client, "care:notifications")
	recipient := uuid.New()

	err := n.Notify(context.Background(), "appointment.created", recipient, map[string]any{
		"appointment_id": "a-1",
	})
	require.NoError(t, err)

	msgs, err := client.XRange(context.Background(), "care:notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	vals := msgs[0].Values
	assert.Equal(t, "appointment.created", vals["kind"])
	assert.Equal(t, recipient.String(), vals["recipient_id"])

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(vals["payload"].(string)), &payload))
	assert.Equal(t, "a-1", payload["appointment_id"])
}
