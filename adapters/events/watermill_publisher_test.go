package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	core "github.com/chainsona/cpop-sub001/core"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher_PublishSessionEvent(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, DefaultTopic)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubsub, "")
	reason := "session wallet mismatch"
	ev := core.SessionEvent{
		ID:             "3f1c2d9e-0000-4000-8000-000000000001",
		OccurredAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Event:          core.SessionEventInvalidated,
		Address:        "TokenWallet",
		SessionAddress: "SessionWallet",
		Reason:         &reason,
	}
	require.NoError(t, pub.PublishSessionEvent(ctx, ev))

	select {
	case msg := <-msgs:
		require.Equal(t, ev.ID, msg.UUID)
		require.Equal(t, "session_invalidated", msg.Metadata.Get("event"))
		var got core.SessionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		require.Equal(t, ev, got)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillPublisher_AssignsMessageID(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, NewLogrusAdapter(nil))
	defer pubsub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, "custom.topic")
	require.NoError(t, err)

	require.NoError(t, NewWatermillPublisher(pubsub, "custom.topic").
		PublishSessionEvent(ctx, core.SessionEvent{Event: core.SessionEventLoggedOut, Address: "A"}))

	select {
	case msg := <-msgs:
		require.NotEmpty(t, msg.UUID)
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillPublisher_ClosedPublisher(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	pub := NewWatermillPublisher(pubsub, "")
	require.NoError(t, pub.Close())
	err := pub.PublishSessionEvent(context.Background(), core.SessionEvent{ID: "x", Event: core.SessionEventSignedIn})
	require.Error(t, err)
}
