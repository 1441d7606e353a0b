package channel

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneroom/server/internal/domain"
)

// echoServer upgrades the connection, pushes one unstamped message to the
// client and then echoes everything it receives back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		payload, _ := json.Marshal(domain.Reaction{Emoji: "🔥", MemberId: "m1"})
		require.NoError(t, conn.WriteJSON(domain.Envelope{Type: domain.MessageReaction, Payload: payload}))

		for {
			var envelope domain.Envelope
			if err := conn.ReadJSON(&envelope); err != nil {
				return
			}
			envelope.ServerTimestamp = time.Now().UnixMilli()
			if err := conn.WriteJSON(envelope); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	return server
}

func wsUrl(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestAdapterRoundTrip(t *testing.T) {
	server := echoServer(t)

	adapter := NewAdapter(wsUrl(server), clockwork.NewRealClock(), slog.Default())

	reactions := make(chan domain.Envelope, 1)
	updates := make(chan domain.Envelope, 1)
	adapter.Handle(domain.MessageReaction, func(envelope domain.Envelope) {
		reactions <- envelope
	})
	adapter.Handle(domain.MessagePlaybackUpdate, func(envelope domain.Envelope) {
		updates <- envelope
	})

	require.NoError(t, adapter.Connect(context.Background()))
	defer adapter.Close()

	select {
	case envelope := <-reactions:
		// the server sent no stamp; the adapter must degrade to receipt time
		assert.NotZero(t, envelope.ServerTimestamp, "missing stamp must be filled with receipt time")

		var reaction domain.Reaction
		require.NoError(t, json.Unmarshal(envelope.Payload, &reaction))
		assert.Equal(t, "🔥", reaction.Emoji)
	case <-time.After(5 * time.Second):
		t.Fatal("reaction not received")
	}

	result := adapter.Publish(context.Background(), domain.MessagePlaybackUpdate, domain.PlaybackUpdate{
		TrackTime: 42.5,
		IsPlaying: true,
	})
	assert.Equal(t, PublishOK, result)

	select {
	case envelope := <-updates:
		assert.NotZero(t, envelope.ServerTimestamp)

		var update domain.PlaybackUpdate
		require.NoError(t, json.Unmarshal(envelope.Payload, &update))
		assert.Equal(t, 42.5, update.TrackTime)
		assert.True(t, update.IsPlaying)
	case <-time.After(5 * time.Second):
		t.Fatal("echoed update not received")
	}
}

func TestAdapterPublishDropsWhenNotAttached(t *testing.T) {
	fc := clockwork.NewFakeClock()
	adapter := NewAdapter("ws://unused", fc, slog.Default())

	results := make(chan PublishResult, 1)
	go func() {
		results <- adapter.Publish(context.Background(), domain.MessagePlaybackUpdate, domain.PlaybackUpdate{})
	}()

	// walk the attach wait through to its deadline
	for i := 0; i < int(attachWait/attachPollStep); i++ {
		require.NoError(t, fc.BlockUntilContext(context.Background(), 1))
		fc.Advance(attachPollStep)
	}

	select {
	case result := <-results:
		assert.Equal(t, PublishRetryable, result, "unattached publish must be dropped as retryable")
	case <-time.After(5 * time.Second):
		t.Fatal("publish did not return")
	}
}

func TestAdapterPublishAfterClose(t *testing.T) {
	server := echoServer(t)

	fc := clockwork.NewFakeClock()
	adapter := NewAdapter(wsUrl(server), fc, slog.Default())
	require.NoError(t, adapter.Connect(context.Background()))
	require.NoError(t, adapter.Close())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := adapter.Publish(ctx, domain.MessageReaction, domain.Reaction{Emoji: "🔥"})
	assert.Equal(t, PublishRetryable, result)
}
