package domain

import "encoding/json"

// Room-scoped realtime message types. Inbound and outbound share the same
// envelope; skip votes come in as skip:toggle and fan out as skip:update.
const (
	MessagePlaybackUpdate = "playback:update"
	MessageStreamChange   = "stream:change"
	MessageSkipToggle     = "skip:toggle"
	MessageSkipUpdate     = "skip:update"
	MessageReaction       = "reaction"
)

// Envelope is the wire frame for every room-scoped message.
// ServerTimestamp is stamped by the hub at receive time, before fan-out.
// It is the only clock followers trust; sender clocks never are.
type Envelope struct {
	Type            string          `json:"type"`
	Payload         json.RawMessage `json:"payload"`
	ServerTimestamp int64           `json:"server_timestamp,omitempty"`
}

// PlaybackUpdate is the driver-authoritative snapshot. LocalTimestamp is the
// driver's clock-aligned send time in epoch millis, carried for diagnostics.
type PlaybackUpdate struct {
	TrackTime      float64 `json:"track_time"`
	IsPlaying      bool    `json:"is_playing"`
	LocalTimestamp int64   `json:"local_timestamp"`
}

type StreamChange struct {
	TrackId string `json:"track_id"`
}

type SkipUpdate struct {
	TrackId   string   `json:"track_id"`
	Votes     []string `json:"votes"`
	Threshold int      `json:"threshold"`
}

type Reaction struct {
	Emoji    string `json:"emoji"`
	MemberId string `json:"member_id"`
}
