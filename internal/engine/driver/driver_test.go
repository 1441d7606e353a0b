package driver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneroom/server/internal/domain"
	"github.com/tuneroom/server/internal/engine/channel"
	"github.com/tuneroom/server/internal/engine/clock"
	"github.com/tuneroom/server/internal/engine/player"
)

type fakePlayer struct {
	time  float64
	state player.State
	err   error
}

func (p *fakePlayer) CurrentTime() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.time, nil
}

func (p *fakePlayer) State() (player.State, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.state, nil
}

func (p *fakePlayer) Seek(seconds float64, allowAhead bool) error { return nil }
func (p *fakePlayer) Play() error                                 { return nil }
func (p *fakePlayer) Pause() error                                { return nil }
func (p *fakePlayer) SetRate(multiplier float64) error            { return nil }

type fakePublisher struct {
	result   channel.PublishResult
	messages []domain.PlaybackUpdate
}

func (p *fakePublisher) Publish(ctx context.Context, messageType string, payload any) channel.PublishResult {
	raw, _ := json.Marshal(payload)
	var update domain.PlaybackUpdate
	json.Unmarshal(raw, &update)
	p.messages = append(p.messages, update)

	return p.result
}

type fakeStore struct {
	err   error
	calls chan domain.PlaybackUpdate
}

func (s *fakeStore) UpdateRoomPlayback(ctx context.Context, trackTime float64, isPlaying bool) error {
	s.calls <- domain.PlaybackUpdate{TrackTime: trackTime, IsPlaying: isPlaying}
	return s.err
}

func newTestLoop(p *fakePlayer, pub *fakePublisher, store PlaybackStore) (*Loop, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	aligner := clock.NewAligner(nil, fc, slog.Default())

	return NewLoop(p, pub, store, aligner, fc, Config{}, slog.Default()), fc
}

func TestLoopFirstTickBroadcasts(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	loop, _ := newTestLoop(p, pub, nil)

	loop.tick(context.Background())

	require.Equal(t, 1, len(pub.messages), "first tick must broadcast")
	assert.Equal(t, float64(10), pub.messages[0].TrackTime)
	assert.True(t, pub.messages[0].IsPlaying)
}

func TestLoopHeartbeat(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	loop, fc := newTestLoop(p, pub, nil)
	ctx := context.Background()

	loop.tick(ctx)
	require.Equal(t, 1, len(pub.messages))

	// undisturbed playback inside the heartbeat interval stays quiet
	fc.Advance(time.Second)
	p.time = 11
	loop.tick(ctx)
	assert.Equal(t, 1, len(pub.messages), "no broadcast before heartbeat is due")

	fc.Advance(time.Second)
	p.time = 12
	loop.tick(ctx)
	require.Equal(t, 2, len(pub.messages), "heartbeat must fire")
	assert.Equal(t, float64(12), pub.messages[1].TrackTime)
}

func TestLoopStateFlip(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	loop, fc := newTestLoop(p, pub, nil)
	ctx := context.Background()

	loop.tick(ctx)
	require.Equal(t, 1, len(pub.messages))

	fc.Advance(1200 * time.Millisecond)
	p.time = 11.2
	p.state = player.StatePaused
	loop.tick(ctx)
	require.Equal(t, 2, len(pub.messages), "pause flip must broadcast")
	assert.False(t, pub.messages[1].IsPlaying)
}

func TestLoopRateCeilingDefersFlip(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	loop, fc := newTestLoop(p, pub, nil)
	ctx := context.Background()

	loop.tick(ctx)
	require.Equal(t, 1, len(pub.messages))

	// flip right after a broadcast: the heuristic wants to send but the
	// ceiling holds it back until the paused spacing elapses
	fc.Advance(400 * time.Millisecond)
	p.state = player.StatePaused
	loop.tick(ctx)
	assert.Equal(t, 1, len(pub.messages), "flip within the ceiling must wait")

	fc.Advance(700 * time.Millisecond)
	loop.tick(ctx)
	require.Equal(t, 2, len(pub.messages), "deferred flip must go out once the ceiling allows")
	assert.False(t, pub.messages[1].IsPlaying)
}

func TestLoopSeekDetection(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePaused}
	pub := &fakePublisher{}
	loop, fc := newTestLoop(p, pub, nil)
	ctx := context.Background()

	loop.tick(ctx)
	require.Equal(t, 1, len(pub.messages))

	// a paused player cannot move on its own; a jump means the driver seeked
	fc.Advance(1100 * time.Millisecond)
	p.time = 40
	loop.tick(ctx)
	require.Equal(t, 2, len(pub.messages), "seek must broadcast before the heartbeat is due")
	assert.Equal(t, float64(40), pub.messages[1].TrackTime)
}

func TestLoopBroadcastNowBypassesCeiling(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	loop, _ := newTestLoop(p, pub, nil)
	ctx := context.Background()

	loop.tick(ctx)
	require.Equal(t, 1, len(pub.messages))

	p.time = 0
	loop.BroadcastNow(ctx)
	require.Equal(t, 2, len(pub.messages), "explicit broadcast must bypass the ceiling")
	assert.Equal(t, float64(0), pub.messages[1].TrackTime)
}

func TestLoopSkipsTickWhenPlayerNotReady(t *testing.T) {
	p := &fakePlayer{err: errors.New("player not ready")}
	pub := &fakePublisher{}
	loop, _ := newTestLoop(p, pub, nil)

	loop.tick(context.Background())
	loop.BroadcastNow(context.Background())
	assert.Equal(t, 0, len(pub.messages), "not-ready player must not broadcast")
}

func TestLoopStoreIsBestEffort(t *testing.T) {
	p := &fakePlayer{time: 10, state: player.StatePlaying}
	pub := &fakePublisher{}
	store := &fakeStore{err: errors.New("store unavailable"), calls: make(chan domain.PlaybackUpdate, 1)}
	loop, _ := newTestLoop(p, pub, store)

	loop.tick(context.Background())
	require.Equal(t, 1, len(pub.messages), "store failure must not block the broadcast")

	select {
	case call := <-store.calls:
		assert.Equal(t, float64(10), call.TrackTime)
		assert.True(t, call.IsPlaying)
	case <-time.After(5 * time.Second):
		t.Fatal("store was not called")
	}
}
