package driver

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tuneroom/server/internal/domain"
	"github.com/tuneroom/server/internal/engine/channel"
	"github.com/tuneroom/server/internal/engine/clock"
	"github.com/tuneroom/server/internal/engine/player"
)

type Publisher interface {
	Publish(ctx context.Context, messageType string, payload any) channel.PublishResult
}

// PlaybackStore persists the latest playback snapshot so late joiners can
// seed their position without waiting for a heartbeat. Best effort only.
type PlaybackStore interface {
	UpdateRoomPlayback(ctx context.Context, trackTime float64, isPlaying bool) error
}

type Config struct {
	TickInterval       time.Duration `json:"tick_interval"`
	HeartbeatInterval  time.Duration `json:"heartbeat_interval"`
	SeekThreshold      float64       `json:"seek_threshold"`
	PlayingMinInterval time.Duration `json:"playing_min_interval"`
	PausedMinInterval  time.Duration `json:"paused_min_interval"`
}

func (cfg Config) withDefaults() Config {
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 33 * time.Millisecond
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = 2 * time.Second
	}
	if cfg.SeekThreshold == 0 {
		cfg.SeekThreshold = 1.5
	}
	if cfg.PlayingMinInterval == 0 {
		cfg.PlayingMinInterval = 2 * time.Second
	}
	if cfg.PausedMinInterval == 0 {
		cfg.PausedMinInterval = time.Second
	}

	return cfg
}

type snapshot struct {
	trackTime float64
	isPlaying bool
	takenAt   time.Time
}

// Loop samples the driver's player and broadcasts playback state to the
// room. Only the member currently holding driver role runs one; role
// transfer means stopping this loop and starting one on the new driver.
type Loop struct {
	player  player.Player
	pub     Publisher
	store   PlaybackStore
	aligner *clock.Aligner
	clock   clockwork.Clock
	logger  *slog.Logger
	cfg     Config

	mu         sync.Mutex
	last       *snapshot // per-tick projection bookkeeping, for seek detection
	lastSent   *snapshot
	lastSentAt time.Time
	sent       bool
}

func NewLoop(p player.Player, pub Publisher, store PlaybackStore, aligner *clock.Aligner, clk clockwork.Clock, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		player:  p,
		pub:     pub,
		store:   store,
		aligner: aligner,
		clock:   clk,
		logger:  logger,
		cfg:     cfg.withDefaults(),
	}
}

func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			l.mu.Lock()
			l.tick(ctx)
			l.mu.Unlock()
		}
	}
}

// BroadcastNow publishes the current playback state regardless of the rate
// limiter. For deliberate transitions such as a track change, where
// followers must hear about it immediately.
func (l *Loop) BroadcastNow(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	trackTime, isPlaying, ok := l.sample()
	if !ok {
		return
	}

	now := l.clock.Now()
	l.broadcast(ctx, trackTime, isPlaying, now, true)
	l.last = &snapshot{trackTime: trackTime, isPlaying: isPlaying, takenAt: now}
}

func (l *Loop) tick(ctx context.Context) {
	trackTime, isPlaying, ok := l.sample()
	if !ok {
		return
	}

	now := l.clock.Now()

	// compare against where the player should be if playback had continued
	// undisturbed since the previous tick; a large gap means the driver
	// seeked and followers must hear about it
	seeked := false
	if l.last != nil {
		projected := l.last.trackTime
		if l.last.isPlaying {
			projected += now.Sub(l.last.takenAt).Seconds()
		}
		seeked = math.Abs(trackTime-projected) > l.cfg.SeekThreshold
	}

	flipped := l.lastSent != nil && isPlaying != l.lastSent.isPlaying
	heartbeatDue := !l.sent || now.Sub(l.lastSentAt) >= l.cfg.HeartbeatInterval

	if seeked || flipped || heartbeatDue {
		l.broadcast(ctx, trackTime, isPlaying, now, false)
	}

	l.last = &snapshot{trackTime: trackTime, isPlaying: isPlaying, takenAt: now}
}

func (l *Loop) sample() (float64, bool, bool) {
	trackTime, err := l.player.CurrentTime()
	if err != nil {
		return 0, false, false
	}

	state, err := l.player.State()
	if err != nil {
		return 0, false, false
	}

	return trackTime, state == player.StatePlaying, true
}

// broadcast applies the hard rate ceiling after the heuristic already
// decided to send. Immediate bypasses only the ceiling, never the
// player-readiness checks.
func (l *Loop) broadcast(ctx context.Context, trackTime float64, isPlaying bool, now time.Time, immediate bool) {
	if !immediate && l.sent {
		minInterval := l.cfg.PausedMinInterval
		if isPlaying {
			minInterval = l.cfg.PlayingMinInterval
		}
		if now.Sub(l.lastSentAt) < minInterval {
			return
		}
	}

	update := domain.PlaybackUpdate{
		TrackTime:      trackTime,
		IsPlaying:      isPlaying,
		LocalTimestamp: l.aligner.ServerNow().UnixMilli(),
	}

	if res := l.pub.Publish(ctx, domain.MessagePlaybackUpdate, update); res != channel.PublishOK {
		l.logger.WarnContext(ctx, "playback broadcast not delivered", "result", res.String())
	}

	if l.store != nil {
		storeCtx := context.WithoutCancel(ctx)
		go func() {
			storeCtx, cancel := context.WithTimeout(storeCtx, 5*time.Second)
			defer cancel()

			if err := l.store.UpdateRoomPlayback(storeCtx, trackTime, isPlaying); err != nil {
				l.logger.WarnContext(storeCtx, "failed to persist playback snapshot", "error", err)
			}
		}()
	}

	l.sent = true
	l.lastSent = &snapshot{trackTime: trackTime, isPlaying: isPlaying, takenAt: now}
	l.lastSentAt = now
}
