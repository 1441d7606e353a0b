package follower

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tuneroom/server/internal/domain"
	"github.com/tuneroom/server/internal/engine/clock"
	"github.com/tuneroom/server/internal/engine/player"
)

const (
	hardSyncThreshold   = 2.5
	softSyncThreshold   = 0.15
	microSyncThreshold  = 0.1
	pausedSeekThreshold = 0.5

	microRateHold = 500 * time.Millisecond

	statsInterval  = 500 * time.Millisecond
	staleThreshold = 2 * time.Second
)

type accepted struct {
	trackTime       float64
	isPlaying       bool
	serverTimestamp int64
	receivedAt      time.Time
}

// Stats is a point-in-time view of sync health, refreshed on a short ticker
// for display surfaces. EstimatedTime is dead reckoned from the last
// accepted snapshot so a UI can render smoothly between driver updates.
type Stats struct {
	PlayerState   player.State  `json:"player_state"`
	CurrentTime   float64       `json:"current_time"`
	EstimatedTime float64       `json:"estimated_time"`
	Drift         float64       `json:"drift"`
	LastUpdateAge time.Duration `json:"last_update_age"`
	Stale         bool          `json:"stale"`
}

// Engine applies driver playback snapshots to the local player. All
// correction is follower-side: the driver's own engine is inert so it never
// fights its own playback.
type Engine struct {
	player   player.Player
	aligner  *clock.Aligner
	clock    clockwork.Clock
	logger   *slog.Logger
	isDriver bool

	mu           sync.Mutex
	lastAccepted *accepted
	revertAt     time.Time
	revertArmed  bool
	stats        Stats
}

func NewEngine(p player.Player, aligner *clock.Aligner, clk clockwork.Clock, isDriver bool, logger *slog.Logger) *Engine {
	return &Engine{
		player:   p,
		aligner:  aligner,
		clock:    clk,
		logger:   logger,
		isDriver: isDriver,
	}
}

// OnPlaybackUpdate handles one driver snapshot: estimate where the driver is
// right now, measure drift against the local player, and correct with the
// gentlest mechanism that can close the gap.
func (e *Engine) OnPlaybackUpdate(update domain.PlaybackUpdate, serverTimestamp int64) {
	if e.isDriver {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// snapshots must be applied in channel order; a late arrival carries
	// older state than what the player already reflects
	if e.lastAccepted != nil && serverTimestamp <= e.lastAccepted.serverTimestamp {
		return
	}

	actualTime, err := e.player.CurrentTime()
	if err != nil {
		return
	}
	state, err := e.player.State()
	if err != nil {
		return
	}

	latency := float64(e.aligner.ServerNow().UnixMilli()-serverTimestamp) / 1000

	// project the driver forward by transit latency so we chase where the
	// driver is, not where it was
	targetTime := update.TrackTime
	if update.IsPlaying {
		targetTime += latency
	}

	drift := math.Abs(actualTime - targetTime)
	isBehind := actualTime < targetTime

	switch {
	case drift > hardSyncThreshold:
		// rate adjustment would take too long to close a gap this wide;
		// trade one visible jump for correctness
		e.seek(targetTime)
	case drift > softSyncThreshold:
		if state != player.StatePlaying {
			// a player that is not advancing cannot act on a rate pulse,
			// and sub-second seeks while stopped cause jitter loops; only
			// gaps wide enough to matter on resume get corrected
			if drift > pausedSeekThreshold {
				e.seek(targetTime)
			}
		} else {
			e.nudgeRate(drift, isBehind)
		}
	case drift > microSyncThreshold:
		e.holdRate(pickRate(1.01, 0.99, isBehind), microRateHold)
	}

	e.reconcileTransport(update.IsPlaying, state)

	e.lastAccepted = &accepted{
		trackTime:       update.TrackTime,
		isPlaying:       update.IsPlaying,
		serverTimestamp: serverTimestamp,
		receivedAt:      e.clock.Now(),
	}
}

// Run services pending rate reverts and refreshes Stats on a short ticker
// until the context ends.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			e.serviceRevert()
			e.updateStats()
		}
	}
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stats
}

func (e *Engine) seek(targetTime float64) {
	if err := e.player.Seek(targetTime, true); err != nil {
		e.logger.Warn("failed to seek player", "target", targetTime, "error", err)
	}
}

func (e *Engine) nudgeRate(drift float64, isBehind bool) {
	var rate float64
	switch {
	case drift < 0.5:
		rate = pickRate(1.02, 0.98, isBehind)
	case drift < 1.5:
		rate = pickRate(1.10, 0.90, isBehind)
	default:
		rate = pickRate(1.25, 0.75, isBehind)
	}

	hold := time.Second
	if drift > 1.0 {
		hold = 2 * time.Second
	}

	e.holdRate(rate, hold)
}

// holdRate applies one corrective rate pulse and arms the revert to normal
// speed. A newer pulse moves the deadline, so an ongoing correction is never
// cut short by an older hold expiring.
func (e *Engine) holdRate(rate float64, hold time.Duration) {
	if err := e.player.SetRate(rate); err != nil {
		e.logger.Warn("failed to set playback rate", "rate", rate, "error", err)
		return
	}

	e.revertAt = e.clock.Now().Add(hold)
	e.revertArmed = true
}

// serviceRevert returns playback to normal speed once a pending hold has
// elapsed. Reverts fire from the Run ticker so every player write happens
// under e.mu, never from a timer goroutine.
func (e *Engine) serviceRevert() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.revertArmed || e.clock.Now().Before(e.revertAt) {
		return
	}

	e.revertArmed = false
	if err := e.player.SetRate(1.0); err != nil {
		e.logger.Warn("failed to revert playback rate", "error", err)
	}
}

// reconcileTransport aligns play/pause with the driver. Buffering counts as
// playing so the engine does not stack play calls onto a loading player.
func (e *Engine) reconcileTransport(shouldPlay bool, state player.State) {
	switch {
	case shouldPlay && state != player.StatePlaying && state != player.StateBuffering:
		if err := e.player.Play(); err != nil {
			e.logger.Warn("failed to play player", "error", err)
		}
	case !shouldPlay && state == player.StatePlaying:
		if err := e.player.Pause(); err != nil {
			e.logger.Warn("failed to pause player", "error", err)
		}
	}
}

func (e *Engine) updateStats() {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stats Stats
	if currentTime, err := e.player.CurrentTime(); err == nil {
		stats.CurrentTime = currentTime
	}
	if state, err := e.player.State(); err == nil {
		stats.PlayerState = state
	}

	if e.lastAccepted != nil {
		estimated := e.lastAccepted.trackTime
		if e.lastAccepted.isPlaying {
			estimated += float64(e.aligner.ServerNow().UnixMilli()-e.lastAccepted.serverTimestamp) / 1000
		}

		stats.EstimatedTime = estimated
		stats.Drift = math.Abs(stats.CurrentTime - estimated)
		stats.LastUpdateAge = e.clock.Now().Sub(e.lastAccepted.receivedAt)
		stats.Stale = stats.LastUpdateAge > staleThreshold
	}

	e.stats = stats
}

func pickRate(fast, slow float64, isBehind bool) float64 {
	if isBehind {
		return fast
	}

	return slow
}
