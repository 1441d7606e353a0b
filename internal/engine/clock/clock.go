package clock

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	probeCount = 5
	probeDelay = 50 * time.Millisecond
)

// TimeSource answers "what time is it" in server epoch millis. The call is
// idempotent and side-effect free, safe to issue repeatedly.
type TimeSource interface {
	ServerTime(ctx context.Context) (int64, error)
}

// Aligner estimates the offset between the local clock and the authoritative
// server clock. It is aligned once per channel connection; every other
// engine component converts local time to server time through it.
type Aligner struct {
	source TimeSource
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.RWMutex
	offset float64 // millis; serverTime = localTime + offset
}

func NewAligner(source TimeSource, clk clockwork.Clock, logger *slog.Logger) *Aligner {
	return &Aligner{
		source: source,
		clock:  clk,
		logger: logger,
	}
}

// Align runs a handful of sequential round-trip probes, NTP style, with a
// short pause between them to avoid burst correlation. The median resists
// single-probe latency spikes. Failed probes are skipped; with no samples
// at all the offset degrades to zero so sync still functions, just without
// skew compensation. Never fatal.
func (a *Aligner) Align(ctx context.Context) float64 {
	samples := make([]float64, 0, probeCount)

probes:
	for i := 0; i < probeCount; i++ {
		t0 := a.clock.Now()
		serverTime, err := a.source.ServerTime(ctx)
		t3 := a.clock.Now()

		if err != nil {
			a.logger.WarnContext(ctx, "clock probe failed", "probe", i, "error", err)
		} else {
			// server processing is approximated as instantaneous: t2 == t1
			t1 := float64(serverTime)
			offset := ((t1 - float64(t0.UnixMilli())) + (t1 - float64(t3.UnixMilli()))) / 2
			samples = append(samples, offset)
		}

		if i < probeCount-1 {
			select {
			case <-ctx.Done():
				break probes
			case <-a.clock.After(probeDelay):
			}
		}
	}

	offset := median(samples)

	a.mu.Lock()
	a.offset = offset
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "clock aligned", "offset_ms", offset, "samples", len(samples))

	return offset
}

func (a *Aligner) Offset() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.offset
}

// ServerNow is the local clock shifted onto the server timeline.
func (a *Aligner) ServerNow() time.Time {
	return a.clock.Now().Add(time.Duration(a.Offset() * float64(time.Millisecond)))
}

func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	sort.Float64s(samples)

	return samples[len(samples)/2]
}
