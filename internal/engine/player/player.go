package player

type State int

const (
	StateUnstarted State = iota
	StateEnded
	StatePlaying
	StatePaused
	StateBuffering
	StateCued
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "UNSTARTED"
	case StateEnded:
		return "ENDED"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	case StateBuffering:
		return "BUFFERING"
	case StateCued:
		return "CUED"
	default:
		return "UNKNOWN"
	}
}

// Player is the capability object exposed by the playback surface. The sync
// engine treats it as a black box. Any error means the player is not ready
// for the operation; callers skip the current tick rather than escalate,
// since not-ready is expected transient state during track load.
type Player interface {
	CurrentTime() (float64, error)
	State() (State, error)
	Seek(seconds float64, allowAhead bool) error
	Play() error
	Pause() error
	SetRate(multiplier float64) error
}
