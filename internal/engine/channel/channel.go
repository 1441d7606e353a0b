package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/tuneroom/server/internal/domain"
)

const (
	attachWait     = 2 * time.Second
	attachPollStep = 50 * time.Millisecond
)

// PublishResult classifies a publish outcome for the caller. The policy is
// "don't retry, don't block": a retryable failure means the message was
// dropped and the next heartbeat will carry fresher state anyway.
type PublishResult int

const (
	PublishOK PublishResult = iota
	PublishRetryable
	PublishFatal
)

func (r PublishResult) String() string {
	switch r {
	case PublishOK:
		return "ok"
	case PublishRetryable:
		return "retryable"
	case PublishFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type Handler func(envelope domain.Envelope)

// Adapter is the client side of a room realtime channel. One adapter per
// (room, member) session: it is created on join and torn down on leave, and
// a reconnect means a fresh adapter plus a fresh clock alignment. There is
// no replay of missed messages; the driver's next heartbeat resynchronizes.
type Adapter struct {
	url    string
	dialer *websocket.Dialer
	clock  clockwork.Clock
	logger *slog.Logger

	handlers map[string]Handler

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewAdapter(url string, clk clockwork.Clock, logger *slog.Logger) *Adapter {
	return &Adapter{
		url:      url,
		dialer:   websocket.DefaultDialer,
		clock:    clk,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a message type. Must be called before
// Connect; the handler map is read without locking by the read loop.
func (a *Adapter) Handle(messageType string, h Handler) {
	a.handlers[messageType] = h
}

func (a *Adapter) Connect(ctx context.Context) error {
	conn, resp, err := a.dialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial channel: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()

	go a.readLoop(ctx, conn)

	return nil
}

func (a *Adapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var envelope domain.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			a.logger.InfoContext(ctx, "channel closed", "error", err)

			a.mu.Lock()
			if a.conn == conn {
				a.conn = nil
			}
			a.mu.Unlock()

			return
		}

		// the hub stamps every fan-out; degrade to receipt time if missing
		if envelope.ServerTimestamp == 0 {
			envelope.ServerTimestamp = a.clock.Now().UnixMilli()
		}

		handler, ok := a.handlers[envelope.Type]
		if !ok {
			a.logger.DebugContext(ctx, "unhandled message type", "type", envelope.Type)
			continue
		}

		handler(envelope)
	}
}

// Publish sends one room-scoped message. If the connection is not attached
// yet it waits a bounded interval for the attach to finish, then drops the
// message rather than queueing it.
func (a *Adapter) Publish(ctx context.Context, messageType string, payload any) PublishResult {
	conn := a.awaitConn(ctx)
	if conn == nil {
		a.logger.WarnContext(ctx, "publish dropped, channel not attached", "type", messageType)
		return PublishRetryable
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to marshal payload", "type", messageType, "error", err)
		return PublishFatal
	}

	a.writeMu.Lock()
	err = conn.WriteJSON(domain.Envelope{Type: messageType, Payload: raw})
	a.writeMu.Unlock()
	if err != nil {
		a.logger.WarnContext(ctx, "publish failed", "type", messageType, "error", err)
		return PublishRetryable
	}

	return PublishOK
}

func (a *Adapter) awaitConn(ctx context.Context) *websocket.Conn {
	deadline := a.clock.Now().Add(attachWait)

	for {
		a.mu.RLock()
		conn := a.conn
		a.mu.RUnlock()

		if conn != nil {
			return conn
		}
		if !a.clock.Now().Before(deadline) {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-a.clock.After(attachPollStep):
		}
	}
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}

	return conn.Close()
}
