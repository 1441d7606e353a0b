package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/pkg/validator"
)

// Output is the envelope written to every room member. ServerTimestamp is
// stamped at fan-out: followers trust it over any clock in the payload.
type Output struct {
	Type            string `json:"type"`
	Payload         any    `json:"payload"`
	ServerTimestamp int64  `json:"server_timestamp,omitempty"`
}

func (c controller) broadcast(ctx context.Context, conns []*websocket.Conn, output *Output) error {
	if output.ServerTimestamp == 0 {
		output.ServerTimestamp = time.Now().UnixMilli()
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(output); err != nil {
			c.logger.WarnContext(ctx, "failed to write message", "error", err)
		}
	}

	return nil
}

func parsePayload[T any](v *validator.Validator, payload json.RawMessage) (T, error) {
	var input T
	if err := json.Unmarshal(payload, &input); err != nil {
		return input, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if validationErrors, ok := v.Validate(input); !ok {
		return input, fmt.Errorf("validation failed: %v", validationErrors)
	}

	return input, nil
}
