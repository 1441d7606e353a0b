package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
)

type ReactParams struct {
	SenderId string
	RoomId   string
}

type ReactResponse struct {
	Conns []*websocket.Conn
}

// React only checks membership and hands back the room's connections; the
// reaction payload itself passes through the controller untouched.
func (s service) React(ctx context.Context, params *ReactParams) (ReactResponse, error) {
	if err := s.checkIfMemberExists(ctx, params.RoomId, params.SenderId); err != nil {
		return ReactResponse{}, fmt.Errorf("failed to check if member exists: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return ReactResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return ReactResponse{Conns: conns}, nil
}
