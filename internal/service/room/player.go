package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/repository/room"
)

type UpdatePlaybackParams struct {
	SenderId  string
	RoomId    string
	TrackTime float64
	IsPlaying bool
}

type UpdatePlaybackResponse struct {
	TrackTime float64
	IsPlaying bool
	SyncedAt  int64
	ServerNow int64
	Conns     []*websocket.Conn
}

// UpdatePlayback persists the driver's snapshot for late joiners. Only the
// room's driver may write playback state; followers never do. The persist
// itself is best effort: the realtime channel is the primary consistency
// mechanism, so a store failure is logged and fan-out proceeds.
func (s service) UpdatePlayback(ctx context.Context, params *UpdatePlaybackParams) (UpdatePlaybackResponse, error) {
	if err := s.checkIfMemberDriver(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to check if member is driver: %w", err)
	}

	now := s.nowMillis()
	if err := s.roomRepo.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		TrackTime:    params.TrackTime,
		IsPlaying:    params.IsPlaying,
		LastSyncTime: now,
		RoomId:       params.RoomId,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist playback snapshot", "error", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return UpdatePlaybackResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return UpdatePlaybackResponse{
		TrackTime: params.TrackTime,
		IsPlaying: params.IsPlaying,
		SyncedAt:  now,
		ServerNow: s.nowMillis(),
		Conns:     conns,
	}, nil
}
