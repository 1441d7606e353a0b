package redis

import (
	"context"
	"fmt"

	"github.com/tuneroom/server/internal/repository/room"
)

func (r repo) getRoomKey(roomId string) string {
	return "room:" + roomId
}

func (r repo) SetRoom(ctx context.Context, params *room.SetRoomParams) error {
	pipe := r.rc.TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	pipe.HSet(ctx, roomKey, room.Room{
		DriverId:       params.DriverId,
		CurrentTrackId: params.CurrentTrackId,
		TrackTime:      0,
		IsPlaying:      false,
		LastSyncTime:   0,
	})
	pipe.Expire(ctx, roomKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	roomKey := r.getRoomKey(roomId)
	res, err := r.rc.Exists(ctx, roomKey).Result()
	if err != nil {
		return room.Room{}, fmt.Errorf("failed to check if room exists: %w", err)
	}
	if res == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	var ro room.Room
	if err := r.rc.HGetAll(ctx, roomKey).Scan(&ro); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return ro, nil
}

func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	res, err := r.rc.Del(ctx, r.getRoomKey(roomId)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}
	if res == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}

func (r repo) UpdatePlayback(ctx context.Context, params *room.UpdatePlaybackParams) error {
	roomKey := r.getRoomKey(params.RoomId)
	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey,
		"track_time", params.TrackTime,
		"is_playing", params.IsPlaying,
		"last_sync_time", params.LastSyncTime,
	).Err(); err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}

func (r repo) UpdateCurrentTrack(ctx context.Context, params *room.UpdateCurrentTrackParams) error {
	roomKey := r.getRoomKey(params.RoomId)
	cmd := r.rc.Exists(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return err
	}
	if cmd.Val() == 0 {
		return room.ErrRoomNotFound
	}

	if err := r.rc.HSet(ctx, roomKey,
		"current_track_id", params.TrackId,
		"track_time", params.TrackTime,
		"is_playing", params.IsPlaying,
		"last_sync_time", params.LastSyncTime,
	).Err(); err != nil {
		return fmt.Errorf("failed to update current track: %w", err)
	}

	r.rc.Expire(ctx, roomKey, r.expireDuration)

	return nil
}
