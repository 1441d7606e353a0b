package redis

import (
	"context"
	"fmt"

	"github.com/tuneroom/server/internal/repository/room"
)

func (r repo) getTrackListKey(roomId string) string {
	return "room:" + roomId + ":tracks"
}

func (r repo) getTrackKey(roomId, trackId string) string {
	return "room:" + roomId + ":track:" + trackId
}

func (r repo) getUpvotesKey(roomId, trackId string) string {
	return "room:" + roomId + ":track:" + trackId + ":upvotes"
}

func (r repo) SetTrack(ctx context.Context, params *room.SetTrackParams) error {
	pipe := r.rc.TxPipeline()

	trackKey := r.getTrackKey(params.RoomId, params.TrackId)
	pipe.HSet(ctx, trackKey, room.Track{
		Url:       params.Url,
		Title:     params.Title,
		AddedById: params.AddedById,
	})
	pipe.Expire(ctx, trackKey, r.expireDuration)

	trackListKey := r.getTrackListKey(params.RoomId)
	r.addWithIncrement(ctx, pipe, trackListKey, params.TrackId)
	pipe.Expire(ctx, trackListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set track: %w", err)
	}

	return nil
}

func (r repo) RemoveTrack(ctx context.Context, params *room.RemoveTrackParams) error {
	res, err := r.rc.ZRem(ctx, r.getTrackListKey(params.RoomId), params.TrackId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove track: %w", err)
	}
	if res == 0 {
		return room.ErrTrackNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getTrackKey(params.RoomId, params.TrackId))
	pipe.Del(ctx, r.getUpvotesKey(params.RoomId, params.TrackId))
	pipe.Del(ctx, r.getSkipVotesKey(params.RoomId, params.TrackId))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove track: %w", err)
	}

	return nil
}

// GetTrackIds returns track ids in queue order.
func (r repo) GetTrackIds(ctx context.Context, roomId string) ([]string, error) {
	trackIds, err := r.rc.ZRange(ctx, r.getTrackListKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get track ids: %w", err)
	}

	return trackIds, nil
}

func (r repo) GetTrack(ctx context.Context, params *room.GetTrackParams) (room.Track, error) {
	trackKey := r.getTrackKey(params.RoomId, params.TrackId)
	res, err := r.rc.Exists(ctx, trackKey).Result()
	if err != nil {
		return room.Track{}, fmt.Errorf("failed to check if track exists: %w", err)
	}
	if res == 0 {
		return room.Track{}, room.ErrTrackNotFound
	}

	var track room.Track
	if err := r.rc.HGetAll(ctx, trackKey).Scan(&track); err != nil {
		return room.Track{}, fmt.Errorf("failed to get track: %w", err)
	}

	r.rc.Expire(ctx, trackKey, r.expireDuration)

	return track, nil
}

func (r repo) IsTrackExists(ctx context.Context, params *room.GetTrackParams) (bool, error) {
	score := r.rc.ZScore(ctx, r.getTrackListKey(params.RoomId), params.TrackId)
	if err := score.Err(); err != nil {
		if err == redisNil {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if track exists: %w", err)
	}

	return true, nil
}

func (r repo) ToggleUpvote(ctx context.Context, params *room.ToggleUpvoteParams) (bool, error) {
	upvotesKey := r.getUpvotesKey(params.RoomId, params.TrackId)

	isMember, err := r.rc.SIsMember(ctx, upvotesKey, params.MemberId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check upvote: %w", err)
	}

	if isMember {
		if err := r.rc.SRem(ctx, upvotesKey, params.MemberId).Err(); err != nil {
			return false, fmt.Errorf("failed to remove upvote: %w", err)
		}
		return false, nil
	}

	if err := r.rc.SAdd(ctx, upvotesKey, params.MemberId).Err(); err != nil {
		return false, fmt.Errorf("failed to add upvote: %w", err)
	}
	r.rc.Expire(ctx, upvotesKey, r.expireDuration)

	return true, nil
}

func (r repo) GetUpvoteCount(ctx context.Context, params *room.GetTrackParams) (int, error) {
	count, err := r.rc.SCard(ctx, r.getUpvotesKey(params.RoomId, params.TrackId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get upvote count: %w", err)
	}

	return int(count), nil
}
