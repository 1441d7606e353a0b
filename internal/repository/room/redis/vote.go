package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/tuneroom/server/internal/repository/room"
)

var redisNil = goredis.Nil

func (r repo) getSkipVotesKey(roomId, trackId string) string {
	return "room:" + roomId + ":track:" + trackId + ":skip-votes"
}

// ToggleSkipVote adds the member's skip vote for the track, or removes it if
// one exists. Returns whether the member has a vote after the toggle.
func (r repo) ToggleSkipVote(ctx context.Context, params *room.ToggleSkipVoteParams) (bool, error) {
	skipVotesKey := r.getSkipVotesKey(params.RoomId, params.TrackId)

	isMember, err := r.rc.SIsMember(ctx, skipVotesKey, params.MemberId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check skip vote: %w", err)
	}

	if isMember {
		if err := r.rc.SRem(ctx, skipVotesKey, params.MemberId).Err(); err != nil {
			return false, fmt.Errorf("failed to remove skip vote: %w", err)
		}
		return false, nil
	}

	if err := r.rc.SAdd(ctx, skipVotesKey, params.MemberId).Err(); err != nil {
		return false, fmt.Errorf("failed to add skip vote: %w", err)
	}
	r.rc.Expire(ctx, skipVotesKey, r.expireDuration)

	return true, nil
}

func (r repo) GetSkipVotes(ctx context.Context, params *room.GetSkipVotesParams) ([]string, error) {
	votes, err := r.rc.SMembers(ctx, r.getSkipVotesKey(params.RoomId, params.TrackId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get skip votes: %w", err)
	}

	return votes, nil
}

func (r repo) ClearSkipVotes(ctx context.Context, params *room.ClearSkipVotesParams) error {
	if err := r.rc.Del(ctx, r.getSkipVotesKey(params.RoomId, params.TrackId)).Err(); err != nil {
		return fmt.Errorf("failed to clear skip votes: %w", err)
	}

	return nil
}
