package redis

import (
	"context"
	"fmt"

	"github.com/tuneroom/server/internal/repository/room"
)

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":members"
}

func (r repo) getMemberKey(roomId, memberId string) string {
	return "room:" + roomId + ":member:" + memberId
}

func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	pipe := r.rc.TxPipeline()

	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	pipe.HSet(ctx, memberKey, room.Member{
		Username:  params.Username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
		IsDriver:  params.IsDriver,
	})
	pipe.Expire(ctx, memberKey, r.expireDuration)

	memberListKey := r.getMemberListKey(params.RoomId)
	pipe.SAdd(ctx, memberListKey, params.MemberId)
	pipe.Expire(ctx, memberListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	res, err := r.rc.SRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if res == 0 {
		return room.ErrMemberNotFound
	}

	if err := r.rc.Del(ctx, r.getMemberKey(params.RoomId, params.MemberId)).Err(); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (r repo) GetMember(ctx context.Context, params *room.GetMemberParams) (room.Member, error) {
	memberKey := r.getMemberKey(params.RoomId, params.MemberId)
	res, err := r.rc.Exists(ctx, memberKey).Result()
	if err != nil {
		return room.Member{}, fmt.Errorf("failed to check if member exists: %w", err)
	}
	if res == 0 {
		return room.Member{}, room.ErrMemberNotFound
	}

	var member room.Member
	if err := r.rc.HGetAll(ctx, memberKey).Scan(&member); err != nil {
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return member, nil
}

func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	memberIds, err := r.rc.SMembers(ctx, r.getMemberListKey(roomId)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	return memberIds, nil
}

func (r repo) GetMemberCount(ctx context.Context, roomId string) (int, error) {
	count, err := r.rc.SCard(ctx, r.getMemberListKey(roomId)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get member count: %w", err)
	}

	return int(count), nil
}

func (r repo) IsMemberExists(ctx context.Context, params *room.GetMemberParams) (bool, error) {
	exists, err := r.rc.SIsMember(ctx, r.getMemberListKey(params.RoomId), params.MemberId).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if member exists: %w", err)
	}

	return exists, nil
}
