package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/tuneroom/server/internal/repository/room"
)

const connectTokenExpire = 10 * time.Minute

func (r repo) getConnectTokenKey(token string) string {
	return "connect-token:" + token
}

func (r repo) SetConnectToken(ctx context.Context, params *room.SetConnectTokenParams) error {
	pipe := r.rc.TxPipeline()

	tokenKey := r.getConnectTokenKey(params.Token)
	pipe.HSet(ctx, tokenKey, room.ConnectToken{
		Username:  params.Username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
		RoomId:    params.RoomId,
	})
	pipe.Expire(ctx, tokenKey, connectTokenExpire)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set connect token: %w", err)
	}

	return nil
}

// GetConnectToken redeems the token. Tokens are one-shot: the key is deleted
// on read.
func (r repo) GetConnectToken(ctx context.Context, token string) (room.ConnectToken, error) {
	tokenKey := r.getConnectTokenKey(token)
	res, err := r.rc.Exists(ctx, tokenKey).Result()
	if err != nil {
		return room.ConnectToken{}, fmt.Errorf("failed to check if connect token exists: %w", err)
	}
	if res == 0 {
		return room.ConnectToken{}, room.ErrConnectTokenNotFound
	}

	var ct room.ConnectToken
	if err := r.rc.HGetAll(ctx, tokenKey).Scan(&ct); err != nil {
		return room.ConnectToken{}, fmt.Errorf("failed to get connect token: %w", err)
	}

	if err := r.rc.Del(ctx, tokenKey).Err(); err != nil {
		return room.ConnectToken{}, fmt.Errorf("failed to delete connect token: %w", err)
	}

	return ct, nil
}
