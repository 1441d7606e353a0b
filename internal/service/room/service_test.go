package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneroom/server/internal/repository/connection/inmemory"
	roomRedis "github.com/tuneroom/server/internal/repository/room/redis"
	"github.com/tuneroom/server/pkg/randstr"
)

func newTestService(t *testing.T) *service {
	t.Helper()

	s := miniredis.RunT(t)
	r := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	roomRepo := roomRedis.NewRepo(r, time.Hour)
	connRepo := inmemory.NewRepo()

	tokenGen := randstr.New([]byte("abcdefghijklmnopqrstuvwxyz0123456789"))

	return NewService(roomRepo, connRepo, tokenGen, &Config{MembersLimit: 9, PlaylistLimit: 25}, slog.Default())
}

func TestJoinConnectTokenUnknownRoom(t *testing.T) {
	service := newTestService(t)

	_, err := service.CreateJoinConnectToken(context.Background(), &CreateJoinConnectTokenParams{
		Username: "guest",
		Color:    "123",
		RoomId:   "no-such-room",
	})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

// newTestRoom creates a room with the requested member count. The first
// member id returned is the driver.
func newTestRoom(t *testing.T, service *service, memberCount int) (string, []string) {
	t.Helper()

	ctx := context.Background()

	connectToken, err := service.CreateConnectToken(ctx, &CreateConnectTokenParams{
		Username: "user1",
		Color:    "fff",
	})
	require.NoError(t, err)

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         &websocket.Conn{},
	})
	require.NoError(t, err)

	memberIds := []string{createRoomResp.MemberId}
	for i := 1; i < memberCount; i++ {
		joinToken, err := service.CreateJoinConnectToken(ctx, &CreateJoinConnectTokenParams{
			Username: fmt.Sprintf("user%d", i+1),
			Color:    "123",
			RoomId:   createRoomResp.RoomId,
		})
		require.NoError(t, err)

		joinRoomResp, err := service.JoinRoom(ctx, &JoinRoomParams{
			ConnectToken: joinToken,
			RoomId:       createRoomResp.RoomId,
			Conn:         &websocket.Conn{},
		})
		require.NoError(t, err)

		memberIds = append(memberIds, joinRoomResp.JoinedMember.Id)
	}

	return createRoomResp.RoomId, memberIds
}

func TestRoomFlow(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	connectToken, err := service.CreateConnectToken(ctx, &CreateConnectTokenParams{
		Username:  "user1",
		Color:     "fff",
		AvatarUrl: "some-avatar",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, connectToken, "connect token is empty")

	createRoomResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, createRoomResp.RoomId, "room id is empty")
	assert.NotEmpty(t, createRoomResp.MemberId, "member id is empty")
	t.Log("room created")

	// connect tokens are one shot
	_, err = service.CreateRoom(ctx, &CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         &websocket.Conn{},
	})
	require.Error(t, err, "redeemed token must not be reusable")

	joinToken, err := service.CreateJoinConnectToken(ctx, &CreateJoinConnectTokenParams{
		Username: "user2",
		Color:    "123",
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)

	joinRoomResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		ConnectToken: joinToken,
		RoomId:       createRoomResp.RoomId,
		Conn:         &websocket.Conn{},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, joinRoomResp.JoinedMember.Id)
	assert.Equal(t, "user2", joinRoomResp.JoinedMember.Username, "username is not equal")
	assert.Equal(t, false, joinRoomResp.JoinedMember.IsDriver, "joiner must not be driver")
	assert.Equal(t, 2, len(joinRoomResp.MemberList), "memberlist must contain 2 members")
	t.Log("member joined")

	addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
		SenderId: createRoomResp.MemberId,
		RoomId:   createRoomResp.RoomId,
		Url:      "https://example.com/track-1",
		Title:    "track 1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(addTrackResp.Playlist), "playlist must contain 1 track")
	assert.Equal(t, 2, len(addTrackResp.Conns), "conns must contain 2 conns")
	assert.Equal(t, createRoomResp.MemberId, addTrackResp.AddedTrack.AddedById, "added by id is not equal")
	t.Log("track added")

	upvoteResp, err := service.ToggleUpvote(ctx, &ToggleUpvoteParams{
		SenderId: joinRoomResp.JoinedMember.Id,
		RoomId:   createRoomResp.RoomId,
		TrackId:  addTrackResp.AddedTrack.Id,
	})
	require.NoError(t, err)
	assert.True(t, upvoteResp.Upvoted, "upvote must be on")
	assert.Equal(t, 1, upvoteResp.UpvoteCount, "upvote count must be 1")
	t.Log("track upvoted")

	setCurrentResp, err := service.SetCurrentTrack(ctx, &SetCurrentTrackParams{
		SenderId: createRoomResp.MemberId,
		RoomId:   createRoomResp.RoomId,
		TrackId:  addTrackResp.AddedTrack.Id,
	})
	require.NoError(t, err)
	assert.True(t, setCurrentResp.Playback.IsPlaying, "playback must start playing")
	assert.Equal(t, float64(0), setCurrentResp.Playback.TrackTime, "playback must start at 0")
	t.Log("current track set")

	disconnectResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		MemberId: joinRoomResp.JoinedMember.Id,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Equal(t, false, disconnectResp.IsRoomDeleted, "room must not be deleted")
	assert.Equal(t, 1, len(disconnectResp.MemberList), "memberlist must contain 1 member")

	disconnectResp, err = service.DisconnectMember(ctx, &DisconnectMemberParams{
		MemberId: createRoomResp.MemberId,
		RoomId:   createRoomResp.RoomId,
	})
	require.NoError(t, err)
	assert.Equal(t, true, disconnectResp.IsRoomDeleted, "room must be deleted with last member")
}

func TestUpdatePlaybackDriverOnly(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 2)

	resp, err := service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		SenderId:  memberIds[0],
		RoomId:    roomId,
		TrackTime: 42.5,
		IsPlaying: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42.5, resp.TrackTime)
	assert.Equal(t, 2, len(resp.Conns), "conns must contain 2 conns")
	assert.NotZero(t, resp.SyncedAt)

	_, err = service.UpdatePlayback(ctx, &UpdatePlaybackParams{
		SenderId:  memberIds[1],
		RoomId:    roomId,
		TrackTime: 1,
		IsPlaying: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied), "follower update must be rejected")
}

func TestSkipVoteThreshold(t *testing.T) {
	testCases := []struct {
		memberCount   int
		wantThreshold int
	}{
		{memberCount: 1, wantThreshold: 1},
		{memberCount: 2, wantThreshold: 2},
		{memberCount: 3, wantThreshold: 2},
		{memberCount: 4, wantThreshold: 3},
		{memberCount: 5, wantThreshold: 3},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d members", tc.memberCount), func(t *testing.T) {
			service := newTestService(t)
			ctx := context.Background()

			roomId, memberIds := newTestRoom(t, service, tc.memberCount)

			addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
				SenderId: memberIds[0],
				RoomId:   roomId,
				Url:      "https://example.com/track-1",
			})
			require.NoError(t, err)

			resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
				SenderId: memberIds[0],
				RoomId:   roomId,
				TrackId:  addTrackResp.AddedTrack.Id,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.wantThreshold, resp.Threshold)
		})
	}
}

func TestSkipVoteToggle(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 3)

	addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		Url:      "https://example.com/track-1",
	})
	require.NoError(t, err)
	trackId := addTrackResp.AddedTrack.Id

	resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackId,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(resp.Votes), "vote must be counted once")
	assert.False(t, resp.Resolved, "one vote of three members must not resolve")

	// same member toggles off
	resp, err = service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackId,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, len(resp.Votes), "toggled off vote must be removed")
	assert.False(t, resp.Resolved)
}

func TestSkipVoteResolution(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 1)

	trackIds := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
			SenderId: memberIds[0],
			RoomId:   roomId,
			Url:      fmt.Sprintf("https://example.com/track-%d", i+1),
		})
		require.NoError(t, err)
		trackIds = append(trackIds, addTrackResp.AddedTrack.Id)
	}

	_, err := service.SetCurrentTrack(ctx, &SetCurrentTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[0],
	})
	require.NoError(t, err)

	// the third track is the most upvoted and must win the resolution
	_, err = service.ToggleUpvote(ctx, &ToggleUpvoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[2],
	})
	require.NoError(t, err)

	resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[0],
	})
	require.NoError(t, err)
	assert.True(t, resp.Resolved, "single member room must resolve on first vote")
	assert.Equal(t, trackIds[2], resp.NextTrackId, "most upvoted track must win")
	assert.Equal(t, trackIds[2], resp.Playback.CurrentTrackId)
	assert.True(t, resp.Playback.IsPlaying, "winner must start playing")
	assert.Equal(t, float64(0), resp.Playback.TrackTime, "winner must start at 0")

	// skip votes on the winner must have been cleared; a fresh vote counts as
	// the first one again
	resp, err = service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[2],
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(resp.Votes), "winner must not inherit stale votes")
}

func TestSkipVoteTieBreaksByQueueOrder(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 1)

	trackIds := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
			SenderId: memberIds[0],
			RoomId:   roomId,
			Url:      fmt.Sprintf("https://example.com/track-%d", i+1),
		})
		require.NoError(t, err)
		trackIds = append(trackIds, addTrackResp.AddedTrack.Id)
	}

	_, err := service.SetCurrentTrack(ctx, &SetCurrentTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[0],
	})
	require.NoError(t, err)

	resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackIds[0],
	})
	require.NoError(t, err)
	assert.True(t, resp.Resolved)
	assert.Equal(t, trackIds[1], resp.NextTrackId, "earliest queued track must win the tie")
}

func TestSkipVoteEmptyQueueClearsPlayback(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 1)

	addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		Url:      "https://example.com/track-1",
	})
	require.NoError(t, err)

	_, err = service.SetCurrentTrack(ctx, &SetCurrentTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  addTrackResp.AddedTrack.Id,
	})
	require.NoError(t, err)

	resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  addTrackResp.AddedTrack.Id,
	})
	require.NoError(t, err)
	assert.True(t, resp.Resolved)
	assert.Equal(t, "", resp.NextTrackId, "no alternative track must clear playback")
	assert.Equal(t, "", resp.Playback.CurrentTrackId)
	assert.False(t, resp.Playback.IsPlaying, "cleared playback must be paused")
}

func TestSkipVotesResetOnTrackChange(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	roomId, memberIds := newTestRoom(t, service, 3)

	addTrackResp, err := service.AddTrack(ctx, &AddTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		Url:      "https://example.com/track-1",
	})
	require.NoError(t, err)
	trackId := addTrackResp.AddedTrack.Id

	resp, err := service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[1],
		RoomId:   roomId,
		TrackId:  trackId,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(resp.Votes))
	assert.False(t, resp.Resolved)

	// switching to the track clears any stale votes on it
	_, err = service.SetCurrentTrack(ctx, &SetCurrentTrackParams{
		SenderId: memberIds[0],
		RoomId:   roomId,
		TrackId:  trackId,
	})
	require.NoError(t, err)

	resp, err = service.ToggleSkipVote(ctx, &ToggleSkipVoteParams{
		SenderId: memberIds[1],
		RoomId:   roomId,
		TrackId:  trackId,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(resp.Votes), "vote after reset must count as the first one")
}
