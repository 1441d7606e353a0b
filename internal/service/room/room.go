package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/repository/room"
)

type CreateConnectTokenParams struct {
	Username  string
	Color     string
	AvatarUrl string
}

// CreateConnectToken issues a one-shot token redeemed on the create-room
// websocket upgrade.
func (s service) CreateConnectToken(ctx context.Context, params *CreateConnectTokenParams) (string, error) {
	connectToken := s.tokenGen.GenerateRandomString(32)
	if err := s.roomRepo.SetConnectToken(ctx, &room.SetConnectTokenParams{
		Token:     connectToken,
		Username:  params.Username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
	}); err != nil {
		return "", fmt.Errorf("failed to set connect token: %w", err)
	}

	return connectToken, nil
}

type CreateJoinConnectTokenParams struct {
	Username  string
	Color     string
	AvatarUrl string
	RoomId    string
}

func (s service) CreateJoinConnectToken(ctx context.Context, params *CreateJoinConnectTokenParams) (string, error) {
	if _, err := s.roomRepo.GetRoom(ctx, params.RoomId); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return "", ErrRoomNotFound
		}
		return "", fmt.Errorf("failed to get room: %w", err)
	}

	memberCount, err := s.roomRepo.GetMemberCount(ctx, params.RoomId)
	if err != nil {
		return "", fmt.Errorf("failed to get member count: %w", err)
	}
	if memberCount >= s.membersLimit {
		return "", ErrMembersLimitReached
	}

	connectToken := s.tokenGen.GenerateRandomString(32)
	if err := s.roomRepo.SetConnectToken(ctx, &room.SetConnectTokenParams{
		Token:     connectToken,
		Username:  params.Username,
		Color:     params.Color,
		AvatarUrl: params.AvatarUrl,
		RoomId:    params.RoomId,
	}); err != nil {
		return "", fmt.Errorf("failed to set connect token: %w", err)
	}

	return connectToken, nil
}

type CreateRoomParams struct {
	ConnectToken string
	Conn         *websocket.Conn
}

type CreateRoomResponse struct {
	RoomId   string
	MemberId string
}

// CreateRoom redeems a connect token and creates the room. The creator
// becomes the driver, fixed for the room's lifetime.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	session, err := s.roomRepo.GetConnectToken(ctx, params.ConnectToken)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to get connect token: %w", err)
	}

	roomId := uuid.NewString()
	memberId := uuid.NewString()

	if err := s.roomRepo.SetRoom(ctx, &room.SetRoomParams{
		DriverId: memberId,
		RoomId:   roomId,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set room: %w", err)
	}

	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId:  memberId,
		Username:  session.Username,
		Color:     session.Color,
		AvatarUrl: session.AvatarUrl,
		IsDriver:  true,
		RoomId:    roomId,
	}); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
	}

	if err := s.connRepo.Add(params.Conn, memberId); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	return CreateRoomResponse{
		RoomId:   roomId,
		MemberId: memberId,
	}, nil
}

type JoinRoomParams struct {
	ConnectToken string
	RoomId       string
	Conn         *websocket.Conn
}

type JoinRoomResponse struct {
	JoinedMember Member
	MemberList   []Member
	Playlist     []Track
	Playback     Playback
	Conns        []*websocket.Conn
}

// JoinRoom adds a member as a follower and returns the room state the
// joiner needs to seed its player before the first heartbeat arrives.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	session, err := s.roomRepo.GetConnectToken(ctx, params.ConnectToken)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get connect token: %w", err)
	}

	if session.RoomId != params.RoomId {
		return JoinRoomResponse{}, ErrRoomNotFound
	}

	ro, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get room: %w", err)
	}

	memberId := uuid.NewString()
	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId:  memberId,
		Username:  session.Username,
		Color:     session.Color,
		AvatarUrl: session.AvatarUrl,
		IsDriver:  false,
		RoomId:    params.RoomId,
	}); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to set member: %w", err)
	}

	if err := s.connRepo.Add(params.Conn, memberId); err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	memberList, err := s.getMemberList(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get member list: %w", err)
	}

	playlist, err := s.getPlaylist(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get playlist: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return JoinRoomResponse{
		JoinedMember: Member{
			Id:        memberId,
			Username:  session.Username,
			Color:     session.Color,
			AvatarUrl: session.AvatarUrl,
			IsDriver:  false,
		},
		MemberList: memberList,
		Playlist:   playlist,
		Playback: Playback{
			CurrentTrackId: ro.CurrentTrackId,
			TrackTime:      ro.TrackTime,
			IsPlaying:      ro.IsPlaying,
			LastSyncTime:   ro.LastSyncTime,
		},
		Conns: conns,
	}, nil
}

type DisconnectMemberParams struct {
	MemberId string
	RoomId   string
}

type DisconnectMemberResponse struct {
	IsRoomDeleted bool
	MemberList    []Member
	Conns         []*websocket.Conn
}

func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	}); err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to remove member: %w", err)
	}

	s.connRepo.RemoveByMemberId(params.MemberId)

	memberCount, err := s.roomRepo.GetMemberCount(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get member count: %w", err)
	}

	if memberCount == 0 {
		if err := s.roomRepo.RemoveRoom(ctx, params.RoomId); err != nil {
			return DisconnectMemberResponse{}, fmt.Errorf("failed to remove room: %w", err)
		}

		return DisconnectMemberResponse{IsRoomDeleted: true}, nil
	}

	memberList, err := s.getMemberList(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get member list: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return DisconnectMemberResponse{
		MemberList: memberList,
		Conns:      conns,
	}, nil
}

func (s service) nowMillis() int64 {
	return time.Now().UnixMilli()
}
