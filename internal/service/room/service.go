package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/repository/room"
)

var (
	ErrPermissionDenied     = errors.New("permission denied")
	ErrMemberNotFound       = errors.New("member not found")
	ErrTrackNotFound        = errors.New("track not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrPlaylistLimitReached = errors.New("playlist limit reached")
	ErrMembersLimitReached  = errors.New("members limit reached")
)

type iRoomRepo interface {
	// room
	SetRoom(context.Context, *room.SetRoomParams) error
	GetRoom(context.Context, string) (room.Room, error)
	RemoveRoom(context.Context, string) error
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) error
	UpdateCurrentTrack(context.Context, *room.UpdateCurrentTrackParams) error
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	GetMember(context.Context, *room.GetMemberParams) (room.Member, error)
	GetMemberIds(context.Context, string) ([]string, error)
	GetMemberCount(context.Context, string) (int, error)
	IsMemberExists(context.Context, *room.GetMemberParams) (bool, error)
	// track
	SetTrack(context.Context, *room.SetTrackParams) error
	RemoveTrack(context.Context, *room.RemoveTrackParams) error
	GetTrackIds(context.Context, string) ([]string, error)
	GetTrack(context.Context, *room.GetTrackParams) (room.Track, error)
	IsTrackExists(context.Context, *room.GetTrackParams) (bool, error)
	ToggleUpvote(context.Context, *room.ToggleUpvoteParams) (bool, error)
	GetUpvoteCount(context.Context, *room.GetTrackParams) (int, error)
	// skip votes
	ToggleSkipVote(context.Context, *room.ToggleSkipVoteParams) (bool, error)
	GetSkipVotes(context.Context, *room.GetSkipVotesParams) ([]string, error)
	ClearSkipVotes(context.Context, *room.ClearSkipVotesParams) error
	// connect token
	SetConnectToken(context.Context, *room.SetConnectTokenParams) error
	GetConnectToken(context.Context, string) (room.ConnectToken, error)
}

type iTokenGenerator interface {
	GenerateRandomString(length int) string
}

type iConnRepo interface {
	Add(*websocket.Conn, string) error
	RemoveByConn(*websocket.Conn) error
	RemoveByMemberId(string) error
	GetMemberId(*websocket.Conn) (string, error)
	GetConn(string) (*websocket.Conn, error)
}

type Config struct {
	MembersLimit  int
	PlaylistLimit int
}

type service struct {
	roomRepo      iRoomRepo
	connRepo      iConnRepo
	tokenGen      iTokenGenerator
	logger        *slog.Logger
	membersLimit  int
	playlistLimit int
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, tokenGen iTokenGenerator, cfg *Config, logger *slog.Logger) *service {
	return &service{
		roomRepo:      roomRepo,
		connRepo:      connRepo,
		tokenGen:      tokenGen,
		logger:        logger,
		membersLimit:  cfg.MembersLimit,
		playlistLimit: cfg.PlaylistLimit,
	}
}
