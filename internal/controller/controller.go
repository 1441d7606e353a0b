package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/service/room"
	"github.com/tuneroom/server/pkg/validator"
)

type iRoomService interface {
	CreateConnectToken(context.Context, *room.CreateConnectTokenParams) (string, error)
	CreateJoinConnectToken(context.Context, *room.CreateJoinConnectTokenParams) (string, error)
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	AddTrack(context.Context, *room.AddTrackParams) (room.AddTrackResponse, error)
	ToggleUpvote(context.Context, *room.ToggleUpvoteParams) (room.ToggleUpvoteResponse, error)
	SetCurrentTrack(context.Context, *room.SetCurrentTrackParams) (room.SetCurrentTrackResponse, error)
	UpdatePlayback(context.Context, *room.UpdatePlaybackParams) (room.UpdatePlaybackResponse, error)
	ToggleSkipVote(context.Context, *room.ToggleSkipVoteParams) (room.ToggleSkipVoteResponse, error)
	React(context.Context, *room.ReactParams) (room.ReactResponse, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
}

func (c controller) generateTimeBasedId() string {
	return uuid.NewString() + "-" + time.Now().Format("150405.000")
}
