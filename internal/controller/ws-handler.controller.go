package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/domain"
	"github.com/tuneroom/server/internal/service/room"
	"github.com/tuneroom/server/pkg/wsrouter"
)

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	connectToken := r.URL.Query().Get("connect-token")
	if connectToken == "" {
		http.Error(w, "connect-token is required", http.StatusBadRequest)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	ctx := r.Context()
	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		ConnectToken: connectToken,
		Conn:         conn,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create room", "error", err)
		conn.WriteJSON(map[string]string{"error": "failed to create room"})
		conn.Close()
		return
	}

	conn.WriteJSON(&Output{
		Type: "room:created",
		Payload: map[string]string{
			"room_id":   createRoomResp.RoomId,
			"member_id": createRoomResp.MemberId,
		},
	})

	c.serveConn(ctx, createRoomResp.RoomId, createRoomResp.MemberId, conn)
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	connectToken := r.URL.Query().Get("connect-token")
	if connectToken == "" {
		http.Error(w, "connect-token is required", http.StatusBadRequest)
		return
	}
	roomId := chi.URLParam(r, "room-id")

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to upgrade connection", "error", err)
		return
	}

	ctx := r.Context()
	joinRoomResp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		ConnectToken: connectToken,
		RoomId:       roomId,
		Conn:         conn,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to join room", "error", err)
		conn.WriteJSON(map[string]string{"error": "failed to join room"})
		conn.Close()
		return
	}

	conn.WriteJSON(&Output{
		Type: "room:joined",
		Payload: map[string]any{
			"joined_member": joinRoomResp.JoinedMember,
			"member_list":   joinRoomResp.MemberList,
			"playlist":      joinRoomResp.Playlist,
			"playback":      joinRoomResp.Playback,
		},
	})

	c.broadcast(ctx, joinRoomResp.Conns, &Output{
		Type: "member:joined",
		Payload: map[string]any{
			"member":      joinRoomResp.JoinedMember,
			"member_list": joinRoomResp.MemberList,
		},
	})

	c.serveConn(ctx, roomId, joinRoomResp.JoinedMember.Id, conn)
}

// serveConn pumps messages for one member until the connection dies, then
// detaches the member from the room.
func (c controller) serveConn(ctx context.Context, roomId, memberId string, conn *websocket.Conn) {
	ctx = context.WithValue(ctx, roomIdCtxKey, roomId)
	ctx = context.WithValue(ctx, memberIdCtxKey, memberId)

	wsr := wsrouter.New()
	wsr.Use(c.wsLoggingMw())
	wsr.Handle("alive", c.handleAlive)
	wsr.Handle(domain.MessagePlaybackUpdate, c.handlePlaybackUpdate)
	wsr.Handle(domain.MessageStreamChange, c.handleStreamChange)
	wsr.Handle(domain.MessageSkipToggle, c.handleSkipToggle)
	wsr.Handle(domain.MessageReaction, c.handleReaction)
	wsr.Handle("track:add", c.handleTrackAdd)
	wsr.Handle("upvote:toggle", c.handleUpvoteToggle)

	if err := wsr.ServeConn(ctx, conn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}

	disconnectResp, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to disconnect member", "error", err)
		return
	}

	if !disconnectResp.IsRoomDeleted {
		c.broadcast(ctx, disconnectResp.Conns, &Output{
			Type: "member:left",
			Payload: map[string]any{
				"member_id":   memberId,
				"member_list": disconnectResp.MemberList,
			},
		})
	}
}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	return nil
}

type PlaybackUpdateInput struct {
	TrackTime      float64 `json:"track_time" validate:"min=0"`
	IsPlaying      bool    `json:"is_playing"`
	LocalTimestamp int64   `json:"local_timestamp"`
}

// handlePlaybackUpdate relays a driver snapshot to the room. The service
// rejects non-driver senders; the persist inside it is best effort and never
// blocks the fan-out.
func (c controller) handlePlaybackUpdate(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[PlaybackUpdateInput](c.validate, payload)
	if err != nil {
		return err
	}

	updateResp, err := c.roomService.UpdatePlayback(ctx, &room.UpdatePlaybackParams{
		SenderId:  c.getMemberIdFromCtx(ctx),
		RoomId:    c.getRoomIdFromCtx(ctx),
		TrackTime: input.TrackTime,
		IsPlaying: input.IsPlaying,
	})
	if err != nil {
		return fmt.Errorf("failed to update playback: %w", err)
	}

	return c.broadcast(ctx, updateResp.Conns, &Output{
		Type: domain.MessagePlaybackUpdate,
		Payload: domain.PlaybackUpdate{
			TrackTime:      input.TrackTime,
			IsPlaying:      input.IsPlaying,
			LocalTimestamp: input.LocalTimestamp,
		},
	})
}

type StreamChangeInput struct {
	TrackId string `json:"track_id" validate:"required"`
}

func (c controller) handleStreamChange(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[StreamChangeInput](c.validate, payload)
	if err != nil {
		return err
	}

	setTrackResp, err := c.roomService.SetCurrentTrack(ctx, &room.SetCurrentTrackParams{
		SenderId: c.getMemberIdFromCtx(ctx),
		RoomId:   c.getRoomIdFromCtx(ctx),
		TrackId:  input.TrackId,
	})
	if err != nil {
		return fmt.Errorf("failed to set current track: %w", err)
	}

	return c.broadcast(ctx, setTrackResp.Conns, &Output{
		Type:    domain.MessageStreamChange,
		Payload: domain.StreamChange{TrackId: setTrackResp.TrackId},
	})
}

type SkipToggleInput struct {
	TrackId string `json:"track_id" validate:"required"`
}

// handleSkipToggle runs the skip-vote aggregator: the tally fans out after
// every toggle and a stream:change follows when quorum resolved the skip, so
// clients converge without re-fetching room state.
func (c controller) handleSkipToggle(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[SkipToggleInput](c.validate, payload)
	if err != nil {
		return err
	}

	skipResp, err := c.roomService.ToggleSkipVote(ctx, &room.ToggleSkipVoteParams{
		SenderId: c.getMemberIdFromCtx(ctx),
		RoomId:   c.getRoomIdFromCtx(ctx),
		TrackId:  input.TrackId,
	})
	if err != nil {
		return fmt.Errorf("failed to toggle skip vote: %w", err)
	}

	if err := c.broadcast(ctx, skipResp.Conns, &Output{
		Type: domain.MessageSkipUpdate,
		Payload: domain.SkipUpdate{
			TrackId:   skipResp.TrackId,
			Votes:     skipResp.Votes,
			Threshold: skipResp.Threshold,
		},
	}); err != nil {
		return fmt.Errorf("failed to broadcast skip update: %w", err)
	}

	if skipResp.Resolved {
		if err := c.broadcast(ctx, skipResp.Conns, &Output{
			Type:    domain.MessageStreamChange,
			Payload: domain.StreamChange{TrackId: skipResp.NextTrackId},
		}); err != nil {
			return fmt.Errorf("failed to broadcast stream change: %w", err)
		}
	}

	return nil
}

type ReactionInput struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

// handleReaction relays an emoji overlay. Nothing is persisted and there is
// no ack: losing one is harmless.
func (c controller) handleReaction(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[ReactionInput](c.validate, payload)
	if err != nil {
		return err
	}

	memberId := c.getMemberIdFromCtx(ctx)
	reactResp, err := c.roomService.React(ctx, &room.ReactParams{
		SenderId: memberId,
		RoomId:   c.getRoomIdFromCtx(ctx),
	})
	if err != nil {
		return fmt.Errorf("failed to react: %w", err)
	}

	return c.broadcast(ctx, reactResp.Conns, &Output{
		Type:    domain.MessageReaction,
		Payload: domain.Reaction{Emoji: input.Emoji, MemberId: memberId},
	})
}

type TrackAddInput struct {
	Url   string `json:"url" validate:"required,max=256"`
	Title string `json:"title" validate:"max=128"`
}

func (c controller) handleTrackAdd(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[TrackAddInput](c.validate, payload)
	if err != nil {
		return err
	}

	addTrackResp, err := c.roomService.AddTrack(ctx, &room.AddTrackParams{
		SenderId: c.getMemberIdFromCtx(ctx),
		RoomId:   c.getRoomIdFromCtx(ctx),
		Url:      input.Url,
		Title:    input.Title,
	})
	if err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	return c.broadcast(ctx, addTrackResp.Conns, &Output{
		Type: "track:added",
		Payload: map[string]any{
			"added_track": addTrackResp.AddedTrack,
			"playlist":    addTrackResp.Playlist,
		},
	})
}

type UpvoteToggleInput struct {
	TrackId string `json:"track_id" validate:"required"`
}

func (c controller) handleUpvoteToggle(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	input, err := parsePayload[UpvoteToggleInput](c.validate, payload)
	if err != nil {
		return err
	}

	upvoteResp, err := c.roomService.ToggleUpvote(ctx, &room.ToggleUpvoteParams{
		SenderId: c.getMemberIdFromCtx(ctx),
		RoomId:   c.getRoomIdFromCtx(ctx),
		TrackId:  input.TrackId,
	})
	if err != nil {
		return fmt.Errorf("failed to toggle upvote: %w", err)
	}

	return c.broadcast(ctx, upvoteResp.Conns, &Output{
		Type: "upvote:update",
		Payload: map[string]any{
			"track_id":     upvoteResp.TrackId,
			"upvoted":      upvoteResp.Upvoted,
			"upvote_count": upvoteResp.UpvoteCount,
		},
	})
}
