package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/repository/room"
)

type AddTrackParams struct {
	SenderId string
	RoomId   string
	Url      string
	Title    string
}

type AddTrackResponse struct {
	AddedTrack Track
	Playlist   []Track
	Conns      []*websocket.Conn
}

func (s service) AddTrack(ctx context.Context, params *AddTrackParams) (AddTrackResponse, error) {
	if err := s.checkIfMemberExists(ctx, params.RoomId, params.SenderId); err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to check if member exists: %w", err)
	}

	trackIds, err := s.roomRepo.GetTrackIds(ctx, params.RoomId)
	if err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to get track ids: %w", err)
	}
	if len(trackIds) >= s.playlistLimit {
		return AddTrackResponse{}, ErrPlaylistLimitReached
	}

	trackId := uuid.NewString()
	if err := s.roomRepo.SetTrack(ctx, &room.SetTrackParams{
		TrackId:   trackId,
		Url:       params.Url,
		Title:     params.Title,
		AddedById: params.SenderId,
		RoomId:    params.RoomId,
	}); err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to set track: %w", err)
	}

	playlist, err := s.getPlaylist(ctx, params.RoomId)
	if err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to get playlist: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return AddTrackResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return AddTrackResponse{
		AddedTrack: Track{
			Id:        trackId,
			Url:       params.Url,
			Title:     params.Title,
			AddedById: params.SenderId,
		},
		Playlist: playlist,
		Conns:    conns,
	}, nil
}

type ToggleUpvoteParams struct {
	SenderId string
	RoomId   string
	TrackId  string
}

type ToggleUpvoteResponse struct {
	TrackId     string
	Upvoted     bool
	UpvoteCount int
	Conns       []*websocket.Conn
}

func (s service) ToggleUpvote(ctx context.Context, params *ToggleUpvoteParams) (ToggleUpvoteResponse, error) {
	if err := s.checkIfMemberExists(ctx, params.RoomId, params.SenderId); err != nil {
		return ToggleUpvoteResponse{}, fmt.Errorf("failed to check if member exists: %w", err)
	}

	exists, err := s.roomRepo.IsTrackExists(ctx, &room.GetTrackParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	})
	if err != nil {
		return ToggleUpvoteResponse{}, fmt.Errorf("failed to check if track exists: %w", err)
	}
	if !exists {
		return ToggleUpvoteResponse{}, ErrTrackNotFound
	}

	upvoted, err := s.roomRepo.ToggleUpvote(ctx, &room.ToggleUpvoteParams{
		TrackId:  params.TrackId,
		MemberId: params.SenderId,
		RoomId:   params.RoomId,
	})
	if err != nil {
		return ToggleUpvoteResponse{}, fmt.Errorf("failed to toggle upvote: %w", err)
	}

	upvoteCount, err := s.roomRepo.GetUpvoteCount(ctx, &room.GetTrackParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	})
	if err != nil {
		return ToggleUpvoteResponse{}, fmt.Errorf("failed to get upvote count: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return ToggleUpvoteResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return ToggleUpvoteResponse{
		TrackId:     params.TrackId,
		Upvoted:     upvoted,
		UpvoteCount: upvoteCount,
		Conns:       conns,
	}, nil
}

type SetCurrentTrackParams struct {
	SenderId string
	RoomId   string
	TrackId  string
}

type SetCurrentTrackResponse struct {
	TrackId  string
	Playback Playback
	Conns    []*websocket.Conn
}

// SetCurrentTrack switches the room to the given queued track and resets
// playback to the start. Stale skip votes on the new track are cleared so a
// fresh track never inherits votes.
func (s service) SetCurrentTrack(ctx context.Context, params *SetCurrentTrackParams) (SetCurrentTrackResponse, error) {
	if err := s.checkIfMemberExists(ctx, params.RoomId, params.SenderId); err != nil {
		return SetCurrentTrackResponse{}, fmt.Errorf("failed to check if member exists: %w", err)
	}

	exists, err := s.roomRepo.IsTrackExists(ctx, &room.GetTrackParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	})
	if err != nil {
		return SetCurrentTrackResponse{}, fmt.Errorf("failed to check if track exists: %w", err)
	}
	if !exists {
		return SetCurrentTrackResponse{}, ErrTrackNotFound
	}

	now := s.nowMillis()
	if err := s.roomRepo.UpdateCurrentTrack(ctx, &room.UpdateCurrentTrackParams{
		TrackId:      params.TrackId,
		TrackTime:    0,
		IsPlaying:    true,
		LastSyncTime: now,
		RoomId:       params.RoomId,
	}); err != nil {
		return SetCurrentTrackResponse{}, fmt.Errorf("failed to update current track: %w", err)
	}

	if err := s.roomRepo.ClearSkipVotes(ctx, &room.ClearSkipVotesParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	}); err != nil {
		return SetCurrentTrackResponse{}, fmt.Errorf("failed to clear skip votes: %w", err)
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return SetCurrentTrackResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}

	return SetCurrentTrackResponse{
		TrackId: params.TrackId,
		Playback: Playback{
			CurrentTrackId: params.TrackId,
			TrackTime:      0,
			IsPlaying:      true,
			LastSyncTime:   now,
		},
		Conns: conns,
	}, nil
}
