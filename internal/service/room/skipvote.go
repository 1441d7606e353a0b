package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"

	"github.com/tuneroom/server/internal/repository/room"
)

type ToggleSkipVoteParams struct {
	SenderId string
	RoomId   string
	TrackId  string
}

type ToggleSkipVoteResponse struct {
	TrackId   string
	Votes     []string
	Threshold int
	Resolved  bool
	// NextTrackId is set when the skip resolved to another track. Empty with
	// Resolved=true means the queue had no alternative and the current track
	// was cleared.
	NextTrackId string
	Playback    Playback
	Conns       []*websocket.Conn
}

// ToggleSkipVote toggles the member's skip vote for the track and resolves
// the skip when the vote count crosses quorum. The threshold is recomputed
// from live membership on every vote, so votes can never exceed members.
// Quorum is evaluated only on the upward crossing: removing a vote after a
// resolution never undoes it.
func (s service) ToggleSkipVote(ctx context.Context, params *ToggleSkipVoteParams) (ToggleSkipVoteResponse, error) {
	if err := s.checkIfMemberExists(ctx, params.RoomId, params.SenderId); err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to check if member exists: %w", err)
	}

	exists, err := s.roomRepo.IsTrackExists(ctx, &room.GetTrackParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	})
	if err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to check if track exists: %w", err)
	}
	if !exists {
		return ToggleSkipVoteResponse{}, ErrTrackNotFound
	}

	voted, err := s.roomRepo.ToggleSkipVote(ctx, &room.ToggleSkipVoteParams{
		TrackId:  params.TrackId,
		MemberId: params.SenderId,
		RoomId:   params.RoomId,
	})
	if err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to toggle skip vote: %w", err)
	}

	votes, err := s.roomRepo.GetSkipVotes(ctx, &room.GetSkipVotesParams{
		TrackId: params.TrackId,
		RoomId:  params.RoomId,
	})
	if err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to get skip votes: %w", err)
	}

	memberCount, err := s.roomRepo.GetMemberCount(ctx, params.RoomId)
	if err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to get member count: %w", err)
	}
	threshold := memberCount/2 + 1

	resp := ToggleSkipVoteResponse{
		TrackId:   params.TrackId,
		Votes:     votes,
		Threshold: threshold,
	}

	if voted && len(votes) >= threshold {
		playback, nextTrackId, err := s.resolveSkip(ctx, params.RoomId, params.TrackId)
		if err != nil {
			return ToggleSkipVoteResponse{}, fmt.Errorf("failed to resolve skip: %w", err)
		}

		resp.Resolved = true
		resp.NextTrackId = nextTrackId
		resp.Playback = playback
	}

	conns, err := s.getConnsByRoomId(ctx, params.RoomId)
	if err != nil {
		return ToggleSkipVoteResponse{}, fmt.Errorf("failed to get conns by room id: %w", err)
	}
	resp.Conns = conns

	return resp, nil
}

// resolveSkip selects the most upvoted queued track other than the skipped
// one, ties broken by queue order. With no alternative the current track is
// cleared and playback stopped so the room never references a skipped track.
func (s service) resolveSkip(ctx context.Context, roomId, skippedTrackId string) (Playback, string, error) {
	trackIds, err := s.roomRepo.GetTrackIds(ctx, roomId)
	if err != nil {
		return Playback{}, "", fmt.Errorf("failed to get track ids: %w", err)
	}

	type candidate struct {
		trackId     string
		upvoteCount int
	}

	candidates := make([]candidate, 0, len(trackIds))
	for _, trackId := range trackIds {
		if trackId == skippedTrackId {
			continue
		}

		upvoteCount, err := s.roomRepo.GetUpvoteCount(ctx, &room.GetTrackParams{
			TrackId: trackId,
			RoomId:  roomId,
		})
		if err != nil {
			return Playback{}, "", fmt.Errorf("failed to get upvote count: %w", err)
		}

		candidates = append(candidates, candidate{trackId: trackId, upvoteCount: upvoteCount})
	}

	now := s.nowMillis()

	if len(candidates) == 0 {
		if err := s.roomRepo.UpdateCurrentTrack(ctx, &room.UpdateCurrentTrackParams{
			TrackId:      "",
			TrackTime:    0,
			IsPlaying:    false,
			LastSyncTime: now,
			RoomId:       roomId,
		}); err != nil {
			return Playback{}, "", fmt.Errorf("failed to clear current track: %w", err)
		}

		if err := s.roomRepo.ClearSkipVotes(ctx, &room.ClearSkipVotesParams{
			TrackId: skippedTrackId,
			RoomId:  roomId,
		}); err != nil {
			return Playback{}, "", fmt.Errorf("failed to clear skip votes: %w", err)
		}

		return Playback{LastSyncTime: now}, "", nil
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.upvoteCount - a.upvoteCount
	})
	nextTrackId := candidates[0].trackId

	if err := s.roomRepo.UpdateCurrentTrack(ctx, &room.UpdateCurrentTrackParams{
		TrackId:      nextTrackId,
		TrackTime:    0,
		IsPlaying:    true,
		LastSyncTime: now,
		RoomId:       roomId,
	}); err != nil {
		return Playback{}, "", fmt.Errorf("failed to update current track: %w", err)
	}

	// a fresh track must never inherit stale votes
	if err := s.roomRepo.ClearSkipVotes(ctx, &room.ClearSkipVotesParams{
		TrackId: nextTrackId,
		RoomId:  roomId,
	}); err != nil {
		return Playback{}, "", fmt.Errorf("failed to clear skip votes: %w", err)
	}

	if err := s.roomRepo.ClearSkipVotes(ctx, &room.ClearSkipVotesParams{
		TrackId: skippedTrackId,
		RoomId:  roomId,
	}); err != nil {
		return Playback{}, "", fmt.Errorf("failed to clear skip votes: %w", err)
	}

	return Playback{
		CurrentTrackId: nextTrackId,
		TrackTime:      0,
		IsPlaying:      true,
		LastSyncTime:   now,
	}, nextTrackId, nil
}
