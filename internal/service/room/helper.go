package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/tuneroom/server/internal/repository/room"
)

func (s service) getConnsByRoomId(ctx context.Context, roomId string) ([]*websocket.Conn, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	conns := make([]*websocket.Conn, 0, len(memberIds))
	for _, memberId := range memberIds {
		conn, err := s.connRepo.GetConn(memberId)
		if err != nil {
			// member exists but is not connected right now
			continue
		}
		conns = append(conns, conn)
	}

	return conns, nil
}

func (s service) getMemberList(ctx context.Context, roomId string) ([]Member, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	members := make([]Member, 0, len(memberIds))
	for _, memberId := range memberIds {
		member, err := s.roomRepo.GetMember(ctx, &room.GetMemberParams{
			MemberId: memberId,
			RoomId:   roomId,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get member: %w", err)
		}

		members = append(members, Member{
			Id:        memberId,
			Username:  member.Username,
			Color:     member.Color,
			AvatarUrl: member.AvatarUrl,
			IsDriver:  member.IsDriver,
		})
	}

	return members, nil
}

func (s service) getPlaylist(ctx context.Context, roomId string) ([]Track, error) {
	trackIds, err := s.roomRepo.GetTrackIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get track ids: %w", err)
	}

	tracks := make([]Track, 0, len(trackIds))
	for _, trackId := range trackIds {
		track, err := s.roomRepo.GetTrack(ctx, &room.GetTrackParams{
			TrackId: trackId,
			RoomId:  roomId,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get track: %w", err)
		}

		upvoteCount, err := s.roomRepo.GetUpvoteCount(ctx, &room.GetTrackParams{
			TrackId: trackId,
			RoomId:  roomId,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get upvote count: %w", err)
		}

		tracks = append(tracks, Track{
			Id:          trackId,
			Url:         track.Url,
			Title:       track.Title,
			AddedById:   track.AddedById,
			UpvoteCount: upvoteCount,
		})
	}

	return tracks, nil
}

func (s service) checkIfMemberDriver(ctx context.Context, roomId, memberId string) error {
	ro, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return fmt.Errorf("failed to get room: %w", err)
	}

	if ro.DriverId != memberId {
		return ErrPermissionDenied
	}

	return nil
}

func (s service) checkIfMemberExists(ctx context.Context, roomId, memberId string) error {
	exists, err := s.roomRepo.IsMemberExists(ctx, &room.GetMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
	})
	if err != nil {
		return fmt.Errorf("failed to check if member exists: %w", err)
	}
	if !exists {
		return ErrMemberNotFound
	}

	return nil
}
