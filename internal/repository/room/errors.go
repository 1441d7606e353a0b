package room

import "errors"

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrTrackNotFound        = errors.New("track not found")
	ErrConnectTokenNotFound = errors.New("connect token not found")
)
