package room

// Room is the persisted driver-authoritative playback state. CurrentTrackId
// is empty when the room has no current track. TrackTime and IsPlaying are
// the last snapshot the driver persisted, kept for late joiners.
type Room struct {
	DriverId       string  `redis:"driver_id"`
	CurrentTrackId string  `redis:"current_track_id"`
	TrackTime      float64 `redis:"track_time"`
	IsPlaying      bool    `redis:"is_playing"`
	LastSyncTime   int64   `redis:"last_sync_time"`
}

type SetRoomParams struct {
	DriverId       string
	CurrentTrackId string
	RoomId         string
}

type UpdatePlaybackParams struct {
	TrackTime    float64
	IsPlaying    bool
	LastSyncTime int64
	RoomId       string
}

// UpdateCurrentTrackParams switches the room's current track and resets
// playback. TrackId empty clears the current track.
type UpdateCurrentTrackParams struct {
	TrackId      string
	TrackTime    float64
	IsPlaying    bool
	LastSyncTime int64
	RoomId       string
}
