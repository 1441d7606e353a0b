package room

type Member struct {
	Id        string `json:"id"`
	Username  string `json:"username"`
	Color     string `json:"color"`
	AvatarUrl string `json:"avatar_url"`
	IsDriver  bool   `json:"is_driver"`
}

type Track struct {
	Id          string `json:"id"`
	Url         string `json:"url"`
	Title       string `json:"title"`
	AddedById   string `json:"added_by_id"`
	UpvoteCount int    `json:"upvote_count"`
}

// Playback is the room's last persisted driver snapshot, handed to late
// joiners so their player can seed before the first heartbeat arrives.
type Playback struct {
	CurrentTrackId string  `json:"current_track_id"`
	TrackTime      float64 `json:"track_time"`
	IsPlaying      bool    `json:"is_playing"`
	LastSyncTime   int64   `json:"last_sync_time"`
}
