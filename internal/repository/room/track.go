package room

type Track struct {
	Url       string `redis:"url"`
	Title     string `redis:"title"`
	AddedById string `redis:"added_by_id"`
}

type SetTrackParams struct {
	TrackId   string
	Url       string
	Title     string
	AddedById string
	RoomId    string
}

type RemoveTrackParams struct {
	TrackId string
	RoomId  string
}

type GetTrackParams struct {
	TrackId string
	RoomId  string
}

type ToggleUpvoteParams struct {
	TrackId  string
	MemberId string
	RoomId   string
}
