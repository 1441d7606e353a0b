package room

type ToggleSkipVoteParams struct {
	TrackId  string
	MemberId string
	RoomId   string
}

type ClearSkipVotesParams struct {
	TrackId string
	RoomId  string
}

type GetSkipVotesParams struct {
	TrackId string
	RoomId  string
}
