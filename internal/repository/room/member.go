package room

type Member struct {
	Username  string `redis:"username"`
	Color     string `redis:"color"`
	AvatarUrl string `redis:"avatar_url"`
	IsDriver  bool   `redis:"is_driver"`
}

type SetMemberParams struct {
	MemberId  string
	Username  string
	Color     string
	AvatarUrl string
	IsDriver  bool
	RoomId    string
}

type RemoveMemberParams struct {
	MemberId string
	RoomId   string
}

type GetMemberParams struct {
	MemberId string
	RoomId   string
}
