package room

// ConnectToken is a one-shot session issued over REST and redeemed on the
// websocket upgrade. RoomId is empty for a create-room token.
type ConnectToken struct {
	Username  string `redis:"username"`
	Color     string `redis:"color"`
	AvatarUrl string `redis:"avatar_url"`
	RoomId    string `redis:"room_id"`
}

type SetConnectTokenParams struct {
	Token     string
	Username  string
	Color     string
	AvatarUrl string
	RoomId    string
}
