package user

type User struct {
	Id          int
	Uid         string
	Username    string
	DisplayName string
	// Email identifies the user as the creator of calendar events.
	Email    string
	Timezone string
}
