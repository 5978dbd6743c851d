package user

import "time"

type CreateUserRequest struct {
	Username          string `json:"username,omitempty"`
	BusinessID        string `json:"businessId,omitempty"`
	IsAdmin           bool   `json:"isAdmin,omitempty"`
	PlainTextPassword string `json:"-"`
}

// User is an API caller. Every user acts on behalf of exactly one business.
type User struct {
	Username       string
	BusinessID     string
	HashedPassword string
	IsAdmin        bool
	Created        time.Time
}
