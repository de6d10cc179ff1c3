package domain

import "time"

type User struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
}

// Room is a listed property. AgentID is the user who manages viewings for it.
type Room struct {
	ID        int64
	AgentID   int64
	Title     string
	CreatedAt time.Time
}
