package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	RoomName string
	RoomID   string
)

type Room struct {
	ID        RoomID
	Name      RoomName
	CreatedAt time.Time
}

func NewRoom(name RoomName) *Room {
	return &Room{ID: RoomID(uuid.NewString()), Name: name, CreatedAt: time.Now()}
}
