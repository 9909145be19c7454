// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

const MaxClientNameLen = 36

var (
	ErrClientNameTooLong = errors.New("client name too long")
	ErrClientNameEmpty   = errors.New("client name empty")
)

type ClientID string

// Client is whoever holds a connection to the room service. It may be a
// member of several rooms, under a different peer id in each.
type Client struct {
	ID   ClientID `json:"id"`
	Name string   `json:"name"`
}

// NewClient is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewClient(name string) (*Client, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return nil, ErrClientNameEmpty
	}
	if len(name) > MaxClientNameLen {
		return nil, ErrClientNameTooLong
	}
	return &Client{ID: ClientID(uuid.NewString()), Name: name}, nil
}
