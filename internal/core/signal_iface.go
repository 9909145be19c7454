package core

import (
	"errors"

	"github.com/dkeye/roomlink/internal/directory"
)

var ErrBackpressure = errors.New("backpressure")

// Endpoint is the mailbox of one attached client.
// Owned by the adapter; TrySend must not block and returns ErrBackpressure
// when the mailbox is full.
type Endpoint interface {
	TrySend(directory.Event) error
}
