// Package directory is the contract between a session and the group service
// it runs over: rooms of symmetric peers with published role tags.
package directory

import "errors"

var (
	ErrClosed      = errors.New("directory: closed")
	ErrNotMember   = errors.New("directory: not a member of group")
	ErrEmptyGroup  = errors.New("directory: empty group name")
	ErrNoRecipient = errors.New("directory: no recipients")
)

// PeerID is assigned by the group service and is only stable for one
// membership. NoPeer is never a real peer.
type PeerID uint64

const NoPeer PeerID = 0

// Peer is a member of a group as seen by the directory.
type Peer struct {
	ID  PeerID
	Tag []byte
}

// Directory is implemented by group service adapters.
//
// Events for every group the adapter is in are delivered to all listeners on
// one goroutine per adapter, in order. JoinGroup and LeaveGroup only request
// the change; GroupJoined and GroupLeft confirm it.
type Directory interface {
	Subscribe(l Listener) Subscription
	JoinGroup(name string, tag []byte) error
	LeaveGroup(name string) error
	// SendToPeers is fire-and-forget. done, if non-nil, runs once the group
	// service resolved the send, possibly before SendToPeers returns.
	SendToPeers(name string, peers []PeerID, data []byte, done func(error))
}
