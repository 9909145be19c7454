package directory

// Event is one of GroupJoined, GroupLeft, PeerJoined, PeerLeft or
// MessageReceived.
type Event interface {
	GroupName() string
	isEvent()
}

type GroupJoined struct {
	Group string
	Self  PeerID
	Peers []Peer
}

type GroupLeft struct {
	Group string
}

type PeerJoined struct {
	Group string
	Peer  Peer
}

type PeerLeft struct {
	Group string
	Peer  PeerID
}

type MessageReceived struct {
	Group string
	From  PeerID
	Data  []byte
}

func (e GroupJoined) GroupName() string     { return e.Group }
func (e GroupLeft) GroupName() string       { return e.Group }
func (e PeerJoined) GroupName() string      { return e.Group }
func (e PeerLeft) GroupName() string        { return e.Group }
func (e MessageReceived) GroupName() string { return e.Group }

func (GroupJoined) isEvent()     {}
func (GroupLeft) isEvent()       {}
func (PeerJoined) isEvent()      {}
func (PeerLeft) isEvent()        {}
func (MessageReceived) isEvent() {}
