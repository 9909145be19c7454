package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/role"
)

type joinCall struct {
	group string
	tag   role.Tag
}

type sendCall struct {
	group string
	peers []directory.PeerID
	data  []byte
}

// fakeDirectory delivers events synchronously on the caller's goroutine.
type fakeDirectory struct {
	directory.SubscriberSet

	mu      sync.Mutex
	joins   []joinCall
	leaves  []string
	sends   []sendCall
	order   []string
	joinErr error
	sendErr error

	// leaving and leaveGate, when set, park LeaveGroup until the gate closes.
	leaving   chan struct{}
	leaveGate chan struct{}
}

func (f *fakeDirectory) JoinGroup(name string, tag []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, joinCall{group: name, tag: role.Decode(tag)})
	f.order = append(f.order, "join:"+name)
	return f.joinErr
}

func (f *fakeDirectory) LeaveGroup(name string) error {
	if f.leaveGate != nil {
		f.leaving <- struct{}{}
		<-f.leaveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, name)
	f.order = append(f.order, "leave:"+name)
	return nil
}

func (f *fakeDirectory) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *fakeDirectory) SendToPeers(name string, peers []directory.PeerID, data []byte, done func(error)) {
	f.mu.Lock()
	f.sends = append(f.sends, sendCall{group: name, peers: peers, data: data})
	err := f.sendErr
	f.mu.Unlock()
	if done != nil {
		done(err)
	}
}

func (f *fakeDirectory) emit(ev directory.Event) { f.Publish(ev) }

func (f *fakeDirectory) sent() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sendCall(nil), f.sends...)
}

func peer(id directory.PeerID, t role.Tag) directory.Peer {
	return directory.Peer{ID: id, Tag: role.Encode(t)}
}

// recorder logs handler calls as short strings.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) count(prefix string) int {
	n := 0
	for _, c := range r.all() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (r *recorder) OnConnected()                            { r.add("connected") }
func (r *recorder) OnConnectionAccepted(c ConnectionID)     { r.add("accepted:%d", c) }
func (r *recorder) OnConnectionClosed(c ConnectionID)       { r.add("closed:%d", c) }
func (r *recorder) OnDataReceived(c ConnectionID, b []byte) { r.add("recv:%d:%s", c, b) }
func (r *recorder) OnDataSent(c ConnectionID, b []byte)     { r.add("sent:%d:%s", c, b) }
func (r *recorder) OnDisconnected()                         { r.add("disconnected") }
func (r *recorder) OnError(k ErrorKind, _ string)           { r.add("error:%s", k) }
func (r *recorder) OnNoHostFound(group string)              { r.add("nohost:%s", group) }
