// Package local connects a session to an in-process room hub.
package local

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/roomlink/internal/app/orch"
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultMailboxSize = 256

type Option func(*Directory)

func WithMailboxSize(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.size = n
		}
	}
}

// item is either a hub event or a send completion.
type item struct {
	ev   directory.Event
	done func(error)
	err  error
}

// Directory is one hub endpoint. Hub events and send completions are
// delivered from a single mailbox goroutine.
//
// When the hub cancels the endpoint (a kicked member whose mailbox is full)
// every joined room is reported as left before delivery stops.
type Directory struct {
	directory.SubscriberSet

	hub    *orch.Orchestrator
	sid    core.SessionID
	size   int
	box    chan item
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	closed atomic.Bool
	logger zerolog.Logger

	mu    sync.Mutex
	rooms map[string]struct{}
}

// Open attaches a new endpoint named name to hub.
func Open(hub *orch.Orchestrator, name string, opts ...Option) (*Directory, error) {
	client, err := domain.NewClient(name)
	if err != nil {
		return nil, err
	}
	d := &Directory{
		hub:   hub,
		sid:   core.SessionID(uuid.NewString()),
		size:  DefaultMailboxSize,
		rooms: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.box = make(chan item, d.size)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.logger = log.With().Str("module", "adapters.local").Str("sid", string(d.sid)).Logger()

	hub.Attach(d.sid, client, d, d.cancel)
	go d.run()
	d.logger.Debug().Str("client", client.Name).Msg("attached")
	return d, nil
}

func (d *Directory) SessionID() core.SessionID { return d.sid }

// TrySend implements core.Endpoint.
func (d *Directory) TrySend(ev directory.Event) error {
	if d.ctx.Err() != nil {
		return directory.ErrClosed
	}
	select {
	case d.box <- item{ev: ev}:
		return nil
	default:
		return core.ErrBackpressure
	}
}

func (d *Directory) JoinGroup(name string, tag []byte) error {
	if d.ctx.Err() != nil {
		return directory.ErrClosed
	}
	if _, err := d.hub.Join(d.sid, domain.RoomName(name), tag); err != nil {
		return fmt.Errorf("join %q: %w", name, err)
	}
	d.track(name, true)
	return nil
}

func (d *Directory) LeaveGroup(name string) error {
	if d.ctx.Err() != nil {
		return directory.ErrClosed
	}
	d.track(name, false)
	if err := d.hub.Leave(d.sid, domain.RoomName(name)); err != nil {
		return fmt.Errorf("leave %q: %w", name, err)
	}
	return nil
}

// SendToPeers hands data to the hub right away; done runs on the mailbox
// goroutine afterwards, or inline once the directory is closed.
func (d *Directory) SendToPeers(name string, peers []directory.PeerID, data []byte, done func(error)) {
	if d.ctx.Err() != nil {
		if done != nil {
			done(directory.ErrClosed)
		}
		return
	}
	_, err := d.hub.SendTo(d.sid, domain.RoomName(name), peers, data)
	if done == nil {
		return
	}
	it := item{done: done, err: err}
	select {
	case d.box <- it:
	default:
		// Full mailbox; this may be the mailbox goroutine itself.
		go func() {
			select {
			case d.box <- it:
			case <-d.ctx.Done():
				done(directory.ErrClosed)
			}
		}()
	}
}

// Close detaches from the hub and stops delivery. Queued items are dropped.
func (d *Directory) Close() error {
	d.once.Do(func() {
		d.closed.Store(true)
		d.hub.Detach(d.sid)
		d.cancel()
		d.logger.Debug().Msg("detached")
	})
	return nil
}

func (d *Directory) track(name string, joined bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if joined {
		d.rooms[name] = struct{}{}
	} else {
		delete(d.rooms, name)
	}
}

func (d *Directory) joined() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		out = append(out, name)
	}
	clear(d.rooms)
	return out
}

func (d *Directory) run() {
	for {
		select {
		case <-d.ctx.Done():
			if !d.closed.Load() {
				d.canceled()
			}
			return
		case it := <-d.box:
			if it.ev != nil {
				if e, ok := it.ev.(directory.GroupLeft); ok {
					d.track(e.Group, false)
				}
				d.Publish(it.ev)
				continue
			}
			it.done(it.err)
		}
	}
}

// canceled leaves the hub after it dropped this endpoint and reports each
// joined room as left. Queued items are discarded.
func (d *Directory) canceled() {
	d.hub.Detach(d.sid)
	rooms := d.joined()
	d.logger.Warn().Strs("rooms", rooms).Msg("canceled by hub")
	for _, name := range rooms {
		d.Publish(directory.GroupLeft{Group: name})
	}
}

var (
	_ directory.Directory = (*Directory)(nil)
	_ core.Endpoint       = (*Directory)(nil)
)
