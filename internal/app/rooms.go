package app

import (
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/domain"
)

// RoomTable holds the hub's live rooms by name. A room exists from its first
// join until the orchestrator drops it on becoming empty; a later join under
// the same name gets a fresh room id.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomTable() *RoomTable {
	return &RoomTable{rooms: make(map[domain.RoomName]core.RoomService)}
}

// GetOrCreate returns the room a join should land in.
func (t *RoomTable) GetOrCreate(name domain.RoomName) core.RoomService {
	t.mu.Lock()
	defer t.mu.Unlock()
	if room, ok := t.rooms[name]; ok {
		return room
	}
	room := core.NewRoomService(domain.NewRoom(name))
	t.rooms[name] = room
	return room
}

func (t *RoomTable) Get(name domain.RoomName) (core.RoomService, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	room, ok := t.rooms[name]
	return room, ok
}

// List snapshots the rooms sorted by name, for the room listing endpoint.
func (t *RoomTable) List() []core.RoomInfo {
	t.mu.Lock()
	out := make([]core.RoomInfo, 0, len(t.rooms))
	for name, r := range t.rooms {
		out = append(out, core.RoomInfo{ID: r.Room().ID, Name: name, MemberCount: r.MemberCount()})
	}
	t.mu.Unlock()
	slices.SortFunc(out, func(a, b core.RoomInfo) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return out
}

// StopRoom forgets name. Members still in the room are not notified; the
// orchestrator only stops rooms it has emptied or evicted.
func (t *RoomTable) StopRoom(name domain.RoomName) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, name)
}

var _ core.RoomManager = (*RoomTable)(nil)
