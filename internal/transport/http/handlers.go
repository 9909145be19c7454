// Package http holds the REST handlers for inspecting and moderating rooms.
package http

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/dkeye/roomlink/internal/app/orch"
	"github.com/dkeye/roomlink/internal/core"
	"github.com/dkeye/roomlink/internal/directory"
	"github.com/dkeye/roomlink/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type RoomsAPI struct {
	Orch *orch.Orchestrator
}

type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Rooms    int    `json:"rooms"`
}

func (a *RoomsAPI) Register(api *gin.RouterGroup) {
	api.GET("/rooms", a.handleListRooms)
	api.GET("/rooms/:name/members", a.handleMembers)
	api.DELETE("/rooms/:name", a.handleEvict)
	api.DELETE("/rooms/:name/members/:id", a.handleKick)
}

func (a *RoomsAPI) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: a.Orch.Registry.Count(),
		Rooms:    len(a.Orch.Rooms.List()),
	})
}

func (a *RoomsAPI) handleListRooms(c *gin.Context) {
	rooms := a.Orch.Rooms.List()
	slices.SortFunc(rooms, func(x, y core.RoomInfo) int { return strings.Compare(string(x.Name), string(y.Name)) })
	c.JSON(http.StatusOK, rooms)
}

func (a *RoomsAPI) handleMembers(c *gin.Context) {
	room, ok := a.Orch.Rooms.Get(domain.RoomName(c.Param("name")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	members := room.MembersSnapshot()
	slices.SortFunc(members, func(x, y core.MemberDTO) int { return cmp.Compare(x.Peer, y.Peer) })
	c.JSON(http.StatusOK, members)
}

func (a *RoomsAPI) handleEvict(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	if _, ok := a.Orch.Rooms.Get(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	a.Orch.EvictRoom(name)
	log.Info().Str("module", "transport.http").Str("room", string(name)).Msg("room evicted via api")
	c.Status(http.StatusNoContent)
}

func (a *RoomsAPI) handleKick(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || directory.PeerID(id) == directory.NoPeer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid peer id"})
		return
	}
	name := domain.RoomName(c.Param("name"))
	if !a.Orch.Kick(name, directory.PeerID(id)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	log.Info().Str("module", "transport.http").Str("room", string(name)).Uint64("peer", id).Msg("member kicked via api")
	c.Status(http.StatusNoContent)
}
