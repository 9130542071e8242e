package service

import (
	"sync"
	"time"

	"github.com/oakmund/conquer/api/pkg/conquest"
)

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomStarting RoomStatus = "starting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Identity is the verified player identity behind a connection.
type Identity struct {
	PlayerID    string
	DisplayName string
	Rating      int
	Guest       bool
}

// Player is a room-scoped participant keyed by connection.
type Player struct {
	ConnID      string `json:"conn_id"`
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	Guest       bool   `json:"guest,omitempty"`
	Team        int    `json:"team"`
	Ready       bool   `json:"ready"`
	Connected   bool   `json:"connected"`
	Surrendered bool   `json:"-"`
}

// Room is one isolated match instance. All mutable fields are guarded by
// mu: every inbound message and every simulation tick locks the room, so
// there is exactly one logical writer at a time. Rooms share no mutable
// state with each other.
type Room struct {
	mu sync.Mutex

	ID        string
	Mode      conquest.Mode
	Status    RoomStatus
	Players   map[string]*Player // keyed by ConnID
	HostID    string             // ConnID of the host
	MapSeed   int64
	State     *conquest.GameState
	CreatedAt time.Time

	matchID      string
	winnerTeam   int
	rematchVotes map[string]bool // ConnID set
	stopTicks    chan struct{}
	reclaimTimer *time.Timer
}

// connIDs returns every member connection. Caller must hold r.mu.
func (r *Room) connIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	return ids
}

// connectedConnIDs returns connections of still-connected members.
// Caller must hold r.mu.
func (r *Room) connectedConnIDs() []string {
	var ids []string
	for id, p := range r.Players {
		if p.Connected {
			ids = append(ids, id)
		}
	}
	return ids
}

// allReady reports whether every occupant has readied up. Caller must
// hold r.mu.
func (r *Room) allReady() bool {
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// teamsWithConnectedPlayer returns the set of teams that still have at
// least one connected player. Caller must hold r.mu.
func (r *Room) teamsWithConnectedPlayer() map[int]bool {
	teams := make(map[int]bool)
	for _, p := range r.Players {
		if p.Connected {
			teams[p.Team] = true
		}
	}
	return teams
}

// playerByID finds a member by player identity. Caller must hold r.mu.
func (r *Room) playerByID(playerID string) *Player {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p
		}
	}
	return nil
}

// roster returns a copy of the player list for broadcasts. Caller must
// hold r.mu.
func (r *Room) roster() []Player {
	players := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, *p)
	}
	return players
}

// RoomView is the broadcast form of a room.
type RoomView struct {
	ID      string     `json:"id"`
	Mode    string     `json:"mode"`
	Status  RoomStatus `json:"status"`
	HostID  string     `json:"host_id"`
	MapSeed int64      `json:"map_seed"`
	Players []Player   `json:"players"`
}

// view builds a RoomView. Caller must hold r.mu.
func (r *Room) view() RoomView {
	return RoomView{
		ID:      r.ID,
		Mode:    r.Mode.Name,
		Status:  r.Status,
		HostID:  r.HostID,
		MapSeed: r.MapSeed,
		Players: r.roster(),
	}
}
