package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/pkg/conquest"
)

// matchmakingInterval is how often queues are swept for formable matches
// between enqueue-triggered attempts.
const matchmakingInterval = 2 * time.Second

// queueEntry is one waiting player in a mode queue.
type queueEntry struct {
	ConnID   string
	Identity Identity
	Since    time.Time
}

// MatchmakingService holds per-mode FIFO queues of rated players and
// forms matches by picking the contiguous rating-sorted window with the
// smallest rating spread.
type MatchmakingService struct {
	mu     sync.Mutex
	queues map[string][]queueEntry // mode name -> entries
	byConn map[string]string       // connID -> mode name

	// forming tracks connections between leaving the queue and being
	// bound to their formed room. A dequeue in that window cannot reach
	// the room yet, so it is recorded here (value true = departed) and
	// replayed as a disconnect once the room exists.
	forming map[string]bool

	rooms *RoomService
	hub   Broadcaster
}

// NewMatchmakingService creates a MatchmakingService.
func NewMatchmakingService(rooms *RoomService, hub Broadcaster) *MatchmakingService {
	m := &MatchmakingService{
		queues:  make(map[string][]queueEntry),
		byConn:  make(map[string]string),
		forming: make(map[string]bool),
		rooms:   rooms,
		hub:     hub,
	}
	rooms.SetQueue(m)
	return m
}

// InQueue reports whether a connection holds a queue entry.
func (m *MatchmakingService) InQueue(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byConn[connID]
	return ok
}

// Enqueue adds a connection to a mode queue. Guests and players already
// queued or in a room are rejected. A formation attempt runs immediately
// so a queue that just reached capacity does not wait for the sweep.
func (m *MatchmakingService) Enqueue(connID string, id Identity, modeName string) error {
	if id.Guest {
		return ErrGuestNotAllowed
	}
	mode, err := conquest.ModeByName(modeName)
	if err != nil {
		return ErrUnknownMode
	}
	if m.rooms.InRoom(connID) {
		return ErrAlreadyInRoom
	}

	m.mu.Lock()
	if _, ok := m.byConn[connID]; ok {
		m.mu.Unlock()
		return ErrAlreadyQueued
	}
	m.byConn[connID] = mode.Name
	m.queues[mode.Name] = append(m.queues[mode.Name], queueEntry{
		ConnID:   connID,
		Identity: id,
		Since:    time.Now(),
	})
	queued := len(m.queues[mode.Name])
	m.mu.Unlock()

	m.hub.Send(connID, EventMatchmakingJoined, map[string]any{
		"mode":   mode.Name,
		"queued": queued,
	})

	m.TryFormMatches()
	return nil
}

// Dequeue removes a connection's queue entry, if any.
func (m *MatchmakingService) Dequeue(connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	modeName, ok := m.byConn[connID]
	if !ok {
		if _, mid := m.forming[connID]; mid {
			m.forming[connID] = true
			return nil
		}
		return ErrNotQueued
	}
	delete(m.byConn, connID)

	entries := m.queues[modeName]
	for i, e := range entries {
		if e.ConnID == connID {
			m.queues[modeName] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

// Run sweeps the queues on a fixed interval until the context is done.
func (m *MatchmakingService) Run(ctx context.Context) {
	ticker := time.NewTicker(matchmakingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.TryFormMatches()
		}
	}
}

// TryFormMatches forms as many matches as the queues allow.
func (m *MatchmakingService) TryFormMatches() {
	for {
		group, mode, ok := m.takeGroup()
		if !ok {
			return
		}
		m.formMatch(group, mode)
	}
}

// takeGroup removes one formable group from the queues: among the
// rating-sorted entries of a full-enough queue, the contiguous window of
// mode.MaxPlayers with the smallest rating spread.
func (m *MatchmakingService) takeGroup() ([]queueEntry, conquest.Mode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mode := range conquest.Modes() {
		entries := m.queues[mode.Name]
		if len(entries) < mode.MaxPlayers {
			continue
		}

		sorted := make([]queueEntry, len(entries))
		copy(sorted, entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Identity.Rating < sorted[j].Identity.Rating
		})

		best := 0
		bestSpread := sorted[mode.MaxPlayers-1].Identity.Rating - sorted[0].Identity.Rating
		for i := 1; i+mode.MaxPlayers <= len(sorted); i++ {
			spread := sorted[i+mode.MaxPlayers-1].Identity.Rating - sorted[i].Identity.Rating
			if spread < bestSpread {
				best, bestSpread = i, spread
			}
		}
		group := sorted[best : best+mode.MaxPlayers]

		taken := make(map[string]bool, len(group))
		for _, e := range group {
			taken[e.ConnID] = true
			delete(m.byConn, e.ConnID)
			m.forming[e.ConnID] = false
		}
		kept := entries[:0]
		for _, e := range entries {
			if !taken[e.ConnID] {
				kept = append(kept, e)
			}
		}
		m.queues[mode.Name] = kept

		return group, mode, true
	}
	return nil, conquest.Mode{}, false
}

// formMatch builds a playing-track room from a matched group. Teams are
// assigned round-robin over the rating-sorted group, which balances team
// averages in the team modes.
func (m *MatchmakingService) formMatch(group []queueEntry, mode conquest.Mode) {
	room := &Room{
		ID:           uuid.NewString(),
		Mode:         mode,
		Status:       RoomWaiting,
		Players:      make(map[string]*Player),
		CreatedAt:    time.Now(),
		winnerTeam:   conquest.NeutralTeam,
		rematchVotes: make(map[string]bool),
	}

	connIDs := make([]string, 0, len(group))
	for i, e := range group {
		room.Players[e.ConnID] = &Player{
			ConnID:      e.ConnID,
			PlayerID:    e.Identity.PlayerID,
			DisplayName: e.Identity.DisplayName,
			Rating:      e.Identity.Rating,
			Team:        i % mode.TeamCount,
			Ready:       true,
			Connected:   true,
		}
		connIDs = append(connIDs, e.ConnID)
	}
	room.HostID = group[0].ConnID

	m.rooms.registry.Add(room)
	m.rooms.registry.Move(connIDs, room.ID)

	room.mu.Lock()
	m.hub.SendAll(connIDs, EventMatchmakingFound, room.view())
	log.Info().Str("roomId", room.ID).Str("mode", mode.Name).Int("players", len(group)).Msg("Match formed from queue")
	m.rooms.startMatchLocked(room)
	room.mu.Unlock()

	// Replay any departure that landed while the group was unbound.
	m.mu.Lock()
	var departed []string
	for _, id := range connIDs {
		if m.forming[id] {
			departed = append(departed, id)
		}
		delete(m.forming, id)
	}
	m.mu.Unlock()
	for _, id := range departed {
		m.rooms.Disconnect(id)
	}
}
