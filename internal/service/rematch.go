package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/pkg/conquest"
)

// VoteRematch records a rematch vote in a finished room. The quorum is
// every still-connected player (minimum two); once it is reached the
// voters migrate to a fresh waiting room and the old room is reclaimed.
func (s *RoomService) VoteRematch(connID string) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomFinished {
		return ErrRoomNotFinished
	}
	player, ok := room.Players[connID]
	if !ok {
		return ErrNotInRoom
	}
	if !player.Connected {
		return ErrNotConnected
	}
	if room.rematchVotes[connID] {
		return ErrAlreadyVoted
	}
	room.rematchVotes[connID] = true

	s.hub.SendAll(room.connectedConnIDs(), EventRematchUpdate, map[string]any{
		"player_id": player.PlayerID,
		"votes":     len(room.rematchVotes),
		"needed":    len(room.connectedConnIDs()),
	})

	s.checkRematchQuorumLocked(room)
	return nil
}

// checkRematchQuorumLocked starts a rematch when every connected player
// has voted. Called after each vote and after each disconnect in a
// finished room, so a quorum shrunk by a leaver still resolves. Caller
// must hold room.mu.
func (s *RoomService) checkRematchQuorumLocked(room *Room) {
	if room.Status != RoomFinished {
		return
	}
	connected := room.connectedConnIDs()
	if len(connected) < 2 || len(room.rematchVotes) < len(connected) {
		return
	}
	for _, id := range connected {
		if !room.rematchVotes[id] {
			return
		}
	}
	s.startRematchLocked(room, connected)
}

// startRematchLocked migrates the voters into a successor waiting room.
// Teams carry over; ready flags and the match state do not. Caller must
// hold the old room's mu.
func (s *RoomService) startRematchLocked(old *Room, connected []string) {
	next := &Room{
		ID:           uuid.NewString(),
		Mode:         old.Mode,
		Status:       RoomWaiting,
		Players:      make(map[string]*Player),
		CreatedAt:    time.Now(),
		winnerTeam:   conquest.NeutralTeam,
		rematchVotes: make(map[string]bool),
	}
	for _, connID := range connected {
		p := old.Players[connID]
		next.Players[connID] = &Player{
			ConnID:      connID,
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Rating:      p.Rating,
			Guest:       p.Guest,
			Team:        p.Team,
			Connected:   true,
		}
		if next.HostID == "" || connID == old.HostID {
			next.HostID = connID
		}
	}

	s.registry.Add(next)
	s.registry.Move(connected, next.ID)

	if old.reclaimTimer != nil {
		old.reclaimTimer.Stop()
	}
	oldID := old.ID
	s.registry.Remove(oldID)

	next.mu.Lock()
	view := next.view()
	next.mu.Unlock()

	s.hub.SendAll(connected, EventRematchStarted, view)
	log.Info().Str("oldRoomId", oldID).Str("roomId", next.ID).Int("players", len(connected)).Msg("Rematch room created")
}
