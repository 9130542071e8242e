package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/internal/repository"
	"github.com/oakmund/conquer/api/pkg/conquest"
)

// reclaimGrace is how long a finished room lingers so clients can read
// the summary and vote for a rematch.
const reclaimGrace = 30 * time.Second

// QueueChecker reports whether a connection holds a matchmaking entry.
type QueueChecker interface {
	InQueue(connID string) bool
}

// RoomService owns room lifecycle: creation, lobby membership, the
// per-room simulation loop, settlement, rematch, and reclamation.
type RoomService struct {
	registry   *Registry
	hub        Broadcaster
	matchRepo  repository.MatchRepository
	settlement *SettlementService
	queue      QueueChecker
}

// NewRoomService creates a RoomService.
func NewRoomService(registry *Registry, hub Broadcaster, matchRepo repository.MatchRepository, settlement *SettlementService) *RoomService {
	return &RoomService{
		registry:   registry,
		hub:        hub,
		matchRepo:  matchRepo,
		settlement: settlement,
	}
}

// SetQueue wires the matchmaking queue so room joins can reject
// connections that are still queued.
func (s *RoomService) SetQueue(q QueueChecker) {
	s.queue = q
}

// InRoom reports whether a connection occupies any room.
func (s *RoomService) InRoom(connID string) bool {
	return s.registry.ByConn(connID) != nil
}

// CreateRoom opens a custom room in waiting status with the creator as
// host. Guests cannot create rooms.
func (s *RoomService) CreateRoom(connID string, id Identity, modeName string) (RoomView, error) {
	if id.Guest {
		return RoomView{}, ErrGuestNotAllowed
	}
	mode, err := conquest.ModeByName(modeName)
	if err != nil {
		return RoomView{}, ErrUnknownMode
	}
	if s.queue != nil && s.queue.InQueue(connID) {
		return RoomView{}, ErrAlreadyQueued
	}

	room := &Room{
		ID:           uuid.NewString(),
		Mode:         mode,
		Status:       RoomWaiting,
		Players:      make(map[string]*Player),
		HostID:       connID,
		CreatedAt:    time.Now(),
		winnerTeam:   conquest.NeutralTeam,
		rematchVotes: make(map[string]bool),
	}
	room.Players[connID] = &Player{
		ConnID:      connID,
		PlayerID:    id.PlayerID,
		DisplayName: id.DisplayName,
		Rating:      id.Rating,
		Guest:       id.Guest,
		Team:        0,
		Connected:   true,
	}

	if err := s.registry.Bind(connID, room.ID); err != nil {
		return RoomView{}, err
	}
	s.registry.Add(room)

	room.mu.Lock()
	view := room.view()
	room.mu.Unlock()

	log.Info().Str("roomId", room.ID).Str("mode", mode.Name).Str("playerId", id.PlayerID).Msg("Room created")
	s.hub.Send(connID, EventRoomCreated, view)
	return view, nil
}

// JoinRoom adds a player to a waiting room, or reconnects a disconnected
// player to a playing room.
func (s *RoomService) JoinRoom(connID string, id Identity, roomID string) error {
	room := s.registry.Get(roomID)
	if room == nil {
		return ErrRoomNotFound
	}
	if s.queue != nil && s.queue.InQueue(connID) {
		return ErrAlreadyQueued
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status == RoomPlaying {
		return s.reconnectLocked(room, connID, id)
	}
	if room.Status != RoomWaiting {
		return ErrRoomNotWaiting
	}
	if len(room.Players) >= room.Mode.MaxPlayers {
		return ErrRoomFull
	}
	if room.playerByID(id.PlayerID) != nil {
		return ErrAlreadyInRoom
	}
	if err := s.registry.Bind(connID, room.ID); err != nil {
		return err
	}

	player := &Player{
		ConnID:      connID,
		PlayerID:    id.PlayerID,
		DisplayName: id.DisplayName,
		Rating:      id.Rating,
		Guest:       id.Guest,
		Team:        len(room.Players) % room.Mode.TeamCount,
		Connected:   true,
	}
	room.Players[connID] = player

	s.hub.Send(connID, EventRoomJoined, room.view())
	for _, other := range room.connIDs() {
		if other != connID {
			s.hub.Send(other, EventPlayerJoined, *player)
		}
	}
	return nil
}

// reconnectLocked rebinds a fresh connection to a disconnected player of
// a playing room. The old connection was unbound at disconnect, so the
// new one binds cleanly. Caller must hold room.mu.
func (s *RoomService) reconnectLocked(room *Room, connID string, id Identity) error {
	player := room.playerByID(id.PlayerID)
	if player == nil || player.Connected {
		return ErrRoomNotWaiting
	}

	if err := s.registry.Bind(connID, room.ID); err != nil {
		return err
	}
	delete(room.Players, player.ConnID)
	player.ConnID = connID
	player.Connected = true
	room.Players[connID] = player

	territories, movements := room.State.Snapshot()
	s.hub.Send(connID, EventGameStarted, gameStartedPayload(room, territories, movements))
	s.hub.SendAll(room.connectedConnIDs(), EventPlayerReconnected, map[string]any{
		"player_id": player.PlayerID,
		"team":      player.Team,
	})
	log.Info().Str("roomId", room.ID).Str("playerId", player.PlayerID).Msg("Player reconnected")
	return nil
}

// LeaveRoom removes a connection from its room. In a waiting room the
// player is removed outright; in a playing room leaving is equivalent to
// disconnecting (the player is retained and marked disconnected).
func (s *RoomService) LeaveRoom(connID string) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	switch room.Status {
	case RoomPlaying:
		s.markDisconnectedLocked(room, connID)
	case RoomFinished:
		delete(room.rematchVotes, connID)
		s.removePlayerLocked(room, connID)
		// The remaining voters may now be the whole connected set.
		s.checkRematchQuorumLocked(room)
	default:
		s.removePlayerLocked(room, connID)
	}
	return nil
}

// removePlayerLocked drops a player from a non-playing room, reassigns
// the host if needed, and deletes the room once empty. Caller must hold
// room.mu.
func (s *RoomService) removePlayerLocked(room *Room, connID string) {
	player, ok := room.Players[connID]
	if !ok {
		return
	}
	delete(room.Players, connID)
	s.registry.Unbind(connID)

	if len(room.Players) == 0 {
		if room.Status == RoomWaiting {
			s.registry.Remove(room.ID)
			log.Info().Str("roomId", room.ID).Msg("Empty room deleted")
		}
		return
	}

	s.hub.SendAll(room.connIDs(), EventPlayerLeft, map[string]any{
		"player_id": player.PlayerID,
	})

	if room.HostID == connID {
		for newHost := range room.Players {
			room.HostID = newHost
			break
		}
		s.hub.SendAll(room.connIDs(), EventHostChanged, map[string]any{
			"host_id": room.HostID,
		})
	}
}

// Ready records a player's ready state in a waiting room and starts the
// match once every occupant (at least two) is ready.
func (s *RoomService) Ready(connID string, ready bool) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomWaiting {
		return ErrRoomNotWaiting
	}
	player, ok := room.Players[connID]
	if !ok {
		return ErrNotInRoom
	}
	player.Ready = ready

	s.hub.SendAll(room.connIDs(), EventPlayerReady, map[string]any{
		"player_id": player.PlayerID,
		"ready":     ready,
	})

	if ready && len(room.Players) >= 2 && room.allReady() {
		s.startMatchLocked(room)
	}
	return nil
}

// ChangeTeam moves a player to another team while the room is waiting.
func (s *RoomService) ChangeTeam(connID string, team int) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomWaiting {
		return ErrRoomNotWaiting
	}
	if team < 0 || team >= room.Mode.TeamCount {
		return ErrInvalidTeam
	}
	player, ok := room.Players[connID]
	if !ok {
		return ErrNotInRoom
	}
	player.Team = team

	s.hub.SendAll(room.connIDs(), EventTeamChanged, map[string]any{
		"player_id": player.PlayerID,
		"team":      team,
	})
	return nil
}

// Disconnect handles a dropped connection. Disconnects are state
// transitions, not errors: waiting rooms drop the player, playing rooms
// retain them marked disconnected, finished rooms re-check the rematch
// quorum against the shrunken connected set.
func (s *RoomService) Disconnect(connID string) {
	room := s.registry.ByConn(connID)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	switch room.Status {
	case RoomWaiting, RoomStarting:
		s.removePlayerLocked(room, connID)
	case RoomPlaying:
		s.markDisconnectedLocked(room, connID)
	case RoomFinished:
		if p, ok := room.Players[connID]; ok {
			p.Connected = false
		}
		delete(room.rematchVotes, connID)
		s.registry.Unbind(connID)
		s.checkRematchQuorumLocked(room)
	}
}

// markDisconnectedLocked flips a playing-room player to disconnected and
// re-evaluates the end condition immediately rather than waiting for the
// next tick. Caller must hold room.mu.
func (s *RoomService) markDisconnectedLocked(room *Room, connID string) {
	player, ok := room.Players[connID]
	if !ok || !player.Connected {
		return
	}
	player.Connected = false
	s.registry.Unbind(connID)

	log.Info().Str("roomId", room.ID).Str("playerId", player.PlayerID).Msg("Player disconnected mid-match")
	s.hub.SendAll(room.connectedConnIDs(), EventPlayerDisconnected, map[string]any{
		"player_id": player.PlayerID,
		"team":      player.Team,
	})
	s.evaluateEndLocked(room)
}

// startMatchLocked transitions waiting -> starting -> playing: generates
// the map, opens the match record, and launches the tick loop. Caller
// must hold room.mu.
func (s *RoomService) startMatchLocked(room *Room) {
	room.Status = RoomStarting
	room.MapSeed = rand.Int63()
	room.State = conquest.NewGameState(room.MapSeed, room.Mode.TeamCount)
	room.stopTicks = make(chan struct{})

	// Open the match record before play begins. A repository failure is
	// operational, not fatal: the match runs, settlement skips persistence.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	match, err := s.matchRepo.Create(ctx, room.ID, room.Mode.Name, room.MapSeed)
	if err != nil {
		log.Error().Err(err).Str("roomId", room.ID).Msg("Failed to create match record")
	} else {
		room.matchID = match.ID
		for _, p := range room.Players {
			if p.Guest {
				continue
			}
			if err := s.matchRepo.AddParticipant(ctx, match.ID, p.PlayerID, p.Team); err != nil {
				log.Error().Err(err).Str("matchId", match.ID).Str("playerId", p.PlayerID).Msg("Failed to add participant")
			}
		}
	}

	room.Status = RoomPlaying
	territories, movements := room.State.Snapshot()
	s.hub.SendAll(room.connIDs(), EventGameStarted, gameStartedPayload(room, territories, movements))
	log.Info().Str("roomId", room.ID).Str("mode", room.Mode.Name).Int64("seed", room.MapSeed).Msg("Match started")

	go s.runTicks(room)
}

func gameStartedPayload(room *Room, territories []conquest.TerritoryView, movements []conquest.MovementView) map[string]any {
	return map[string]any{
		"room":             room.view(),
		"territories":      territories,
		"movements":        movements,
		"tick_interval_ms": conquest.TickInterval.Milliseconds(),
	}
}

// scheduleReclaimLocked arms the finished-room grace timer. Caller must
// hold room.mu.
func (s *RoomService) scheduleReclaimLocked(room *Room) {
	roomID := room.ID
	room.reclaimTimer = time.AfterFunc(reclaimGrace, func() {
		s.Reclaim(roomID)
	})
}

// Reclaim destroys a room and its connection mappings.
func (s *RoomService) Reclaim(roomID string) {
	room := s.registry.Get(roomID)
	if room == nil {
		return
	}
	room.mu.Lock()
	if room.stopTicks != nil {
		select {
		case <-room.stopTicks:
		default:
			close(room.stopTicks)
		}
	}
	room.mu.Unlock()

	s.registry.Remove(roomID)
	log.Info().Str("roomId", roomID).Msg("Room reclaimed")
}
