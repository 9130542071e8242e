package service

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/pkg/conquest"
)

// runTicks drives one room's simulation at the fixed tick rate until the
// match finishes or the room is reclaimed. A panic in a tick is contained
// to this room: the match is voided and every other room keeps running.
func (s *RoomService) runTicks(room *Room) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("roomId", room.ID).Interface("panic", r).Msg("Tick loop panicked, voiding match")
			room.mu.Lock()
			if room.Status == RoomPlaying {
				s.finishLocked(room, conquest.NeutralTeam)
			}
			room.mu.Unlock()
		}
	}()

	ticker := time.NewTicker(conquest.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-room.stopTicks:
			return
		case <-ticker.C:
			if done := s.tick(room); done {
				return
			}
		}
	}
}

// tick advances the room one simulation step and reports whether the
// match ended.
func (s *RoomService) tick(room *Room) bool {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomPlaying {
		return true
	}

	arrivals := room.State.Tick()
	for _, a := range arrivals {
		if a.Dropped {
			log.Warn().Str("roomId", room.ID).Int("to", a.Movement.To).Msg("Movement targeted missing territory, troops dropped")
			continue
		}
		s.hub.SendAll(room.connectedConnIDs(), EventTroopArrived, map[string]any{
			"movement_id": a.Movement.ID,
			"territory":   a.Movement.To,
			"owner":       a.NewOwner,
			"captured":    a.Captured,
		})
	}

	territories, movements := room.State.Snapshot()
	s.hub.SendAll(room.connectedConnIDs(), EventStateUpdate, map[string]any{
		"territories": territories,
		"movements":   movements,
	})

	return s.evaluateEndLocked(room)
}

// evaluateEndLocked checks the end condition: a team is alive only if it
// both owns at least one territory and still has a connected,
// non-surrendered player. When at most one team is alive the match ends
// immediately. Caller must hold room.mu; returns true when it did.
func (s *RoomService) evaluateEndLocked(room *Room) bool {
	if room.Status != RoomPlaying {
		return true
	}

	holding := room.State.TeamsHoldingTerritory()
	present := make(map[int]bool)
	for _, p := range room.Players {
		if p.Connected && !p.Surrendered {
			present[p.Team] = true
		}
	}

	var alive []int
	for team := range holding {
		if present[team] {
			alive = append(alive, team)
		}
	}

	if len(alive) > 1 {
		return false
	}

	winner := conquest.NeutralTeam
	if len(alive) == 1 {
		winner = alive[0]
	}
	s.finishLocked(room, winner)
	return true
}

// SendTroops validates and applies a troop order for the sender's team.
func (s *RoomService) SendTroops(connID string, from, to int, fraction float64) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomPlaying {
		return ErrRoomNotPlaying
	}
	player, ok := room.Players[connID]
	if !ok {
		return ErrNotInRoom
	}
	if player.Surrendered {
		return ErrRoomNotPlaying
	}

	mv, err := room.State.SendTroops(player.Team, from, to, fraction)
	if err != nil {
		return err
	}
	if mv == nil {
		// Zero-troop order, nothing happened.
		return nil
	}

	s.hub.SendAll(room.connectedConnIDs(), EventTroopsSent, map[string]any{
		"movement_id": mv.ID,
		"from":        mv.From,
		"to":          mv.To,
		"owner":       mv.Owner,
		"count":       mv.Count,
	})
	return nil
}

// Surrender marks a player as surrendered. When the last active player of
// a team surrenders, the team's territories are released to neutral;
// movements already in transit keep travelling and resolve normally.
func (s *RoomService) Surrender(connID string) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.Status != RoomPlaying {
		return ErrRoomNotPlaying
	}
	player, ok := room.Players[connID]
	if !ok {
		return ErrNotInRoom
	}
	if player.Surrendered {
		return nil
	}
	player.Surrendered = true

	teamActive := false
	for _, p := range room.Players {
		if p.Team == player.Team && p.Connected && !p.Surrendered {
			teamActive = true
			break
		}
	}
	if !teamActive {
		room.State.NeutralizeTeam(player.Team)
	}

	s.evaluateEndLocked(room)
	return nil
}

// finishLocked ends the match: flips the room to finished, computes
// rating deltas synchronously from in-memory state, announces the result,
// and hands persistence off to a background goroutine so database latency
// never touches a tick path. Caller must hold room.mu.
func (s *RoomService) finishLocked(room *Room, winnerTeam int) {
	room.Status = RoomFinished
	room.winnerTeam = winnerTeam
	if room.stopTicks != nil {
		select {
		case <-room.stopTicks:
		default:
			close(room.stopTicks)
		}
	}

	duration := 0
	if room.State != nil {
		duration = int(time.Since(room.State.StartedAt).Seconds())
	}

	results := s.settlement.ComputeResults(room.roster(), winnerTeam)

	// Carry the settled ratings into the roster so a rematch starts from
	// post-match values, not the ratings captured at connect.
	for _, res := range results {
		if p := room.playerByID(res.PlayerID); p != nil {
			p.Rating = conquest.ApplyDelta(p.Rating, res.RatingDelta)
		}
	}

	s.hub.SendAll(room.connIDs(), EventGameEnded, map[string]any{
		"winner_team":      winnerTeam,
		"duration_seconds": duration,
		"results":          results,
	})
	log.Info().Str("roomId", room.ID).Int("winnerTeam", winnerTeam).Int("durationSeconds", duration).Msg("Match ended")

	go s.settlement.Persist(room.matchID, winnerTeam, duration, results)

	s.scheduleReclaimLocked(room)
}
