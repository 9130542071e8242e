package service

import (
	"context"

	"github.com/oakmund/conquer/api/internal/repository"
)

// defaultEmotes are available to every player, including guests, without
// an unlock row.
var defaultEmotes = map[string]bool{
	"wave": true,
	"gg":   true,
}

// EmoteService relays emotes within a room, enforcing unlocks and a
// per-emote cooldown.
type EmoteService struct {
	registry *Registry
	hub      Broadcaster
	emotes   repository.EmoteRepository
	limiter  repository.LimiterCache
}

// NewEmoteService creates an EmoteService.
func NewEmoteService(registry *Registry, hub Broadcaster, emotes repository.EmoteRepository, limiter repository.LimiterCache) *EmoteService {
	return &EmoteService{registry: registry, hub: hub, emotes: emotes, limiter: limiter}
}

// Play relays an emote to the sender's room. Guests can only use the
// default set; registered players additionally get anything they have
// unlocked.
func (s *EmoteService) Play(ctx context.Context, connID, emoteID string) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	player, ok := room.Players[connID]
	var targets []string
	var playerID string
	var guest bool
	if ok {
		playerID = player.PlayerID
		guest = player.Guest
		targets = room.connectedConnIDs()
	}
	room.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}

	if !defaultEmotes[emoteID] {
		if guest {
			return ErrEmoteLocked
		}
		unlocked, err := s.emotes.IsUnlocked(ctx, playerID, emoteID)
		if err != nil {
			return err
		}
		if !unlocked {
			return ErrEmoteLocked
		}
	}

	allowed, err := s.limiter.AllowEmote(ctx, playerID, emoteID)
	if err != nil {
		allowed = true
	}
	if !allowed {
		return ErrOnCooldown
	}

	s.hub.SendAll(targets, EventEmote, map[string]any{
		"player_id": playerID,
		"emote_id":  emoteID,
	})
	return nil
}
