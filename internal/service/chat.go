package service

import (
	"context"
	"strings"

	"github.com/oakmund/conquer/api/internal/repository"
)

const maxChatLength = 200

// quickMessages is the fixed catalog of quick-chat phrases. Quick chat
// bypasses the profanity filter (the text is server-defined) but carries
// a per-message cooldown instead of the free-text rate limit.
var quickMessages = map[string]string{
	"gl":      "Good luck!",
	"gg":      "Good game!",
	"nice":    "Nice move!",
	"help":    "Help me!",
	"attack":  "Attack now!",
	"defend":  "Fall back and defend!",
	"thanks":  "Thanks!",
	"wow":     "Wow.",
	"rematch": "Rematch?",
}

// filteredWords are masked out of free-text chat. Matching is
// case-insensitive on substrings, which over-filters rather than under.
var filteredWords = []string{
	"fuck", "shit", "bitch", "asshole", "cunt", "nigger", "faggot",
}

// ChatService relays chat within a room. Free text is length-checked,
// profanity-masked, and rate limited; quick chat is catalog-only with a
// per-message cooldown.
type ChatService struct {
	registry *Registry
	hub      Broadcaster
	limiter  repository.LimiterCache
}

// NewChatService creates a ChatService.
func NewChatService(registry *Registry, hub Broadcaster, limiter repository.LimiterCache) *ChatService {
	return &ChatService{registry: registry, hub: hub, limiter: limiter}
}

// Send relays a free-text message to the sender's room.
func (s *ChatService) Send(ctx context.Context, connID, text string) error {
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if len(text) > maxChatLength {
		return ErrMessageTooLong
	}

	room.mu.Lock()
	player, ok := room.Players[connID]
	var targets []string
	var playerID, name string
	var team int
	if ok {
		playerID = player.PlayerID
		name = player.DisplayName
		team = player.Team
		targets = room.connectedConnIDs()
	}
	room.mu.Unlock()
	if !ok {
		return ErrNotInRoom
	}

	allowed, err := s.limiter.AllowChat(ctx, playerID)
	if err != nil {
		// Limiter outage should not silence the room.
		allowed = true
	}
	if !allowed {
		return ErrRateLimited
	}

	s.hub.SendAll(targets, EventChatMessage, map[string]any{
		"player_id":    playerID,
		"display_name": name,
		"team":         team,
		"text":         maskProfanity(text),
	})
	return nil
}

// SendQuick relays a catalog quick-chat message to the sender's room.
func (s *ChatService) SendQuick(ctx context.Context, connID, messageID string) error {
	text, ok := quickMessages[messageID]
	if !ok {
		return ErrUnknownQuickMsg
	}
	room := s.registry.ByConn(connID)
	if room == nil {
		return ErrNotInRoom
	}

	room.mu.Lock()
	player, inRoom := room.Players[connID]
	var targets []string
	var playerID, name string
	var team int
	if inRoom {
		playerID = player.PlayerID
		name = player.DisplayName
		team = player.Team
		targets = room.connectedConnIDs()
	}
	room.mu.Unlock()
	if !inRoom {
		return ErrNotInRoom
	}

	allowed, err := s.limiter.AllowQuickChat(ctx, playerID, messageID)
	if err != nil {
		allowed = true
	}
	if !allowed {
		return ErrOnCooldown
	}

	s.hub.SendAll(targets, EventChatMessage, map[string]any{
		"player_id":    playerID,
		"display_name": name,
		"team":         team,
		"quick_id":     messageID,
		"text":         text,
	})
	return nil
}

// maskProfanity replaces filtered substrings with asterisks, preserving
// message length.
func maskProfanity(text string) string {
	lower := strings.ToLower(text)
	out := []byte(text)
	for _, w := range filteredWords {
		for i := 0; ; {
			j := strings.Index(lower[i:], w)
			if j < 0 {
				break
			}
			start := i + j
			for k := start; k < start+len(w); k++ {
				out[k] = '*'
			}
			i = start + len(w)
		}
	}
	return string(out)
}
