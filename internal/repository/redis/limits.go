package redis

import (
	"context"
	"fmt"
	"time"
)

const (
	chatWindow      = 10 * time.Second
	chatWindowLimit = 5
	quickCooldown   = 3 * time.Second
	emoteCooldown   = 5 * time.Second
)

// Key patterns for rate-limit state.
func chatRateKey(playerID string) string         { return "chat:" + playerID + ":rate" }
func quickKey(playerID, messageID string) string { return "chat:" + playerID + ":quick:" + messageID }
func emoteKey(playerID, emoteID string) string   { return "emote:" + playerID + ":" + emoteID }

// AllowChat increments the player's message counter for the current window
// and reports whether the message is within the limit.
func (c *Client) AllowChat(ctx context.Context, playerID string) (bool, error) {
	key := chatRateKey(playerID)
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("chat rate incr: %w", err)
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, chatWindow).Err(); err != nil {
			return false, fmt.Errorf("chat rate expire: %w", err)
		}
	}
	return count <= chatWindowLimit, nil
}

// AllowQuickChat enforces a per-message cooldown for catalog messages.
// SET NX with a TTL doubles as the cooldown marker.
func (c *Client) AllowQuickChat(ctx context.Context, playerID, messageID string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, quickKey(playerID, messageID), 1, quickCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("quick chat cooldown: %w", err)
	}
	return ok, nil
}

// AllowEmote enforces a per-emote cooldown.
func (c *Client) AllowEmote(ctx context.Context, playerID, emoteID string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, emoteKey(playerID, emoteID), 1, emoteCooldown).Result()
	if err != nil {
		return false, fmt.Errorf("emote cooldown: %w", err)
	}
	return ok, nil
}
