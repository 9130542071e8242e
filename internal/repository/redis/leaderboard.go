package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oakmund/conquer/api/internal/model"
)

const leaderboardKey = "leaderboard:rating"

// RecordRating stores a player's rating in the leaderboard sorted set.
func (c *Client) RecordRating(ctx context.Context, userID string, rating int) error {
	if err := c.rdb.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(rating), Member: userID}).Err(); err != nil {
		return fmt.Errorf("leaderboard zadd: %w", err)
	}
	return nil
}

// Top returns the highest-rated players. Display names are filled in by
// the caller from the user store.
func (c *Client) Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if n <= 0 || n > 100 {
		n = 25
	}
	members, err := c.rdb.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard zrevrange: %w", err)
	}
	entries := make([]model.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		id, _ := m.Member.(string)
		entries = append(entries, model.LeaderboardEntry{
			Rank:   i + 1,
			UserID: id,
			Rating: int(m.Score),
		})
	}
	return entries, nil
}
