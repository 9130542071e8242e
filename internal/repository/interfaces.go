package repository

import (
	"context"

	"github.com/oakmund/conquer/api/internal/model"
)

// UserRepository defines user and rating data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
	GetRating(ctx context.Context, id string) (int, error)
	// ApplyMatchResult moves a player's rating by delta (floored at zero)
	// and bumps games played / wins counters.
	ApplyMatchResult(ctx context.Context, id string, delta int, won bool) (int, error)
}

// MatchRepository defines match record operations.
type MatchRepository interface {
	Create(ctx context.Context, roomID, mode string, mapSeed int64) (*model.Match, error)
	AddParticipant(ctx context.Context, matchID, userID string, team int) error
	Finish(ctx context.Context, matchID string, winnerTeam, durationSeconds int) error
	SetParticipantResult(ctx context.Context, matchID, userID string, ratingDelta, ratingAfter int) error
	FindByID(ctx context.Context, id string) (*model.Match, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Match, error)
}

// EmoteRepository defines emote unlock lookups.
type EmoteRepository interface {
	IsUnlocked(ctx context.Context, userID, emoteID string) (bool, error)
}

// LimiterCache defines rate-limit and cooldown state (Redis).
type LimiterCache interface {
	// AllowChat increments a sliding per-player counter and reports
	// whether the message is within the rate limit.
	AllowChat(ctx context.Context, playerID string) (bool, error)
	// AllowQuickChat enforces a per-message cooldown for catalog messages.
	AllowQuickChat(ctx context.Context, playerID, messageID string) (bool, error)
	// AllowEmote enforces a per-emote cooldown.
	AllowEmote(ctx context.Context, playerID, emoteID string) (bool, error)
}

// LeaderboardCache defines the rating leaderboard (Redis sorted set).
type LeaderboardCache interface {
	RecordRating(ctx context.Context, userID string, rating int) error
	Top(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
}
