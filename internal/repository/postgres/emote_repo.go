package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// EmoteRepo handles emote unlock lookups.
type EmoteRepo struct {
	db *sql.DB
}

// NewEmoteRepo creates an EmoteRepo.
func NewEmoteRepo(db *sql.DB) *EmoteRepo {
	return &EmoteRepo{db: db}
}

// IsUnlocked reports whether a user owns the given emote. The default
// emote set (rows in emotes with default_unlock = true) is available to
// everyone.
func (r *EmoteRepo) IsUnlocked(ctx context.Context, userID, emoteID string) (bool, error) {
	var unlocked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM emotes e
		   LEFT JOIN user_emotes ue ON ue.emote_id = e.id AND ue.user_id = $1
		   WHERE e.id = $2 AND (e.default_unlock OR ue.user_id IS NOT NULL)
		 )`, userID, emoteID).Scan(&unlocked)
	if err != nil {
		return false, fmt.Errorf("emote unlock check: %w", err)
	}
	return unlocked, nil
}
