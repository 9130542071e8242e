package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/oakmund/conquer/api/internal/model"
)

// UserRepo handles user and rating database operations.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, provider, provider_id, display_name, avatar_url, rating, games_played, wins, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var avatar sql.NullString
	err := row.Scan(&u.ID, &u.Provider, &u.ProviderID, &u.DisplayName, &avatar,
		&u.Rating, &u.GamesPlayed, &u.Wins, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.AvatarURL = avatar.String
	return &u, nil
}

// FindByID returns a user by ID, or nil if not found.
func (r *UserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByIDs returns the users matching the given IDs. Missing IDs are
// silently absent from the result.
func (r *UserRepo) FindByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// FindByProviderID returns a user by OAuth provider identity, or nil.
func (r *UserRepo) FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = $1 AND provider_id = $2`, provider, providerID))
}

// Upsert creates or refreshes a user from an OAuth login.
func (r *UserRepo) Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`INSERT INTO users (provider, provider_id, display_name, avatar_url)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (provider, provider_id)
		 DO UPDATE SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url, updated_at = now()
		 RETURNING `+userColumns,
		provider, providerID, displayName, avatarURL))
}

// UpdateDisplayName changes a user's display name.
func (r *UserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET display_name = $2, updated_at = now() WHERE id = $1`, id, displayName)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// GetRating returns a user's current rating.
func (r *UserRepo) GetRating(ctx context.Context, id string) (int, error) {
	var rating int
	err := r.db.QueryRowContext(ctx, `SELECT rating FROM users WHERE id = $1`, id).Scan(&rating)
	if err != nil {
		return 0, fmt.Errorf("get rating: %w", err)
	}
	return rating, nil
}

// ApplyMatchResult moves a player's rating by delta (floored at zero) and
// bumps the games-played and win counters. Returns the new rating.
func (r *UserRepo) ApplyMatchResult(ctx context.Context, id string, delta int, won bool) (int, error) {
	winInc := 0
	if won {
		winInc = 1
	}
	var rating int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users
		 SET rating = GREATEST(rating + $2, 0),
		     games_played = games_played + 1,
		     wins = wins + $3,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING rating`, id, delta, winInc).Scan(&rating)
	if err != nil {
		return 0, fmt.Errorf("apply match result: %w", err)
	}
	return rating, nil
}
