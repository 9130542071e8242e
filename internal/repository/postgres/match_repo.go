package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oakmund/conquer/api/internal/model"
)

// MatchRepo handles match and participant database operations.
type MatchRepo struct {
	db *sql.DB
}

// NewMatchRepo creates a MatchRepo.
func NewMatchRepo(db *sql.DB) *MatchRepo {
	return &MatchRepo{db: db}
}

// Create opens a match record for a room entering play.
func (r *MatchRepo) Create(ctx context.Context, roomID, mode string, mapSeed int64) (*model.Match, error) {
	var m model.Match
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO matches (room_id, mode, map_seed, status, winner_team)
		 VALUES ($1, $2, $3, 'playing', -1)
		 RETURNING id, room_id, mode, map_seed, status, winner_team, created_at`,
		roomID, mode, mapSeed,
	).Scan(&m.ID, &m.RoomID, &m.Mode, &m.MapSeed, &m.Status, &m.WinnerTeam, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return &m, nil
}

// AddParticipant records a player's membership and team.
func (r *MatchRepo) AddParticipant(ctx context.Context, matchID, userID string, team int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_participants (match_id, user_id, team) VALUES ($1, $2, $3)`,
		matchID, userID, team)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	return nil
}

// Finish closes a match with its winner and duration.
func (r *MatchRepo) Finish(ctx context.Context, matchID string, winnerTeam, durationSeconds int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE matches SET status = 'finished', winner_team = $2, duration_seconds = $3, finished_at = now()
		 WHERE id = $1`, matchID, winnerTeam, durationSeconds)
	if err != nil {
		return fmt.Errorf("finish match: %w", err)
	}
	return nil
}

// SetParticipantResult stores a player's rating movement for the match.
func (r *MatchRepo) SetParticipantResult(ctx context.Context, matchID, userID string, ratingDelta, ratingAfter int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE match_participants SET rating_delta = $3, rating_after = $4
		 WHERE match_id = $1 AND user_id = $2`, matchID, userID, ratingDelta, ratingAfter)
	if err != nil {
		return fmt.Errorf("set participant result: %w", err)
	}
	return nil
}

// FindByID returns a match with its participants, or nil if not found.
func (r *MatchRepo) FindByID(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	var duration sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, room_id, mode, map_seed, status, winner_team, duration_seconds, created_at, finished_at
		 FROM matches WHERE id = $1`, id,
	).Scan(&m.ID, &m.RoomID, &m.Mode, &m.MapSeed, &m.Status, &m.WinnerTeam, &duration, &m.CreatedAt, &m.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}
	m.DurationSeconds = int(duration.Int64)

	rows, err := r.db.QueryContext(ctx,
		`SELECT mp.match_id, mp.user_id, u.display_name, mp.team, mp.rating_delta, mp.rating_after
		 FROM match_participants mp JOIN users u ON u.id = mp.user_id
		 WHERE mp.match_id = $1 ORDER BY mp.team, u.display_name`, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.MatchParticipant
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.DisplayName, &p.Team, &p.RatingDelta, &p.RatingAfter); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		m.Participants = append(m.Participants, p)
	}
	return &m, rows.Err()
}

// ListByUser returns a user's most recent matches.
func (r *MatchRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Match, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.room_id, m.mode, m.map_seed, m.status, m.winner_team, m.duration_seconds, m.created_at, m.finished_at
		 FROM matches m JOIN match_participants mp ON mp.match_id = m.id
		 WHERE mp.user_id = $1
		 ORDER BY m.created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []model.Match
	for rows.Next() {
		var m model.Match
		var duration sql.NullInt64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Mode, &m.MapSeed, &m.Status, &m.WinnerTeam, &duration, &m.CreatedAt, &m.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.DurationSeconds = int(duration.Int64)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
