package model

import "time"

// User represents a registered player.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Rating      int       `json:"rating"`
	GamesPlayed int       `json:"games_played"`
	Wins        int       `json:"wins"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match represents a persisted match record.
type Match struct {
	ID              string             `json:"id"`
	RoomID          string             `json:"room_id"`
	Mode            string             `json:"mode"`
	MapSeed         int64              `json:"map_seed"`
	Status          string             `json:"status"`      // playing, finished
	WinnerTeam      int                `json:"winner_team"` // -1 = no winner
	DurationSeconds int                `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	FinishedAt      *time.Time         `json:"finished_at,omitempty"`
	Participants    []MatchParticipant `json:"participants,omitempty"`
}

// MatchParticipant records one player's membership and outcome in a match.
type MatchParticipant struct {
	MatchID     string `json:"match_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Team        int    `json:"team"`
	RatingDelta int    `json:"rating_delta"`
	RatingAfter int    `json:"rating_after"`
}

// LeaderboardEntry is one row of the rating leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
}
