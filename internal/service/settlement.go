package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oakmund/conquer/api/internal/repository"
	"github.com/oakmund/conquer/api/pkg/conquest"
)

// PlayerResult is one player's outcome in a finished match, broadcast in
// the game-ended event and persisted by the settlement worker.
type PlayerResult struct {
	PlayerID    string `json:"player_id"`
	DisplayName string `json:"display_name"`
	Team        int    `json:"team"`
	Won         bool   `json:"won"`
	RatingDelta int    `json:"rating_delta"`
	Guest       bool   `json:"guest,omitempty"`
}

// SettlementService computes rating outcomes for finished matches and
// persists them. Computation is pure and runs inline at match end;
// persistence runs on a background goroutine with one retry, and its
// failures are logged but never surfaced to players.
type SettlementService struct {
	userRepo    repository.UserRepository
	matchRepo   repository.MatchRepository
	leaderboard repository.LeaderboardCache
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(userRepo repository.UserRepository, matchRepo repository.MatchRepository, leaderboard repository.LeaderboardCache) *SettlementService {
	return &SettlementService{
		userRepo:    userRepo,
		matchRepo:   matchRepo,
		leaderboard: leaderboard,
	}
}

// ComputeResults derives per-player results from the final roster. The
// delta comes from the average ratings of the winning and losing sides;
// guests participate with the default rating but their deltas are
// discarded at persistence. A match with no winner (void) yields zero
// deltas for everyone.
func (s *SettlementService) ComputeResults(players []Player, winnerTeam int) []PlayerResult {
	results := make([]PlayerResult, 0, len(players))

	if winnerTeam == conquest.NeutralTeam {
		for _, p := range players {
			results = append(results, PlayerResult{
				PlayerID:    p.PlayerID,
				DisplayName: p.DisplayName,
				Team:        p.Team,
				Guest:       p.Guest,
			})
		}
		return results
	}

	var winSum, winN, loseSum, loseN int
	for _, p := range players {
		if p.Team == winnerTeam {
			winSum += p.Rating
			winN++
		} else {
			loseSum += p.Rating
			loseN++
		}
	}
	if winN == 0 || loseN == 0 {
		// Degenerate roster, treat as void.
		return s.ComputeResults(players, conquest.NeutralTeam)
	}

	delta := conquest.RatingDelta(float64(winSum)/float64(winN), float64(loseSum)/float64(loseN))

	for _, p := range players {
		won := p.Team == winnerTeam
		d := delta
		if !won {
			d = -delta
		}
		results = append(results, PlayerResult{
			PlayerID:    p.PlayerID,
			DisplayName: p.DisplayName,
			Team:        p.Team,
			Won:         won,
			RatingDelta: d,
			Guest:       p.Guest,
		})
	}
	return results
}

// Persist writes a finished match and its rating changes to storage.
// Guests and matches without a record (the match row failed to open) are
// skipped. Each write is retried once; anything still failing is logged
// and abandoned.
func (s *SettlementService) Persist(matchID string, winnerTeam, durationSeconds int, results []PlayerResult) {
	if matchID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := withRetry(func() error {
		return s.matchRepo.Finish(ctx, matchID, winnerTeam, durationSeconds)
	}); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to finish match record")
	}

	for _, r := range results {
		if r.Guest {
			continue
		}

		var newRating int
		if err := withRetry(func() error {
			var err error
			newRating, err = s.userRepo.ApplyMatchResult(ctx, r.PlayerID, r.RatingDelta, r.Won)
			return err
		}); err != nil {
			log.Error().Err(err).Str("matchId", matchID).Str("playerId", r.PlayerID).Msg("Failed to apply rating change")
			continue
		}

		if err := withRetry(func() error {
			return s.matchRepo.SetParticipantResult(ctx, matchID, r.PlayerID, r.RatingDelta, newRating)
		}); err != nil {
			log.Error().Err(err).Str("matchId", matchID).Str("playerId", r.PlayerID).Msg("Failed to record participant result")
		}

		if err := s.leaderboard.RecordRating(ctx, r.PlayerID, newRating); err != nil {
			log.Warn().Err(err).Str("playerId", r.PlayerID).Msg("Failed to update leaderboard")
		}
	}
}

func withRetry(fn func() error) error {
	if err := fn(); err != nil {
		time.Sleep(time.Second)
		return fn()
	}
	return nil
}
