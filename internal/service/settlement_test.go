package service

import (
	"context"
	"testing"

	"github.com/oakmund/conquer/api/pkg/conquest"
)

func newSettlement() (*SettlementService, *mockUserRepo, *mockMatchRepo, *mockLeaderboard) {
	userRepo := newMockUserRepo()
	matchRepo := newMockMatchRepo()
	lb := newMockLeaderboard()
	return NewSettlementService(userRepo, matchRepo, lb), userRepo, matchRepo, lb
}

func duelRoster() []Player {
	return []Player{
		{PlayerID: "u1", DisplayName: "alice", Team: 0, Rating: 1000},
		{PlayerID: "u2", DisplayName: "bob", Team: 1, Rating: 1000},
	}
}

func TestComputeResultsZeroSum(t *testing.T) {
	svc, _, _, _ := newSettlement()

	results := svc.ComputeResults(duelRoster(), 0)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	sum := 0
	for _, r := range results {
		sum += r.RatingDelta
		if r.PlayerID == "u1" && (!r.Won || r.RatingDelta != 16) {
			t.Errorf("expected u1 won +16, got won=%v delta=%d", r.Won, r.RatingDelta)
		}
		if r.PlayerID == "u2" && (r.Won || r.RatingDelta != -16) {
			t.Errorf("expected u2 lost -16, got won=%v delta=%d", r.Won, r.RatingDelta)
		}
	}
	if sum != 0 {
		t.Errorf("expected zero-sum deltas, got sum %d", sum)
	}
}

func TestComputeResultsUnderdogWin(t *testing.T) {
	svc, _, _, _ := newSettlement()

	players := []Player{
		{PlayerID: "u1", Team: 0, Rating: 800},
		{PlayerID: "u2", Team: 1, Rating: 1600},
	}
	results := svc.ComputeResults(players, 0)
	for _, r := range results {
		if r.PlayerID == "u1" && r.RatingDelta != 32 {
			t.Errorf("expected underdog to gain the full K factor, got %d", r.RatingDelta)
		}
	}
}

func TestComputeResultsVoidMatch(t *testing.T) {
	svc, _, _, _ := newSettlement()

	results := svc.ComputeResults(duelRoster(), conquest.NeutralTeam)
	for _, r := range results {
		if r.Won || r.RatingDelta != 0 {
			t.Errorf("expected void match with zero deltas, got %+v", r)
		}
	}
}

func TestComputeResultsTeamAverages(t *testing.T) {
	svc, _, _, _ := newSettlement()

	// Team averages 1000 vs 1200; the lower-rated side wins.
	players := []Player{
		{PlayerID: "a", Team: 0, Rating: 900},
		{PlayerID: "b", Team: 0, Rating: 1100},
		{PlayerID: "c", Team: 1, Rating: 1200},
		{PlayerID: "d", Team: 1, Rating: 1200},
	}
	want := conquest.RatingDelta(1000, 1200)
	results := svc.ComputeResults(players, 0)
	for _, r := range results {
		if r.Team == 0 && r.RatingDelta != want {
			t.Errorf("expected winners +%d, got %d", want, r.RatingDelta)
		}
		if r.Team == 1 && r.RatingDelta != -want {
			t.Errorf("expected losers -%d, got %d", want, r.RatingDelta)
		}
	}
}

func TestPersist(t *testing.T) {
	svc, userRepo, matchRepo, lb := newSettlement()
	userRepo.ratings["u1"] = 1000
	userRepo.ratings["u2"] = 1000

	match, _ := matchRepo.Create(context.Background(), "room-1", "duel", 42)
	matchRepo.AddParticipant(context.Background(), match.ID, "u1", 0)
	matchRepo.AddParticipant(context.Background(), match.ID, "u2", 1)

	results := svc.ComputeResults(duelRoster(), 0)
	svc.Persist(match.ID, 0, 120, results)

	if got, _ := userRepo.GetRating(context.Background(), "u1"); got != 1016 {
		t.Errorf("expected winner at 1016, got %d", got)
	}
	if got, _ := userRepo.GetRating(context.Background(), "u2"); got != 984 {
		t.Errorf("expected loser at 984, got %d", got)
	}

	stored, _ := matchRepo.FindByID(context.Background(), match.ID)
	if stored.Status != "finished" || stored.WinnerTeam != 0 || stored.DurationSeconds != 120 {
		t.Errorf("unexpected stored match: %+v", stored)
	}
	for _, p := range stored.Participants {
		if p.UserID == "u1" && (p.RatingDelta != 16 || p.RatingAfter != 1016) {
			t.Errorf("unexpected participant result: %+v", p)
		}
	}

	if lb.ratings["u1"] != 1016 || lb.ratings["u2"] != 984 {
		t.Errorf("expected leaderboard updated, got %v", lb.ratings)
	}
}

func TestPersistSkipsGuests(t *testing.T) {
	svc, userRepo, matchRepo, _ := newSettlement()

	match, _ := matchRepo.Create(context.Background(), "room-1", "duel", 42)
	results := []PlayerResult{
		{PlayerID: "u1", Team: 0, Won: true, RatingDelta: 16},
		{PlayerID: "guest-1", Team: 1, RatingDelta: -16, Guest: true},
	}
	svc.Persist(match.ID, 0, 60, results)

	userRepo.mu.Lock()
	defer userRepo.mu.Unlock()
	if len(userRepo.applied) != 1 || userRepo.applied[0] != "u1" {
		t.Errorf("expected only u1 settled, got %v", userRepo.applied)
	}
}

func TestPersistNoMatchRecord(t *testing.T) {
	svc, userRepo, _, _ := newSettlement()

	svc.Persist("", 0, 60, []PlayerResult{{PlayerID: "u1", Won: true, RatingDelta: 16}})

	userRepo.mu.Lock()
	defer userRepo.mu.Unlock()
	if len(userRepo.applied) != 0 {
		t.Error("expected no settlement without a match record")
	}
}

func TestPersistRetriesOnce(t *testing.T) {
	svc, userRepo, matchRepo, _ := newSettlement()
	userRepo.ratings["u1"] = 1000
	userRepo.failures = 1

	match, _ := matchRepo.Create(context.Background(), "room-1", "duel", 42)
	matchRepo.AddParticipant(context.Background(), match.ID, "u1", 0)
	svc.Persist(match.ID, 0, 60, []PlayerResult{{PlayerID: "u1", Team: 0, Won: true, RatingDelta: 16}})

	if got, _ := userRepo.GetRating(context.Background(), "u1"); got != 1016 {
		t.Errorf("expected rating applied on retry, got %d", got)
	}
}
