//go:build integration

package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oakmund/conquer/api/internal/model"
	"github.com/oakmund/conquer/api/internal/repository/postgres"
	redisrepo "github.com/oakmund/conquer/api/internal/repository/redis"
	"github.com/oakmund/conquer/api/internal/testutil"
)

// testEnv holds shared test infrastructure.
type testEnv struct {
	db        *sql.DB
	rdb       *goredis.Client
	userRepo  *postgres.UserRepo
	matchRepo *postgres.MatchRepo
	emoteRepo *postgres.EmoteRepo
	cache     *redisrepo.Client
}

var env *testEnv

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if env == nil {
		db := testutil.SetupDB(t)
		rdb := testutil.SetupRedis(t)
		env = &testEnv{
			db:        db,
			rdb:       rdb,
			userRepo:  postgres.NewUserRepo(db),
			matchRepo: postgres.NewMatchRepo(db),
			emoteRepo: postgres.NewEmoteRepo(db),
			cache:     redisrepo.NewClientFromPool(rdb),
		}
	}
	testutil.CleanupDB(t, env.db)
	testutil.CleanupRedis(t, env.rdb)
	return env
}

func createUsers(t *testing.T, repo *postgres.UserRepo, n int) []*model.User {
	t.Helper()
	names := []string{"alice", "bob", "carol", "dave"}
	var users []*model.User
	for i := 0; i < n; i++ {
		u, err := repo.Upsert(context.Background(), "test", "test-"+names[i], names[i], "")
		if err != nil {
			t.Fatalf("create user %s: %v", names[i], err)
		}
		users = append(users, u)
	}
	return users
}

func TestDuelSettlementIntegration(t *testing.T) {
	e := setupEnv(t)
	users := createUsers(t, e.userRepo, 2)

	registry := NewRegistry()
	settlement := NewSettlementService(e.userRepo, e.matchRepo, e.cache)
	rooms := NewRoomService(registry, NoopBroadcaster{}, e.matchRepo, settlement)

	id1 := Identity{PlayerID: users[0].ID, DisplayName: users[0].DisplayName, Rating: users[0].Rating}
	id2 := Identity{PlayerID: users[1].ID, DisplayName: users[1].DisplayName, Rating: users[1].Rating}

	view, err := rooms.CreateRoom("conn-1", id1, "duel")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if err := rooms.JoinRoom("conn-2", id2, view.ID); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if err := rooms.Ready("conn-1", true); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := rooms.Ready("conn-2", true); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	defer rooms.Reclaim(view.ID)

	if err := rooms.Surrender("conn-2"); err != nil {
		t.Fatalf("Surrender: %v", err)
	}

	// Settlement runs async; wait for the rating write to land.
	deadline := time.Now().Add(5 * time.Second)
	var winner *model.User
	for time.Now().Before(deadline) {
		winner, err = e.userRepo.FindByID(context.Background(), users[0].ID)
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if winner.Rating != 1000 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if winner.Rating != 1016 {
		t.Errorf("expected winner at 1016, got %d", winner.Rating)
	}
	if winner.Wins != 1 || winner.GamesPlayed != 1 {
		t.Errorf("expected 1 win / 1 played, got %d/%d", winner.Wins, winner.GamesPlayed)
	}

	loser, _ := e.userRepo.FindByID(context.Background(), users[1].ID)
	if loser.Rating != 984 {
		t.Errorf("expected loser at 984, got %d", loser.Rating)
	}

	matches, err := e.matchRepo.ListByUser(context.Background(), users[0].ID, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(matches) != 1 || matches[0].Status != "finished" || matches[0].WinnerTeam != 0 {
		t.Fatalf("unexpected match history: %+v", matches)
	}

	stored, err := e.matchRepo.FindByID(context.Background(), matches[0].ID)
	if err != nil {
		t.Fatalf("FindByID match: %v", err)
	}
	for _, p := range stored.Participants {
		if p.UserID == users[0].ID && (p.RatingDelta != 16 || p.RatingAfter != 1016) {
			t.Errorf("unexpected winner participant row: %+v", p)
		}
		if p.UserID == users[1].ID && (p.RatingDelta != -16 || p.RatingAfter != 984) {
			t.Errorf("unexpected loser participant row: %+v", p)
		}
	}

	top, err := e.cache.Top(context.Background(), 10)
	if err != nil {
		t.Fatalf("leaderboard Top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != users[0].ID {
		t.Errorf("unexpected leaderboard: %+v", top)
	}
}

func TestChatRateLimitIntegration(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := e.cache.AllowChat(ctx, "player-1")
		if err != nil {
			t.Fatalf("AllowChat: %v", err)
		}
		if !ok {
			t.Fatalf("message %d unexpectedly limited", i+1)
		}
	}
	ok, err := e.cache.AllowChat(ctx, "player-1")
	if err != nil {
		t.Fatalf("AllowChat: %v", err)
	}
	if ok {
		t.Error("expected sixth message in window to be limited")
	}

	// A different player has an independent window.
	if ok, _ := e.cache.AllowChat(ctx, "player-2"); !ok {
		t.Error("expected independent limit per player")
	}
}

func TestEmoteUnlockIntegration(t *testing.T) {
	e := setupEnv(t)
	users := createUsers(t, e.userRepo, 1)
	ctx := context.Background()

	// Seeded default emotes are unlocked for everyone.
	ok, err := e.emoteRepo.IsUnlocked(ctx, users[0].ID, "wave")
	if err != nil {
		t.Fatalf("IsUnlocked: %v", err)
	}
	if !ok {
		t.Error("expected default emote unlocked")
	}

	ok, err = e.emoteRepo.IsUnlocked(ctx, users[0].ID, "salute")
	if err != nil {
		t.Fatalf("IsUnlocked: %v", err)
	}
	if ok {
		t.Error("expected non-default emote locked without unlock row")
	}

	if _, err := e.db.Exec(`INSERT INTO user_emotes (user_id, emote_id) VALUES ($1, 'salute')`, users[0].ID); err != nil {
		t.Fatalf("insert unlock: %v", err)
	}
	ok, err = e.emoteRepo.IsUnlocked(ctx, users[0].ID, "salute")
	if err != nil {
		t.Fatalf("IsUnlocked: %v", err)
	}
	if !ok {
		t.Error("expected emote unlocked after unlock row")
	}
}
