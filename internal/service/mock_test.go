package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oakmund/conquer/api/internal/model"
	"github.com/oakmund/conquer/api/pkg/conquest"
)

var errDBDown = errors.New("db down")

// recordedEvent is one captured broadcast for assertions.
type recordedEvent struct {
	ConnID string
	Event  string
	Data   any
}

// recorder implements Broadcaster and captures every send.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) Send(connID, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{ConnID: connID, Event: event, Data: data})
}

func (r *recorder) SendAll(connIDs []string, event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range connIDs {
		r.events = append(r.events, recordedEvent{ConnID: id, Event: event, Data: data})
	}
}

// eventsOf returns every captured event of the given type.
func (r *recorder) eventsOf(event string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// lastOf returns the most recent event of the given type, or nil.
func (r *recorder) lastOf(event string) *recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			e := r.events[i]
			return &e
		}
	}
	return nil
}

type mockUserRepo struct {
	mu       sync.Mutex
	ratings  map[string]int
	applied  []string // playerIDs in ApplyMatchResult call order
	failures int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{ratings: make(map[string]int)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ratings[id]
	if !ok {
		return nil, nil
	}
	return &model.User{ID: id, DisplayName: "user-" + id, Rating: r}, nil
}

func (m *mockUserRepo) FindByIDs(_ context.Context, ids []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []model.User
	for _, id := range ids {
		if r, ok := m.ratings[id]; ok {
			users = append(users, model.User{ID: id, DisplayName: "user-" + id, Rating: r})
		}
	}
	return users, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	return &model.User{ID: providerID, DisplayName: displayName, Rating: conquest.DefaultRating}, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	return nil
}

func (m *mockUserRepo) GetRating(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.ratings[id]; ok {
		return r, nil
	}
	return conquest.DefaultRating, nil
}

func (m *mockUserRepo) ApplyMatchResult(_ context.Context, id string, delta int, won bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return 0, fmt.Errorf("db unavailable")
	}
	r, ok := m.ratings[id]
	if !ok {
		r = conquest.DefaultRating
	}
	r = conquest.ApplyDelta(r, delta)
	m.ratings[id] = r
	m.applied = append(m.applied, id)
	return r, nil
}

type mockMatchRepo struct {
	mu           sync.Mutex
	matches      map[string]*model.Match
	participants map[string][]model.MatchParticipant
	seq          int
	createErr    error
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches:      make(map[string]*model.Match),
		participants: make(map[string][]model.MatchParticipant),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, roomID, mode string, mapSeed int64) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.seq++
	match := &model.Match{
		ID:         fmt.Sprintf("match-%d", m.seq),
		RoomID:     roomID,
		Mode:       mode,
		MapSeed:    mapSeed,
		Status:     "playing",
		WinnerTeam: conquest.NeutralTeam,
		CreatedAt:  time.Now(),
	}
	m.matches[match.ID] = match
	return match, nil
}

func (m *mockMatchRepo) AddParticipant(_ context.Context, matchID, userID string, team int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[matchID] = append(m.participants[matchID], model.MatchParticipant{
		MatchID: matchID,
		UserID:  userID,
		Team:    team,
	})
	return nil
}

func (m *mockMatchRepo) Finish(_ context.Context, matchID string, winnerTeam, durationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[matchID]
	if !ok {
		return fmt.Errorf("match not found")
	}
	match.Status = "finished"
	match.WinnerTeam = winnerTeam
	match.DurationSeconds = durationSeconds
	return nil
}

func (m *mockMatchRepo) SetParticipantResult(_ context.Context, matchID, userID string, ratingDelta, ratingAfter int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.participants[matchID]
	for i := range ps {
		if ps[i].UserID == userID {
			ps[i].RatingDelta = ratingDelta
			ps[i].RatingAfter = ratingAfter
			return nil
		}
	}
	return fmt.Errorf("participant not found")
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	cp.Participants = m.participants[id]
	return &cp, nil
}

func (m *mockMatchRepo) ListByUser(_ context.Context, userID string, limit int) ([]model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.Match
	for id, ps := range m.participants {
		for _, p := range ps {
			if p.UserID == userID {
				if match, ok := m.matches[id]; ok {
					result = append(result, *match)
				}
				break
			}
		}
	}
	return result, nil
}

type mockEmoteRepo struct {
	unlocked map[string]bool // "userID:emoteID"
}

func newMockEmoteRepo() *mockEmoteRepo {
	return &mockEmoteRepo{unlocked: make(map[string]bool)}
}

func (m *mockEmoteRepo) IsUnlocked(_ context.Context, userID, emoteID string) (bool, error) {
	return m.unlocked[userID+":"+emoteID], nil
}

type mockLimiter struct {
	denyChat  bool
	denyQuick bool
	denyEmote bool
}

func (m *mockLimiter) AllowChat(_ context.Context, playerID string) (bool, error) {
	return !m.denyChat, nil
}

func (m *mockLimiter) AllowQuickChat(_ context.Context, playerID, messageID string) (bool, error) {
	return !m.denyQuick, nil
}

func (m *mockLimiter) AllowEmote(_ context.Context, playerID, emoteID string) (bool, error) {
	return !m.denyEmote, nil
}

type mockLeaderboard struct {
	mu      sync.Mutex
	ratings map[string]int
}

func newMockLeaderboard() *mockLeaderboard {
	return &mockLeaderboard{ratings: make(map[string]int)}
}

func (m *mockLeaderboard) RecordRating(_ context.Context, userID string, rating int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[userID] = rating
	return nil
}

func (m *mockLeaderboard) Top(_ context.Context, n int) ([]model.LeaderboardEntry, error) {
	return nil, nil
}

// testHarness wires the full service stack over mocks.
type testHarness struct {
	registry  *Registry
	hub       *recorder
	userRepo  *mockUserRepo
	matchRepo *mockMatchRepo
	rooms     *RoomService
	mm        *MatchmakingService
}

func newTestHarness() *testHarness {
	registry := NewRegistry()
	hub := &recorder{}
	userRepo := newMockUserRepo()
	matchRepo := newMockMatchRepo()
	settlement := NewSettlementService(userRepo, matchRepo, newMockLeaderboard())
	rooms := NewRoomService(registry, hub, matchRepo, settlement)
	mm := NewMatchmakingService(rooms, hub)
	return &testHarness{
		registry:  registry,
		hub:       hub,
		userRepo:  userRepo,
		matchRepo: matchRepo,
		rooms:     rooms,
		mm:        mm,
	}
}

func ident(id string, rating int) Identity {
	return Identity{PlayerID: id, DisplayName: "player-" + id, Rating: rating}
}
