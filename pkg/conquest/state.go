// Package conquest implements the authoritative simulation for a
// territory-conquest match: territories, in-flight troop movements,
// fixed-rate tick advancement, combat resolution, and rating math.
//
// A GameState is not safe for concurrent use. The owning room must
// serialize all calls (commands and ticks) through a single writer.
package conquest

import (
	"errors"
	"math"
	"time"
)

const (
	// TickInterval is the fixed simulation step (10 Hz).
	TickInterval = 100 * time.Millisecond

	// MovementStep is the progress a troop movement gains per tick.
	// At 10 Hz a transfer takes 3 seconds to arrive.
	MovementStep = 1.0 / 30.0

	// GenPerTick is the passive troop income of an owned territory per
	// tick. Fractions accumulate internally; displayed values are floored.
	GenPerTick = 0.1

	// NeutralTeam marks a territory owned by no team.
	NeutralTeam = -1
)

var (
	ErrUnknownTerritory = errors.New("territory does not exist")
	ErrNotOwner         = errors.New("source territory is not owned by your team")
	ErrSameTerritory    = errors.New("source and destination are the same territory")
)

// Territory is a capturable map node.
type Territory struct {
	ID     int     `json:"id"`
	Owner  int     `json:"owner"` // NeutralTeam or [0, teamCount)
	Troops float64 `json:"troops"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// TroopMovement is an in-transit transfer between two territories. It is
// resolved against the destination when Progress reaches 1.
type TroopMovement struct {
	ID       int     `json:"id"`
	Owner    int     `json:"owner"`
	Count    int     `json:"count"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Progress float64 `json:"progress"`
}

// GameState is the authoritative state of one playing room.
type GameState struct {
	Territories []Territory
	Movements   []TroopMovement
	TeamCount   int
	StartedAt   time.Time

	nextMovementID int
}

// NewGameState generates the initial state for a match from a map seed.
func NewGameState(seed int64, teamCount int) *GameState {
	return &GameState{
		Territories: GenerateMap(seed, teamCount),
		TeamCount:   teamCount,
		StartedAt:   time.Now(),
	}
}

// Territory returns a pointer to the territory with the given ID, or nil.
func (g *GameState) Territory(id int) *Territory {
	for i := range g.Territories {
		if g.Territories[i].ID == id {
			return &g.Territories[i]
		}
	}
	return nil
}

// SendTroops deducts floor(troops*fraction) from the source territory and
// creates a movement carrying exactly that amount. The fraction is clamped
// to [0,1]. A send that rounds to zero troops is a no-op and returns nil.
func (g *GameState) SendTroops(team, fromID, toID int, fraction float64) (*TroopMovement, error) {
	if fromID == toID {
		return nil, ErrSameTerritory
	}
	src := g.Territory(fromID)
	if src == nil {
		return nil, ErrUnknownTerritory
	}
	if g.Territory(toID) == nil {
		return nil, ErrUnknownTerritory
	}
	if src.Owner != team {
		return nil, ErrNotOwner
	}

	fraction = math.Max(0, math.Min(1, fraction))
	count := int(math.Floor(src.Troops * fraction))
	if count == 0 {
		return nil, nil
	}

	src.Troops -= float64(count)
	g.nextMovementID++
	mv := TroopMovement{
		ID:       g.nextMovementID,
		Owner:    team,
		Count:    count,
		From:     fromID,
		To:       toID,
		Progress: 0,
	}
	g.Movements = append(g.Movements, mv)
	return &g.Movements[len(g.Movements)-1], nil
}

// NeutralizeTeam releases every territory of a team to neutral. Troops on
// the released territories are kept; in-flight movements of the team keep
// travelling and resolve normally.
func (g *GameState) NeutralizeTeam(team int) {
	for i := range g.Territories {
		if g.Territories[i].Owner == team {
			g.Territories[i].Owner = NeutralTeam
		}
	}
}

// TeamsHoldingTerritory returns the set of teams that currently own at
// least one territory.
func (g *GameState) TeamsHoldingTerritory() map[int]bool {
	teams := make(map[int]bool)
	for i := range g.Territories {
		if g.Territories[i].Owner != NeutralTeam {
			teams[g.Territories[i].Owner] = true
		}
	}
	return teams
}

// TerritoryView is the broadcast form of a territory. Troop counts are
// floored for display; the fractional accumulator stays server-side.
type TerritoryView struct {
	ID     int `json:"id"`
	Owner  int `json:"owner"`
	Troops int `json:"troops"`
}

// MovementView is the broadcast form of an in-flight movement.
type MovementView struct {
	ID       int     `json:"id"`
	Owner    int     `json:"owner"`
	Count    int     `json:"count"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Progress float64 `json:"progress"`
}

// Snapshot returns the compact state delta broadcast every tick.
func (g *GameState) Snapshot() ([]TerritoryView, []MovementView) {
	territories := make([]TerritoryView, len(g.Territories))
	for i, t := range g.Territories {
		territories[i] = TerritoryView{ID: t.ID, Owner: t.Owner, Troops: int(math.Floor(t.Troops))}
	}
	movements := make([]MovementView, len(g.Movements))
	for i, m := range g.Movements {
		movements[i] = MovementView{ID: m.ID, Owner: m.Owner, Count: m.Count, From: m.From, To: m.To, Progress: m.Progress}
	}
	return territories, movements
}
