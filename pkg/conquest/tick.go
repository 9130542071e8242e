package conquest

// Arrival records a movement that finished transit during a tick and the
// outcome of its resolution at the destination.
type Arrival struct {
	Movement TroopMovement
	NewOwner int // destination owner after resolution
	Captured bool
	Dropped  bool // destination no longer exists, troops lost
}

// Tick advances the simulation one fixed step: movement progress, arrival
// resolution, then passive generation. Arrivals are resolved in movement
// insertion order, which keeps combat deterministic for a given state.
func (g *GameState) Tick() []Arrival {
	var arrivals []Arrival

	remaining := g.Movements[:0]
	for i := range g.Movements {
		mv := &g.Movements[i]
		mv.Progress += MovementStep
		if mv.Progress < 1 {
			remaining = append(remaining, *mv)
			continue
		}
		mv.Progress = 1
		arrivals = append(arrivals, g.resolveArrival(*mv))
	}
	g.Movements = remaining

	for i := range g.Territories {
		if g.Territories[i].Owner != NeutralTeam {
			g.Territories[i].Troops += GenPerTick
		}
	}

	return arrivals
}

// resolveArrival applies an arriving movement to its destination.
//
// Friendly destinations absorb the troops. A neutral destination is
// claimed outright: the arriving force becomes its garrison. A contested
// arrival compares whole-troop counts: a larger attacking force captures
// with the surplus, a smaller or equal force is subtracted from the
// defenders, and a defender reduced to exactly zero troops turns neutral
// rather than staying owned.
func (g *GameState) resolveArrival(mv TroopMovement) Arrival {
	dst := g.Territory(mv.To)
	if dst == nil {
		// Destination vanished from the state; drop the troops. The room
		// logs this as a consistency violation.
		return Arrival{Movement: mv, NewOwner: NeutralTeam, Dropped: true}
	}

	if dst.Owner == mv.Owner {
		dst.Troops += float64(mv.Count)
		return Arrival{Movement: mv, NewOwner: dst.Owner}
	}
	if dst.Owner == NeutralTeam {
		dst.Owner = mv.Owner
		dst.Troops = float64(mv.Count)
		return Arrival{Movement: mv, NewOwner: dst.Owner, Captured: true}
	}

	arriving := float64(mv.Count)
	if arriving > dst.Troops {
		dst.Troops = arriving - dst.Troops
		dst.Owner = mv.Owner
		return Arrival{Movement: mv, NewOwner: dst.Owner, Captured: true}
	}

	dst.Troops -= arriving
	if dst.Troops == 0 {
		dst.Owner = NeutralTeam
	}
	return Arrival{Movement: mv, NewOwner: dst.Owner}
}
