package conquest

import (
	"math"
	"math/rand"
)

const (
	startTroops        = 50
	neutralsPerTeam    = 3
	maxNeutralTroops   = 15
	mapSize            = 1000.0
	homeRadius         = 40.0
	neutralRadiusMin   = 20.0
	neutralRadiusRange = 15.0
)

// GenerateMap builds the territory layout for a match. Each team starts
// with one home territory placed evenly around the map edge; neutral
// territories fill the interior with small randomized garrisons. The same
// seed always produces the same map.
func GenerateMap(seed int64, teamCount int) []Territory {
	rng := rand.New(rand.NewSource(seed))
	var territories []Territory
	id := 0

	center := mapSize / 2
	homeDist := mapSize * 0.4
	for team := 0; team < teamCount; team++ {
		angle := 2 * math.Pi * float64(team) / float64(teamCount)
		territories = append(territories, Territory{
			ID:     id,
			Owner:  team,
			Troops: startTroops,
			X:      center + homeDist*math.Cos(angle),
			Y:      center + homeDist*math.Sin(angle),
			Radius: homeRadius,
		})
		id++
	}

	for i := 0; i < teamCount*neutralsPerTeam; i++ {
		territories = append(territories, Territory{
			ID:     id,
			Owner:  NeutralTeam,
			Troops: float64(rng.Intn(maxNeutralTroops + 1)),
			X:      center + (rng.Float64()-0.5)*mapSize*0.6,
			Y:      center + (rng.Float64()-0.5)*mapSize*0.6,
			Radius: neutralRadiusMin + rng.Float64()*neutralRadiusRange,
		})
		id++
	}

	return territories
}
