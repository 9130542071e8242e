package conquest

import "fmt"

// Mode describes a match format: how many players a room holds and how
// they are split into teams.
type Mode struct {
	Name       string `json:"name"`
	MaxPlayers int    `json:"max_players"`
	TeamCount  int    `json:"team_count"`
}

var modes = map[string]Mode{
	"duel":    {Name: "duel", MaxPlayers: 2, TeamCount: 2},
	"doubles": {Name: "doubles", MaxPlayers: 4, TeamCount: 2},
	"ffa":     {Name: "ffa", MaxPlayers: 4, TeamCount: 4},
}

// ModeByName returns the mode definition for a mode name.
func ModeByName(name string) (Mode, error) {
	m, ok := modes[name]
	if !ok {
		return Mode{}, fmt.Errorf("unknown mode: %s", name)
	}
	return m, nil
}

// Modes returns all supported mode definitions.
func Modes() []Mode {
	return []Mode{modes["duel"], modes["doubles"], modes["ffa"]}
}
