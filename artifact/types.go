package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tolelom/gamemaster/mapgen"
)

// LandCell is either a plain tile value or, at the starting-position cell,
// the literal JSON string "X" (spec §6: `land:[[int|"X"]]`). StartingPosition
// carries the coordinates and the tile that cell originally held.
type LandCell struct {
	Tile      int
	IsStarter bool
}

func (c LandCell) MarshalJSON() ([]byte, error) {
	if c.IsStarter {
		return json.Marshal("X")
	}
	return json.Marshal(c.Tile)
}

func (c *LandCell) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "X" {
			return fmt.Errorf("land cell: unexpected string %q", s)
		}
		c.IsStarter = true
		c.Tile = 0
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("land cell: %w", err)
	}
	c.Tile = n
	c.IsStarter = false
	return nil
}

// LandGrid is the persisted row-major grid, with the starting cell marked.
type LandGrid [][]LandCell

// FromMap converts a generated mapgen.Map into its persisted grid form,
// marking the starting-position cell with the "X" sentinel.
func FromMap(m *mapgen.Map) LandGrid {
	grid := make(LandGrid, len(m.Land))
	for y, row := range m.Land {
		grid[y] = make([]LandCell, len(row))
		for x, tile := range row {
			isStarter := x == m.StartingPosition.X && y == m.StartingPosition.Y
			grid[y][x] = LandCell{Tile: tile, IsStarter: isStarter}
		}
	}
	return grid
}

// Tile returns the live tile value at (x, y): 0 for the starting cell (the
// grid does not hold its original land type, which StartingPositionRecord
// carries), else the stored tile.
func (g LandGrid) Tile(x, y int) int {
	c := g[y][x]
	if c.IsStarter {
		return 0 // starting marker has no "tile" of its own once separated out
	}
	return c.Tile
}

// StartingPositionRecord is the persisted startingPosition object.
type StartingPositionRecord struct {
	X                int `json:"x"`
	Y                int `json:"y"`
	OriginalLandType int `json:"originalLandType"`
}

// MapMetadata records provenance so a reader can independently verify the
// map was generated from the claimed commit/reveal pair.
type MapMetadata struct {
	Generated   time.Time `json:"generated"`
	GameID      uint64    `json:"gameId"`
	RevealValue string    `json:"revealValue"`
	RandomHash  string    `json:"randomHash"`
}

// MapArtifact is the full contents of map_<gameId>.
type MapArtifact struct {
	Size             int                    `json:"size"`
	Land             LandGrid               `json:"land"`
	StartingPosition StartingPositionRecord `json:"startingPosition"`
	Metadata         MapMetadata            `json:"metadata"`
}

// PlayerScore is one player's final record within scores_<gameId>.
type PlayerScore struct {
	Address        string       `json:"address"`
	Position       mapgen.Coord `json:"position"`
	Tile           int          `json:"tile"`
	Score          int          `json:"score"`
	MovesRemaining int          `json:"movesRemaining"`
	MinesRemaining int          `json:"minesRemaining"`
}

// ScoresArtifact is the full contents of scores_<gameId>.
type ScoresArtifact struct {
	GameID  uint64        `json:"gameId"`
	Players []PlayerScore `json:"players"`
	Count   int           `json:"count"`
	SavedAt time.Time     `json:"savedAt"`
}
