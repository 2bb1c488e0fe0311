// Package mapgen builds the game grid and starting positions from the
// random hash seed (see dice.Dice). The same seed always yields the same
// grid, the same starting-marker cell, and the same per-player starting
// positions — this is what lets every player (and the contract) verify the
// daemon did not cheat when it generated the map.
package mapgen

import (
	"encoding/binary"

	"github.com/tolelom/gamemaster/crypto"
	"github.com/tolelom/gamemaster/dice"
)

// Tile values. Depleted (0) is also what a successfully mined tile becomes.
const (
	TileDepleted = 0
	TileCommon   = 1
	TileUncommon = 2
	TileRare     = 3

	// TileStartingMarker overwrites whatever tile the starting-position roll
	// landed on (spec §4.1: "overwrite that cell with the starting-position
	// marker"). It is distinct from every rolled tile value so mining it can
	// be told apart from mining an ordinary Common/Uncommon/Rare cell.
	TileStartingMarker = -1
)

// TilePoints maps a tile value to the score awarded when it is mined.
// The starting-position marker is worth more than any grid roll ever
// produces and is looked up separately (see TILE_POINTS in spec §4.5).
var TilePoints = map[int]int{
	TileDepleted: 0,
	TileCommon:   1,
	TileUncommon: 5,
	TileRare:     10,
}

// StartingMarkerPoints is the score awarded for mining the cell marked as
// the map's starting position.
const StartingMarkerPoints = 25

// Coord is a zero-based grid coordinate.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StartingPosition records where the map's starting marker was placed and
// what tile it overwrote, so mining it can still award the correct points.
type StartingPosition struct {
	Coord
	OriginalLandType int `json:"originalLandType"`
}

// Map is the generated grid plus its starting marker.
type Map struct {
	Size             int
	Land             [][]int
	StartingPosition StartingPosition
}

// Size computes mapSize = 1 + 4*playerCount, the authoritative formula
// recorded on chain at game closure (spec §9, Open Question resolved in
// favour of this rule).
func Size(playerCount int) int {
	return 1 + 4*playerCount
}

// Generate builds a Map deterministically from seed. For each cell in
// row-major order it rolls 1 nibble to choose a tile (0-10 -> common,
// 11-14 -> uncommon, 15 -> rare), then rolls 2 nibbles for x and 2 for y to
// place the starting marker, wrapping both into [0, size).
func Generate(seed [32]byte, size int) *Map {
	d := dice.NewDice(seed)

	land := make([][]int, size)
	for y := 0; y < size; y++ {
		land[y] = make([]int, size)
		for x := 0; x < size; x++ {
			land[y][x] = tileFromRoll(d.Roll(1))
		}
	}

	sx := d.Roll(2) % size
	sy := d.Roll(2) % size
	original := land[sy][sx]
	land[sy][sx] = TileStartingMarker

	return &Map{
		Size: size,
		Land: land,
		StartingPosition: StartingPosition{
			Coord:            Coord{X: sx, Y: sy},
			OriginalLandType: original,
		},
	}
}

func tileFromRoll(roll int) int {
	switch {
	case roll <= 10:
		return TileCommon
	case roll <= 14:
		return TileUncommon
	default:
		return TileRare
	}
}

// PlayerStartingPosition derives a deterministic starting cell for address
// within a mapSize x mapSize grid, from (randomHash, address, gameId,
// mapSize). It is total: every input produces a coordinate in [0, mapSize)^2,
// and the same inputs always produce the same output, so every node that
// has the random hash (available only after reveal) computes identical
// starting positions without needing to replay the full map generator.
func PlayerStartingPosition(randomHash [32]byte, address string, gameID uint64, mapSize int) Coord {
	gidBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(gidBuf, gameID)

	h := crypto.Keccak256(randomHash[:], []byte(address), gidBuf)
	x := int(binary.BigEndian.Uint32(h[0:4])) % mapSize
	y := int(binary.BigEndian.Uint32(h[4:8])) % mapSize
	return Coord{X: x, Y: y}
}
