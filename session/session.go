// Package session holds the in-memory per-game state the running server
// mutates on every authenticated request: player positions, scores, and
// remaining move/mine budgets, plus the live map buffer and the wall-clock
// timer. It is grounded on network.Node's mutex-guarded map-of-entities
// shape (network/node.go's peers map), narrowed from a peer registry to a
// player registry.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/tolelom/gamemaster/mapgen"
)

const (
	MaxMoves = 12
	MaxMines = 3
	Duration = 90 * time.Second
)

// Tile point values, indexed by tile type (spec §4.5).
const (
	PointsDepleted = 0
	PointsCommon   = 1
	PointsUncommon = 5
	PointsRare     = 10
	PointsStarting = mapgen.StartingMarkerPoints
)

var (
	ErrInvalidDirection = errors.New("session: invalid direction")
	ErrNoMovesRemaining = errors.New("session: no moves remaining")
	ErrNoMinesRemaining = errors.New("session: no mines remaining")
	ErrTileDepleted     = errors.New("session: tile already depleted")
	ErrTimerExpired     = errors.New("session: timer expired")
	ErrUnknownPlayer    = errors.New("session: unknown player")
)

// Player is one participant's live state.
type Player struct {
	Address        string
	Position       mapgen.Coord
	Score          int
	MovesRemaining int
	MinesRemaining int
}

// Session is one game's live runtime: its player registry and map buffer.
// A single mutex serialises all mutations, satisfying spec §5's
// requirement that concurrent HTTP requests never double-spend a move or
// a mine.
type Session struct {
	mu      sync.Mutex
	players map[string]*Player
	land    [][]int // mutable: mining sets a cell to 0
	size    int

	startedAt time.Time
	expiresAt time.Time
	expired   bool
}

// New builds a Session from a generated map and the chain's player list.
// Each player's starting cell is derived from randomHash, their own
// address, gameID and the map size — the same total function the map
// package itself uses (spec §4.5), so session and map agree without extra
// coordination.
func New(m *mapgen.Map, gameID uint64, randomHash [32]byte, addresses []string) *Session {
	land := make([][]int, len(m.Land))
	for y, row := range m.Land {
		land[y] = append([]int(nil), row...)
	}
	s := &Session{
		players: make(map[string]*Player, len(addresses)),
		land:    land,
		size:    m.Size,
	}
	for _, addr := range addresses {
		pos := mapgen.PlayerStartingPosition(randomHash, addr, gameID, m.Size)
		s.players[normalize(addr)] = &Player{
			Address:        addr,
			Position:       pos,
			MovesRemaining: MaxMoves,
			MinesRemaining: MaxMines,
		}
	}
	return s
}

// Arm starts the 90s wall-clock timer. Called once, when the listener
// begins accepting requests.
func (s *Session) Arm(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = now
	s.expiresAt = now.Add(Duration)
}

// TimeRemaining reports the duration left on the timer, floored at zero.
// Reported in every API response (spec §4.5).
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeRemainingLocked(now)
}

func (s *Session) timeRemainingLocked(now time.Time) time.Duration {
	if s.expiresAt.IsZero() {
		return Duration
	}
	remaining := s.expiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// checkExpiry sets every player's budgets to zero the first time it
// observes the timer has fired. Must be called with s.mu held.
func (s *Session) checkExpiryLocked(now time.Time) {
	if s.expired || s.expiresAt.IsZero() || now.Before(s.expiresAt) {
		return
	}
	s.expired = true
	for _, p := range s.players {
		p.MovesRemaining = 0
		p.MinesRemaining = 0
	}
}

func wrap(c, size int) int {
	return ((c % size) + size) % size
}

// Cell describes one tile of a 3x3 view (spec §4.5).
type Cell struct {
	Tile   int
	Player string // address of the occupying player, if any
	X, Y   int
}

// View is the response shape for GET /map.
type View struct {
	Player        Player
	Cells         [3][3]Cell
	TimeRemaining time.Duration
}

// View returns the caller's 3x3 window and current stats.
func (s *Session) View(now time.Time, address string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiryLocked(now)

	p, ok := s.players[normalize(address)]
	if !ok {
		return View{}, ErrUnknownPlayer
	}
	return View{
		Player:        *p,
		Cells:         s.windowLocked(p.Position),
		TimeRemaining: s.timeRemainingLocked(now),
	}, nil
}

func (s *Session) windowLocked(center mapgen.Coord) [3][3]Cell {
	var cells [3][3]Cell
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x := wrap(center.X+dx, s.size)
			y := wrap(center.Y+dy, s.size)
			cells[dy+1][dx+1] = Cell{Tile: s.land[y][x], X: x, Y: y, Player: s.occupantLocked(x, y)}
		}
	}
	return cells
}

func (s *Session) occupantLocked(x, y int) string {
	for _, p := range s.players {
		if p.Position.X == x && p.Position.Y == y {
			return p.Address
		}
	}
	return ""
}

var directionDeltas = map[string]mapgen.Coord{
	"north":     {X: 0, Y: -1},
	"south":     {X: 0, Y: 1},
	"east":      {X: 1, Y: 0},
	"west":      {X: -1, Y: 0},
	"northeast": {X: 1, Y: -1},
	"northwest": {X: -1, Y: -1},
	"southeast": {X: 1, Y: 1},
	"southwest": {X: -1, Y: 1},
}

// Move relocates the player one step in direction, decrementing their
// moves budget (spec §4.5).
func (s *Session) Move(now time.Time, address, direction string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiryLocked(now)

	p, ok := s.players[normalize(address)]
	if !ok {
		return View{}, ErrUnknownPlayer
	}
	delta, ok := directionDeltas[strings.ToLower(strings.TrimSpace(direction))]
	if !ok {
		return View{}, ErrInvalidDirection
	}
	if s.expired {
		return View{}, ErrTimerExpired
	}
	if p.MovesRemaining <= 0 {
		return View{}, ErrNoMovesRemaining
	}

	p.Position = mapgen.Coord{
		X: wrap(p.Position.X+delta.X, s.size),
		Y: wrap(p.Position.Y+delta.Y, s.size),
	}
	p.MovesRemaining--

	return View{
		Player:        *p,
		Cells:         s.windowLocked(p.Position),
		TimeRemaining: s.timeRemainingLocked(now),
	}, nil
}

// MineResult reports the outcome of a successful mine.
type MineResult struct {
	PointsEarned int
	View         View
}

// Mine harvests the player's current tile, awarding points and depleting
// the tile (spec §4.5).
func (s *Session) Mine(now time.Time, address string) (MineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkExpiryLocked(now)

	p, ok := s.players[normalize(address)]
	if !ok {
		return MineResult{}, ErrUnknownPlayer
	}
	if s.expired {
		return MineResult{}, ErrTimerExpired
	}
	if p.MinesRemaining <= 0 {
		return MineResult{}, ErrNoMinesRemaining
	}
	tile := s.land[p.Position.Y][p.Position.X]
	if tile == 0 {
		return MineResult{}, ErrTileDepleted
	}

	points := tilePoints(tile)
	p.Score += points
	p.MinesRemaining--
	s.land[p.Position.Y][p.Position.X] = 0

	return MineResult{
		PointsEarned: points,
		View: View{
			Player:        *p,
			Cells:         s.windowLocked(p.Position),
			TimeRemaining: s.timeRemainingLocked(now),
		},
	}, nil
}

func tilePoints(tile int) int {
	switch tile {
	case mapgen.TileStartingMarker:
		return PointsStarting
	case mapgen.TileCommon:
		return PointsCommon
	case mapgen.TileUncommon:
		return PointsUncommon
	case mapgen.TileRare:
		return PointsRare
	default:
		return PointsDepleted
	}
}

// Players returns a snapshot of every player's live stats, for /players
// and for the state machine's end-of-game check.
func (s *Session) Players() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out
}

// AllFinished implements the end-of-game condition from spec §4.5: a
// player is finished when out of mines, or out of moves while standing on
// a depleted tile. The game is finished when every player is.
func (s *Session) AllFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if !s.playerFinishedLocked(p) {
			return false
		}
	}
	return true
}

func (s *Session) playerFinishedLocked(p *Player) bool {
	if p.MinesRemaining == 0 {
		return true
	}
	tile := s.land[p.Position.Y][p.Position.X]
	return p.MovesRemaining == 0 && tile == 0
}

func normalize(address string) string {
	return strings.ToLower(address)
}
