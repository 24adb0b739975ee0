package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// Grid dimensions used by HQ layouts
	DefaultWidth  = 10
	DefaultHeight = 20

	// DefaultStepDelay paces one command per tick
	DefaultStepDelay = 300 * time.Millisecond

	// Validation constants
	MaxGridSize     = 100
	MaxCommandRunes = 4096
)

var (
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrObstacle          = errors.New("path blocked by obstacle")
	ErrNoPendingObstacle = errors.New("no pending obstacle to clear")
	ErrBusy              = errors.New("rover is busy executing commands")
	ErrStartBlocked      = errors.New("start position is blocked")
	ErrUnknownCommand    = errors.New("unknown command")
	ErrInvalidGridSize   = errors.New("invalid grid size")
	ErrCommandTooLong    = errors.New("command string too long")
)

// Position represents x,y coordinates with the origin at the bottom-left
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p translated by dx, dy
func (p Position) Add(dx, dy int) Position {
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// GridSize holds the grid dimensions
type GridSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultGridSize is the 10x20 grid HQ layouts are drawn on
var DefaultGridSize = GridSize{Width: DefaultWidth, Height: DefaultHeight}

// Contains reports whether p lies inside the grid
func (g GridSize) Contains(p Position) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Validate checks the dimensions are usable
func (g GridSize) Validate() error {
	if g.Width < 1 || g.Width > MaxGridSize || g.Height < 1 || g.Height > MaxGridSize {
		return fmt.Errorf("%w: %dx%d (each side must be between 1 and %d)", ErrInvalidGridSize, g.Width, g.Height, MaxGridSize)
	}
	return nil
}

func (g GridSize) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

// Heading is the direction the rover faces
type Heading int

const (
	Up Heading = iota
	Right
	Down
	Left
)

var headingNames = [...]string{"up", "right", "down", "left"}

func (h Heading) String() string {
	if h < Up || h > Left {
		return fmt.Sprintf("heading(%d)", int(h))
	}
	return headingNames[h]
}

// MarshalText encodes the heading as its lowercase name
func (h Heading) MarshalText() ([]byte, error) {
	if h < Up || h > Left {
		return nil, fmt.Errorf("invalid heading %d", int(h))
	}
	return []byte(headingNames[h]), nil
}

// UnmarshalText decodes a heading name
func (h *Heading) UnmarshalText(text []byte) error {
	parsed, err := ParseHeading(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHeading converts a heading name (case-insensitive) to a Heading
func ParseHeading(name string) (Heading, error) {
	for i, n := range headingNames {
		if strings.EqualFold(n, name) {
			return Heading(i), nil
		}
	}
	return Up, fmt.Errorf("invalid heading %q", name)
}

// StepKind classifies the outcome of a single command
type StepKind string

const (
	StepMoved   StepKind = "moved"
	StepTurned  StepKind = "turned"
	StepBlocked StepKind = "blocked"
	StepSkipped StepKind = "skipped"
	StepCleared StepKind = "cleared"
)

// BlockReason explains why a move was blocked
type BlockReason string

const (
	ReasonOutOfBounds BlockReason = "out_of_bounds"
	ReasonObstacle    BlockReason = "obstacle"
)

// StepResult is the observable outcome of one command
type StepResult struct {
	Index    int         `json:"idx"`
	Command  string      `json:"command"`
	Kind     StepKind    `json:"kind"`
	Position Position    `json:"position"`
	Heading  Heading     `json:"heading"`
	Reason   BlockReason `json:"reason,omitempty"`
	Cell     *Position   `json:"cell,omitempty"` // Obstacle cell for blocked steps, destroyed cell for cleared
}

// Err maps a blocked step onto ErrOutOfBounds or ErrObstacle, nil otherwise
func (r StepResult) Err() error {
	if r.Kind != StepBlocked {
		return nil
	}
	if r.Reason == ReasonObstacle {
		return fmt.Errorf("%w at %s", ErrObstacle, r.Cell)
	}
	return ErrOutOfBounds
}

func (r StepResult) String() string {
	switch r.Kind {
	case StepMoved:
		return fmt.Sprintf("#%d %s moved to %s", r.Index, r.Command, r.Position)
	case StepTurned:
		return fmt.Sprintf("#%d %s turned %s", r.Index, r.Command, r.Heading)
	case StepBlocked:
		if r.Cell != nil {
			return fmt.Sprintf("#%d %s blocked (%s at %s)", r.Index, r.Command, r.Reason, r.Cell)
		}
		return fmt.Sprintf("#%d %s blocked (%s)", r.Index, r.Command, r.Reason)
	case StepCleared:
		return fmt.Sprintf("laser cleared %s", r.Cell)
	default:
		return fmt.Sprintf("#%d %q skipped", r.Index, r.Command)
	}
}

// RunStatus is the state of the command interpreter
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusAborted   RunStatus = "aborted"
	StatusCancelled RunStatus = "cancelled"
)

// RoverState is a snapshot of the rover and its grid
type RoverState struct {
	Grid            GridSize   `json:"grid"`
	Position        Position   `json:"position"`
	Heading         Heading    `json:"heading"`
	Blocked         []Position `json:"blocked"`
	PendingObstacle *Position  `json:"pending_obstacle,omitempty"`
	Status          RunStatus  `json:"status"`
}

// CanFireLaser reports whether the last abort left a boulder to destroy
func (s RoverState) CanFireLaser() bool {
	return s.PendingObstacle != nil && s.Status != StatusRunning
}
