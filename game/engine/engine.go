package engine

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"
)

// Simulator provides the main interface for rover operations
type Simulator interface {
	// Layout management
	Reset()
	SetLayout(start Position, blocked []Position) error
	Load(start Position, blocked []Position) error
	Restore(state RoverState) error

	// Command execution
	ProcessCommands(ctx context.Context, commands string) iter.Seq2[StepResult, error]
	ProcessCommandsWithPacer(ctx context.Context, commands string, pacer Pacer) iter.Seq2[StepResult, error]
	FireLaser() (Position, error)

	// State
	State() RoverState
	Status() RunStatus
	IsBlocked(p Position) bool
	GridSize() GridSize
}

// GridSimulator implements the Simulator interface
type GridSimulator struct {
	mu sync.Mutex

	size  GridSize
	pacer Pacer

	position Position
	heading  Heading
	blocked  map[Position]struct{}
	pending  *Position
	status   RunStatus
	running  bool
}

// Option configures a GridSimulator
type Option func(*GridSimulator)

// WithGridSize overrides the default 10x20 grid
func WithGridSize(size GridSize) Option {
	return func(s *GridSimulator) {
		s.size = size
	}
}

// WithStepDelay paces each step with a timer of d
func WithStepDelay(d time.Duration) Option {
	return func(s *GridSimulator) {
		s.pacer = TimerPacer(d)
	}
}

// WithPacer installs a custom step scheduler
func WithPacer(p Pacer) Option {
	return func(s *GridSimulator) {
		if p == nil {
			p = NoPacer
		}
		s.pacer = p
	}
}

// NewSimulator creates a simulator on an empty grid with the rover at the origin facing up
func NewSimulator(opts ...Option) *GridSimulator {
	s := &GridSimulator{
		size:    DefaultGridSize,
		pacer:   TimerPacer(DefaultStepDelay),
		blocked: make(map[Position]struct{}),
		status:  StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSimulatorWithSize creates a simulator after validating the grid dimensions
func NewSimulatorWithSize(size GridSize, opts ...Option) (*GridSimulator, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	return NewSimulator(append([]Option{WithGridSize(size)}, opts...)...), nil
}

// Reset clears all blocked cells, faces the rover up and drops any pending obstacle.
// The rover position is left for the next SetLayout to replace. Reset does
// nothing while a stream is in flight.
func (s *GridSimulator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.reset()
}

func (s *GridSimulator) reset() {
	s.blocked = make(map[Position]struct{})
	s.heading = Up
	s.pending = nil
	s.status = StatusIdle
}

// Load replaces the grid with a fresh layout in one step: Reset followed by
// SetLayout. On error nothing changes.
func (s *GridSimulator) Load(start Position, blocked []Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrBusy
	}
	if err := s.checkLayout(start, blocked); err != nil {
		return err
	}

	s.reset()
	s.position = start
	for _, b := range blocked {
		s.blocked[b] = struct{}{}
	}
	return nil
}

// SetLayout places the rover at start and marks every blocked cell as occupied.
// All coordinates are checked before anything changes.
func (s *GridSimulator) SetLayout(start Position, blocked []Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrBusy
	}
	if err := s.checkLayout(start, blocked); err != nil {
		return err
	}
	if _, ok := s.blocked[start]; ok {
		return fmt.Errorf("%w: %s", ErrStartBlocked, start)
	}

	s.position = start
	for _, b := range blocked {
		s.blocked[b] = struct{}{}
	}
	return nil
}

// Restore replaces the whole simulator state with a previously captured snapshot
func (s *GridSimulator) Restore(state RoverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrBusy
	}
	if state.Grid != (GridSize{}) && state.Grid != s.size {
		return fmt.Errorf("%w: snapshot grid %s does not match simulator grid %s", ErrInvalidGridSize, state.Grid, s.size)
	}
	if state.Heading < Up || state.Heading > Left {
		return fmt.Errorf("invalid heading %d", int(state.Heading))
	}
	if err := s.checkLayout(state.Position, state.Blocked); err != nil {
		return err
	}

	var pending *Position
	if state.PendingObstacle != nil {
		p := *state.PendingObstacle
		if !s.size.Contains(p) {
			return fmt.Errorf("%w: pending obstacle %s", ErrOutOfBounds, p)
		}
		if p == state.Position {
			return fmt.Errorf("%w: pending obstacle %s", ErrStartBlocked, p)
		}
		pending = &p
	}

	s.blocked = make(map[Position]struct{}, len(state.Blocked))
	for _, b := range state.Blocked {
		s.blocked[b] = struct{}{}
	}
	if pending != nil {
		s.blocked[*pending] = struct{}{}
	}
	s.position = state.Position
	s.heading = state.Heading
	s.pending = pending

	switch state.Status {
	case "":
		s.status = StatusIdle
	case StatusRunning:
		// The stream that was running did not survive the snapshot
		s.status = StatusCancelled
	default:
		s.status = state.Status
	}
	return nil
}

// FireLaser destroys the boulder that blocked the last move and returns its cell
func (s *GridSimulator) FireLaser() (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return Position{}, ErrBusy
	}
	if s.pending == nil {
		return Position{}, ErrNoPendingObstacle
	}

	cell := *s.pending
	delete(s.blocked, cell)
	s.pending = nil
	return cell, nil
}

// State returns a snapshot of the rover and grid
func (s *GridSimulator) State() RoverState {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked := make([]Position, 0, len(s.blocked))
	for p := range s.blocked {
		blocked = append(blocked, p)
	}
	SortPositions(blocked)

	state := RoverState{
		Grid:     s.size,
		Position: s.position,
		Heading:  s.heading,
		Blocked:  blocked,
		Status:   s.status,
	}
	if s.pending != nil {
		p := *s.pending
		state.PendingObstacle = &p
	}
	return state
}

// Status returns the interpreter state
func (s *GridSimulator) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsBlocked reports whether p is an occupied cell
func (s *GridSimulator) IsBlocked(p Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[p]
	return ok
}

// BlockedCells returns the occupied cells in row order
func (s *GridSimulator) BlockedCells() []Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocked := make([]Position, 0, len(s.blocked))
	for p := range s.blocked {
		blocked = append(blocked, p)
	}
	SortPositions(blocked)
	return blocked
}

// GridSize returns the grid dimensions
func (s *GridSimulator) GridSize() GridSize {
	return s.size
}

// checkLayout validates coordinates against the grid; callers hold s.mu
func (s *GridSimulator) checkLayout(start Position, blocked []Position) error {
	if !s.size.Contains(start) {
		return fmt.Errorf("%w: start %s outside %s grid", ErrOutOfBounds, start, s.size)
	}
	for i, b := range blocked {
		if !s.size.Contains(b) {
			return fmt.Errorf("%w: blocked cell %d at %s outside %s grid", ErrOutOfBounds, i, b, s.size)
		}
		if b == start {
			return fmt.Errorf("%w: %s", ErrStartBlocked, b)
		}
	}
	return nil
}
