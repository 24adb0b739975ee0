package engine

import (
	"context"
	"errors"
	"testing"
)

func newTestSimulator(t *testing.T, start Position, blocked ...Position) *GridSimulator {
	t.Helper()
	sim := NewSimulator(WithPacer(NoPacer))
	if err := sim.SetLayout(start, blocked); err != nil {
		t.Fatalf("Failed to set layout: %v", err)
	}
	return sim
}

func runCommands(t *testing.T, sim *GridSimulator, commands string) []StepResult {
	t.Helper()
	steps, err := CollectSteps(sim.ProcessCommands(context.Background(), commands))
	if err != nil {
		t.Fatalf("ProcessCommands(%q) returned error: %v", commands, err)
	}
	return steps
}

func TestProcessCommands_ObstacleThenLaser(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{0, 1})

	steps := runCommands(t, sim, "M")
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(steps))
	}
	step := steps[0]
	if step.Kind != StepBlocked || step.Reason != ReasonObstacle {
		t.Fatalf("Expected blocked by obstacle, got %s/%s", step.Kind, step.Reason)
	}
	if step.Cell == nil || *step.Cell != (Position{0, 1}) {
		t.Errorf("Expected blocked cell (0,1), got %v", step.Cell)
	}
	if pos := sim.State().Position; pos != (Position{0, 0}) {
		t.Errorf("Expected rover to stay at (0,0), got %s", pos)
	}
	if sim.Status() != StatusAborted {
		t.Errorf("Expected aborted status, got %s", sim.Status())
	}
	if !sim.IsBlocked(Position{0, 1}) {
		t.Error("Expected cell to stay blocked until the laser fires")
	}

	cleared, err := sim.FireLaser()
	if err != nil {
		t.Fatalf("FireLaser returned error: %v", err)
	}
	if cleared != (Position{0, 1}) {
		t.Errorf("Expected laser to clear (0,1), got %s", cleared)
	}
	if sim.IsBlocked(Position{0, 1}) {
		t.Error("Expected cell to be free after the laser")
	}

	steps = runCommands(t, sim, "M")
	if len(steps) != 1 || steps[0].Kind != StepMoved {
		t.Fatalf("Expected a single move after clearing, got %v", steps)
	}
	if steps[0].Position != (Position{0, 1}) {
		t.Errorf("Expected rover at (0,1), got %s", steps[0].Position)
	}
	if sim.Status() != StatusCompleted {
		t.Errorf("Expected completed status, got %s", sim.Status())
	}
}

func TestProcessCommands_OutOfBoundsTop(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 19})

	steps := runCommands(t, sim, "M")
	if len(steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(steps))
	}
	if steps[0].Kind != StepBlocked || steps[0].Reason != ReasonOutOfBounds {
		t.Errorf("Expected blocked out of bounds, got %s/%s", steps[0].Kind, steps[0].Reason)
	}
	if steps[0].Cell != nil {
		t.Errorf("Expected no cell for a boundary block, got %s", steps[0].Cell)
	}
	if !errors.Is(steps[0].Err(), ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds from step, got %v", steps[0].Err())
	}
	if pos := sim.State().Position; pos != (Position{0, 19}) {
		t.Errorf("Expected position unchanged, got %s", pos)
	}

	if _, err := sim.FireLaser(); !errors.Is(err, ErrNoPendingObstacle) {
		t.Errorf("Expected ErrNoPendingObstacle, got %v", err)
	}
}

func TestProcessCommands_EveryEdge(t *testing.T) {
	tests := []struct {
		name     string
		start    Position
		commands string
	}{
		{"top", Position{4, 19}, "M"},
		{"right", Position{9, 7}, "RM"},
		{"bottom", Position{4, 0}, "RRM"},
		{"left", Position{0, 7}, "LM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, tt.start)
			steps := runCommands(t, sim, tt.commands)
			last := steps[len(steps)-1]
			if last.Kind != StepBlocked || last.Reason != ReasonOutOfBounds {
				t.Errorf("Expected out-of-bounds block, got %s/%s", last.Kind, last.Reason)
			}
			if sim.State().Position != tt.start {
				t.Errorf("Expected position %s unchanged, got %s", tt.start, sim.State().Position)
			}
		})
	}
}

func TestProcessCommands_InteriorMoves(t *testing.T) {
	start := Position{5, 10}

	tests := []struct {
		name     string
		commands string
		expected Position
		heading  Heading
	}{
		{"up", "M", Position{5, 11}, Up},
		{"right", "RM", Position{6, 10}, Right},
		{"down", "RRM", Position{5, 9}, Down},
		{"left", "LM", Position{4, 10}, Left},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newTestSimulator(t, start)
			steps := runCommands(t, sim, tt.commands)
			last := steps[len(steps)-1]
			if last.Kind != StepMoved {
				t.Fatalf("Expected moved, got %s", last.Kind)
			}
			if last.Position != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, last.Position)
			}
			if last.Heading != tt.heading {
				t.Errorf("Expected heading %s, got %s", tt.heading, last.Heading)
			}
			if d := ManhattanDistance(start, last.Position); d != 1 {
				t.Errorf("Expected exactly one cell moved, got distance %d", d)
			}
		})
	}
}

func TestProcessCommands_FullRotation(t *testing.T) {
	sim := newTestSimulator(t, Position{3, 3})

	steps := runCommands(t, sim, "RRRR")
	if len(steps) != 4 {
		t.Fatalf("Expected 4 steps, got %d", len(steps))
	}
	want := []Heading{Right, Down, Left, Up}
	for i, step := range steps {
		if step.Kind != StepTurned {
			t.Errorf("Step %d: expected turned, got %s", i, step.Kind)
		}
		if step.Heading != want[i] {
			t.Errorf("Step %d: expected heading %s, got %s", i, want[i], step.Heading)
		}
	}
	if sim.State().Heading != Up {
		t.Errorf("Expected to end facing up, got %s", sim.State().Heading)
	}
}

func TestProcessCommands_UnknownCommandIsNoOp(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})

	steps := runCommands(t, sim, "MXR")
	if len(steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(steps))
	}
	if steps[0].Kind != StepMoved || steps[0].Position != (Position{0, 1}) {
		t.Errorf("Expected move to (0,1), got %s at %s", steps[0].Kind, steps[0].Position)
	}
	if steps[1].Kind != StepSkipped || steps[1].Command != "X" {
		t.Errorf("Expected X to be skipped, got %s %q", steps[1].Kind, steps[1].Command)
	}
	if steps[1].Position != (Position{0, 1}) || steps[1].Heading != Up {
		t.Error("Expected skipped step to leave state unchanged")
	}
	if steps[2].Kind != StepTurned || steps[2].Heading != Right {
		t.Errorf("Expected turn to right, got %s %s", steps[2].Kind, steps[2].Heading)
	}
	if sim.Status() != StatusCompleted {
		t.Errorf("Expected completed status, got %s", sim.Status())
	}
}

func TestProcessCommands_AbortStopsRemainingCommands(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{0, 2})

	steps := runCommands(t, sim, "MMRMMM")
	if len(steps) != 2 {
		t.Fatalf("Expected stream to stop after the blocked move (2 steps), got %d", len(steps))
	}
	if steps[1].Kind != StepBlocked {
		t.Errorf("Expected second step to be blocked, got %s", steps[1].Kind)
	}
	state := sim.State()
	if state.Heading != Up {
		t.Errorf("Expected the R after the block never to run, heading is %s", state.Heading)
	}
	if state.Position != (Position{0, 1}) {
		t.Errorf("Expected rover at (0,1), got %s", state.Position)
	}
	if state.PendingObstacle == nil || *state.PendingObstacle != (Position{0, 2}) {
		t.Errorf("Expected pending obstacle (0,2), got %v", state.PendingObstacle)
	}
}

func TestProcessCommands_OutOfBoundsAfterObstacleClearsPending(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 18}, Position{1, 18})

	runCommands(t, sim, "RM")
	if sim.State().PendingObstacle == nil {
		t.Fatal("Expected pending obstacle after hitting boulder")
	}

	// New stream: face up and run into the top edge
	runCommands(t, sim, "LMM")
	if sim.State().PendingObstacle != nil {
		t.Error("Expected pending obstacle cleared by the later boundary block")
	}
	if _, err := sim.FireLaser(); !errors.Is(err, ErrNoPendingObstacle) {
		t.Errorf("Expected ErrNoPendingObstacle, got %v", err)
	}
	if !sim.IsBlocked(Position{1, 18}) {
		t.Error("Expected boulder to remain")
	}
}

func TestProcessCommands_NewStreamRetractsLaser(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{0, 1})

	runCommands(t, sim, "M")
	runCommands(t, sim, "R")
	if _, err := sim.FireLaser(); !errors.Is(err, ErrNoPendingObstacle) {
		t.Errorf("Expected laser to be retracted by the new stream, got %v", err)
	}
}

func TestProcessCommands_EmptyCommands(t *testing.T) {
	sim := newTestSimulator(t, Position{2, 2})

	steps := runCommands(t, sim, "")
	if len(steps) != 0 {
		t.Errorf("Expected no steps, got %d", len(steps))
	}
	if sim.Status() != StatusCompleted {
		t.Errorf("Expected completed status, got %s", sim.Status())
	}
}

func TestProcessCommands_Restartable(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})
	seq := sim.ProcessCommands(context.Background(), "M")

	for range 2 {
		if _, err := CollectSteps(seq); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if pos := sim.State().Position; pos != (Position{0, 2}) {
		t.Errorf("Expected each range to start a fresh stream, got %s", pos)
	}
}

func TestProcessCommands_Lazy(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})
	_ = sim.ProcessCommands(context.Background(), "MMM")

	if pos := sim.State().Position; pos != (Position{0, 0}) {
		t.Errorf("Expected no steps before iteration, got position %s", pos)
	}
	if sim.Status() != StatusIdle {
		t.Errorf("Expected idle status, got %s", sim.Status())
	}
}

func TestProcessCommands_BreakCancels(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})

	for step, err := range sim.ProcessCommands(context.Background(), "MMMM") {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if step.Index == 1 {
			break
		}
	}

	if pos := sim.State().Position; pos != (Position{0, 2}) {
		t.Errorf("Expected only executed steps to apply, got %s", pos)
	}
	if sim.Status() != StatusCancelled {
		t.Errorf("Expected cancelled status, got %s", sim.Status())
	}

	// The simulator accepts a new stream after being dropped
	steps := runCommands(t, sim, "M")
	if len(steps) != 1 || steps[0].Position != (Position{0, 3}) {
		t.Errorf("Expected new stream to continue from (0,2), got %v", steps)
	}
}

func TestProcessCommands_BreakOnLastStepCompletes(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})

	for step, err := range sim.ProcessCommands(context.Background(), "MM") {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if step.Index == 1 {
			break
		}
	}

	if sim.Status() != StatusCompleted {
		t.Errorf("Expected completed status, got %s", sim.Status())
	}
	if pos := sim.State().Position; pos != (Position{0, 2}) {
		t.Errorf("Expected rover at (0,2), got %s", pos)
	}
}

func TestProcessCommands_ContextCancel(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var gotErr error
	executed := 0
	for step, err := range sim.ProcessCommands(ctx, "MMMM") {
		if err != nil {
			gotErr = err
			break
		}
		executed++
		if step.Index == 0 {
			cancel()
		}
	}

	if !errors.Is(gotErr, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", gotErr)
	}
	if executed != 1 {
		t.Errorf("Expected 1 executed step, got %d", executed)
	}
	if sim.Status() != StatusCancelled {
		t.Errorf("Expected cancelled status, got %s", sim.Status())
	}
}

func TestProcessCommands_BusyWhileRunning(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{5, 5})

	var nestedErr, laserErr, layoutErr error
	for _, err := range sim.ProcessCommands(context.Background(), "MR") {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		_, nestedErr = CollectSteps(sim.ProcessCommands(context.Background(), "M"))
		_, laserErr = sim.FireLaser()
		layoutErr = sim.SetLayout(Position{1, 1}, nil)

		if sim.Status() != StatusRunning {
			t.Errorf("Expected running status inside the loop, got %s", sim.Status())
		}
		break
	}

	if !errors.Is(nestedErr, ErrBusy) {
		t.Errorf("Expected nested stream to fail with ErrBusy, got %v", nestedErr)
	}
	if !errors.Is(laserErr, ErrBusy) {
		t.Errorf("Expected laser to fail with ErrBusy, got %v", laserErr)
	}
	if !errors.Is(layoutErr, ErrBusy) {
		t.Errorf("Expected SetLayout to fail with ErrBusy, got %v", layoutErr)
	}
	if pos := sim.State().Position; pos != (Position{0, 1}) {
		t.Errorf("Expected nested stream to have no effect, got %s", pos)
	}
}

func TestProcessCommands_ResetWhileRunningIsIgnored(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{0, 2})

	var kinds []StepKind
	for step, err := range sim.ProcessCommands(context.Background(), "MMM") {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		kinds = append(kinds, step.Kind)
		if step.Index == 0 {
			sim.Reset()
		}
	}

	if len(kinds) != 2 || kinds[0] != StepMoved || kinds[1] != StepBlocked {
		t.Errorf("Expected [moved blocked], got %v", kinds)
	}
	state := sim.State()
	if state.Position != (Position{0, 1}) {
		t.Errorf("Expected rover stopped at (0,1), got %s", state.Position)
	}
	if !sim.IsBlocked(Position{0, 2}) {
		t.Error("Expected boulder at (0,2) to survive Reset during the run")
	}
	if state.PendingObstacle == nil || *state.PendingObstacle != (Position{0, 2}) {
		t.Errorf("Expected pending obstacle (0,2), got %v", state.PendingObstacle)
	}
}

func TestLoad_BusyKeepsLayout(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{5, 5})

	var loadErr error
	for _, err := range sim.ProcessCommands(context.Background(), "RM") {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		loadErr = sim.Load(Position{3, 3}, nil)
	}

	if !errors.Is(loadErr, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", loadErr)
	}
	state := sim.State()
	if state.Position != (Position{1, 0}) || state.Heading != Right {
		t.Errorf("Expected rover at (1,0) facing right, got %s facing %s", state.Position, state.Heading)
	}
	if !sim.IsBlocked(Position{5, 5}) {
		t.Error("Expected old layout to stay in place")
	}
}

func TestProcessCommands_PacerCalledPerStep(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0})

	calls := 0
	pacer := PacerFunc(func(ctx context.Context) error {
		calls++
		return nil
	})

	steps, err := CollectSteps(sim.ProcessCommandsWithPacer(context.Background(), "MXRL", pacer))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != len(steps) || calls != 4 {
		t.Errorf("Expected pacer to run once per rune (4), got %d for %d steps", calls, len(steps))
	}
}

func TestProcessCommands_PacerStopsBeforeBlockedStepIsPaced(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 19})

	calls := 0
	pacer := PacerFunc(func(ctx context.Context) error {
		calls++
		return nil
	})

	if _, err := CollectSteps(sim.ProcessCommandsWithPacer(context.Background(), "MMMM", pacer)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no pacing after abort, got %d waits", calls)
	}
}

func TestCanMoveTo(t *testing.T) {
	sim := newTestSimulator(t, Position{0, 0}, Position{3, 3})

	tests := []struct {
		name     string
		pos      Position
		expected bool
	}{
		{"free cell", Position{1, 1}, true},
		{"boulder", Position{3, 3}, false},
		{"out of bounds negative", Position{-1, 0}, false},
		{"out of bounds positive", Position{0, 20}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sim.CanMoveTo(tt.pos); got != tt.expected {
				t.Errorf("CanMoveTo(%s) = %v, want %v", tt.pos, got, tt.expected)
			}
		})
	}
}
