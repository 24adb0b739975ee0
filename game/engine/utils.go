package engine

import (
	"context"
	"iter"
	"sort"
	"time"
)

// TurnRight advances the heading one step through Up→Right→Down→Left
func (h Heading) TurnRight() Heading {
	return (h + 1) % 4
}

// TurnLeft retreats the heading one step through the cycle
func (h Heading) TurnLeft() Heading {
	return (h + 3) % 4
}

// Delta returns the cell offset of one move; y grows upward
func (h Heading) Delta() (dx, dy int) {
	switch h {
	case Up:
		return 0, 1
	case Right:
		return 1, 0
	case Down:
		return 0, -1
	case Left:
		return -1, 0
	}
	return 0, 0
}

// Pacer schedules the next step of a command stream
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFunc adapts a function to the Pacer interface
type PacerFunc func(ctx context.Context) error

func (f PacerFunc) Wait(ctx context.Context) error {
	return f(ctx)
}

// NoPacer runs steps back to back, only honoring cancellation
var NoPacer Pacer = PacerFunc(func(ctx context.Context) error {
	return ctx.Err()
})

// TimerPacer waits d before each step; d <= 0 yields NoPacer
func TimerPacer(d time.Duration) Pacer {
	if d <= 0 {
		return NoPacer
	}
	return PacerFunc(func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	})
}

// CollectSteps drains a command stream, stopping at the first error
func CollectSteps(seq iter.Seq2[StepResult, error]) ([]StepResult, error) {
	var steps []StepResult
	for step, err := range seq {
		if err != nil {
			return steps, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// SortPositions orders positions bottom row first, then left to right
func SortPositions(ps []Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Y != ps[j].Y {
			return ps[i].Y < ps[j].Y
		}
		return ps[i].X < ps[j].X
	})
}

// ReachableCells counts the free cells reachable from start using moves only
func ReachableCells(size GridSize, start Position, blocked []Position) int {
	if !size.Contains(start) {
		return 0
	}
	walls := make(map[Position]bool, len(blocked))
	for _, b := range blocked {
		walls[b] = true
	}
	if walls[start] {
		return 0
	}

	seen := map[Position]bool{start: true}
	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for h := Up; h <= Left; h++ {
			next := cur.Add(h.Delta())
			if !size.Contains(next) || walls[next] || seen[next] {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return len(seen)
}
