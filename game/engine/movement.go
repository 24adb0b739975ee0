package engine

import (
	"context"
	"iter"
)

// CanMoveTo checks if the rover can enter the specified cell
func (s *GridSimulator) CanMoveTo(p Position) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canMoveTo(p)
}

func (s *GridSimulator) canMoveTo(p Position) bool {
	if !s.size.Contains(p) {
		return false
	}
	_, blocked := s.blocked[p]
	return !blocked
}

// ProcessCommands executes commands one rune per step using the configured pacer
func (s *GridSimulator) ProcessCommands(ctx context.Context, commands string) iter.Seq2[StepResult, error] {
	return s.ProcessCommandsWithPacer(ctx, commands, s.pacer)
}

// ProcessCommandsWithPacer executes commands with an explicit pacer.
//
// The returned sequence is lazy: nothing happens until it is ranged over, and
// ranging over it again starts a fresh stream over the same commands from the
// rover's current state. A blocked move is yielded and ends the stream. A
// cancelled context yields ctx.Err() and ends it. Breaking out of the loop
// drops the remaining commands; breaking on the last step still completes.
func (s *GridSimulator) ProcessCommandsWithPacer(ctx context.Context, commands string, pacer Pacer) iter.Seq2[StepResult, error] {
	if pacer == nil {
		pacer = NoPacer
	}
	return func(yield func(StepResult, error) bool) {
		cmds, err := ParseCommands(commands)
		if err != nil {
			yield(StepResult{}, err)
			return
		}

		if !s.begin() {
			yield(StepResult{}, ErrBusy)
			return
		}
		status := StatusCancelled
		defer func() { s.finish(status) }()

		for i, cmd := range cmds {
			if err := pacer.Wait(ctx); err != nil {
				yield(StepResult{}, err)
				return
			}

			result := s.step(i, cmd)
			if result.Kind == StepBlocked {
				status = StatusAborted
				yield(result, nil)
				return
			}
			if i == len(cmds)-1 {
				status = StatusCompleted
			}
			if !yield(result, nil) {
				return
			}
		}
		status = StatusCompleted
	}
}

// begin marks a stream as in flight; a new stream retracts any pending laser target
func (s *GridSimulator) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return false
	}
	s.running = true
	s.status = StatusRunning
	s.pending = nil
	return true
}

func (s *GridSimulator) finish(status RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.status = status
}

// step applies a single command and reports its outcome
func (s *GridSimulator) step(idx int, cmd Command) StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := StepResult{Index: idx, Command: cmd.String()}

	switch cmd {
	case CommandMove:
		target := s.position.Add(s.heading.Delta())
		switch {
		case !s.size.Contains(target):
			result.Kind = StepBlocked
			result.Reason = ReasonOutOfBounds
			s.pending = nil
		case !s.canMoveTo(target):
			cell := target
			result.Kind = StepBlocked
			result.Reason = ReasonObstacle
			result.Cell = &cell
			s.pending = &target
		default:
			s.position = target
			s.pending = nil
			result.Kind = StepMoved
		}

	case CommandRight:
		s.heading = s.heading.TurnRight()
		result.Kind = StepTurned

	case CommandLeft:
		s.heading = s.heading.TurnLeft()
		result.Kind = StepTurned

	default:
		result.Kind = StepSkipped
	}

	result.Position = s.position
	result.Heading = s.heading
	return result
}
