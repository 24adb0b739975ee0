// Package engine provides the rover simulator at the heart of the mission server.
//
// The engine package implements:
//   - A fixed-size grid with blocked cells (boulders)
//   - Rover heading and the Up→Right→Down→Left turn cycle
//   - A command interpreter for M (move), R (turn right) and L (turn left)
//   - Boundary and obstacle collision, with abort-on-block semantics
//   - A laser that destroys the boulder that caused the last abort
//
// Core Types:
//
// The Simulator interface defines the contract for rover operations and is
// implemented by GridSimulator. RoverState is a read-only snapshot of the
// rover and grid, and StepResult describes the outcome of a single command.
//
// Usage:
//
//	sim := engine.NewSimulator(engine.WithStepDelay(0))
//	if err := sim.SetLayout(engine.Position{X: 0, Y: 0}, []engine.Position{{X: 0, Y: 1}}); err != nil {
//		log.Fatal(err)
//	}
//
//	for step, err := range sim.ProcessCommands(ctx, "MRM") {
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(step)
//	}
//
//	if sim.Status() == engine.StatusAborted {
//		cell, err := sim.FireLaser()
//		...
//	}
//
// Command Streams:
//
// ProcessCommands returns a lazy sequence producing one StepResult per rune of
// the command string. Each step waits on a Pacer first (300ms by default) so a
// front end can animate the rover; tests use NoPacer. A blocked move ends the
// stream: the remaining commands are never consumed. Breaking out of the loop
// or cancelling the context drops the stream, leaving only the side effects of
// the steps already executed.
//
// Concurrency:
//
// A GridSimulator accepts one command stream at a time. Starting another
// stream, firing the laser or replacing the layout while a stream is in
// flight fails with ErrBusy. State snapshots may be taken at any time,
// including from inside the loop body.
package engine
