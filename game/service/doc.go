// Package service provides the business logic layer for the Mars rover server.
//
// The service package implements:
//   - Multi-session rover management
//   - Layout presets and HQ layout fetching
//   - Synchronous and paced background command runs
//   - Laser shots and rover resets
//   - Run journaling and step history
//
// Core Interfaces:
//
// RoverService is the main service interface providing high-level mission
// operations. SessionManager handles session creation, retrieval and
// lifecycle. LayoutStore loads layout presets. Journal records runs and
// serves history. LayoutProvider fetches layouts from HQ. EventPublisher
// receives step events as they happen, which is how the WebSocket hub streams
// a paced run to observers.
//
// Architecture:
//
// The service layer sits between the transports (HTTP/WebSocket/MCP) and the
// rover simulator. Each session owns its own engine.GridSimulator. The
// simulator enforces single-stream execution itself, so the service never
// holds its own lock while a stream is running.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	layoutMgr, _ := config.NewManager("layouts")
//	roverService := service.NewRoverService(sessionMgr, layoutMgr,
//		service.WithJournal(j),
//		service.WithPublisher(hub),
//	)
//
//	info, err := roverService.CreateSession(ctx, "boulder_field")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Run the layout's own command string
//	result, err := roverService.Execute(ctx, info.ID, "", service.ExecOptions{})
//	if result.CanFireLaser {
//		roverService.FireLaser(ctx, info.ID)
//	}
//
// Runs:
//
// A synchronous run executes without pacing and returns every step. An
// asynchronous run (ExecOptions.Async) is paced by the configured step delay,
// publishes one EventStep per executed rune and finishes with
// EventRunFinished. Cancel stops it; the simulator then reports the run as
// cancelled and keeps only the steps already executed.
package service
