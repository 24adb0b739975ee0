// Package hq talks to mission control.
//
// HQ is a single endpoint that takes a multipart form with the rover's id
// and answers with a layout: start point, boulders ("weirs") and a command
// string. Client implements service.LayoutProvider so a rover session can
// fetch its next mission on demand.
//
// Usage:
//
//	provider := hq.NewClient(settings.HQ.URL, hq.WithRoverID(settings.HQ.RoverID))
//	svc := service.NewRoverService(sessions, layouts, service.WithProvider(provider))
package hq
