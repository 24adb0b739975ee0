// Package websocket streams rover events to browser and agent clients.
//
// A single Hub goroutine owns the subscriber table. Clients subscribe to one
// session when they connect (/ws?session=ab12) and receive every event the
// service publishes for it, one JSON object per frame:
//
//	{"session_id":"ab12","event":"step","step":{"idx":0,"command":"M","kind":"moved",...}}
//	{"session_id":"ab12","event":"run_finished","result":{...},"state":{...}}
//	{"session_id":"ab12","event":"cleared","step":{"kind":"cleared","cell":{"x":0,"y":1}}}
//
// The laser is available after a run_finished whose state carries a
// pending_obstacle, and retracted by the next cleared or step event.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//	defer hub.Stop()
//
//	svc := service.NewRoverService(sessions, layouts, service.WithPublisher(hub))
//
// Clients that fall behind by more than 256 events are disconnected.
package websocket
