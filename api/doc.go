// Package api provides the HTTP REST API for the rover mission server.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session ({"layout_id": "boulder_field"}, optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Session info with rover state and layout
//   - DELETE /api/sessions/{id} - Delete a session
//
// Rover:
//   - GET /api/sessions/{id}/state - Rover state
//   - POST /api/sessions/{id}/layout - Place the rover on an HQ-shaped layout
//   - POST /api/sessions/{id}/fetch - Ask HQ for a new layout
//   - POST /api/sessions/{id}/commands - Run a command string
//   - POST /api/sessions/{id}/cancel - Cancel an async run
//   - POST /api/sessions/{id}/laser - Destroy the boulder that stopped the last run
//   - POST /api/sessions/{id}/reset - Put the rover back on its layout
//   - GET /api/sessions/{id}/history - Journaled steps (?page=&limit=&order=&run_id=)
//
// Layout presets:
//   - GET /api/layouts - List presets
//   - GET /api/layouts/{name} - One preset
//   - POST /api/layouts - Save a preset (?id= defaults to the layout name)
//
// Other:
//   - GET /api/health
//   - GET /ws?session={id} - WebSocket event stream (see transport/websocket)
//
// A layout body has the HQ payload shape:
//
//	{"start_point": {"x": 0, "y": 0}, "weirs": [{"x": 0, "y": 1}], "command": "MRML"}
//
// A command body:
//
//	{
//	  "commands": "MRML",  // empty runs the layout's own command
//	  "async": false,      // true streams steps over /ws and returns 202
//	  "strict": false,     // true rejects runes other than M, R and L
//	  "delay": "300ms"     // async pacing
//	}
//
// Errors are JSON objects with an "error" field. Busy rovers and laser
// requests without a pending boulder return 409. Out-of-grid layouts and
// malformed commands return 400. Unknown sessions and presets return 404.
// HQ failures return 502.
//
// Responses under /api are gzip-compressed when the client accepts it.
package api
