// Package mcp exposes the rover REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one HTTP request
// against the REST server, and the JSON reply is rendered as text an agent
// can read, including an ASCII map of the grid.
//
// MCP Tools:
//   - create_session, list_sessions: manage rover sessions
//   - rover_state: position, heading, boulders and the map
//   - load_layout, fetch_layout: place the rover on a custom or HQ layout
//   - run_commands: run an M/R/L command string
//   - fire_laser: destroy the boulder that stopped the last run
//   - reset_rover: restore the session's layout
//   - run_history: paginated journal of executed steps
//   - list_layouts, rover_instructions: presets and rules
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
