package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
	"github.com/wricardo/mcp-training/marsrover/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Mars Rover Mission Control",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Mars Rover Mission Control - MCP Interface

This is a thin client that proxies all requests to the REST API server.

MISSION:
A rover sits on a 10x20 grid (x to the right, y up, origin bottom-left).
HQ sends a start point, a list of boulders and a command string of M (move
forward), R (turn right) and L (turn left). Any other character is skipped.
A move into the grid edge or a boulder stops the whole command string. If a
boulder stopped the rover, fire_laser destroys that boulder.

AVAILABLE TOOLS:
- create_session: Start a rover on a layout preset
- list_sessions: List active rovers
- rover_state: Position, heading, boulders and a map
- load_layout: Place the rover on a custom layout
- fetch_layout: Ask HQ for a new layout
- run_commands: Run a command string (empty runs the layout's own command)
- fire_laser: Destroy the boulder that stopped the last run
- reset_rover: Put the rover back on its layout
- run_history: Journaled steps from past runs
- list_layouts: List layout presets
- rover_instructions: Full rules and strategy notes

NOTE: The 'intent' parameter on run_commands serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new rover session on a layout preset",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"layout_id": map[string]any{
					"type":        "string",
					"description": "Layout preset to start on (optional, see list_layouts)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active rover sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "rover_state",
		Description: "Get the rover position, heading, boulders and a map of the grid",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleRoverState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "load_layout",
		Description: "Reset the rover onto a custom layout",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"start_x":    map[string]any{"type": "integer", "description": "Start column"},
				"start_y":    map[string]any{"type": "integer", "description": "Start row"},
				"weirs": map[string]any{
					"type":        "array",
					"description": "Boulder cells",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"x": map[string]any{"type": "integer"},
							"y": map[string]any{"type": "integer"},
						},
						"required": []string{"x", "y"},
					},
				},
				"command": map[string]any{"type": "string", "description": "Command string stored with the layout"},
			},
			Required: []string{"session_id", "start_x", "start_y"},
		},
	}, c.handleLoadLayout)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "fetch_layout",
		Description: "Contact HQ for a new layout and place the rover on it",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleFetchLayout)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_commands",
		Description: "Run a command string of M, R and L. Stops at the first blocked move.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"commands": map[string]any{
					"type":        "string",
					"description": "Commands to run, e.g. MMRML. Empty runs the layout's command.",
				},
				"strict": map[string]any{
					"type":        "boolean",
					"description": "Reject characters other than M, R and L instead of skipping them",
				},
				"async": map[string]any{
					"type":        "boolean",
					"description": "Drive at rover speed in the background; watch the steps over the WebSocket stream",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Brief explanation of the intent behind these commands (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunCommands)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "fire_laser",
		Description: "Destroy the boulder that stopped the last run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleFireLaser)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_rover",
		Description: "Put the rover back on its layout, restoring every boulder",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_history",
		Description: "View journaled steps with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"page":       map[string]any{"type": "integer", "description": "Page number (default 1)"},
				"limit":      map[string]any{"type": "integer", "description": "Steps per page (default 20, max 100)"},
				"order": map[string]any{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first (default desc)",
				},
				"run_id": map[string]any{"type": "integer", "description": "Only steps of this run"},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_layouts",
		Description: "List available layout presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListLayouts)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "rover_instructions",
		Description: "Get the full rover rules and strategy notes",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		args = map[string]any{}
	}
	return args
}

func sessionPath(args map[string]any, suffix string) string {
	sessionID, _ := args["session_id"].(string)
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	body := map[string]any{}
	if layoutID, ok := args["layout_id"].(string); ok && layoutID != "" {
		body["layout_id"] = layoutID
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\nLayout: %s\n\n%s",
		info.ID, info.LayoutID, formatRoverState(&info.State, info.Layout))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Layout: %s, Rover: %s facing %s, Status: %s, Created: %s)\n",
			s.ID, s.LayoutID, s.State.Position, s.State.Heading, s.State.Status, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleRoverState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(arguments(request), ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatRoverState(&info.State, info.Layout)), nil
}

func (c *Client) handleLoadLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	l := layout.Layout{
		StartPoint: engine.Position{X: intArg(args, "start_x"), Y: intArg(args, "start_y")},
		Weirs:      []engine.Position{},
	}
	l.Command, _ = args["command"].(string)
	if raw, ok := args["weirs"].([]any); ok {
		for _, w := range raw {
			cell, ok := w.(map[string]any)
			if !ok {
				return mcp.NewToolResultError("weirs must be objects with x and y"), nil
			}
			l.Weirs = append(l.Weirs, engine.Position{X: intArg(cell, "x"), Y: intArg(cell, "y")})
		}
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/layout"), l, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(service.MessageLayoutReady + "\n\n" + formatRoverState(&info.State, info.Layout)), nil
}

func (c *Client) handleFetchLayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/fetch"), nil, &info); err != nil {
		return mcp.NewToolResultError(service.MessageHQFailed + " " + err.Error()), nil
	}
	return mcp.NewToolResultText(service.MessageLayoutReady + "\n\n" + formatRoverState(&info.State, info.Layout)), nil
}

func (c *Client) handleRunCommands(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	commands, _ := args["commands"].(string)
	strict, _ := args["strict"].(bool)
	async, _ := args["async"].(bool)

	// Intent parameter serves as rubber duck debugging - we don't need to process it further
	_, _ = args["intent"].(string)

	body := map[string]any{
		"commands": commands,
		"strict":   strict,
		"async":    async,
	}

	var result service.RunResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/commands"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if result.Status == engine.StatusRunning {
		return mcp.NewToolResultText(fmt.Sprintf("Run %d started: %d commands from %s. Check rover_state when it is done.",
			result.RunID, result.RequestedSteps, result.Start)), nil
	}
	return mcp.NewToolResultText(formatRunResult(&result)), nil
}

func (c *Client) handleFireLaser(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result service.LaserResult
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/laser"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s Cleared %s.\n\n%s",
		result.Message, result.Cleared, formatRoverState(&result.State, nil))), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message string             `json:"message"`
		State   *engine.RoverState `json:"state"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatRoverState(response.State, nil))), nil
}

func (c *Client) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	params := url.Values{}
	for _, key := range []string{"page", "limit", "run_id"} {
		if v := intArg(args, key); v > 0 {
			params.Set(key, fmt.Sprint(v))
		}
	}
	if order, ok := args["order"].(string); ok && order != "" {
		params.Set("order", order)
	}

	path := sessionPath(args, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListLayouts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var layouts []service.LayoutInfo
	if err := c.apiCall(ctx, "GET", "/api/layouts", nil, &layouts); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Layouts:\n\n")
	for _, l := range layouts {
		fmt.Fprintf(&b, "- %s: %s (%d boulders, %d commands)\n", l.LayoutID, l.Name, l.Weirs, l.CommandLen)
		if l.Description != "" {
			fmt.Fprintf(&b, "  %s\n", l.Description)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `MARS ROVER RULES

GRID
- 10 columns (x 0-9) by 20 rows (y 0-19). (0,0) is the bottom-left corner.
- Up is +y, right is +x.

COMMANDS (one character per step, run about 300ms apart on the live map)
- M: move one cell forward
- R: turn 90 degrees right (up -> right -> down -> left -> up)
- L: turn 90 degrees left
- Anything else is skipped (use strict=true to reject it instead)

BLOCKED MOVES
- A move off the grid stops the run: "Hey, I can't go that way!"
- A move into a boulder stops the run: "Wait! I can destroy this boulder with my laser!"
- Once a run stops, the rest of the command string is dropped. Send the rest again
  in a new run_commands call.

LASER
- fire_laser only works right after a run was stopped by a boulder.
- It destroys exactly that boulder. Running new commands first gives up the shot.

STRATEGY
1. rover_state shows the map: ^ > v < is the rover, # a boulder.
2. Plan the route, then run it with run_commands and an intent.
3. If a boulder stops you, decide: laser through it, or turn and go around.
4. reset_rover restores every boulder and the start point.
5. run_history shows exactly which step stopped each run.`

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	}
	return 0
}

// Formatting

func formatRoverState(state *engine.RoverState, l *layout.Layout) string {
	if state == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rover at %s facing %s (status: %s)\n", state.Position, state.Heading, state.Status)
	fmt.Fprintf(&b, "Boulders: %d\n", len(state.Blocked))
	if state.CanFireLaser() {
		fmt.Fprintf(&b, "Laser ready: boulder at %s\n", state.PendingObstacle)
	}
	if l != nil && l.Command != "" {
		fmt.Fprintf(&b, "Layout command: %s\n", l.Command)
	}
	b.WriteString("\n")
	b.WriteString(formatMap(state))
	return b.String()
}

var headingGlyphs = map[engine.Heading]byte{
	engine.Up:    '^',
	engine.Right: '>',
	engine.Down:  'v',
	engine.Left:  '<',
}

// formatMap draws the grid top row first so up is up
func formatMap(state *engine.RoverState) string {
	grid := state.Grid
	if grid.Width == 0 || grid.Height == 0 {
		grid = engine.DefaultGridSize
	}

	blocked := make(map[engine.Position]bool, len(state.Blocked))
	for _, p := range state.Blocked {
		blocked[p] = true
	}

	var b strings.Builder
	for y := grid.Height - 1; y >= 0; y-- {
		fmt.Fprintf(&b, "%2d ", y)
		for x := 0; x < grid.Width; x++ {
			p := engine.Position{X: x, Y: y}
			switch {
			case p == state.Position:
				b.WriteByte(headingGlyphs[state.Heading])
			case blocked[p]:
				b.WriteByte('#')
			default:
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString("   ")
	for x := 0; x < grid.Width; x++ {
		b.WriteByte(byte('0' + x%10))
	}
	b.WriteByte('\n')
	return b.String()
}

func formatRunResult(result *service.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %d/%d steps, %s -> %s\n",
		result.Status, result.StepsExecuted, result.RequestedSteps, result.Start, result.End)
	if result.Message != "" {
		fmt.Fprintf(&b, "Rover: %s\n", result.Message)
	}
	if result.StoppedOnStep > 0 {
		fmt.Fprintf(&b, "Stopped on step %d (%s)\n", result.StoppedOnStep, result.StopReason)
	}
	if result.CanFireLaser && result.PendingObstacle != nil {
		fmt.Fprintf(&b, "Laser available for boulder at %s\n", result.PendingObstacle)
	}

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, step := range result.Steps {
			fmt.Fprintf(&b, "  %s\n", step)
		}
	}

	b.WriteString("\n")
	b.WriteString(formatMap(&result.State))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step History (Page %d/%d, Total: %d)\n\n", history.Page, history.TotalPages, history.TotalSteps)
	for _, s := range history.Steps {
		line := fmt.Sprintf("run %d #%d %s %s -> %s facing %s", s.RunID, s.Index, s.Command, s.Kind, s.Position, s.Heading)
		if s.Reason != "" {
			line += fmt.Sprintf(" (%s)", s.Reason)
		}
		b.WriteString(line + "\n")
	}
	if len(history.Runs) > 0 {
		b.WriteString("\nRecent Runs:\n")
		for _, r := range history.Runs {
			fmt.Fprintf(&b, "- run %d %q: %s after %d steps\n", r.ID, r.Commands, r.Status, r.StepsExecuted)
		}
	}
	if history.HasNext {
		fmt.Fprintf(&b, "\nMore steps on page %d\n", history.Page+1)
	}
	return b.String()
}
