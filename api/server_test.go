package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/config"
	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
	"github.com/wricardo/mcp-training/marsrover/game/service"
	"github.com/wricardo/mcp-training/marsrover/game/session"
	"github.com/wricardo/mcp-training/marsrover/transport/websocket"
)

// MockRoverService implements service.RoverService for testing
type MockRoverService struct {
	CreateSessionFunc func(ctx context.Context, layoutID string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	LoadLayoutFunc  func(ctx context.Context, sessionID string, l *layout.Layout) (*service.SessionInfo, error)
	FetchLayoutFunc func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ExecuteFunc     func(ctx context.Context, sessionID, commands string, opts service.ExecOptions) (*service.RunResult, error)
	CancelFunc      func(ctx context.Context, sessionID string) error
	FireLaserFunc   func(ctx context.Context, sessionID string) (*service.LaserResult, error)
	ResetFunc       func(ctx context.Context, sessionID string) (*engine.RoverState, error)

	GetStateFunc   func(ctx context.Context, sessionID string) (*engine.RoverState, error)
	GetHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	ListLayoutsFunc func(ctx context.Context) ([]*service.LayoutInfo, error)
	GetLayoutFunc   func(ctx context.Context, layoutID string) (*layout.Layout, error)
	SaveLayoutFunc  func(ctx context.Context, layoutID string, l *layout.Layout) error
}

func (m *MockRoverService) CreateSession(ctx context.Context, layoutID string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, layoutID)
	}
	return &service.SessionInfo{ID: "test", LayoutID: layoutID, CreatedAt: time.Now()}, nil
}

func (m *MockRoverService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, CreatedAt: time.Now()}, nil
}

func (m *MockRoverService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockRoverService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockRoverService) LoadLayout(ctx context.Context, sessionID string, l *layout.Layout) (*service.SessionInfo, error) {
	if m.LoadLayoutFunc != nil {
		return m.LoadLayoutFunc(ctx, sessionID, l)
	}
	return &service.SessionInfo{ID: sessionID, Layout: l}, nil
}

func (m *MockRoverService) FetchLayout(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.FetchLayoutFunc != nil {
		return m.FetchLayoutFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID}, nil
}

func (m *MockRoverService) Execute(ctx context.Context, sessionID, commands string, opts service.ExecOptions) (*service.RunResult, error) {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, sessionID, commands, opts)
	}
	return &service.RunResult{Commands: commands, Status: engine.StatusCompleted}, nil
}

func (m *MockRoverService) Cancel(ctx context.Context, sessionID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockRoverService) FireLaser(ctx context.Context, sessionID string) (*service.LaserResult, error) {
	if m.FireLaserFunc != nil {
		return m.FireLaserFunc(ctx, sessionID)
	}
	return &service.LaserResult{Message: service.MessageLaser}, nil
}

func (m *MockRoverService) Reset(ctx context.Context, sessionID string) (*engine.RoverState, error) {
	if m.ResetFunc != nil {
		return m.ResetFunc(ctx, sessionID)
	}
	return &engine.RoverState{}, nil
}

func (m *MockRoverService) GetState(ctx context.Context, sessionID string) (*engine.RoverState, error) {
	if m.GetStateFunc != nil {
		return m.GetStateFunc(ctx, sessionID)
	}
	return &engine.RoverState{}, nil
}

func (m *MockRoverService) GetHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, sessionID, opts)
	}
	return service.NewHistoryResponse(nil, 0, opts), nil
}

func (m *MockRoverService) ListLayouts(ctx context.Context) ([]*service.LayoutInfo, error) {
	if m.ListLayoutsFunc != nil {
		return m.ListLayoutsFunc(ctx)
	}
	return []*service.LayoutInfo{}, nil
}

func (m *MockRoverService) GetLayout(ctx context.Context, layoutID string) (*layout.Layout, error) {
	if m.GetLayoutFunc != nil {
		return m.GetLayoutFunc(ctx, layoutID)
	}
	return &layout.Layout{Name: layoutID}, nil
}

func (m *MockRoverService) SaveLayout(ctx context.Context, layoutID string, l *layout.Layout) error {
	if m.SaveLayoutFunc != nil {
		return m.SaveLayoutFunc(ctx, layoutID, l)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockRoverService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body any) *http.Request {
	var bodyBytes []byte
	switch b := body.(type) {
	case nil:
	case string:
		bodyBytes = []byte(b)
	default:
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
	}
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		setupMock      func(*MockRoverService)
		expectedStatus int
		expectedLayout string
	}{
		{
			name:           "Default layout",
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Named layout",
			body:           map[string]string{"layout_id": "canyon"},
			expectedStatus: http.StatusCreated,
			expectedLayout: "canyon",
		},
		{
			name: "Unknown layout",
			body: map[string]string{"layout_id": "nope"},
			setupMock: func(m *MockRoverService) {
				m.CreateSessionFunc = func(ctx context.Context, layoutID string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("layout '%s' not found: %w", layoutID, service.ErrLayoutNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Malformed body",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRoverService{}
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}
			server := setupTestServer(t, mock)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions", tt.body))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.LayoutID != tt.expectedLayout {
					t.Errorf("Expected layout %q, got %q", tt.expectedLayout, resp.LayoutID)
				}
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mock := &MockRoverService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "old", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Hour)},
				{ID: "new", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
				{ID: "mid", CreatedAt: now.Add(-90 * time.Minute), LastAccessedAt: now.Add(-30 * time.Minute)},
			}, nil
		},
	}
	server := setupTestServer(t, mock)

	tests := []struct {
		query string
		first string
		count int
	}{
		{"", "new", 3},
		{"?order=asc", "old", 3},
		{"?sort=created&order=asc&limit=2", "old", 2},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)
			if resp.Count != tt.count || resp.Total != 3 {
				t.Errorf("Expected count %d total 3, got %d/%d", tt.count, resp.Count, resp.Total)
			}
			if resp.Sessions[0].ID != tt.first {
				t.Errorf("Expected first session %s, got %s", tt.first, resp.Sessions[0].ID)
			}
		})
	}
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"session not found", fmt.Errorf("session not found: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{"busy", engine.ErrBusy, http.StatusConflict},
		{"no pending obstacle", engine.ErrNoPendingObstacle, http.StatusConflict},
		{"no active run", service.ErrNoActiveRun, http.StatusConflict},
		{"out of bounds", fmt.Errorf("%w: start (10,0)", engine.ErrOutOfBounds), http.StatusBadRequest},
		{"unknown command", fmt.Errorf("%w: 'X' at 1", engine.ErrUnknownCommand), http.StatusBadRequest},
		{"command too long", engine.ErrCommandTooLong, http.StatusBadRequest},
		{"invalid preset", config.ErrInvalidConfig, http.StatusBadRequest},
		{"no provider", service.ErrNoProvider, http.StatusNotImplemented},
		{"hq down", fmt.Errorf("%w: timeout", service.ErrHQ), http.StatusBadGateway},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, got)
			}
		})
	}
}

func TestCommandsHandler(t *testing.T) {
	var gotCommands string
	var gotOpts service.ExecOptions
	mock := &MockRoverService{
		ExecuteFunc: func(ctx context.Context, sessionID, commands string, opts service.ExecOptions) (*service.RunResult, error) {
			gotCommands, gotOpts = commands, opts
			if sessionID == "busy" {
				return nil, engine.ErrBusy
			}
			status := engine.StatusCompleted
			if opts.Async {
				status = engine.StatusRunning
			}
			return &service.RunResult{Commands: commands, Status: status}, nil
		},
	}
	server := setupTestServer(t, mock)

	t.Run("sync run", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/commands", map[string]any{"commands": "MRML"}))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if gotCommands != "MRML" || gotOpts.Async || gotOpts.Strict {
			t.Errorf("Unexpected execute call: %q %+v", gotCommands, gotOpts)
		}
	})

	t.Run("async run with delay", func(t *testing.T) {
		w := httptest.NewRecorder()
		body := map[string]any{"commands": "MM", "async": true, "delay": "50ms"}
		server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/commands?strict=true", body))
		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d", w.Code)
		}
		if !gotOpts.Async || !gotOpts.Strict || gotOpts.Delay != 50*time.Millisecond {
			t.Errorf("Unexpected options: %+v", gotOpts)
		}
	})

	t.Run("bad delay", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/commands", map[string]any{"delay": "soon"}))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("busy", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("POST", "/api/sessions/busy/commands", map[string]any{"commands": "M"}))
		if w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", w.Code)
		}
	})
}

func TestLoadLayoutHandler(t *testing.T) {
	var loaded *layout.Layout
	mock := &MockRoverService{
		LoadLayoutFunc: func(ctx context.Context, sessionID string, l *layout.Layout) (*service.SessionInfo, error) {
			loaded = l
			return &service.SessionInfo{ID: sessionID, Layout: l}, nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/layout",
		`{"start_point":{"x":0,"y":0},"weirs":[{"x":0,"y":1}],"command":"MRML"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if loaded == nil || len(loaded.Weirs) != 1 || loaded.Command != "MRML" {
		t.Errorf("Unexpected layout passed to service: %+v", loaded)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/layout", `{"weirs":[]}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for payload missing start_point, got %d", w.Code)
	}
}

func TestHistoryQueryParsing(t *testing.T) {
	var got service.HistoryOptions
	mock := &MockRoverService{
		GetHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
			got = opts
			return service.NewHistoryResponse(nil, 0, opts), nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/history?page=2&limit=5&order=asc&run_id=7", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	want := service.HistoryOptions{Page: 2, Limit: 5, Order: "asc", RunID: 7}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}

	server.ServeHTTP(httptest.NewRecorder(), makeRequest("GET", "/api/sessions/ab12/history?page=-1&order=sideways", nil))
	if got.Page != 1 || got.Order != "desc" || got.Limit != 20 {
		t.Errorf("Expected defaults for bad params, got %+v", got)
	}
}

func TestSaveLayoutHandler(t *testing.T) {
	var savedID string
	mock := &MockRoverService{
		SaveLayoutFunc: func(ctx context.Context, layoutID string, l *layout.Layout) error {
			savedID = layoutID
			return nil
		},
	}
	server := setupTestServer(t, mock)

	body := `{"name":"ridge","start_point":{"x":1,"y":1},"weirs":[],"command":"M"}`
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/layouts", body))
	if w.Code != http.StatusCreated || savedID != "ridge" {
		t.Errorf("Expected 201 saving ridge, got %d %q", w.Code, savedID)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/layouts?id=ridge2", body))
	if savedID != "ridge2" {
		t.Errorf("Expected id from query, got %q", savedID)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/layouts", `{"start_point":{"x":1,"y":1},"weirs":[],"command":"M"}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a name, got %d", w.Code)
	}
}

func TestGzipResponses(t *testing.T) {
	mock := &MockRoverService{
		ListLayoutsFunc: func(ctx context.Context) ([]*service.LayoutInfo, error) {
			infos := make([]*service.LayoutInfo, 0, 50)
			for i := 0; i < 50; i++ {
				infos = append(infos, &service.LayoutInfo{LayoutID: fmt.Sprintf("layout_%02d", i), Name: "Generated layout"})
			}
			return infos, nil
		},
	}
	server := setupTestServer(t, mock)

	req := makeRequest("GET", "/api/layouts", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Expected gzip response, got encoding %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("Invalid gzip body: %v", err)
	}
	var infos []service.LayoutInfo
	if err := json.NewDecoder(zr).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode gzip body: %v", err)
	}
	if len(infos) != 50 {
		t.Errorf("Expected 50 layouts, got %d", len(infos))
	}
}

func TestWebSocketRequiresSession(t *testing.T) {
	mock := &MockRoverService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, session.ErrSessionNotFound
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without session, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/ws?session=zz99", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}
}

// newIntegrationServer wires the real service stack over a temp layout directory
func newIntegrationServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	preset := `{"name":"Default","start_point":{"x":0,"y":0},"weirs":[{"x":0,"y":1}],"command":"MRML"}`
	if err := os.WriteFile(filepath.Join(dir, "default.json"), []byte(preset), 0644); err != nil {
		t.Fatal(err)
	}

	layouts, err := config.NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create layout manager: %v", err)
	}
	sessions := session.NewManager(engine.WithPacer(engine.NoPacer))
	svc := service.NewRoverService(sessions, layouts)

	ts := httptest.NewServer(NewServer(svc, nil))
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, body string, target any) int {
	t.Helper()
	req, _ := http.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if target != nil {
		if err := json.Unmarshal(data, target); err != nil {
			t.Fatalf("Failed to parse %s: %v", data, err)
		}
	}
	return resp.StatusCode
}

func TestIntegration_ObstacleAndLaser(t *testing.T) {
	ts := newIntegrationServer(t)

	var info service.SessionInfo
	if code := doJSON(t, "POST", ts.URL+"/api/sessions", "", &info); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	base := ts.URL + "/api/sessions/" + info.ID

	// No boulder yet
	if code := doJSON(t, "POST", base+"/laser", "", nil); code != http.StatusConflict {
		t.Errorf("Expected 409 before any abort, got %d", code)
	}

	// Empty commands run the layout's MRML, which hits the boulder at (0,1)
	var run service.RunResult
	if code := doJSON(t, "POST", base+"/commands", `{}`, &run); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if run.Status != engine.StatusAborted || run.StoppedOnStep != 1 || !run.CanFireLaser {
		t.Fatalf("Expected abort on step 1 with laser available, got %+v", run)
	}
	if run.Message != service.MessageBoulder {
		t.Errorf("Expected boulder message, got %q", run.Message)
	}

	var laser service.LaserResult
	if code := doJSON(t, "POST", base+"/laser", "", &laser); code != http.StatusOK {
		t.Fatalf("Expected 200 firing laser, got %d", code)
	}
	if laser.Cleared != (engine.Position{X: 0, Y: 1}) {
		t.Errorf("Expected (0,1) cleared, got %s", laser.Cleared)
	}

	if code := doJSON(t, "POST", base+"/commands", `{"commands":"MRML"}`, &run); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if run.Status != engine.StatusCompleted || run.End != (engine.Position{X: 1, Y: 1}) {
		t.Errorf("Expected completed at (1,1), got %s at %s", run.Status, run.End)
	}

	var state engine.RoverState
	doJSON(t, "GET", base+"/state", "", &state)
	if state.Heading != engine.Up {
		t.Errorf("Expected heading up after MRML, got %s", state.Heading)
	}

	if code := doJSON(t, "POST", base+"/commands", `{"commands":"MXM","strict":true}`, nil); code != http.StatusBadRequest {
		t.Errorf("Expected 400 for strict unknown rune, got %d", code)
	}

	if code := doJSON(t, "POST", base+"/cancel", "", nil); code != http.StatusConflict {
		t.Errorf("Expected 409 cancelling with nothing running, got %d", code)
	}

	var history service.HistoryResponse
	doJSON(t, "GET", base+"/history?order=asc", "", &history)
	if history.TotalSteps != 0 {
		t.Errorf("Expected no journal without a journal configured, got %d", history.TotalSteps)
	}

	if code := doJSON(t, "GET", ts.URL+"/api/sessions/nope", "", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", code)
	}
}

func TestIntegration_LoadLayoutOffGrid(t *testing.T) {
	ts := newIntegrationServer(t)

	var info service.SessionInfo
	doJSON(t, "POST", ts.URL+"/api/sessions", "", &info)

	code := doJSON(t, "POST", ts.URL+"/api/sessions/"+info.ID+"/layout",
		`{"start_point":{"x":0,"y":0},"weirs":[{"x":3,"y":25}],"command":"M"}`, nil)
	if code != http.StatusBadRequest {
		t.Errorf("Expected 400 for weir off the grid, got %d", code)
	}

	var state engine.RoverState
	doJSON(t, "GET", ts.URL+"/api/sessions/"+info.ID+"/state", "", &state)
	if len(state.Blocked) != 1 {
		t.Errorf("Expected original layout kept after rejected load, got %v", state.Blocked)
	}
}
