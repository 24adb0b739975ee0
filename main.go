// Command marsrover runs the Mars rover mission control server.
//
// It supports three commands:
//  1. "server" (default) runs the HTTP server exposing the REST API, the
//     WebSocket step stream and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "run" drives a rover headless over one layout and prints every step
//
// Settings come from rover.yaml, then environment variables (a .env file is
// loaded first), then flags. An ngrok tunnel can expose the server during
// development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/marsrover/api"
	"github.com/wricardo/mcp-training/marsrover/game/config"
	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/journal"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
	"github.com/wricardo/mcp-training/marsrover/game/service"
	"github.com/wricardo/mcp-training/marsrover/game/session"
	"github.com/wricardo/mcp-training/marsrover/transport/hq"
	"github.com/wricardo/mcp-training/marsrover/transport/mcp"
	"github.com/wricardo/mcp-training/marsrover/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Mars Rover Mission Control"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command tree. Flags on the root apply to every command.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "marsrover",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: config.DefaultSettingsFile, Usage: "settings file (missing file means defaults)"},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP server port"},
			&cli.StringFlag{Name: "layouts", Usage: "directory containing layout presets"},
			&cli.StringFlag{Name: "sessions-dir", Usage: "directory for persisted sessions"},
			&cli.StringFlag{Name: "journal", Usage: "SQLite run journal path (empty keeps history in memory)"},
			&cli.DurationFlag{Name: "step-delay", Usage: "pause before each command of a paced run"},
			&cli.StringFlag{Name: "hq-url", Usage: "HQ endpoint for fetch_layout"},
			&cli.StringFlag{Name: "rover-id", Usage: "rover id sent to HQ"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel"},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token (or NGROK_AUTHTOKEN)"},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain (optional)"},
		},
		Action: serverAction,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run HTTP server with API, WebSocket, and MCP endpoint",
				Action:  serverAction,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run MCP stdio server with internal HTTP server",
				Action:  mcpAction,
			},
			{
				Name:      "run",
				Usage:     "run a layout headless and print every step",
				ArgsUsage: "[COMMANDS]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "layout", Aliases: []string{"l"}, Usage: "preset name or path to a layout JSON file"},
					&cli.BoolFlag{Name: "hq", Usage: "fetch the layout from HQ"},
					&cli.StringFlag{Name: "commands", Usage: "command string (defaults to the layout's command)"},
					&cli.DurationFlag{Name: "delay", Value: -1, Usage: "pause before each command (defaults to step-delay)"},
					&cli.BoolFlag{Name: "laser", Usage: "fire the laser on a boulder and retry the rest"},
					&cli.BoolFlag{Name: "strict", Usage: "reject characters other than M, R and L"},
				},
				Action: runAction,
			},
		},
	}
}

// loadSettings applies rover.yaml, then the environment, then any flags given
func loadSettings(cmd *cli.Command) (config.Settings, error) {
	settings, err := config.LoadSettings(cmd.String("config"))
	if err != nil {
		return settings, err
	}
	if err := settings.ApplyEnv(os.Getenv); err != nil {
		return settings, err
	}

	strFlag := func(name string, dst *string) {
		if cmd.IsSet(name) {
			*dst = cmd.String(name)
		}
	}
	strFlag("host", &settings.Server.Host)
	strFlag("layouts", &settings.Paths.Layouts)
	strFlag("sessions-dir", &settings.Paths.Sessions)
	strFlag("journal", &settings.Paths.Journal)
	strFlag("hq-url", &settings.HQ.URL)
	strFlag("rover-id", &settings.HQ.RoverID)
	strFlag("ngrok-auth", &settings.Ngrok.AuthToken)
	strFlag("ngrok-domain", &settings.Ngrok.Domain)

	if cmd.IsSet("port") {
		settings.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("step-delay") {
		settings.StepDelay = cmd.Duration("step-delay")
	}
	if cmd.IsSet("debug") {
		settings.Server.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("ngrok") {
		settings.Ngrok.Enabled = cmd.Bool("ngrok")
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}

	// Setup logging
	if settings.Server.Debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
	return settings, nil
}

// services holds everything the server and mcp commands share
type services struct {
	rover       service.RoverService
	layouts     *config.Manager
	sessions    *session.Manager
	persistence *session.FilePersistence
	hub         *websocket.Hub
	journal     io.Closer
}

// initializeServices wires layout presets, sessions, the journal, HQ and
// the WebSocket hub into the rover service.
func initializeServices(settings config.Settings) (*services, error) {
	layouts, err := config.NewManagerForGrid(settings.Paths.Layouts, settings.Grid)
	if err != nil {
		return nil, fmt.Errorf("failed to create layout manager: %w", err)
	}

	simOpts := []engine.Option{
		engine.WithGridSize(settings.Grid),
		engine.WithStepDelay(settings.StepDelay),
	}

	persistence, err := session.NewFilePersistence(settings.Paths.Sessions, layouts, simOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}
	sessions := session.NewManagerWithPersistence(persistence, simOpts...)

	// Load persisted sessions on startup
	if err := sessions.LoadPersistedSessions(); err != nil {
		log.Printf("Warning: Failed to load persisted sessions: %v", err)
	}

	var j interface {
		service.Journal
		io.Closer
	}
	if settings.Paths.Journal != "" {
		sqlite, err := journal.OpenSQLite(settings.Paths.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to open run journal: %w", err)
		}
		log.Printf("Run journal: %s", settings.Paths.Journal)
		j = sqlite
	} else {
		j = journal.NewMemory()
	}

	hub := websocket.NewHub()
	go hub.Run()

	provider := hq.NewClient(settings.HQ.URL,
		hq.WithRoverID(settings.HQ.RoverID),
		hq.WithTimeout(settings.HQ.Timeout),
	)

	rover := service.NewRoverService(sessions, layouts,
		service.WithJournal(j),
		service.WithProvider(provider),
		service.WithPublisher(hub),
		service.WithStepDelay(settings.StepDelay),
	)

	return &services{
		rover:       rover,
		layouts:     layouts,
		sessions:    sessions,
		persistence: persistence,
		hub:         hub,
		journal:     j,
	}, nil
}

// Close waits for background runs, then releases the hub and the journal
func (s *services) Close() {
	if w, ok := s.rover.(interface{ Wait() }); ok {
		w.Wait()
	}
	s.hub.Stop()
	if err := s.sessions.SaveAllSessions(); err != nil {
		log.Printf("Warning: failed to save sessions: %v", err)
	}
	if err := s.journal.Close(); err != nil {
		log.Printf("Warning: failed to close run journal: %v", err)
	}
}

// startBackground launches session cleanup and filesystem sync until ctx ends
func (s *services) startBackground(ctx context.Context, settings config.Settings) {
	go sessionCleanupRoutine(ctx, s.sessions, settings.Sessions.CleanupInterval, settings.Sessions.MaxAge)
	go filesystemSyncRoutine(ctx, s.sessions, s.persistence, settings.Sessions.SyncInterval)
}

func serverAction(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	log.Printf("Starting %s v%s (mode: server)", AppName, Version)

	svc, err := initializeServices(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runHTTPServer(ctx, settings, svc)
}

// newMainRouter mounts the API at the root and the MCP proxy at /mcp
func newMainRouter(handler http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", handler)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
	return mainRouter
}

// runHTTPServer serves the REST API, WebSocket hub, and /mcp until a signal arrives.
// If ngrok is enabled it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, settings config.Settings, svc *services) error {
	addr := settings.Addr()
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newMainRouter(api.NewServer(svc.rover, svc.hub), mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc.startBackground(ctx, settings)

	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	if settings.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, settings.Ngrok, mainRouter)
		}()
	}

	var runErr error
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case runErr = <-serverErr:
		log.Printf("HTTP server failed: %v", runErr)
	case <-ctx.Done():
	}
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return runErr
}

// runNgrokTunnel serves handler through an ngrok endpoint until ctx ends
func runNgrokTunnel(ctx context.Context, settings config.NgrokSettings, handler http.Handler) {
	if settings.AuthToken == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if settings.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.Domain))
		log.Printf("Using custom ngrok domain: %s", settings.Domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(settings.AuthToken),
	)
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, maxAge time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Printf("Cleaned up %d expired sessions", removed)
			}
		}
	}
}

// filesystemSyncRoutine periodically drops sessions whose files were deleted
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, interval time.Duration) {
	if interval <= 0 || persistence == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncSessions(manager, persistence); pruned > 0 {
				log.Printf("Filesystem sync: pruned %d orphaned sessions from memory", pruned)
			}
		}
	}
}

// syncSessions removes in-memory sessions that no longer exist on disk
func syncSessions(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Printf("Pruned session %s from memory (file deleted)", sess.ID)
		}
	}
	return pruned
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol
	log.SetOutput(os.Stderr)
	log.Printf("Starting %s v%s (mode: mcp)", AppName, Version)

	svc, err := initializeServices(settings)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	return runStdioMCPWithInternalServer(ctx, settings, svc)
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an API already listening on the configured address; if there is
// none, it starts an internal HTTP API on a random loopback port.
func runStdioMCPWithInternalServer(ctx context.Context, settings config.Settings, svc *services) error {
	externalURL := fmt.Sprintf("http://%s", settings.Addr())
	log.Printf("Checking for external API server at %s...", externalURL)

	baseURL := externalURL
	if !apiAvailable(externalURL) {
		log.Printf("No external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		internalAddr := listener.Addr().String()
		log.Printf("Starting internal HTTP server on %s for MCP stdio", internalAddr)

		httpServer := &http.Server{Handler: api.NewServer(svc.rover, svc.hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		svc.startBackground(ctx, settings)

		baseURL = fmt.Sprintf("http://%s", internalAddr)
	} else {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Printf("MCP stdio server ready (API at %s)", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// apiAvailable reports whether a rover API answers the health check at baseURL
func apiAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, err := resolveLayout(ctx, cmd, settings)
	if err != nil {
		return err
	}

	commands := l.Command
	if cmd.IsSet("commands") {
		commands = cmd.String("commands")
	} else if cmd.Args().Present() {
		commands = strings.Join(cmd.Args().Slice(), "")
	}
	if cmd.Bool("strict") {
		if err := engine.ValidateCommands(commands); err != nil {
			return err
		}
	}

	delay := settings.StepDelay
	if d := cmd.Duration("delay"); d >= 0 {
		delay = d
	}
	pacer := engine.NoPacer
	if delay > 0 {
		pacer = engine.TimerPacer(delay)
	}

	sim, err := engine.NewSimulatorWithSize(settings.Grid, engine.WithPacer(pacer))
	if err != nil {
		return err
	}
	if err := l.Apply(sim); err != nil {
		return err
	}

	state, err := runHeadless(ctx, os.Stdout, sim, commands, cmd.Bool("laser"))
	if err != nil {
		return err
	}
	if state.Status == engine.StatusAborted {
		return cli.Exit("", 2)
	}
	return nil
}

// resolveLayout picks the layout for a headless run: HQ, a JSON file, or a preset
func resolveLayout(ctx context.Context, cmd *cli.Command, settings config.Settings) (*layout.Layout, error) {
	if cmd.Bool("hq") {
		fmt.Println(service.MessageContactHQ)
		l, err := hq.NewClient(settings.HQ.URL,
			hq.WithRoverID(settings.HQ.RoverID),
			hq.WithTimeout(settings.HQ.Timeout),
		).Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s %w", service.MessageHQFailed, err)
		}
		return l, nil
	}

	name := cmd.String("layout")
	if strings.HasSuffix(name, ".json") {
		if data, err := os.ReadFile(name); err == nil {
			return layout.Parse(data)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	layouts, err := config.NewManagerForGrid(settings.Paths.Layouts, settings.Grid)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return layouts.GetDefault(), nil
	}
	return layouts.LoadLayout(name)
}

// runHeadless prints every step of commands. With laser set, a boulder that
// aborts the run is destroyed and the commands are retried from the blocked step.
func runHeadless(ctx context.Context, w io.Writer, sim *engine.GridSimulator, commands string, laser bool) (engine.RoverState, error) {
	start := sim.State()
	fmt.Fprintf(w, "Rover at %s facing %s on %s grid, %d boulders\n", start.Position, start.Heading, start.Grid, len(start.Blocked))

	remaining := []rune(commands)
	for {
		blockedAt := -1
		for step, err := range sim.ProcessCommands(ctx, string(remaining)) {
			if err != nil {
				return sim.State(), err
			}
			fmt.Fprintln(w, step)
			if step.Kind == engine.StepBlocked {
				blockedAt = step.Index
			}
		}

		state := sim.State()
		if blockedAt < 0 || !laser || !state.CanFireLaser() {
			break
		}

		cell, err := sim.FireLaser()
		if err != nil {
			return sim.State(), err
		}
		fmt.Fprintf(w, "%s Cleared %s\n", service.MessageLaser, cell)
		remaining = remaining[blockedAt:]
	}

	state := sim.State()
	switch {
	case state.Status == engine.StatusCompleted:
		fmt.Fprintln(w, service.MessageCompleted)
	case state.PendingObstacle != nil:
		fmt.Fprintln(w, service.MessageBoulder)
	case state.Status == engine.StatusAborted:
		fmt.Fprintln(w, service.MessageCantGo)
	case state.Status == engine.StatusCancelled:
		fmt.Fprintln(w, service.MessageCancelled)
	}
	fmt.Fprintf(w, "Final position %s facing %s (%s)\n", state.Position, state.Heading, state.Status)
	return state, nil
}
