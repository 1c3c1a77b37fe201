// Command snek runs the snake game server, its MCP interface and a terminal client.
//
// It supports three modes:
//  1. "serve" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//  3. "play" – plays a game in the terminal against an in-process session
//
// Flags control host/port, config and score locations, debug logging,
// tracing, and optional ngrok tunneling for easy external access during development.
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
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/snek/api"
	"github.com/wricardo/snek/game/config"
	"github.com/wricardo/snek/game/score"
	"github.com/wricardo/snek/game/service"
	"github.com/wricardo/snek/game/session"
	"github.com/wricardo/snek/telemetry"
	"github.com/wricardo/snek/terminal"
	"github.com/wricardo/snek/transport/mcp"
	"github.com/wricardo/snek/transport/websocket"
	"go.opentelemetry.io/otel/trace"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "snek"
)

const (
	sessionRetention = 24 * time.Hour
	cleanupInterval  = 1 * time.Hour
	shutdownTimeout  = 10 * time.Second
)

// settings holds the resolved command line configuration
type settings struct {
	Host       string
	Port       int
	ConfigDir  string
	ScoresFile string
	Ephemeral  bool
	AppID      string
	ConfigID   string
	Debug      bool
	Telemetry  bool
	Seed       uint64

	NgrokEnabled bool
	NgrokAuth    string
	NgrokDomain  string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// main loads .env, then parses the command line and runs the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		// Only log if it's not a "file not found" error
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatalf("%s: %v", AppName, err)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:           AppName,
		Usage:          "snake game server, MCP interface and terminal client",
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("SNEK_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("SNEK_PORT", "PORT"),
			},
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "Directory containing game configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "scores-file",
				Value:   "scores.json",
				Usage:   "File the high score is persisted to",
				Sources: cli.EnvVars("SNEK_SCORES_FILE"),
			},
			&cli.BoolFlag{
				Name:    "ephemeral",
				Usage:   "Keep the high score in memory only",
				Sources: cli.EnvVars("SNEK_EPHEMERAL"),
			},
			&cli.StringFlag{
				Name:    "app-id",
				Value:   service.DefaultAppID,
				Usage:   "Application identity the high score is stored under",
				Sources: cli.EnvVars("SNEK_APP_ID"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Config used by the play command (defaults to the config manager's default)",
				Sources: cli.EnvVars("SNEK_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "seed",
				Usage:   "Seed food placement for reproducible runs (0 means random)",
				Sources: cli.EnvVars("SNEK_SEED"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("SNEK_DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "telemetry",
				Usage:   "Export traces over OTLP/HTTP (configured with OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("SNEK_TELEMETRY"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			// Setup logging
			if cmd.Bool("debug") {
				log.SetFlags(log.LstdFlags | log.Lshortfile)
			} else {
				log.SetFlags(log.LstdFlags)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run HTTP server with API, WebSocket, and MCP endpoint",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runHTTPServer(ctx, settingsFrom(cmd))
				},
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, starting an internal HTTP API if none is available",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runStdioMCPWithInternalServer(ctx, settingsFrom(cmd))
				},
			},
			{
				Name:  "play",
				Usage: "Play in the terminal",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runTerminal(ctx, settingsFrom(cmd))
				},
			},
		},
	}
}

// settingsFrom reads the resolved flag values
func settingsFrom(cmd *cli.Command) settings {
	return settings{
		Host:         cmd.String("host"),
		Port:         cmd.Int("port"),
		ConfigDir:    cmd.String("config-dir"),
		ScoresFile:   cmd.String("scores-file"),
		Ephemeral:    cmd.Bool("ephemeral"),
		AppID:        cmd.String("app-id"),
		ConfigID:     cmd.String("config"),
		Debug:        cmd.Bool("debug"),
		Telemetry:    cmd.Bool("telemetry"),
		Seed:         uint64(cmd.Int("seed")),
		NgrokEnabled: cmd.Bool("ngrok"),
		NgrokAuth:    cmd.String("ngrok-auth"),
		NgrokDomain:  cmd.String("ngrok-domain"),
	}
}

// services bundles what every mode shares
type services struct {
	game     service.GameService
	sessions *session.Manager
	shutdown func(context.Context) error
}

// close stops running games, flushes score writes and traces
func (s *services) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.game.Close(ctx); err != nil {
		log.Printf("Warning: game service shutdown: %v", err)
	}
	if s.shutdown != nil {
		if err := s.shutdown(ctx); err != nil {
			log.Printf("Warning: telemetry shutdown: %v", err)
		}
	}
}

// initializeServices wires session/config managers, the score store and the game service.
// It also starts a background cleanup routine to prune stale sessions.
func initializeServices(ctx context.Context, cfg settings, notifier service.Notifier) (*services, error) {
	configManager, err := config.NewManager(cfg.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	var scores score.Store = score.NewMemoryStore()
	if !cfg.Ephemeral {
		fileStore, err := score.NewFileStore(cfg.ScoresFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open score file: %w", err)
		}
		scores = fileStore
	}

	var (
		tracer   = telemetry.NoopTracer()
		shutdown func(context.Context) error
	)
	if cfg.Telemetry {
		shutdown, err = telemetry.Setup(ctx, Version)
		if err != nil {
			return nil, fmt.Errorf("failed to set up telemetry: %w", err)
		}
		tracer = telemetry.Tracer("service")
	}

	sessionManager := session.NewManager()
	gameService := service.NewGameService(sessionManager, configManager, serviceOptions(cfg, scores, notifier, tracer)...)

	// Start session cleanup routine
	go sessionCleanupRoutine(ctx, sessionManager, cleanupInterval, sessionRetention)

	return &services{game: gameService, sessions: sessionManager, shutdown: shutdown}, nil
}

func serviceOptions(cfg settings, scores score.Store, notifier service.Notifier, tracer trace.Tracer) []service.Option {
	opts := []service.Option{
		service.WithScoreStore(scores, cfg.AppID),
		service.WithTracer(tracer),
	}
	if notifier != nil {
		opts = append(opts, service.WithNotifier(notifier))
	}
	if cfg.Seed != 0 {
		opts = append(opts, service.WithSeed(cfg.Seed))
	}
	return opts
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within the provided retention window.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := manager.CleanupExpiredSessions(retention)
			if removed > 0 {
				log.Printf("[SESSION] cleaned up %d expired sessions", removed)
			}
		}
	}
}

// newMux combines the API server and the /mcp endpoint
func newMux(apiServer http.Handler, mcpClient *mcp.Client) *http.ServeMux {
	mainRouter := http.NewServeMux()

	// Mount API server at root
	mainRouter.Handle("/", apiServer)

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

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runHTTPServer(ctx context.Context, cfg settings) error {
	log.Printf("Starting %s v%s (mode: serve)", AppName, Version)

	// Create WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	svcs, err := initializeServices(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer svcs.close()

	addr := cfg.addr()
	apiServer := api.NewServer(svcs.game, hub)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newMux(apiServer, mcpClient)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", addr)
		log.Printf("REST API: http://%s/api", addr)
		log.Printf("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Printf("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Start ngrok tunnel if enabled
	if cfg.NgrokEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, cfg, mainRouter)
		}()
	}

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		log.Printf("Shutting down...")
	case err = <-serveErr:
		log.Printf("HTTP server failed: %v", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Wait for all goroutines to finish
	wg.Wait()
	log.Println("Server stopped")
	return err
}

// runNgrokTunnel serves handler through a public ngrok endpoint until ctx ends
func runNgrokTunnel(ctx context.Context, cfg settings, handler http.Handler) {
	if cfg.NgrokAuth == "" {
		log.Println("WARNING: Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		log.Printf("Using custom ngrok domain: %s", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx,
		tunnel,
		ngrok.WithAuthtoken(cfg.NgrokAuth),
	)
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}

	// Close the tunnel on shutdown to unblock Serve
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("🚀 Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  REST API (ngrok): %s/api", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws?session=<session_id>", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// externalAPIAvailable reports whether an API server answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It tries to reuse an external API at the configured address; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCPWithInternalServer(ctx context.Context, cfg settings) error {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	externalURL := fmt.Sprintf("http://%s", cfg.addr())
	log.Printf("Checking for external API server at %s...", externalURL)

	baseURL := externalURL
	if externalAPIAvailable(externalURL) {
		log.Printf("External API server found at %s, using it for MCP", externalURL)
	} else {
		log.Printf("No external API server found, starting internal HTTP server")

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub()
		go hub.Run()
		defer hub.Stop()

		svcs, err := initializeServices(ctx, cfg, hub)
		if err != nil {
			listener.Close()
			return err
		}
		defer svcs.close()

		httpServer := &http.Server{Handler: api.NewServer(svcs.game, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Internal HTTP server error: %v", err)
			}
		}()
		defer httpServer.Close()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Printf("Internal HTTP server listening on %s for MCP stdio", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Println("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// runTerminal plays a game in the terminal. Logs would corrupt the screen, so
// they are discarded unless --debug sends them to snek.log.
func runTerminal(ctx context.Context, cfg settings) error {
	if cfg.Debug {
		f, err := os.OpenFile("snek.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening debug log: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}
	defer log.SetOutput(os.Stderr)

	screen, err := terminal.NewScreen()
	if err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer screen.Close()

	svcs, err := initializeServices(ctx, cfg, terminal.NewNotifier(screen))
	if err != nil {
		return err
	}
	defer svcs.close()

	return terminal.NewGame(screen, svcs.game, cfg.ConfigID).Run(ctx)
}
