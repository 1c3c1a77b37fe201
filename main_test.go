package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/wricardo/snek/api"
	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/session"
	"github.com/wricardo/snek/transport/mcp"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}

	expectedVersion := "1.0.0"
	if Version != expectedVersion {
		t.Errorf("Expected version %s, got %s", expectedVersion, Version)
	}

	expectedAppName := "snek"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

// parse runs the app with a capturing action in place of the real commands
func parse(t *testing.T, args []string, env map[string]string) settings {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}

	var got settings
	app := newApp()
	capture := func(ctx context.Context, cmd *cli.Command) error {
		got = settingsFrom(cmd)
		return nil
	}
	for _, sub := range app.Commands {
		sub.Action = capture
	}

	if err := app.Run(context.Background(), append([]string{AppName}, args...)); err != nil {
		t.Fatalf("Run(%v) error = %v", args, err)
	}
	return got
}

func TestFlagDefaults(t *testing.T) {
	got := parse(t, nil, nil)

	if got.Port != 8080 {
		t.Errorf("Port = %d, want 8080", got.Port)
	}
	if got.Host != "localhost" {
		t.Errorf("Host = %q, want localhost", got.Host)
	}
	if got.ConfigDir != "configs" {
		t.Errorf("ConfigDir = %q, want configs", got.ConfigDir)
	}
	if got.ScoresFile == "" {
		t.Error("ScoresFile should have a default value")
	}
	if got.AppID != "snek" {
		t.Errorf("AppID = %q, want snek", got.AppID)
	}
	if got.Seed != 0 || got.Debug || got.NgrokEnabled || got.Telemetry {
		t.Errorf("unexpected defaults: %+v", got)
	}
}

func TestFlagParsing(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		env   map[string]string
		check func(t *testing.T, s settings)
	}{
		{
			name: "serve flags",
			args: []string{"--port", "9090", "--host", "0.0.0.0", "serve"},
			check: func(t *testing.T, s settings) {
				if s.addr() != "0.0.0.0:9090" {
					t.Errorf("addr = %q", s.addr())
				}
			},
		},
		{
			name: "play with config and seed",
			args: []string{"--config", "speedy", "--seed", "42", "play", "--ephemeral"},
			check: func(t *testing.T, s settings) {
				if s.ConfigID != "speedy" || s.Seed != 42 || !s.Ephemeral {
					t.Errorf("got config %q seed %d", s.ConfigID, s.Seed)
				}
			},
		},
		{
			name: "environment",
			env: map[string]string{
				"SNEK_PORT":        "7000",
				"SNEK_SCORES_FILE": "/tmp/s.json",
				"NGROK_ENABLED":    "true",
				"NGROK_AUTH_TOKEN": "tok",
			},
			check: func(t *testing.T, s settings) {
				if s.Port != 7000 || s.ScoresFile != "/tmp/s.json" {
					t.Errorf("got port %d scores %q", s.Port, s.ScoresFile)
				}
				if !s.NgrokEnabled || s.NgrokAuth != "tok" {
					t.Errorf("got ngrok %v auth %q", s.NgrokEnabled, s.NgrokAuth)
				}
			},
		},
		{
			name: "flag wins over environment",
			args: []string{"--app-id", "other"},
			env:  map[string]string{"SNEK_APP_ID": "fromenv"},
			check: func(t *testing.T, s settings) {
				if s.AppID != "other" {
					t.Errorf("AppID = %q, want other", s.AppID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parse(t, tt.args, tt.env))
		})
	}
}

func testSettings(t *testing.T) settings {
	t.Helper()
	if _, err := os.Stat("configs"); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}
	return settings{
		Host:       "localhost",
		Port:       8080,
		ConfigDir:  "configs",
		ScoresFile: filepath.Join(t.TempDir(), "scores.json"),
		AppID:      "snek-test",
		Seed:       7,
	}
}

func TestInitializeServices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs, err := initializeServices(ctx, testSettings(t), nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.close()

	if svcs.game == nil || svcs.sessions == nil {
		t.Fatal("Expected game service and session manager to be initialized")
	}

	info, err := svcs.game.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if svcs.sessions.Count() != 1 {
		t.Errorf("Count() = %d, want 1", svcs.sessions.Count())
	}
	if info.GameConfig == nil {
		t.Error("expected the default config")
	}
}

func TestInitializeServices_InvalidConfigDir(t *testing.T) {
	cfg := testSettings(t)
	cfg.ConfigDir = "/non/existent/path"

	_, err := initializeServices(context.Background(), cfg, nil)
	if err == nil {
		t.Error("Expected error for non-existent config directory")
	}
}

func TestInitializeServices_EmptyScoresFile(t *testing.T) {
	cfg := testSettings(t)
	cfg.ScoresFile = ""

	_, err := initializeServices(context.Background(), cfg, nil)
	if err == nil {
		t.Error("Expected error for empty scores file")
	}
}

func TestInitializeServices_Ephemeral(t *testing.T) {
	cfg := testSettings(t)
	cfg.ScoresFile = ""
	cfg.Ephemeral = true

	svcs, err := initializeServices(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.close()

	high, err := svcs.game.GetHighScore(context.Background())
	if err != nil {
		t.Fatalf("GetHighScore() error = %v", err)
	}
	if high.HighScore != 0 {
		t.Errorf("HighScore = %d, want 0", high.HighScore)
	}
}

func TestSessionCleanupRoutine(t *testing.T) {
	manager := session.NewManager()
	if _, err := manager.Create("", engine.DefaultConfig()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sessionCleanupRoutine(ctx, manager, 5*time.Millisecond, 0)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for manager.Count() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if manager.Count() != 0 {
		t.Errorf("Count() = %d, want expired session removed", manager.Count())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup routine did not stop on cancel")
	}
}

func TestMuxServesAPIAndMCP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svcs, err := initializeServices(ctx, testSettings(t), nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	defer svcs.close()

	mux := newMux(api.NewServer(svcs.game, nil), mcp.NewClient("http://127.0.0.1:0"))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	if !externalAPIAvailable(ts.URL) {
		t.Error("externalAPIAvailable() = false for a running API")
	}
	if externalAPIAvailable("http://127.0.0.1:1") {
		t.Error("externalAPIAvailable() = true for a closed port")
	}

	resp, err := http.Get(ts.URL + "/mcp")
	if err != nil {
		t.Fatalf("GET /mcp error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /mcp status = %d, want 405", resp.StatusCode)
	}

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
	resp, err = http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp error = %v", err)
	}
	defer resp.Body.Close()

	var rpc struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpc); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	found := false
	for _, tool := range rpc.Result.Tools {
		if tool.Name == "start_game" {
			found = true
		}
	}
	if !found {
		t.Errorf("tools/list did not include start_game: %+v", rpc.Result.Tools)
	}
}
