package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wricardo/snek/game/engine"
	"github.com/wricardo/snek/game/service"
)

// Shared with the service layer so callers can match with errors.Is
var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = service.ErrInvalidConfig
)

// Manager handles game configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.GameConfig
	configs       map[string]*engine.GameConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.GameConfig),
	}

	config, err := m.resolveDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	m.defaultConfig = config
	return m, nil
}

// LoadConfig returns the named rules, reading configs/<name>.json on first use.
// A trailing ".json" is accepted.
func (m *Manager) LoadConfig(name string) (*engine.GameConfig, error) {
	name = strings.TrimSuffix(name, ".json")
	configPath, err := m.pathFor(name)
	if err != nil {
		return nil, err
	}

	if config, ok := m.cached(name); ok {
		return config, nil
	}

	config, err := decodeConfig(configPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another caller may have loaded it meanwhile; keep the first copy
	if existing, ok := m.configs[name]; ok {
		return existing, nil
	}
	m.configs[name] = config
	log.Printf("[CONFIG] loaded %s from %s", name, configPath)
	return config, nil
}

func (m *Manager) cached(name string) (*engine.GameConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	config, ok := m.configs[name]
	return config, ok
}

// decodeConfig reads and validates one rules file
func decodeConfig(path string) (*engine.GameConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config engine.GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, filepath.Base(path), err)
	}
	if err := engine.ValidateGameConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &config, nil
}

// ListConfigs returns information about all available configurations
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var configs []*service.ConfigInfo

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ".json")
		config, err := m.LoadConfig(name)
		if err != nil {
			log.Printf("[CONFIG] skipping %s: %v", entry.Name(), err)
			continue
		}

		configs = append(configs, &service.ConfigInfo{
			Filename:            entry.Name(),
			ConfigID:            name,
			Name:                config.Name,
			Description:         config.Description,
			InitialLength:       config.InitialLength,
			FoodPool:            config.FoodPool,
			DefaultSpeed:        config.DefaultSpeed,
			UnitScale:           config.UnitScale,
			StrictFoodPlacement: config.StrictFoodPlacement,
			PredictiveSelfBite:  config.PredictiveSelfBite,
		})
	}

	return configs, nil
}

// GetDefault returns the default configuration
func (m *Manager) GetDefault() *engine.GameConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default configuration by name
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = config
	return nil
}

// RefreshCache reloads all cached configurations from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.GameConfig)
	m.mu.Unlock()

	// Reload default config without holding the lock, LoadConfig takes it
	config, err := m.resolveDefault()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.defaultConfig = config
	m.mu.Unlock()
	return nil
}

// resolveDefault prefers classic.json, then the first valid config, then the built-in rules
func (m *Manager) resolveDefault() (*engine.GameConfig, error) {
	config, err := m.LoadConfig("classic")
	if err == nil {
		return config, nil
	}

	configs, listErr := m.ListConfigs()
	if listErr != nil || len(configs) == 0 {
		return engine.DefaultConfig(), nil
	}

	config, err = m.LoadConfig(configs[0].ConfigID)
	if err != nil {
		return engine.DefaultConfig(), nil
	}
	return config, nil
}

// SaveConfig saves a configuration to disk
func (m *Manager) SaveConfig(name string, config *engine.GameConfig) error {
	if err := engine.ValidateGameConfig(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	name = strings.TrimSuffix(name, ".json")
	configPath, err := m.pathFor(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[name] = config
	m.mu.Unlock()
	log.Printf("[CONFIG] saved %s", name)
	return nil
}

// pathFor maps a config name to its file, rejecting names that leave the directory
func (m *Manager) pathFor(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: bad config name %q", ErrInvalidConfig, name)
	}
	return filepath.Join(m.configDir, name+".json"), nil
}
