package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ValidateGameConfig validates a game configuration for correctness and playability
func ValidateGameConfig(config *GameConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}

	// Validate required fields
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}
	if config.Description == "" {
		return fmt.Errorf("config validation: description is required")
	}

	// Validate rule ranges
	if config.InitialLength < MinInitialLength || config.InitialLength > MaxInitialLength {
		return fmt.Errorf("config validation: initial_length must be between %d and %d, got %d",
			MinInitialLength, MaxInitialLength, config.InitialLength)
	}
	if config.FoodPool < MinFoodPool || config.FoodPool > MaxFoodPool {
		return fmt.Errorf("config validation: food_pool must be between %d and %d, got %d",
			MinFoodPool, MaxFoodPool, config.FoodPool)
	}
	if config.DefaultSpeed < 0 || config.DefaultSpeed > 1 {
		return fmt.Errorf("config validation: default_speed must be between 0 and 1, got %g", config.DefaultSpeed)
	}
	if config.UnitScale < MinUnitScale || config.UnitScale > MaxUnitScale {
		return fmt.Errorf("config validation: unit_scale must be between %d and %d, got %d",
			MinUnitScale, MaxUnitScale, config.UnitScale)
	}

	// Validate messages
	if config.Messages.Welcome == "" {
		return fmt.Errorf("config validation: messages.welcome is required")
	}
	if config.Messages.HitWall == "" {
		return fmt.Errorf("config validation: messages.hit_wall is required")
	}
	if config.Messages.BitItself == "" {
		return fmt.Errorf("config validation: messages.bit_itself is required")
	}

	// Validate format strings
	if !strings.Contains(config.Messages.NewHighScore, "%d") {
		return fmt.Errorf("config validation: messages.new_high_score must contain %%d for score")
	}

	return nil
}

// LoadGameConfig loads a game configuration from a JSON file
func LoadGameConfig(filename string) (*GameConfig, error) {
	// Support CONFIG_DIR environment variable for alternative config directory
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", configPath, err)
	}

	if err := ValidateGameConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DefaultConfig returns the classic rules
func DefaultConfig() *GameConfig {
	config := &GameConfig{
		Name:          "Classic",
		Description:   "The original rules: ten segments, a hundred apples, walls are deadly.",
		InitialLength: DefaultInitialLength,
		FoodPool:      DefaultFoodPool,
		DefaultSpeed:  DefaultSpeed,
		UnitScale:     DefaultUnitScale,
	}
	config.Messages.Welcome = "Eat the food, avoid the walls and your own tail."
	config.Messages.HitWall = "You hit the wall!"
	config.Messages.BitItself = "You bit yourself!"
	config.Messages.NewHighScore = "New high score: %d!"
	config.Messages.Paused = "Paused"
	return config
}
