// Package config provides configuration management for the snake game.
//
// The config package handles:
//   - Loading game rules from JSON files
//   - Configuration validation
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Game configurations are stored as JSON files in the configs directory.
// Each configuration defines the initial snake length, the size of the food
// pool, the default speed, the pixel size of one grid cell, the optional
// strict food placement and predictive self-bite rules, and the messages
// shown on game events.
//
// Available Configurations:
//   - classic: the original rules, used as the default
//   - speedy: classic rules at a higher starting speed
//   - strict: food avoids the body and bites are detected before the move
//   - marathon: a short snake with sparse food
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameConfig, err := manager.LoadConfig("speedy")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
package config
