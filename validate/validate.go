// Command validate provides a small CLI that validates game configuration JSON
// files in the ../configs directory (or the directory given as the first argument). It checks:
//   - JSON structure and the rule ranges enforced by the engine
//   - Required message keys and the %d placeholder in new_high_score
//   - Playability: a reference surface fits the starting snake and its food pool
//   - Unique display names across the directory
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/snek/game/engine"
)

// referenceSurface is the smallest drawing surface, in pixels, a config must be playable on
var referenceSurface = struct{ Width, Height int }{Width: 480, Height: 320}

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Name   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateConfig loads and validates a single configuration JSON file.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.GameConfig
	if err := json.Unmarshal(data, &config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}
	result.Name = config.Name

	if err := engine.ValidateGameConfig(&config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), "config validation: "))
		return result
	}

	checkPlayability(&config, &result)

	// Add informational data
	if result.Valid {
		result.info("Name: %s", config.Name)
		result.info("Initial length: %d", config.InitialLength)
		result.info("Food pool: %d", config.FoodPool)
		result.info("Default speed: %.2f (%s per tick)", config.DefaultSpeed, engine.TickIntervalForSpeed(config.DefaultSpeed))
		result.info("Unit scale: %dpx", config.UnitScale)
		if config.Messages.Paused == "" {
			result.info("No paused message, the default is shown")
		}
	}

	return result
}

// checkPlayability starts an engine on the grid the reference surface maps to
func checkPlayability(config *engine.GameConfig, result *ValidationResult) {
	width, height := engine.GridFromPixels(referenceSurface.Width, referenceSurface.Height, config.UnitScale)

	eng, err := engine.NewEngine(config, engine.WithSeed(1))
	if err != nil {
		result.fail("Engine rejected config: %v", err)
		return
	}
	if err := eng.SetGridSize(width, height); err != nil {
		switch {
		case errors.Is(err, engine.ErrGridTooSmall), errors.Is(err, engine.ErrInvalidGridSize):
			result.fail("A %dx%dpx surface gives a %dx%d grid, too small for the starting snake: %v",
				referenceSurface.Width, referenceSurface.Height, width, height, err)
		default:
			result.fail("Failed to size grid: %v", err)
		}
		return
	}

	snapshot := eng.Snapshot()
	if len(snapshot.Food) < config.FoodPool {
		result.fail("Only %d of %d food items fit a %dx%d grid", len(snapshot.Food), config.FoodPool, width, height)
		return
	}
	result.info("Reference grid: %dx%d with %d food", width, height, len(snapshot.Food))
}

// validateDirectory validates every *.json file in dir and flags duplicate names
func validateDirectory(dir string) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("finding config files: %w", err)
	}

	results := make([]ValidationResult, 0, len(files))
	seen := make(map[string]string)
	for _, file := range files {
		result := validateConfig(file)
		if key := strings.ToLower(result.Name); key != "" {
			if other, dup := seen[key]; dup {
				result.fail("Duplicate name %q, also used by %s", result.Name, other)
			} else {
				seen[key] = result.File
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// main scans the config directory and validates each file, printing a
// concise report and exiting with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	results, err := validateDirectory(configDir)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, result := range results {
		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All configurations are valid!")
	} else {
		fmt.Println("❌ Some configurations have errors")
		os.Exit(1)
	}
}
