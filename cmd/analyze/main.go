// Command analyze prints quick, human-readable heuristics about configuration
// files in the project's configs directory. For each config it summarizes the
// tick interval range, and for a set of common drawing surfaces the grid size,
// food density and how long the snake needs to cross the board at default speed.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wricardo/snek/game/engine"
)

// Surface is a drawing surface in pixels
type Surface struct {
	Name          string
	Width, Height int
}

// surfaces are the devices the heuristics are reported for
var surfaces = []Surface{
	{Name: "phone", Width: 390, Height: 844},
	{Name: "tablet", Width: 820, Height: 1180},
	{Name: "laptop", Width: 1440, Height: 900},
	{Name: "desktop", Width: 2560, Height: 1440},
}

// SurfaceReport holds the heuristics for one config on one surface
type SurfaceReport struct {
	Surface     Surface
	GridWidth   int
	GridHeight  int
	Fits        bool
	FoodDensity float64
	CrossTime   time.Duration
}

// Report is the analysis of a single config
type Report struct {
	Name          string
	InitialLength int
	FoodPool      int
	DefaultTick   time.Duration
	Surfaces      []SurfaceReport
}

// Warnings lists the surfaces the config cannot start on or that the food
// pool floods
func (r Report) Warnings() []string {
	var warnings []string
	for _, s := range r.Surfaces {
		switch {
		case !s.Fits:
			warnings = append(warnings, fmt.Sprintf("%s: %dx%d grid is narrower than the initial length %d",
				s.Surface.Name, s.GridWidth, s.GridHeight, r.InitialLength))
		case s.FoodDensity > 0.5:
			warnings = append(warnings, fmt.Sprintf("%s: food covers %.0f%% of the board", s.Surface.Name, s.FoodDensity*100))
		}
	}
	return warnings
}

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding config files: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Tick interval: %s (speed 0) to %s (speed 1)\n",
		engine.TickIntervalForSpeed(0), engine.TickIntervalForSpeed(1))

	for _, configFile := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(configFile))
		analyzeConfig(configFile)
	}
}

func analyzeConfig(path string) {
	config, err := engine.LoadGameConfig(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}
	printReport(analyze(config))
}

// analyze computes the report for a validated config
func analyze(config *engine.GameConfig) Report {
	report := Report{
		Name:          config.Name,
		InitialLength: config.InitialLength,
		FoodPool:      config.FoodPool,
		DefaultTick:   engine.TickIntervalForSpeed(config.DefaultSpeed),
	}

	for _, s := range surfaces {
		width, height := engine.GridFromPixels(s.Width, s.Height, config.UnitScale)
		sr := SurfaceReport{
			Surface:    s,
			GridWidth:  width,
			GridHeight: height,
			Fits:       width >= config.InitialLength && height > 0,
			CrossTime:  time.Duration(width) * report.DefaultTick,
		}
		if cells := width * height; cells > 0 {
			sr.FoodDensity = float64(config.FoodPool) / float64(cells)
		}
		report.Surfaces = append(report.Surfaces, sr)
	}
	return report
}

func printReport(r Report) {
	fmt.Printf("Name: %s\n", r.Name)
	fmt.Printf("Initial Length: %d\n", r.InitialLength)
	fmt.Printf("Food Pool: %d\n", r.FoodPool)
	fmt.Printf("Default Tick: %s\n", r.DefaultTick)

	for _, s := range r.Surfaces {
		fmt.Printf("  %-8s %4dx%-4d -> %3dx%-3d food %5.1f%%  cross %s\n",
			s.Surface.Name, s.Surface.Width, s.Surface.Height,
			s.GridWidth, s.GridHeight, s.FoodDensity*100, s.CrossTime.Round(time.Millisecond))
	}

	if warnings := r.Warnings(); len(warnings) > 0 {
		fmt.Printf("⚠️  WARNING: %d surfaces need attention\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("   - %s\n", w)
		}
	} else {
		fmt.Println("✅ Playable on every surface")
	}
}
