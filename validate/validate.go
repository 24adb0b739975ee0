// Command validate checks the layout presets in a directory (../layouts by
// default, or the first argument). It checks:
//   - JSON structure against the layout schema
//   - Start point and boulders inside the grid, start not on a boulder
//   - No duplicate boulders
//   - A name and a command string made only of M, R and L
//   - Connectivity: the rover is not boxed in at its start point
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...any) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validateLayout loads and validates a single preset against grid
func validateLayout(filePath string, grid engine.GridSize) ValidationResult {
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

	l, err := layout.Parse(data)
	if err != nil {
		result.fail("Invalid layout: %v", err)
		return result
	}

	if strings.TrimSpace(l.Name) == "" {
		result.fail("Missing name")
	}

	if err := l.Check(grid); err != nil {
		switch {
		case errors.Is(err, engine.ErrStartBlocked):
			result.fail("Start point is blocked: %v", err)
		default:
			result.fail("Out of grid: %v", err)
		}
	}

	seen := make(map[engine.Position]bool, len(l.Weirs))
	for _, w := range l.Weirs {
		if seen[w] {
			result.fail("Duplicate weir at %s", w)
		}
		seen[w] = true
	}

	if err := engine.ValidateCommands(l.Command); err != nil {
		result.fail("Invalid command: %v", err)
	}

	// Connectivity validation - a rover that cannot leave its start cell is useless
	if result.Valid {
		reachable := engine.ReachableCells(grid, l.StartPoint, l.Weirs)
		free := grid.Width*grid.Height - len(seen)
		if reachable <= 1 && free > 1 {
			result.fail("Connectivity failure: rover is boxed in at %s", l.StartPoint)
		} else {
			result.info("Connectivity: %d/%d free cells reachable from start", reachable, free)
		}
	}

	// Add informational data
	if result.Valid {
		result.info("Name: %s", l.Name)
		result.info("Grid: %s", grid)
		result.info("Start: %s", l.StartPoint)
		result.info("Weirs: %d", len(l.Weirs))
		result.info("Commands: %d", len([]rune(l.Command)))
	}

	return result
}

// validateDir validates every *.json file in dir, in name order
func validateDir(dir string, grid engine.GridSize) ([]ValidationResult, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no layout files in %s", dir)
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		results = append(results, validateLayout(file, grid))
	}
	return results, nil
}

// main validates the preset directory, printing a concise report and
// exiting with non-zero status if any preset is invalid.
func main() {
	layoutDir := "../layouts"
	if len(os.Args) > 1 {
		layoutDir = os.Args[1]
	}

	results, err := validateDir(layoutDir, engine.DefaultGridSize)
	if err != nil {
		fmt.Printf("Error finding layout files: %v\n", err)
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
		fmt.Println("✅ All layouts are valid!")
	} else {
		fmt.Println("❌ Some layouts have errors")
		os.Exit(1)
	}
}
