// Command analyze prints quick, human-readable heuristics about the layout
// presets in the project's layouts directory. It summarizes obstacle density,
// how much of the grid the rover can reach, and what happens when the
// preset's own command string is run.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
)

// Analysis holds the heuristics for one layout
type Analysis struct {
	Name        string
	Grid        engine.GridSize
	Start       engine.Position
	Weirs       int
	Density     float64
	Reachable   int
	FreeCells   int
	NearestWeir int // Manhattan distance from start, -1 without weirs

	// Dry run of the embedded command
	Commands int
	Executed int
	Status   engine.RunStatus
	End      engine.Position
	Heading  engine.Heading
	Blocked  *engine.StepResult
}

func main() {
	layoutDir := "layouts"
	if len(os.Args) > 1 {
		layoutDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(layoutDir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No layouts found in %s\n", layoutDir)
		os.Exit(1)
	}

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("Error reading file: %v\n", err)
			continue
		}
		l, err := layout.Parse(data)
		if err != nil {
			fmt.Printf("Error parsing layout: %v\n", err)
			continue
		}
		a, err := analyzeLayout(l, engine.DefaultGridSize)
		if err != nil {
			fmt.Printf("Error analyzing layout: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, a)
	}
}

// analyzeLayout computes the heuristics and dry-runs l.Command without pacing
func analyzeLayout(l *layout.Layout, grid engine.GridSize) (*Analysis, error) {
	unique := make(map[engine.Position]bool, len(l.Weirs))
	nearest := -1
	for _, w := range l.Weirs {
		unique[w] = true
		if d := engine.ManhattanDistance(l.StartPoint, w); nearest < 0 || d < nearest {
			nearest = d
		}
	}

	a := &Analysis{
		Name:        l.Name,
		Grid:        grid,
		Start:       l.StartPoint,
		Weirs:       len(unique),
		Density:     l.Density(grid),
		Reachable:   engine.ReachableCells(grid, l.StartPoint, l.Weirs),
		FreeCells:   grid.Width*grid.Height - len(unique),
		NearestWeir: nearest,
		Commands:    len([]rune(l.Command)),
	}

	sim, err := engine.NewSimulatorWithSize(grid, engine.WithPacer(engine.NoPacer))
	if err != nil {
		return nil, err
	}
	if err := l.Apply(sim); err != nil {
		return nil, err
	}

	steps, err := engine.CollectSteps(sim.ProcessCommands(context.Background(), l.Command))
	if err != nil {
		return nil, err
	}
	a.Executed = len(steps)
	for i := range steps {
		if steps[i].Kind == engine.StepBlocked {
			a.Blocked = &steps[i]
		}
	}

	state := sim.State()
	a.Status = state.Status
	a.End = state.Position
	a.Heading = state.Heading
	return a, nil
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Name)
	fmt.Fprintf(w, "Grid Size: %s\n", a.Grid)
	fmt.Fprintf(w, "Start: %s\n", a.Start)
	fmt.Fprintf(w, "Boulders: %d (density %.1f%%)\n", a.Weirs, a.Density*100)
	if a.NearestWeir >= 0 {
		fmt.Fprintf(w, "Nearest boulder: %d moves from start\n", a.NearestWeir)
	}

	if a.Reachable < a.FreeCells {
		fmt.Fprintf(w, "⚠️  WARNING: only %d of %d free cells are reachable from start\n", a.Reachable, a.FreeCells)
	} else {
		fmt.Fprintf(w, "✅ All %d free cells are reachable from start\n", a.FreeCells)
	}

	fmt.Fprintf(w, "Dry run: %d/%d commands, %s at %s facing %s\n", a.Executed, a.Commands, a.Status, a.End, a.Heading)
	if a.Blocked != nil {
		fmt.Fprintf(w, "⚠️  Stopped: %s\n", a.Blocked)
		if a.Blocked.Reason == engine.ReasonObstacle {
			fmt.Fprintf(w, "   The laser can clear %s\n", a.Blocked.Cell)
		}
	}
}
