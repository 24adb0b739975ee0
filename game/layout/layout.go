package layout

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
)

var ErrInvalidLayout = errors.New("invalid layout")

//go:embed schema.json
var schemaSource string

const schemaURL = "https://marsrover.local/schemas/layout.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Layout is a start point, the boulders on the grid and the commands to run
type Layout struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	StartPoint  engine.Position   `json:"start_point"`
	Weirs       []engine.Position `json:"weirs"`
	Command     string            `json:"command"`
}

// Schema returns the compiled layout schema
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaSource)
	})
	return schema, schemaErr
}

// Parse validates data against the layout schema and decodes it
func Parse(data []byte) (*Layout, error) {
	s, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile layout schema: %w", err)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	if l.Weirs == nil {
		l.Weirs = []engine.Position{}
	}
	return &l, nil
}

// Check verifies every coordinate fits the grid and the start is not on a boulder
func (l *Layout) Check(size engine.GridSize) error {
	if !size.Contains(l.StartPoint) {
		return fmt.Errorf("%w: start point %s outside %s grid", engine.ErrOutOfBounds, l.StartPoint, size)
	}
	for i, w := range l.Weirs {
		if !size.Contains(w) {
			return fmt.Errorf("%w: weir %d at %s outside %s grid", engine.ErrOutOfBounds, i, w, size)
		}
		if w == l.StartPoint {
			return fmt.Errorf("%w: weir %d on start point %s", engine.ErrStartBlocked, i, w)
		}
	}
	return nil
}

// Apply resets sim and places this layout on it
func (l *Layout) Apply(sim engine.Simulator) error {
	if err := l.Check(sim.GridSize()); err != nil {
		return err
	}
	return sim.Load(l.StartPoint, l.Weirs)
}

// Clone returns a deep copy
func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	c := *l
	c.Weirs = append([]engine.Position(nil), l.Weirs...)
	return &c
}

// Density is the share of grid cells occupied by weirs
func (l *Layout) Density(size engine.GridSize) float64 {
	cells := size.Width * size.Height
	if cells == 0 {
		return 0
	}
	seen := make(map[engine.Position]bool, len(l.Weirs))
	for _, w := range l.Weirs {
		seen[w] = true
	}
	return float64(len(seen)) / float64(cells)
}

// Default is the layout used when no preset is available
func Default() *Layout {
	return &Layout{
		Name:        "default",
		Description: "Empty grid, rover at the origin",
		StartPoint:  engine.Position{X: 0, Y: 0},
		Weirs:       []engine.Position{},
		Command:     "",
	}
}
