package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
	"github.com/wricardo/mcp-training/marsrover/game/service"
)

var (
	ErrConfigNotFound = service.ErrLayoutNotFound
	ErrInvalidConfig  = errors.New("invalid layout preset")
)

// DefaultLayoutName is the preset used when a session names none
const DefaultLayoutName = "default"

// Manager handles layout preset loading and caching
type Manager struct {
	layoutDir     string
	grid          engine.GridSize
	defaultLayout *layout.Layout
	layouts       map[string]*layout.Layout
	mu            sync.RWMutex
}

// NewManager creates a layout manager for the default 10x20 grid
func NewManager(layoutDir string) (*Manager, error) {
	return NewManagerForGrid(layoutDir, engine.DefaultGridSize)
}

// NewManagerForGrid creates a layout manager that rejects presets not fitting grid
func NewManagerForGrid(layoutDir string, grid engine.GridSize) (*Manager, error) {
	if _, err := os.Stat(layoutDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("layout directory does not exist: %s", layoutDir)
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		layoutDir: layoutDir,
		grid:      grid,
		layouts:   make(map[string]*layout.Layout),
	}

	if err := m.loadDefaultLayout(); err != nil {
		return nil, fmt.Errorf("failed to load default layout: %w", err)
	}

	return m, nil
}

// LoadLayout loads a preset by name. Callers get their own copy.
func (m *Manager) LoadLayout(name string) (*layout.Layout, error) {
	name = strings.TrimSuffix(name, ".json")
	if !validName(name) {
		return nil, fmt.Errorf("%w: bad preset name %q", ErrInvalidConfig, name)
	}

	m.mu.RLock()
	if l, exists := m.layouts[name]; exists {
		m.mu.RUnlock()
		return l.Clone(), nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if l, exists := m.layouts[name]; exists {
		return l.Clone(), nil
	}

	data, err := os.ReadFile(filepath.Join(m.layoutDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}

	l, err := layout.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := l.Check(m.grid); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if l.Name == "" {
		l.Name = name
	}

	m.layouts[name] = l
	return l.Clone(), nil
}

// ListLayouts returns information about all valid presets, sorted by ID
func (m *Manager) ListLayouts() ([]*service.LayoutInfo, error) {
	entries, err := os.ReadDir(m.layoutDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout directory: %w", err)
	}

	var infos []*service.LayoutInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		l, err := m.LoadLayout(id)
		if err != nil {
			// Skip invalid presets
			continue
		}

		infos = append(infos, &service.LayoutInfo{
			Filename:    entry.Name(),
			LayoutID:    id,
			Name:        l.Name,
			Description: l.Description,
			Weirs:       len(l.Weirs),
			CommandLen:  len([]rune(l.Command)),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].LayoutID < infos[j].LayoutID })
	return infos, nil
}

// GetDefault returns a copy of the default layout
func (m *Manager) GetDefault() *layout.Layout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultLayout.Clone()
}

// SetDefault sets the default layout by name
func (m *Manager) SetDefault(name string) error {
	l, err := m.LoadLayout(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLayout = l
	return nil
}

// RefreshCache drops every cached preset and reloads the default from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.layouts = make(map[string]*layout.Layout)
	m.mu.Unlock()

	return m.loadDefaultLayout()
}

// loadDefaultLayout picks default.json, then the first valid preset, then an empty grid
func (m *Manager) loadDefaultLayout() error {
	l, err := m.LoadLayout(DefaultLayoutName)
	if err != nil {
		infos, listErr := m.ListLayouts()
		if listErr != nil || len(infos) == 0 {
			l = layout.Default()
		} else if l, err = m.LoadLayout(infos[0].LayoutID); err != nil {
			l = layout.Default()
		}
	}

	m.mu.Lock()
	m.defaultLayout = l
	m.mu.Unlock()
	return nil
}

// SaveLayout validates a preset and writes it to disk
func (m *Manager) SaveLayout(name string, l *layout.Layout) error {
	name = strings.TrimSuffix(name, ".json")
	if !validName(name) {
		return fmt.Errorf("%w: bad preset name %q", ErrInvalidConfig, name)
	}
	if l == nil {
		return fmt.Errorf("%w: empty layout", ErrInvalidConfig)
	}
	if err := l.Check(m.grid); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	saved := l.Clone()
	if saved.Name == "" {
		saved.Name = name
	}
	if saved.Weirs == nil {
		saved.Weirs = []engine.Position{}
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	// Round-trip through the schema so disk never holds a preset Parse rejects
	if _, err := layout.Parse(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := os.WriteFile(filepath.Join(m.layoutDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write layout file: %w", err)
	}

	m.mu.Lock()
	m.layouts[name] = saved
	m.mu.Unlock()

	return nil
}

// Grid returns the grid presets are checked against
func (m *Manager) Grid() engine.GridSize {
	return m.grid
}

func validName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
