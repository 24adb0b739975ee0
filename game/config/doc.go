// Package config loads layout presets and server settings.
//
// Layout presets are JSON files in a directory (layouts/ by default), one
// per file, in the same shape HQ returns plus an optional name and
// description:
//
//	{
//	  "name": "Boulder Field",
//	  "start_point": {"x": 0, "y": 0},
//	  "weirs": [{"x": 0, "y": 1}],
//	  "command": "MRML"
//	}
//
// Manager validates every preset against the layout schema and the grid,
// caches them, and picks a default (default.json, then the first valid
// preset, then an empty grid).
//
//	manager, err := config.NewManager("layouts")
//	if err != nil {
//		log.Fatal(err)
//	}
//	l, err := manager.LoadLayout("boulder_field")
//
// Settings come from rover.yaml. LoadSettings starts from Defaults and
// ApplyEnv layers environment variables on top; CLI flags win over both.
package config
