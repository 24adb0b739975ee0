// Package layout describes rover missions: where the rover starts, which cells
// hold boulders ("weirs") and the command string HQ wants executed.
//
// The JSON shape is the one HQ sends:
//
//	{"start_point": {"x": 0, "y": 0}, "weirs": [{"x": 0, "y": 1}], "command": "MRML"}
//
// Preset files add optional "name" and "description" fields.
//
// Parse checks a payload against an embedded JSON Schema before decoding it,
// so malformed payloads fail with ErrInvalidLayout and a schema error that
// points at the offending field. Grid bounds are a separate concern handled by
// Check, since the schema does not know the grid size.
package layout
