package ir

// Version constants for the artifact schema and the tool.
const (
	// SchemaVersion is the artifact document schema version.
	SchemaVersion = "1"

	// ToolVersion is the proofdex tool version.
	ToolVersion = "0.1.0"
)
