package ir

// Version constants for the model description and engine.
const (
	// IRVersion is the model description schema version.
	IRVersion = "1"

	// EngineVersion is the simcore engine version.
	EngineVersion = "0.1.0"
)
