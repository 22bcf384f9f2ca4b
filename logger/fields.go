package logger

// Standard field names for consistent structured logging across metronome.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldKind   = "kind"
	FieldTarget = "target"
	FieldRunID  = "run_id"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"
)
