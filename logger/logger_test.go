package logger

import (
	"testing"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{
			name:       "JSON output mode",
			jsonOutput: true,
		},
		{
			name:       "Console output mode",
			jsonOutput: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global logger
			Logger = nil
			JSONOutput = false

			if err := Initialize(tt.jsonOutput); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}

			if Logger == nil {
				t.Error("Initialize() did not set global Logger")
			}
			if JSONOutput != tt.jsonOutput {
				t.Errorf("Initialize() JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
			}

			Logger.Sync()
			Logger = nil
		})
	}
}

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// The package-level init installs a no-op logger; logging before
	// Initialize() must not panic.
	Logger = nil
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("logging before Initialize panicked: %v", r)
		}
	}()

	// Re-run what init() does, then log
	Logger = nopLogger()
	Logger.Infow("message before initialize", "key", "value")
}

func TestSetVerbose(t *testing.T) {
	if err := Initialize(false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := SetVerbose(); err != nil {
		t.Fatalf("SetVerbose() error = %v", err)
	}
	if Logger == nil {
		t.Error("SetVerbose() did not set global Logger")
	}
	Logger.Sync()
}
