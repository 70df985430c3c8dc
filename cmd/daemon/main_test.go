package main

import (
	"testing"

	"go.uber.org/fx"
)

// TestAppGraphValidity verifies that the dependency graph is resolvable.
// This test will fail if a required interface loses its fx.Provide.
func TestAppGraphValidity(t *testing.T) {
	// fx.ValidateApp checks for missing or cyclic dependencies without
	// running any constructor
	if err := fx.ValidateApp(AppOptions); err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}
}

// TestNewLogger specifically verifies the logger configuration
func TestNewLogger(t *testing.T) {
	logger, err := newLogger()
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	logger.Info("Test logger initialization")
}
