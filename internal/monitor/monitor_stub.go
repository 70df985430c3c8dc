//go:build !linux
// +build !linux

package monitor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dailywall/internal/domain"
)

// WakeMonitor stub for platforms without logind
type WakeMonitor struct {
	logger *zap.Logger
}

// NewWakeMonitor creates a stub monitor for non-Linux platforms
func NewWakeMonitor(logger *zap.Logger) *WakeMonitor {
	return &WakeMonitor{logger: logger}
}

// Start returns an error indicating wake monitoring is not supported
func (m *WakeMonitor) Start(ctx context.Context) error {
	return fmt.Errorf("wake monitoring is only supported on Linux systems")
}

// Stop is a no-op on non-Linux platforms
func (m *WakeMonitor) Stop(ctx context.Context) error {
	return nil
}

// Events returns a closed channel since monitoring is not available
func (m *WakeMonitor) Events() <-chan domain.WakeEvent {
	ch := make(chan domain.WakeEvent)
	close(ch)
	return ch
}
