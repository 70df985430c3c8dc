//go:build linux
// +build linux

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"dailywall/internal/domain"
)

const (
	// prepareForSleep is logind's suspend/resume signal; the bool body is
	// true on the way down and false on resume
	prepareForSleep = "org.freedesktop.login1.Manager.PrepareForSleep"

	// workspaceChanged is KWin's virtual-desktop switch signal. Other
	// compositors do not publish one; the session-bus half of the monitor
	// is best effort.
	workspaceChanged = "org.kde.KWin.currentDesktopChanged"
)

// WakeMonitor watches D-Bus for resume-from-suspend and workspace-change
// signals and republishes them as wake events
type WakeMonitor struct {
	logger          *zap.Logger
	events          chan domain.WakeEvent
	mu              sync.Mutex
	running         bool
	cancel          context.CancelFunc
	system          DBusClient
	session         DBusClient
	wg              sync.WaitGroup
	lastDropWarning time.Time
	now             func() time.Time

	// connection factories, swapped in tests
	connectSystem  func() (DBusClient, error)
	connectSession func() (DBusClient, error)
}

// NewWakeMonitor creates a wake monitor
func NewWakeMonitor(logger *zap.Logger) *WakeMonitor {
	return &WakeMonitor{
		logger:         logger,
		events:         make(chan domain.WakeEvent, 10),
		now:            time.Now,
		connectSystem:  func() (DBusClient, error) { return NewSystemDBusClient() },
		connectSession: func() (DBusClient, error) { return NewSessionDBusClient() },
	}
}

// Start begins monitoring and blocks until the context is cancelled. The
// system bus is required; a missing session bus only loses workspace events.
func (m *WakeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true

	monitorCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Info("Wake monitor started")

	system, err := m.connectSystem()
	if err != nil {
		m.logger.Error("Failed to connect to system bus", zap.Error(err))
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("system bus connection failed: %w", err)
	}

	if err := system.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	); err != nil {
		if cerr := system.Close(); cerr != nil {
			m.logger.Warn("Failed to close system bus", zap.Error(cerr))
		}
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("failed to match PrepareForSleep: %w", err)
	}

	m.mu.Lock()
	m.system = system
	m.mu.Unlock()

	systemSignals := make(chan *dbus.Signal, 10)
	system.Signal(systemSignals)
	m.wg.Add(1)
	go m.monitorSignals(monitorCtx, systemSignals)

	if session, err := m.connectSession(); err != nil {
		m.logger.Warn("Session bus unavailable, workspace events disabled", zap.Error(err))
	} else if err := session.AddMatchSignal(
		dbus.WithMatchInterface("org.kde.KWin"),
		dbus.WithMatchMember("currentDesktopChanged"),
	); err != nil {
		m.logger.Warn("Workspace signal match failed, workspace events disabled", zap.Error(err))
		if cerr := session.Close(); cerr != nil {
			m.logger.Warn("Failed to close session bus", zap.Error(cerr))
		}
	} else {
		m.mu.Lock()
		m.session = session
		m.mu.Unlock()

		sessionSignals := make(chan *dbus.Signal, 10)
		session.Signal(sessionSignals)
		m.wg.Add(1)
		go m.monitorSignals(monitorCtx, sessionSignals)
	}

	<-monitorCtx.Done()
	m.logger.Info("Wake monitor stopped")
	return monitorCtx.Err()
}

// Stop gracefully stops the monitor
func (m *WakeMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.mu.Unlock()

	// producers must exit before the channel closes
	m.logger.Debug("Waiting for signal goroutines to finish")
	m.wg.Wait()
	close(m.events)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, conn := range []DBusClient{m.system, m.session} {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	m.system = nil
	m.session = nil

	m.logger.Info("Wake monitor shutdown complete")
	return nil
}

// Events returns a read-only channel emitting wake events
func (m *WakeMonitor) Events() <-chan domain.WakeEvent {
	return m.events
}

// monitorSignals drains one connection's signal channel until cancelled
func (m *WakeMonitor) monitorSignals(ctx context.Context, signals chan *dbus.Signal) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			m.handleSignal(sig)
		}
	}
}

// handleSignal translates a D-Bus signal into a wake event. Signals that do
// not concern us are dropped silently.
func (m *WakeMonitor) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case prepareForSleep:
		if len(sig.Body) < 1 {
			return
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			m.logger.Warn("Unexpected PrepareForSleep body", zap.Any("body", sig.Body))
			return
		}
		if sleeping {
			m.logger.Debug("System suspending")
			return
		}
		m.logger.Info("System resumed from suspend")
		m.emit(domain.WakeFromSleep)

	case workspaceChanged:
		m.logger.Debug("Workspace changed")
		m.emit(domain.WorkspaceChanged)
	}
}

// emit publishes a wake event without blocking. Repeated events during a
// slow consumer coalesce into drops; the consumer debounces anyway.
func (m *WakeMonitor) emit(kind domain.WakeKind) {
	event := domain.WakeEvent{Kind: kind, At: m.now()}
	select {
	case m.events <- event:
	default:
		m.logChannelFullWarning()
	}
}

// logChannelFullWarning warns about dropped events, rate-limited to avoid
// log spam during event bursts
func (m *WakeMonitor) logChannelFullWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()

	const warningInterval = 5 * time.Second
	now := time.Now()
	if now.Sub(m.lastDropWarning) >= warningInterval {
		m.logger.Warn("Events channel full, dropping wake event")
		m.lastDropWarning = now
	}
}
