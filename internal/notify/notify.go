// Package notify shows transient desktop notifications through
// org.freedesktop.Notifications. A missing session bus degrades to a no-op;
// progress messages are a courtesy, never a requirement.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyMethod    = "org.freedesktop.Notifications.Notify"
	expireMillis    = 5000
	applicationName = "dailywall"
)

// DesktopNotifier sends notifications over the session bus. Connection is
// lazy; the first Notify dials the bus and a failure is remembered so a
// bus-less environment does not re-dial on every message.
type DesktopNotifier struct {
	logger *zap.Logger

	mu          sync.Mutex
	conn        *dbus.Conn
	unavailable bool

	// replaces the previous notification instead of stacking a new one
	lastID uint32
}

// NewDesktopNotifier creates a notifier; no connection is made yet
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{logger: logger}
}

// Notify shows a transient notification. On an unavailable session bus it
// returns nil and stays silent.
func (n *DesktopNotifier) Notify(ctx context.Context, summary, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.unavailable {
		return nil
	}
	if n.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			n.logger.Info("Session bus unavailable, notifications disabled", zap.Error(err))
			n.unavailable = true
			return nil
		}
		n.conn = conn
	}

	obj := n.conn.Object(notifyService, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		applicationName,     // app_name
		n.lastID,            // replaces_id
		"",                  // app_icon
		summary,             // summary
		body,                // body
		[]string{},          // actions
		map[string]dbus.Variant{}, // hints
		int32(expireMillis), // expire_timeout
	)
	if call.Err != nil {
		return fmt.Errorf("notification failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err == nil {
		n.lastID = id
	}
	return nil
}

// Close releases the bus connection
func (n *DesktopNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
