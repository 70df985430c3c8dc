//go:build windows
// +build windows

package executor

import (
	"context"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"go.uber.org/zap"
)

const (
	spiSetDeskWallpaper = 0x0014
	spifUpdateIniFile   = 0x0001
	spifSendChange      = 0x0002
)

// WindowsExecutor sets the wallpaper through SystemParametersInfoW
type WindowsExecutor struct {
	logger  *zap.Logger
	screens *screenTracker
}

// NewExecutor creates the platform wallpaper executor (Windows implementation)
func NewExecutor(logger *zap.Logger) (*WindowsExecutor, error) {
	logger.Info("Windows wallpaper setter initialized")
	return &WindowsExecutor{
		logger:  logger,
		screens: newScreenTracker(),
	}, nil
}

// SetWallpaper sets the desktop wallpaper using the Windows API. Displays
// already showing the image are skipped.
func (e *WindowsExecutor) SetWallpaper(ctx context.Context, imagePath string) error {
	pending := e.screens.pending(imagePath)
	if len(pending) == 0 {
		e.logger.Debug("Wallpaper already set on all displays",
			zap.String("path", imagePath))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ptr, err := syscall.UTF16PtrFromString(imagePath)
	if err != nil {
		return fmt.Errorf("invalid wallpaper path %q: %w", imagePath, err)
	}

	ok := win.SystemParametersInfo(
		spiSetDeskWallpaper,
		0,
		unsafe.Pointer(ptr),
		spifUpdateIniFile|spifSendChange,
	)
	if !ok {
		return fmt.Errorf("SystemParametersInfo failed for %s", imagePath)
	}

	e.screens.markSet(pending, imagePath)
	e.logger.Info("Wallpaper set",
		zap.String("path", imagePath),
		zap.Int("displays", len(pending)))
	return nil
}
