package domain

import (
	"context"
	"time"
)

// Provider defines the interface for an upstream daily wallpaper source.
// Implementations adapt one provider's API into normalized fetch items.
type Provider interface {
	// Name returns the provider name, also used as its content subdirectory
	Name() string

	// Fetch retrieves the upstream response covering the given calendar day.
	// Providers whose endpoint is not date-parameterized accept the day for
	// interface symmetry and ignore it.
	Fetch(ctx context.Context, day time.Time) (*ProviderResponse, error)
}

// Fetcher defines the interface for downloading raw bytes from a URL
type Fetcher interface {
	// Fetch downloads the resource at url and returns its bytes
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// WallpaperSetter defines the interface for assigning the desktop wallpaper
type WallpaperSetter interface {
	// SetWallpaper sets the wallpaper on every screen, skipping screens
	// already showing the given image
	SetWallpaper(ctx context.Context, imagePath string) error
}

// GalleryView is the surface the download tracker pushes UI state through.
// Implementations must marshal onto their own affinity context internally;
// every method is safe to call from any goroutine.
type GalleryView interface {
	// ReloadImages rebuilds the gallery collection from disk
	ReloadImages()

	// SetImageReveal withholds the given calendar day from the gallery and
	// arms the reveal state for it
	SetImageReveal(day time.Time)

	// SetImageRevealMessage publishes a human-readable progress message
	SetImageRevealMessage(text string)
}

// Monitor defines the interface for system wake/workspace event sources
type Monitor interface {
	// Start begins monitoring; blocks until the context is cancelled
	Start(ctx context.Context) error

	// Stop gracefully stops the monitor
	Stop(ctx context.Context) error

	// Events returns a read-only channel emitting wake events
	Events() <-chan WakeEvent
}

// Notifier defines the interface for user-facing desktop notifications
type Notifier interface {
	// Notify shows a transient notification; errors are the caller's to log
	Notify(ctx context.Context, summary, body string) error
}

// Config defines the interface for application configuration
type Config interface {
	// ContentRoot returns the directory all provider content lives under
	ContentRoot() string

	// LookbackDays returns how many calendar days back missing-date
	// discovery searches
	LookbackDays() int

	// RetryAttempts returns the per-item fetch attempt cap
	RetryAttempts() int

	// RetryDelay returns the fixed wait between fetch attempts
	RetryDelay() time.Duration

	// DownloadTimeout returns the absolute per-item download deadline
	DownloadTimeout() time.Duration
}
