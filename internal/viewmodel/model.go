// Package viewmodel binds one provider's gallery state together: the sorted
// collection and its cursor, the persisted user settings, the reveal
// scheduler and the wallpaper setter. It is the surface the download tracker
// pushes into and the surface a UI reads from; a single mutex serializes all
// of it.
package viewmodel

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/domain"
	"dailywall/internal/gallery"
	"dailywall/internal/reveal"
	"dailywall/internal/settings"
	"dailywall/internal/storage"
)

// Model is the per-provider gallery view model. It implements
// domain.GalleryView for the download tracker and exposes the navigation
// operations a UI calls. Safe for concurrent use.
type Model struct {
	logger    *zap.Logger
	store     *storage.Store
	settings  *settings.Settings
	scheduler *reveal.Scheduler
	setter    domain.WallpaperSetter
	notifier  domain.Notifier

	mu       sync.Mutex
	iterator *gallery.Iterator
	status   string
}

// New creates a view model with an empty collection. Call Load to populate
// it from disk.
func New(
	logger *zap.Logger,
	store *storage.Store,
	sets *settings.Settings,
	scheduler *reveal.Scheduler,
	setter domain.WallpaperSetter,
	notifier domain.Notifier,
) *Model {
	return &Model{
		logger:    logger,
		store:     store,
		settings:  sets,
		scheduler: scheduler,
		setter:    setter,
		notifier:  notifier,
		iterator:  gallery.NewIterator(gallery.AnyRandom{}),
	}
}

// Load scans the content directory and restores the cursor from the
// persisted settings: the last wallpaper URL wins, the saved index is the
// fallback. Both are best effort; a stale value leaves the cursor at the
// start.
func (m *Model) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.reloadLocked(); err != nil {
		return err
	}

	if url := m.settings.WallpaperURL(); url != "" {
		m.iterator.SetIndexByURL(url)
	}
	if _, ok := m.iterator.Current(); !ok {
		m.iterator.SetIndex(m.settings.CurrentIndex())
	}
	if _, ok := m.iterator.Current(); !ok {
		m.iterator.First()
	}
	return nil
}

// ReloadImages rebuilds the collection from disk, keeping the cursor on the
// same image when it survives the rescan. Part of domain.GalleryView.
func (m *Model) ReloadImages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.reloadLocked(); err != nil {
		m.logger.Error("Gallery reload failed", zap.Error(err))
	}
}

// SetImageReveal withholds the given calendar day from the collection until
// the reveal fires. Part of domain.GalleryView.
func (m *Model) SetImageReveal(day time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Info("Withholding day pending reveal", zap.String("day", dates.Key(day)))
	if err := m.reloadLocked(); err != nil {
		m.logger.Error("Gallery reload failed", zap.Error(err))
	}
}

// SetImageRevealMessage publishes the progress text for the pending reveal
// and mirrors it as a desktop notification. Part of domain.GalleryView.
func (m *Model) SetImageRevealMessage(text string) {
	m.mu.Lock()
	m.status = text
	m.mu.Unlock()

	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(context.Background(), "Daily wallpaper", text); err != nil {
		m.logger.Debug("Notification failed", zap.Error(err))
	}
}

// StatusMessage returns the last published progress text
func (m *Model) StatusMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ExistingDateKeys returns the calendar-day coverage of the current
// collection, the input to missing-date discovery.
func (m *Model) ExistingDateKeys() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gallery.ExistingDateKeys(m.iterator.Items())
}

// Current returns the image under the cursor
func (m *Model) Current() (domain.ImageRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iterator.Current()
}

// IsFirst reports whether backwards navigation is exhausted
func (m *Model) IsFirst() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iterator.IsFirst()
}

// IsLast reports whether forwards navigation is exhausted
func (m *Model) IsLast() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iterator.IsLast()
}

// Next advances the cursor and applies the navigation side effects
func (m *Model) Next(ctx context.Context) (domain.ImageRecord, bool) {
	return m.navigate(ctx, func() (domain.ImageRecord, bool) { return m.iterator.Next() })
}

// Previous moves the cursor back and applies the navigation side effects
func (m *Model) Previous(ctx context.Context) (domain.ImageRecord, bool) {
	return m.navigate(ctx, func() (domain.ImageRecord, bool) { return m.iterator.Previous() })
}

// First moves the cursor to the oldest image
func (m *Model) First(ctx context.Context) (domain.ImageRecord, bool) {
	return m.navigate(ctx, func() (domain.ImageRecord, bool) { return m.iterator.First() })
}

// Last moves the cursor to the newest image
func (m *Model) Last(ctx context.Context) (domain.ImageRecord, bool) {
	return m.navigate(ctx, func() (domain.ImageRecord, bool) { return m.iterator.Last() })
}

// Random jumps the cursor to a random image, restricted to favorites when
// the shuffle_favorites_only toggle is set. No qualifying image leaves the
// cursor where it is.
func (m *Model) Random(ctx context.Context) (domain.ImageRecord, bool) {
	return m.navigate(ctx, func() (domain.ImageRecord, bool) {
		if m.settings.GetToggles().ShuffleFavoritesOnly {
			m.iterator.SetStrategy(gallery.FavoriteRandom{Favorites: m.settings.Favorites})
		} else {
			m.iterator.SetStrategy(gallery.AnyRandom{})
		}
		return m.iterator.Random()
	})
}

// MoveToNewest places the cursor on the newest image and sets it as the
// wallpaper. This is the reveal hook; the wallpaper change is the whole
// point, so the navigation toggle does not apply.
func (m *Model) MoveToNewest(ctx context.Context) {
	m.mu.Lock()
	rec, ok := m.iterator.Last()
	if ok {
		m.persistCursorLocked(rec)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.setter.SetWallpaper(ctx, rec.LocalPath); err != nil {
		m.logger.Error("Failed to set revealed wallpaper",
			zap.String("path", rec.LocalPath),
			zap.Error(err))
	}
}

// SetCurrentAsWallpaper sets the image under the cursor as the wallpaper
func (m *Model) SetCurrentAsWallpaper(ctx context.Context) error {
	m.mu.Lock()
	rec, ok := m.iterator.Current()
	if ok {
		m.persistCursorLocked(rec)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.setter.SetWallpaper(ctx, rec.LocalPath)
}

// ToggleCurrentFavorite flips favorite membership for the image under the
// cursor
func (m *Model) ToggleCurrentFavorite() error {
	m.mu.Lock()
	rec, ok := m.iterator.Current()
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.settings.ToggleFavorite(rec.LocalPath)
}

// CancelReveal is the user-initiated reveal cancellation passthrough
func (m *Model) CancelReveal() {
	m.scheduler.Cancel()
}

// navigate runs a cursor move under the lock, then applies the side
// effects: best-effort index persistence and, when the toggle asks for it,
// setting the wallpaper. The wallpaper call happens outside the lock so a
// slow platform command does not stall reloads.
func (m *Model) navigate(ctx context.Context, move func() (domain.ImageRecord, bool)) (domain.ImageRecord, bool) {
	m.mu.Lock()
	rec, ok := move()
	if ok {
		m.persistCursorLocked(rec)
	}
	m.mu.Unlock()

	if !ok {
		return domain.ImageRecord{}, false
	}

	if m.settings.GetToggles().SetWallpaperOnNavigate {
		if err := m.setter.SetWallpaper(ctx, rec.LocalPath); err != nil {
			m.logger.Error("Failed to set wallpaper on navigation",
				zap.String("path", rec.LocalPath),
				zap.Error(err))
		}
	}
	return rec, true
}

// persistCursorLocked saves the cursor position and source URL. Best effort;
// a failed write only costs cursor restoration on the next start.
func (m *Model) persistCursorLocked(rec domain.ImageRecord) {
	if err := m.settings.SetCurrentIndex(m.iterator.Index()); err != nil {
		m.logger.Warn("Failed to persist cursor index", zap.Error(err))
	}
	if rec.SourceURL != "" {
		if err := m.settings.SetWallpaperURL(rec.SourceURL); err != nil {
			m.logger.Warn("Failed to persist wallpaper URL", zap.Error(err))
		}
	}
}

// reloadLocked rebuilds the collection from a directory scan, excluding any
// held-back reveal day. Callers hold m.mu.
func (m *Model) reloadLocked() error {
	records, err := m.store.ScanImages()
	if err != nil {
		return err
	}

	var heldDay time.Time
	if day, ok := m.scheduler.HeldDate(); ok {
		heldDay = day
	}

	collection := gallery.Build(m.logger, records, heldDay)
	m.iterator.SetItems(collection, true)
	m.logger.Debug("Gallery collection rebuilt",
		zap.Int("images", len(collection)),
		zap.Bool("dayHeld", !heldDay.IsZero()))
	return nil
}
