// Package settings persists per-user gallery state: favorites, UI toggles,
// the best-effort cursor index and the last wallpaper URL. The file is plain
// JSON with no schema versioning; a missing file yields defaults which are
// written back on first save.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"dailywall/internal/fsutil"
)

// Toggles holds the boolean UI preferences
type Toggles struct {
	ShuffleFavoritesOnly   bool `json:"shuffle_favorites_only"`
	SetWallpaperOnNavigate bool `json:"set_wallpaper_on_navigation"`
	Autostart              bool `json:"autostart"`
}

type fileFormat struct {
	Favorites    []string `json:"favorites"`
	Languages    []string `json:"languages"`
	Toggles      Toggles  `json:"toggles"`
	CurrentIndex int      `json:"current_index"`
	WallpaperURL string   `json:"wallpaper_url,omitempty"`
}

// Settings is the in-memory view of config.json. All access is mutex
// guarded; mutations are written back immediately.
type Settings struct {
	logger *zap.Logger
	path   string

	mu           sync.Mutex
	favorites    map[string]struct{}
	languages    []string
	toggles      Toggles
	currentIndex int
	wallpaperURL string
}

// Load reads config.json from path, creating defaults if it is absent.
// A corrupt file is replaced by defaults; user state is not worth refusing
// to start over.
func Load(logger *zap.Logger, path string) (*Settings, error) {
	s := &Settings{
		logger:    logger,
		path:      path,
		favorites: make(map[string]struct{}),
		languages: []string{"en-US"},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Info("No settings file, writing defaults", zap.String("path", path))
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		logger.Warn("Corrupt settings file, falling back to defaults",
			zap.String("path", path),
			zap.Error(err))
		return s, nil
	}

	for _, fav := range ff.Favorites {
		s.favorites[fav] = struct{}{}
	}
	if len(ff.Languages) > 0 {
		s.languages = ff.Languages
	}
	s.toggles = ff.Toggles
	s.currentIndex = ff.CurrentIndex
	s.wallpaperURL = ff.WallpaperURL
	return s, nil
}

// IsFavorite reports whether the given image path is favorited
func (s *Settings) IsFavorite(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.favorites[path]
	return ok
}

// ToggleFavorite flips favorite membership for the given path and persists
func (s *Settings) ToggleFavorite(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.favorites[path]; ok {
		delete(s.favorites, path)
	} else {
		s.favorites[path] = struct{}{}
	}
	return s.save()
}

// Favorites returns a snapshot of the favorite set
func (s *Settings) Favorites() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.favorites))
	for k := range s.favorites {
		out[k] = struct{}{}
	}
	return out
}

// Languages returns the configured provider market/language codes
func (s *Settings) Languages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out
}

// GetToggles returns the current toggle values
func (s *Settings) GetToggles() Toggles {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toggles
}

// SetToggles replaces the toggle values and persists
func (s *Settings) SetToggles(t Toggles) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggles = t
	return s.save()
}

// CurrentIndex returns the last persisted cursor index. Best effort only;
// the gallery re-validates it against the collection on load.
func (s *Settings) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// SetCurrentIndex persists the cursor index
func (s *Settings) SetCurrentIndex(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentIndex = idx
	return s.save()
}

// WallpaperURL returns the last set wallpaper source URL, if any
func (s *Settings) WallpaperURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallpaperURL
}

// SetWallpaperURL persists the last set wallpaper source URL
func (s *Settings) SetWallpaperURL(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallpaperURL = url
	return s.save()
}

// save writes the settings file atomically. Callers must hold s.mu.
func (s *Settings) save() error {
	ff := fileFormat{
		Favorites:    make([]string, 0, len(s.favorites)),
		Languages:    s.languages,
		Toggles:      s.toggles,
		CurrentIndex: s.currentIndex,
		WallpaperURL: s.wallpaperURL,
	}
	for fav := range s.favorites {
		ff.Favorites = append(ff.Favorites, fav)
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
