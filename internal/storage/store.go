// Package storage owns one provider's content directory: downloaded image
// bytes under images/ and JSON metadata sidecars under metadata/. The
// directory scan here is the gallery's source of truth; there is no index
// to drift out of sync when files are edited by hand.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/domain"
	"dailywall/internal/fsutil"
)

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// leadingDate matches filenames that encode their calendar day up front,
// either compact (20250310-...) or dashed (2025-03-10-...)
var leadingDate = regexp.MustCompile(`^(\d{4})-?(\d{2})-?(\d{2})`)

// Store manages the on-disk content of a single provider
type Store struct {
	logger      *zap.Logger
	imagesDir   string
	metadataDir string
}

// NewStore creates a store rooted at root/<provider>/
func NewStore(logger *zap.Logger, root, provider string) *Store {
	base := filepath.Join(root, provider)
	return &Store{
		logger:      logger,
		imagesDir:   filepath.Join(base, "images"),
		metadataDir: filepath.Join(base, "metadata"),
	}
}

// ImagesDir returns the image directory path
func (s *Store) ImagesDir() string {
	return s.imagesDir
}

// MetadataDir returns the metadata directory path
func (s *Store) MetadataDir() string {
	return s.metadataDir
}

// SaveImage validates that data decodes as an image and writes it under the
// given filename. Returns the absolute local path.
func (s *Store) SaveImage(fileName string, data []byte) (string, error) {
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrImageDecodeFailed, fileName, err)
	}

	path := filepath.Join(s.imagesDir, fileName)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrImageSaveFailed, fileName, err)
	}

	s.logger.Debug("Image saved",
		zap.String("file", fileName),
		zap.Int("bytes", len(data)))
	return path, nil
}

// SaveMetadata writes a metadata sidecar under the given filename
func (s *Store) SaveMetadata(fileName string, data []byte) error {
	path := filepath.Join(s.metadataDir, fileName)
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMetadataSaveFailed, fileName, err)
	}
	s.logger.Debug("Metadata saved", zap.String("file", fileName))
	return nil
}

// ScanImages walks the image directory and builds a record per recognized
// image file. Metadata sidecars fill in title, copyright, source URL and
// capture date; without one the date falls back to the filename prefix and
// finally the file mtime.
func (s *Store) ScanImages() ([]domain.ImageRecord, error) {
	entries, err := os.ReadDir(s.imagesDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan images: %w", err)
	}

	var records []domain.ImageRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := imageExtensions[ext]; !ok {
			continue
		}

		path := filepath.Join(s.imagesDir, entry.Name())
		rec := domain.ImageRecord{LocalPath: path}

		meta := s.readMetadata(entry.Name())
		if meta != nil {
			rec.Title = meta.Title
			rec.Copyright = meta.Copyright
			rec.SourceURL = meta.URL
		}
		rec.CaptureDate = s.captureDate(entry, meta)

		records = append(records, rec)
	}

	s.logger.Debug("Image scan complete",
		zap.String("dir", s.imagesDir),
		zap.Int("count", len(records)))
	return records, nil
}

// Thumbnail renders a scaled-down preview of the stored image for the UI
func (s *Store) Thumbnail(localPath string, width, height int) (image.Image, error) {
	img, err := imaging.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image for preview: %w", err)
	}
	return imaging.Fit(img, width, height, imaging.Lanczos), nil
}

// readMetadata loads the sidecar for an image filename, nil if absent or
// unreadable. A broken sidecar degrades the record, it does not drop it.
func (s *Store) readMetadata(imageName string) *domain.ImageMetadata {
	base := strings.TrimSuffix(imageName, filepath.Ext(imageName))
	path := filepath.Join(s.metadataDir, base+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta domain.ImageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("Corrupt metadata sidecar",
			zap.String("path", path),
			zap.Error(err))
		return nil
	}
	return &meta
}

// captureDate resolves the calendar day of an image: metadata date, then
// filename prefix, then file mtime
func (s *Store) captureDate(entry os.DirEntry, meta *domain.ImageMetadata) time.Time {
	if meta != nil && meta.Date != "" {
		if day, err := time.ParseInLocation(dates.KeyLayout, meta.Date, time.Local); err == nil {
			return day
		}
	}

	if m := leadingDate.FindStringSubmatch(entry.Name()); m != nil {
		if day, err := time.ParseInLocation("20060102", m[1]+m[2]+m[3], time.Local); err == nil {
			return day
		}
	}

	if info, err := entry.Info(); err == nil {
		return dates.StartOfDay(info.ModTime())
	}
	return time.Time{}
}
