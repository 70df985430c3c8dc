package domain

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ImageRecord represents one persisted wallpaper on disk.
// Identity is the image filename (date + provider id), not the full path.
type ImageRecord struct {
	// SourceURL is the remote URL the image was downloaded from
	SourceURL string
	// LocalPath is the absolute path of the image file on disk
	LocalPath string
	// CaptureDate is the calendar day the image belongs to (start of day, local time)
	CaptureDate time.Time
	// Title from the provider metadata, may be empty
	Title string
	// Copyright from the provider metadata, may be empty
	Copyright string
}

// FileName returns the identity of the record
func (r ImageRecord) FileName() string {
	return filepath.Base(r.LocalPath)
}

// SameImage reports whether two records denote the same image.
// Comparison is by filename so records survive a content-root move.
func (r ImageRecord) SameImage(other ImageRecord) bool {
	return r.FileName() == other.FileName()
}

// ExistsOnDisk reports whether the image file is still present.
// Computed on demand, never stored; the filesystem is the source of truth.
func (r ImageRecord) ExistsOnDisk() bool {
	info, err := os.Stat(r.LocalPath)
	return err == nil && !info.IsDir()
}

// ImageMetadata is the normalized sidecar persisted next to each image.
// Providers serialize one of these into FetchItem.Metadata; the gallery scan
// reads it back to populate ImageRecord fields.
type ImageMetadata struct {
	Title     string `json:"title"`
	Copyright string `json:"copyright"`
	URL       string `json:"url"`
	Date      string `json:"date"`
}

// FetchItem is one downloadable image adapted from a provider response
type FetchItem struct {
	// ImageURL is the remote image to download
	ImageURL string
	// ImageFileName is the local filename the bytes are saved under
	ImageFileName string
	// MetadataFileName is the local filename for the JSON metadata sidecar
	MetadataFileName string
	// Metadata is the serialized per-image metadata to persist alongside
	Metadata []byte
	// Day is the calendar day this item covers
	Day time.Time
}

// ProviderResponse is a decoded upstream response normalized to fetchable items
type ProviderResponse struct {
	// Raw is the undecoded response body, kept for content hashing
	Raw json.RawMessage
	// Items are the downloadable images, in upstream order
	Items []FetchItem
}

// WakeEvent is emitted by the system monitor when the machine wakes from
// sleep or the active workspace changes
type WakeEvent struct {
	// Kind describes what happened
	Kind WakeKind
	// At is when the event was observed
	At time.Time
}

// WakeKind enumerates the monitor event sources
type WakeKind string

const (
	// WakeFromSleep indicates the machine resumed from suspend
	WakeFromSleep WakeKind = "wake"
	// WorkspaceChanged indicates the active desktop/workspace switched
	WorkspaceChanged WakeKind = "workspace"
)
