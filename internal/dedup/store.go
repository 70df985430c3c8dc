package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/fsutil"
)

// defaultRetention bounds store growth: records older than this are pruned
// on write. Daily use produces one record per day, so two years keeps the
// file well under a thousand entries.
const defaultRetention = 2 * 365 * 24 * time.Hour

// Record is one processed-response marker
type Record struct {
	Date   string `json:"date"`
	SHA256 string `json:"sha256"`
}

// Store persists the set of processed (date, hash) records for one provider.
// Reads fail open (missing or corrupt file means an empty store); writes
// fail closed and must be surfaced by the caller.
type Store struct {
	logger    *zap.Logger
	path      string
	retention time.Duration
}

// NewStore creates a store backed by the given JSON file
func NewStore(logger *zap.Logger, path string) *Store {
	return &Store{
		logger:    logger,
		path:      path,
		retention: defaultRetention,
	}
}

// IsNew reports whether no stored record carries the given hash
func (s *Store) IsNew(hash string) bool {
	for _, rec := range s.load() {
		if rec.SHA256 == hash {
			return false
		}
	}
	return true
}

// HasDate reports whether any record exists for the given day key
func (s *Store) HasDate(dayKey string) bool {
	for _, rec := range s.load() {
		if rec.Date == dayKey {
			return true
		}
	}
	return false
}

// Record appends a (date, hash) record and writes the store back atomically.
// A write failure is a hard error: losing the record would cause the same
// response to be processed again on every cycle.
func (s *Store) Record(day time.Time, hash string) error {
	records := s.load()
	records = append(records, Record{Date: dates.Key(day), SHA256: hash})
	records = s.prune(records, time.Now())

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dedup store: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dedup store: %w", err)
	}
	return nil
}

// load reads the persisted records. Any read or decode failure yields an
// empty set: re-downloading is recoverable, refusing to run is not.
func (s *Store) load() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read dedup store, treating as empty",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("Corrupt dedup store, treating as empty",
			zap.String("path", s.path),
			zap.Error(err))
		return nil
	}
	return records
}

// prune drops records older than the retention horizon and keeps the rest
// in date order. Records with unparseable dates are kept.
func (s *Store) prune(records []Record, now time.Time) []Record {
	if s.retention <= 0 {
		return records
	}
	horizon := now.Add(-s.retention)

	kept := records[:0]
	for _, rec := range records {
		day, err := time.ParseInLocation(dates.KeyLayout, rec.Date, time.Local)
		if err == nil && day.Before(horizon) {
			continue
		}
		kept = append(kept, rec)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Date < kept[j].Date })
	return kept
}

