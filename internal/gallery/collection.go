package gallery

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/domain"
)

// Build assembles the gallery collection from scanned records: sorted
// ascending by capture date, duplicates by identity dropped, and any record
// on the held-back reveal day excluded. heldDay may be zero when no reveal
// is pending.
func Build(logger *zap.Logger, records []domain.ImageRecord, heldDay time.Time) []domain.ImageRecord {
	seen := make(map[string]struct{}, len(records))
	holdKey := ""
	if !heldDay.IsZero() {
		holdKey = dates.Key(heldDay)
	}

	out := make([]domain.ImageRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.FileName()]; dup {
			logger.Debug("Skipping duplicate gallery record", zap.String("file", rec.FileName()))
			continue
		}
		if holdKey != "" && dates.Key(rec.CaptureDate) == holdKey {
			logger.Debug("Withholding record pending reveal", zap.String("file", rec.FileName()))
			continue
		}
		seen[rec.FileName()] = struct{}{}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CaptureDate.Before(out[j].CaptureDate)
	})
	return out
}

// ExistingDateKeys returns the set of calendar-day keys covered by the
// records, the input to missing-date discovery.
func ExistingDateKeys(records []domain.ImageRecord) map[string]struct{} {
	keys := make(map[string]struct{}, len(records))
	for _, rec := range records {
		keys[dates.Key(rec.CaptureDate)] = struct{}{}
	}
	return keys
}
