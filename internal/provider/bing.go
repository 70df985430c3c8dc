// Package provider adapts upstream wallpaper APIs into normalized fetch
// items. Each provider owns its HTTP plumbing; the tracker never sees a
// wire format.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/domain"
)

const (
	bingName         = "bing"
	bingDefaultBase  = "https://www.bing.com"
	bingArchivePath  = "/HPImageArchive.aspx"
	bingBatchSize    = 8 // largest window the archive endpoint serves
	bingImageVariant = "_1920x1080.jpg"
)

// bingArchive mirrors the HPImageArchive response shape
type bingArchive struct {
	Images []bingImage `json:"images"`
}

type bingImage struct {
	StartDate string `json:"startdate"`
	EndDate   string `json:"enddate"`
	URL       string `json:"url"`
	URLBase   string `json:"urlbase"`
	Copyright string `json:"copyright"`
	Title     string `json:"title"`
}

// Bing fetches Bing's image-of-the-day archive. A single archive request
// covers a multi-day window, so decoded batches are cached in memory keyed
// by day; asking for a nearby date that an earlier batch already covered
// does not hit the network again.
type Bing struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
	market  string

	mu    sync.Mutex
	cache map[string]cachedBingDay
}

type cachedBingDay struct {
	raw  json.RawMessage
	item domain.FetchItem
}

// NewBing creates the Bing provider. market is a BCP-47 market code such as
// "en-US".
func NewBing(logger *zap.Logger, market string) *Bing {
	return &Bing{
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: bingDefaultBase,
		market:  market,
		cache:   make(map[string]cachedBingDay),
	}
}

// Name returns the provider name
func (b *Bing) Name() string {
	return bingName
}

// Fetch returns the archive entry for the given calendar day. Days further
// back than the archive window cannot be served and surface as a download
// failure.
func (b *Bing) Fetch(ctx context.Context, day time.Time) (*domain.ProviderResponse, error) {
	key := dates.Key(day)

	b.mu.Lock()
	cached, ok := b.cache[key]
	b.mu.Unlock()
	if ok {
		b.logger.Debug("Bing archive cache hit", zap.String("day", key))
		return &domain.ProviderResponse{Raw: cached.raw, Items: []domain.FetchItem{cached.item}}, nil
	}

	offset := int(dates.StartOfDay(time.Now()).Sub(dates.StartOfDay(day)).Hours() / 24)
	if offset < 0 {
		offset = 0
	}

	raw, archive, err := b.fetchArchive(ctx, offset)
	if err != nil {
		return nil, err
	}

	// cache every day the batch covered, not just the requested one
	b.mu.Lock()
	var requested *domain.FetchItem
	for _, img := range archive.Images {
		item, day, err := b.adapt(img)
		if err != nil {
			b.logger.Warn("Skipping unadaptable archive entry",
				zap.String("urlbase", img.URLBase),
				zap.Error(err))
			continue
		}
		b.cache[dates.Key(day)] = cachedBingDay{raw: raw, item: item}
		if dates.Key(day) == key {
			it := item
			requested = &it
		}
	}
	b.mu.Unlock()

	if requested == nil {
		return nil, fmt.Errorf("%w: no archive entry for %s", domain.ErrDownloadFailed, key)
	}
	return &domain.ProviderResponse{Raw: raw, Items: []domain.FetchItem{*requested}}, nil
}

// fetchArchive performs one archive request for the window starting at the
// given day offset
func (b *Bing) fetchArchive(ctx context.Context, offset int) (json.RawMessage, *bingArchive, error) {
	q := url.Values{}
	q.Set("format", "js")
	q.Set("idx", fmt.Sprintf("%d", offset))
	q.Set("n", fmt.Sprintf("%d", bingBatchSize))
	q.Set("mkt", b.market)

	reqURL := b.baseURL + bingArchivePath + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create archive request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("archive request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: archive endpoint returned %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read archive response: %w", err)
	}

	var archive bingArchive
	if err := json.Unmarshal(raw, &archive); err != nil {
		return nil, nil, fmt.Errorf("failed to decode archive response: %w", err)
	}

	b.logger.Debug("Bing archive fetched",
		zap.Int("offset", offset),
		zap.Int("entries", len(archive.Images)))
	return raw, &archive, nil
}

// adapt converts one archive entry into a fetch item. The local filename
// combines the end date with the identifier substring of the image base
// path, e.g. "/th?id=OHR.OsloFjord_EN-US123" yields "20250310-OsloFjord".
func (b *Bing) adapt(img bingImage) (domain.FetchItem, time.Time, error) {
	day, err := time.ParseInLocation("20060102", img.EndDate, time.Local)
	if err != nil {
		return domain.FetchItem{}, time.Time{}, fmt.Errorf("bad enddate %q: %w", img.EndDate, err)
	}

	id := bingImageID(img.URLBase)
	if id == "" {
		return domain.FetchItem{}, time.Time{}, fmt.Errorf("no identifier in urlbase %q", img.URLBase)
	}

	imageURL := b.baseURL + img.URLBase + bingImageVariant
	base := img.EndDate + "-" + id

	meta, err := json.Marshal(domain.ImageMetadata{
		Title:     img.Title,
		Copyright: img.Copyright,
		URL:       imageURL,
		Date:      dates.Key(day),
	})
	if err != nil {
		return domain.FetchItem{}, time.Time{}, err
	}

	return domain.FetchItem{
		ImageURL:         imageURL,
		ImageFileName:    base + ".jpg",
		MetadataFileName: base + ".json",
		Metadata:         meta,
		Day:              day,
	}, day, nil
}

// bingImageID extracts the identifier substring from an archive urlbase:
// the segment between "OHR." and the market suffix underscore.
func bingImageID(urlBase string) string {
	_, after, found := strings.Cut(urlBase, "OHR.")
	if !found {
		// older entries omit the OHR prefix, fall back to the id param tail
		_, after, found = strings.Cut(urlBase, "id=")
		if !found {
			return ""
		}
	}
	if idx := strings.IndexByte(after, '_'); idx > 0 {
		after = after[:idx]
	}
	return after
}
