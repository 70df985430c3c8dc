// Package tracker orchestrates one provider's download cycle: discovering
// missing calendar days, fetching and persisting their images with bounded
// concurrency, retry and a hard timeout, deduplicating already-processed
// responses, and coordinating the deferred reveal of today's image.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dailywall/internal/dates"
	"dailywall/internal/dedup"
	"dailywall/internal/domain"
	"dailywall/internal/reveal"
	"dailywall/internal/storage"
)

// maxConcurrentDownloads bounds the fan-out; daily providers rarely have
// more than a handful of missing days or items
const maxConcurrentDownloads = 4

const (
	msgDownloading = "Downloading images"
	msgReady       = "Next image ready"
)

// GallerySource exposes the date coverage of the current collection, the
// input to missing-date discovery
type GallerySource interface {
	ExistingDateKeys() map[string]struct{}
}

// Options selects the per-provider cycle shape
type Options struct {
	// LookbackDays is how far back missing-date discovery searches.
	// Ignored when HashGated is set.
	LookbackDays int

	// HashGated switches to the osu!-style cycle: the endpoint is not
	// date-parameterized, so freshness is decided once per day by hashing
	// the whole response against the dedup store, and the fan-out is per
	// item instead of per date.
	HashGated bool
}

// Tracker runs download cycles for a single provider. Two instances exist,
// one per provider; they share nothing and may run simultaneously.
type Tracker struct {
	logger    *zap.Logger
	provider  domain.Provider
	fetcher   domain.Fetcher
	store     *storage.Store
	dedup     *dedup.Store
	scheduler *reveal.Scheduler
	view      domain.GalleryView
	gallery   GallerySource
	cfg       domain.Config
	opts      Options
	lock      *Lock
	now       func() time.Time
}

// New creates a tracker. All collaborators are injected; the tracker holds
// non-owning references to the gallery source and view surface.
func New(
	logger *zap.Logger,
	provider domain.Provider,
	fetcher domain.Fetcher,
	store *storage.Store,
	dedupStore *dedup.Store,
	scheduler *reveal.Scheduler,
	view domain.GalleryView,
	gallery GallerySource,
	cfg domain.Config,
	opts Options,
) *Tracker {
	return &Tracker{
		logger:    logger.With(zap.String("provider", provider.Name())),
		provider:  provider,
		fetcher:   fetcher,
		store:     store,
		dedup:     dedupStore,
		scheduler: scheduler,
		view:      view,
		gallery:   gallery,
		cfg:       cfg,
		opts:      opts,
		lock:      NewLock(),
		now:       time.Now,
	}
}

// DownloadMissing runs one download cycle. explicit overrides missing-date
// discovery when non-empty; reload rebuilds the gallery collection from
// disk before discovery. The returned slice holds exactly the days whose
// image and metadata both persisted.
//
// A held lock or a pending reveal short-circuits the cycle with an empty
// result; neither is an error.
func (t *Tracker) DownloadMissing(ctx context.Context, explicit []time.Time, reloadFirst bool) []time.Time {
	if !t.lock.TryAcquire() {
		t.logger.Info("Download cycle already in progress, skipping")
		return nil
	}
	defer t.lock.Release()

	// an in-flight reveal takes priority over a new check
	if t.scheduler.Pending() {
		t.scheduler.RemoveIfOverdue(ctx)
		if t.scheduler.Pending() {
			t.logger.Info("Reveal pending, skipping download cycle")
			return nil
		}
	}

	if reloadFirst {
		t.view.ReloadImages()
	}

	targets := t.resolveTargets(explicit)
	if len(targets) == 0 {
		t.logger.Debug("No missing dates")
		return nil
	}

	t.logger.Info("Starting download cycle", zap.Int("dates", len(targets)))
	t.announce(targets)

	var mu sync.Mutex
	succeeded := make(map[string]time.Time)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for _, day := range targets {
		day := day
		g.Go(func() error {
			var err error
			if t.opts.HashGated {
				err = t.downloadHashGated(gctx, day, &mu, succeeded)
			} else {
				err = t.downloadDay(gctx, day)
				if err == nil {
					mu.Lock()
					succeeded[dates.Key(day)] = day
					mu.Unlock()
				}
			}
			if err != nil {
				t.logger.Warn("Download failed",
					zap.String("day", dates.Key(day)),
					zap.Error(err))
				// the reveal was waiting on this download; do not leave the
				// UI waiting forever. Siblings keep running.
				t.scheduler.DeleteTrigger()
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are per-day results

	result := make([]time.Time, 0, len(succeeded))
	for _, day := range succeeded {
		result = append(result, day)
	}

	if len(result) == 0 {
		// nothing new arrived; a reveal scheduled by this cycle has nothing
		// to show
		t.scheduler.DeleteTrigger()
	}

	if t.scheduler.Pending() {
		// the wait must outlive this call, only cancellation of the daemon
		// itself should stop it
		t.scheduler.StartTrigger(context.WithoutCancel(ctx))
		t.view.SetImageRevealMessage(msgReady)
		t.scheduler.SetMessage(msgReady)
	}

	t.logger.Info("Download cycle finished",
		zap.Int("requested", len(targets)),
		zap.Int("downloaded", len(result)))
	return result
}

// resolveTargets picks the calendar days this cycle works on
func (t *Tracker) resolveTargets(explicit []time.Time) []time.Time {
	if len(explicit) > 0 {
		targets := make([]time.Time, 0, len(explicit))
		for _, day := range explicit {
			targets = append(targets, dates.StartOfDay(day))
		}
		return targets
	}

	today := dates.StartOfDay(t.now())
	if t.opts.HashGated {
		// once per day: a recorded response for today means the provider
		// was already checked
		if t.dedup.HasDate(dates.Key(today)) {
			return nil
		}
		return []time.Time{today}
	}
	return dates.Missing(t.gallery.ExistingDateKeys(), t.cfg.LookbackDays(), t.now())
}

// announce arms the reveal for today and pushes the initial progress
// message. Days other than today arrive silently; only a new "today" image
// is worth deferring.
func (t *Tracker) announce(targets []time.Time) {
	now := t.now()
	for _, day := range targets {
		if dates.IsToday(day, now) {
			t.scheduler.Schedule(day)
			t.view.SetImageReveal(day)
			break
		}
	}
	t.view.SetImageRevealMessage(msgDownloading)
	t.scheduler.SetMessage(msgDownloading)
}

// downloadDay fetches and persists the image for one calendar day,
// retrying connectivity failures and racing the whole task against the
// absolute download timeout.
func (t *Tracker) downloadDay(ctx context.Context, day time.Time) error {
	taskCtx, cancel := context.WithTimeout(ctx, t.cfg.DownloadTimeout())
	defer cancel()

	err := t.withRetry(taskCtx, func() error {
		resp, err := t.provider.Fetch(taskCtx, day)
		if err != nil {
			return err
		}
		for _, item := range resp.Items {
			if err := t.persistItem(taskCtx, item); err != nil {
				return err
			}
		}
		return nil
	})
	return t.classifyTimeout(taskCtx, err)
}

// downloadHashGated runs the osu!-style cycle for one day: fetch the whole
// set once, short-circuit on an unchanged response hash, otherwise fan out
// per item and record the hash only after everything persisted.
func (t *Tracker) downloadHashGated(ctx context.Context, day time.Time, mu *sync.Mutex, succeeded map[string]time.Time) error {
	taskCtx, cancel := context.WithTimeout(ctx, t.cfg.DownloadTimeout())
	defer cancel()

	var resp *domain.ProviderResponse
	err := t.withRetry(taskCtx, func() error {
		var err error
		resp, err = t.provider.Fetch(taskCtx, day)
		return err
	})
	if err := t.classifyTimeout(taskCtx, err); err != nil {
		return err
	}

	hash, err := dedup.Hash(resp.Raw)
	if err != nil {
		return fmt.Errorf("failed to hash response: %w", err)
	}
	if !t.dedup.IsNew(hash) {
		t.logger.Info("Upstream response unchanged, skipping downloads",
			zap.String("hash", hash[:12]))
		return nil
	}

	g, gctx := errgroup.WithContext(taskCtx)
	g.SetLimit(maxConcurrentDownloads)
	var failed bool
	var failMu sync.Mutex
	for _, item := range resp.Items {
		item := item
		g.Go(func() error {
			if err := t.persistItem(gctx, item); err != nil {
				t.logger.Warn("Item download failed",
					zap.String("file", item.ImageFileName),
					zap.Error(err))
				failMu.Lock()
				failed = true
				failMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed {
		// do not record the hash: the set is incomplete and the next cycle
		// must try again
		return fmt.Errorf("%w: incomplete seasonal set", domain.ErrDownloadFailed)
	}

	// fail-closed: claiming success while the dedup write was lost would
	// re-download the whole set every cycle
	if err := t.dedup.Record(day, hash); err != nil {
		return err
	}

	mu.Lock()
	succeeded[dates.Key(day)] = day
	mu.Unlock()
	return nil
}

// persistItem downloads one image and writes bytes plus metadata. An image
// already on disk is not fetched again. A saved image whose metadata write
// fails stays on disk; the next scan simply sees a record without sidecar
// data.
func (t *Tracker) persistItem(ctx context.Context, item domain.FetchItem) error {
	target := domain.ImageRecord{LocalPath: filepath.Join(t.store.ImagesDir(), item.ImageFileName)}
	if target.ExistsOnDisk() {
		t.logger.Debug("Image already present, skipping download",
			zap.String("file", item.ImageFileName))
		return t.store.SaveMetadata(item.MetadataFileName, item.Metadata)
	}

	data, err := t.fetcher.Fetch(ctx, item.ImageURL)
	if err != nil {
		return err
	}
	if _, err := t.store.SaveImage(item.ImageFileName, data); err != nil {
		return err
	}
	return t.store.SaveMetadata(item.MetadataFileName, item.Metadata)
}

// withRetry runs work, retrying connectivity-class failures with a fixed
// interruptible delay. Any other error surfaces immediately; the final
// attempt's error surfaces as-is.
func (t *Tracker) withRetry(ctx context.Context, work func() error) error {
	attempts := t.cfg.RetryAttempts()
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = work()
		if err == nil {
			return nil
		}
		if !domain.IsConnectivityError(err) || attempt == attempts {
			return err
		}

		msg := fmt.Sprintf("No internet connection. Try %d/%d…", attempt, attempts)
		t.view.SetImageRevealMessage(msg)
		t.scheduler.SetMessage(msg)
		t.logger.Warn("Connectivity failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", t.cfg.RetryDelay()),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.RetryDelay()):
		}
	}
	return err
}

// classifyTimeout converts a deadline-driven failure into the typed timeout
// error, leaving the caller's own cancellation untouched
func (t *Tracker) classifyTimeout(taskCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", domain.ErrTimeout, t.cfg.DownloadTimeout())
	}
	return err
}
