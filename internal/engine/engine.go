// Package engine drives the download trackers from system events: one
// check on startup, then one debounced check per wake or workspace event.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/domain"
)

// debounceDuration is how long the loop waits for event silence before
// running a check. Resume from suspend often delivers several signals
// back to back.
const debounceDuration = 2 * time.Second

// Downloader is the tracker surface the engine drives
type Downloader interface {
	// DownloadMissing runs one download cycle and returns the days that
	// completed
	DownloadMissing(ctx context.Context, explicit []time.Time, reloadFirst bool) []time.Time
}

// Engine consumes monitor events and triggers download cycles on every
// registered tracker
type Engine struct {
	logger      *zap.Logger
	monitor     domain.Monitor
	downloaders []Downloader
}

// NewEngine creates the orchestration engine
func NewEngine(logger *zap.Logger, mon domain.Monitor, downloaders []Downloader) *Engine {
	return &Engine{
		logger:      logger,
		monitor:     mon,
		downloaders: downloaders,
	}
}

// Start launches the event loop in a goroutine and returns immediately.
// An initial check runs before the first event.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("Engine starting", zap.Int("trackers", len(e.downloaders)))
	go e.runLoop(ctx)
	return nil
}

// Stop gracefully stops the engine; the loop exits with the context
func (e *Engine) Stop(ctx context.Context) error {
	e.logger.Info("Engine stopping")
	return nil
}

// runLoop is the main event loop with debouncing: a burst of wake events
// collapses into a single download cycle.
func (e *Engine) runLoop(ctx context.Context) {
	e.runAll(ctx)

	events := e.monitor.Events()
	timer := time.NewTimer(debounceDuration)
	timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case event, ok := <-events:
			if !ok {
				e.logger.Info("Monitor events channel closed")
				return
			}
			e.logger.Debug("Event received, debouncing",
				zap.String("kind", string(event.Kind)))
			pending = true
			timer.Reset(debounceDuration)

		case <-timer.C:
			if pending {
				pending = false
				e.runAll(ctx)
			}
		}
	}
}

// runAll triggers one download cycle per tracker. Trackers share nothing
// and run concurrently; each reloads its gallery from disk first so files
// changed while the machine slept are picked up.
func (e *Engine) runAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range e.downloaders {
		d := d
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DownloadMissing(ctx, nil, true)
		}()
	}
	wg.Wait()
}
