package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"dailywall/internal/dates"
	"dailywall/internal/dedup"
	"dailywall/internal/domain"
	"dailywall/internal/reveal"
	"dailywall/internal/storage"
)

// --- fakes -----------------------------------------------------------------

type fakeConfig struct {
	lookback int
	attempts int
	delay    time.Duration
	timeout  time.Duration
}

func (c fakeConfig) ContentRoot() string            { return "" }
func (c fakeConfig) LookbackDays() int              { return c.lookback }
func (c fakeConfig) RetryAttempts() int             { return c.attempts }
func (c fakeConfig) RetryDelay() time.Duration      { return c.delay }
func (c fakeConfig) DownloadTimeout() time.Duration { return c.timeout }

func testConfig() fakeConfig {
	return fakeConfig{lookback: 15, attempts: 5, delay: 5 * time.Millisecond, timeout: 5 * time.Second}
}

// fakeProvider serves one item per requested day, with optional scripted
// failures keyed by day
type fakeProvider struct {
	name string

	mu         sync.Mutex
	failWith   map[string]error
	failTimes  map[string]int // connectivity failures before success
	fetchCalls atomic.Int32
	items      func(day time.Time) []domain.FetchItem
	raw        string
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Fetch(ctx context.Context, day time.Time) (*domain.ProviderResponse, error) {
	p.fetchCalls.Add(1)
	key := dates.Key(day)

	p.mu.Lock()
	if n, ok := p.failTimes[key]; ok && n > 0 {
		p.failTimes[key] = n - 1
		p.mu.Unlock()
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}
	err := p.failWith[key]
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	raw := p.raw
	if raw == "" {
		raw = fmt.Sprintf(`{"day":%q}`, key)
	}
	return &domain.ProviderResponse{
		Raw:   json.RawMessage(raw),
		Items: p.items(day),
	}, nil
}

func perDayItems(day time.Time) []domain.FetchItem {
	key := day.Format("20060102")
	meta, _ := json.Marshal(domain.ImageMetadata{Title: "t", URL: "https://img/" + key, Date: dates.Key(day)})
	return []domain.FetchItem{{
		ImageURL:         "https://img/" + key,
		ImageFileName:    key + "-Test.jpg",
		MetadataFileName: key + "-Test.json",
		Metadata:         meta,
		Day:              day,
	}}
}

// fakeFetcher returns valid JPEG bytes for every URL unless scripted to
// fail
type fakeFetcher struct {
	mu       sync.Mutex
	failURLs map[string]error
	calls    atomic.Int32
	payload  []byte
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	f.mu.Lock()
	err := f.failURLs[url]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.payload, nil
}

type fakeView struct {
	mu       sync.Mutex
	reloads  int
	reveals  []time.Time
	messages []string
}

func (v *fakeView) ReloadImages() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reloads++
}

func (v *fakeView) SetImageReveal(day time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reveals = append(v.reveals, day)
}

func (v *fakeView) SetImageRevealMessage(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, text)
}

func (v *fakeView) lastMessage() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.messages) == 0 {
		return ""
	}
	return v.messages[len(v.messages)-1]
}

type fakeGallery struct {
	keys map[string]struct{}
}

func (g *fakeGallery) ExistingDateKeys() map[string]struct{} { return g.keys }

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	tracker   *Tracker
	provider  *fakeProvider
	fetcher   *fakeFetcher
	view      *fakeView
	store     *storage.Store
	dedup     *dedup.Store
	scheduler *reveal.Scheduler
	redone    *atomic.Int32
}

func newFixture(t *testing.T, opts Options, existing map[string]struct{}) *fixture {
	t.Helper()
	root := t.TempDir()
	logger := zap.NewNop()

	prov := &fakeProvider{
		name:      "test",
		failWith:  make(map[string]error),
		failTimes: make(map[string]int),
		items:     perDayItems,
	}
	fet := &fakeFetcher{failURLs: make(map[string]error), payload: testJPEG(t)}
	view := &fakeView{}
	store := storage.NewStore(logger, root, "test")
	ded := dedup.NewStore(logger, filepath.Join(root, "test", "api_responses.json"))
	sched := reveal.NewScheduler(logger)

	var redone atomic.Int32
	sched.Bind(reveal.Hooks{
		Redownload: func(context.Context) { redone.Add(1) },
		Reload:     func() {},
	})

	tr := New(logger, prov, fet, store, ded, sched, view, &fakeGallery{keys: existing}, testConfig(), opts)
	return &fixture{
		tracker:   tr,
		provider:  prov,
		fetcher:   fet,
		view:      view,
		store:     store,
		dedup:     ded,
		scheduler: sched,
		redone:    &redone,
	}
}

// --- per-date (Bing-style) cycles ------------------------------------------

func TestDownloadMissingAllSucceed(t *testing.T) {
	// everything except the last 3 days already exists
	existing := make(map[string]struct{})
	today := dates.StartOfDay(time.Now())
	for i := 3; i < 15; i++ {
		existing[dates.Key(today.AddDate(0, 0, -i))] = struct{}{}
	}

	fx := newFixture(t, Options{LookbackDays: 15}, existing)
	got := fx.tracker.DownloadMissing(context.Background(), nil, false)

	if len(got) != 3 {
		t.Fatalf("expected 3 downloaded days, got %d", len(got))
	}
	for _, day := range got {
		key := day.Format("20060102")
		if _, err := os.Stat(filepath.Join(fx.store.ImagesDir(), key+"-Test.jpg")); err != nil {
			t.Errorf("image for %s missing: %v", key, err)
		}
		if _, err := os.Stat(filepath.Join(fx.store.MetadataDir(), key+"-Test.json")); err != nil {
			t.Errorf("metadata for %s missing: %v", key, err)
		}
	}

	// today was among the targets: the reveal must be armed and marked ready
	if !fx.scheduler.Pending() {
		t.Error("expected reveal pending after successful cycle containing today")
	}
	if fx.view.lastMessage() != msgReady {
		t.Errorf("expected %q, got %q", msgReady, fx.view.lastMessage())
	}
}

func TestDownloadMissingEmptyFastPath(t *testing.T) {
	existing := make(map[string]struct{})
	today := dates.StartOfDay(time.Now())
	for i := 0; i < 15; i++ {
		existing[dates.Key(today.AddDate(0, 0, -i))] = struct{}{}
	}

	fx := newFixture(t, Options{LookbackDays: 15}, existing)
	got := fx.tracker.DownloadMissing(context.Background(), nil, false)

	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
	if fx.provider.fetchCalls.Load() != 0 {
		t.Error("fast path must not hit the network")
	}
	if len(fx.view.messages) != 0 || len(fx.view.reveals) != 0 {
		t.Error("fast path must not touch UI state")
	}
}

func TestDownloadMissingPartialFailure(t *testing.T) {
	existing := make(map[string]struct{})
	today := dates.StartOfDay(time.Now())
	for i := 3; i < 15; i++ {
		existing[dates.Key(today.AddDate(0, 0, -i))] = struct{}{}
	}

	fx := newFixture(t, Options{LookbackDays: 15}, existing)
	// yesterday's fetch fails with a non-connectivity error: no retry
	fx.provider.failWith[dates.Key(today.AddDate(0, 0, -1))] = fmt.Errorf("%w: decode failure", domain.ErrDownloadFailed)

	got := fx.tracker.DownloadMissing(context.Background(), nil, false)

	if len(got) != 2 {
		t.Fatalf("expected 2 downloaded days, got %d", len(got))
	}
	if fx.scheduler.Pending() {
		t.Error("reveal must be deleted after a failed sibling, not fired")
	}
	if fx.redone.Load() != 0 {
		t.Error("reveal action must not have run")
	}
}

func TestDownloadMissingConcurrentCallRejected(t *testing.T) {
	today := dates.StartOfDay(time.Now())
	fx := newFixture(t, Options{LookbackDays: 15}, map[string]struct{}{})

	// hold the first cycle inside the image download until released
	gate := make(chan struct{})
	started := make(chan struct{}, 32)
	fx.tracker.fetcher = &blockingFetcher{payload: testJPEG(t), gate: gate, started: started}

	var wg sync.WaitGroup
	var first []time.Time
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false)
	}()

	<-started // first cycle is in flight and holds the lock

	second := fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false)
	if len(second) != 0 {
		t.Error("concurrent second call must return empty immediately")
	}

	close(gate)
	wg.Wait()

	if len(first) != 1 {
		t.Errorf("first call must proceed normally, got %d days", len(first))
	}
}

type blockingFetcher struct {
	payload []byte
	gate    chan struct{}
	started chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	select {
	case <-f.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return f.payload, nil
}

func TestDownloadMissingRetriesConnectivityFailures(t *testing.T) {
	today := dates.StartOfDay(time.Now())
	fx := newFixture(t, Options{LookbackDays: 15}, map[string]struct{}{})
	fx.provider.failTimes[dates.Key(today)] = 2 // two connectivity failures, then success

	got := fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false)

	if len(got) != 1 {
		t.Fatalf("expected success after retries, got %d days", len(got))
	}
	if calls := fx.provider.fetchCalls.Load(); calls != 3 {
		t.Errorf("expected 3 fetch attempts, got %d", calls)
	}

	// retry progress was surfaced
	found := false
	for _, msg := range fx.view.messages {
		if msg == "No internet connection. Try 1/5…" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected retry progress message, got %v", fx.view.messages)
	}
}

func TestDownloadMissingExhaustedRetriesFail(t *testing.T) {
	today := dates.StartOfDay(time.Now())
	fx := newFixture(t, Options{LookbackDays: 15}, map[string]struct{}{})
	fx.provider.failTimes[dates.Key(today)] = 99 // never recovers

	got := fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false)

	if len(got) != 0 {
		t.Fatalf("expected failure, got %d days", len(got))
	}
	if calls := fx.provider.fetchCalls.Load(); calls != 5 {
		t.Errorf("expected exactly 5 attempts, got %d", calls)
	}
	if fx.scheduler.Pending() {
		t.Error("reveal must be cancelled after exhausted retries")
	}
}

func TestDownloadMissingReloadFlag(t *testing.T) {
	fx := newFixture(t, Options{LookbackDays: 15}, map[string]struct{}{})
	yesterday := dates.StartOfDay(time.Now()).AddDate(0, 0, -1)

	fx.tracker.DownloadMissing(context.Background(), []time.Time{yesterday}, true)
	if fx.view.reloads != 1 {
		t.Errorf("expected 1 gallery reload, got %d", fx.view.reloads)
	}
}

// --- hash-gated (osu-style) cycles -----------------------------------------

func osuItems(day time.Time) []domain.FetchItem {
	meta, _ := json.Marshal(domain.ImageMetadata{Title: "bg", Date: dates.Key(day)})
	return []domain.FetchItem{
		{ImageURL: "https://assets/bg-1.jpg", ImageFileName: "bg-1.jpg", MetadataFileName: "bg-1.json", Metadata: meta, Day: day},
		{ImageURL: "https://assets/bg-2.jpg", ImageFileName: "bg-2.jpg", MetadataFileName: "bg-2.json", Metadata: meta, Day: day},
	}
}

func TestHashGatedCycleDownloadsOnceThenShortCircuits(t *testing.T) {
	fx := newFixture(t, Options{HashGated: true}, map[string]struct{}{})
	fx.provider.items = osuItems
	fx.provider.raw = `{"backgrounds":[{"url":"bg-1"},{"url":"bg-2"}]}`

	first := fx.tracker.DownloadMissing(context.Background(), nil, false)
	if len(first) != 1 {
		t.Fatalf("expected first cycle to report one new day, got %d", len(first))
	}
	if fx.fetcher.calls.Load() != 2 {
		t.Errorf("expected 2 image downloads, got %d", fx.fetcher.calls.Load())
	}

	// clear the armed reveal so the second cycle reaches the dedup gate
	fx.scheduler.DeleteTrigger()

	// same calendar day, unchanged upstream: zero work
	second := fx.tracker.DownloadMissing(context.Background(), nil, false)
	if len(second) != 0 {
		t.Fatalf("expected empty second cycle, got %d", len(second))
	}
	if fx.fetcher.calls.Load() != 2 {
		t.Errorf("second cycle performed downloads: %d total", fx.fetcher.calls.Load())
	}
	if fx.provider.fetchCalls.Load() != 1 {
		t.Errorf("once-per-day gate should skip the second API call, got %d", fx.provider.fetchCalls.Load())
	}
}

func TestHashGatedUnchangedResponseViaExplicitDate(t *testing.T) {
	fx := newFixture(t, Options{HashGated: true}, map[string]struct{}{})
	fx.provider.items = osuItems
	fx.provider.raw = `{"set":"same"}`
	today := dates.StartOfDay(time.Now())

	if got := fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false); len(got) != 1 {
		t.Fatalf("first explicit cycle should download, got %d", len(got))
	}
	fx.scheduler.DeleteTrigger()

	// explicit date bypasses the once-per-day gate; the hash match must
	// still short-circuit the downloads
	got := fx.tracker.DownloadMissing(context.Background(), []time.Time{today}, false)
	if len(got) != 0 {
		t.Fatalf("expected hash short-circuit, got %d days", len(got))
	}
	if fx.fetcher.calls.Load() != 2 {
		t.Errorf("hash match must not re-download images, got %d calls", fx.fetcher.calls.Load())
	}
}

func TestHashGatedIncompleteSetNotRecorded(t *testing.T) {
	fx := newFixture(t, Options{HashGated: true}, map[string]struct{}{})
	fx.provider.items = osuItems
	fx.provider.raw = `{"set":"v1"}`
	fx.fetcher.failURLs["https://assets/bg-2.jpg"] = fmt.Errorf("%w: status 500", domain.ErrDownloadFailed)

	got := fx.tracker.DownloadMissing(context.Background(), nil, false)
	if len(got) != 0 {
		t.Fatalf("incomplete set must not count as success, got %d", len(got))
	}

	// next cycle retries because no hash was recorded
	fx.fetcher.mu.Lock()
	delete(fx.fetcher.failURLs, "https://assets/bg-2.jpg")
	fx.fetcher.mu.Unlock()

	got = fx.tracker.DownloadMissing(context.Background(), nil, false)
	if len(got) != 1 {
		t.Errorf("expected recovery on the next cycle, got %d", len(got))
	}
}

// --- reveal firing ----------------------------------------------------------

// liveGallery mirrors the view model: date keys come from the files on
// disk, minus the scheduler's held day
type liveGallery struct {
	store *storage.Store
	sched *reveal.Scheduler

	mu   sync.Mutex
	keys map[string]struct{}
}

func (g *liveGallery) ReloadImages() {
	records, _ := g.store.ScanImages()
	held, haveHeld := g.sched.HeldDate()

	keys := make(map[string]struct{})
	for _, rec := range records {
		if haveHeld && dates.Key(rec.CaptureDate) == dates.Key(held) {
			continue
		}
		keys[dates.Key(rec.CaptureDate)] = struct{}{}
	}

	g.mu.Lock()
	g.keys = keys
	g.mu.Unlock()
}

func (g *liveGallery) SetImageReveal(time.Time) { g.ReloadImages() }

func (g *liveGallery) SetImageRevealMessage(string) {}

func (g *liveGallery) ExistingDateKeys() map[string]struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.keys
}

func TestRevealFireDoesNotRearm(t *testing.T) {
	root := t.TempDir()
	logger := zap.NewNop()

	// a controllable clock well away from midnight; starting in the future
	// keeps the scheduler's background wait from firing during the test
	var clockMu sync.Mutex
	current := dates.StartOfDay(time.Now()).AddDate(0, 0, 1).Add(12 * time.Hour)
	nowFn := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return current
	}

	prov := &fakeProvider{
		name:      "test",
		failWith:  make(map[string]error),
		failTimes: make(map[string]int),
		items:     perDayItems,
	}
	fet := &fakeFetcher{failURLs: make(map[string]error), payload: testJPEG(t)}
	store := storage.NewStore(logger, root, "test")
	ded := dedup.NewStore(logger, filepath.Join(root, "test", "api_responses.json"))
	sched := reveal.NewSchedulerWithClock(logger, nowFn)
	gal := &liveGallery{store: store, sched: sched}

	cfg := fakeConfig{lookback: 1, attempts: 5, delay: time.Millisecond, timeout: 5 * time.Second}
	tr := New(logger, prov, fet, store, ded, sched, gal, gal, cfg, Options{LookbackDays: 1})
	tr.now = nowFn

	// hooks wired the way the daemon wires them
	sched.Bind(reveal.Hooks{
		Redownload: func(ctx context.Context) {
			tr.DownloadMissing(ctx, nil, true)
		},
		Reload:       gal.ReloadImages,
		MoveToNewest: func() {},
	})

	gal.ReloadImages()
	got := tr.DownloadMissing(context.Background(), nil, false)
	if len(got) != 1 {
		t.Fatalf("expected today's download, got %d days", len(got))
	}
	if !sched.Pending() {
		t.Fatal("expected an armed reveal after downloading today")
	}
	todayKey := dates.Key(nowFn())
	if _, ok := gal.ExistingDateKeys()[todayKey]; ok {
		t.Fatal("held day must stay out of the gallery while the reveal is pending")
	}

	// the next wake arrives after the trigger time
	clockMu.Lock()
	current = current.Add(10 * time.Minute)
	clockMu.Unlock()
	sched.RemoveIfOverdue(context.Background())

	if sched.Pending() {
		t.Error("fired reveal must not arm a new one")
	}
	if _, ok := gal.ExistingDateKeys()[todayKey]; !ok {
		t.Error("revealed day must join the gallery after firing")
	}
	if calls := prov.fetchCalls.Load(); calls != 1 {
		t.Errorf("redownload after the reveal must take the empty fast path, got %d provider calls", calls)
	}
	if calls := fet.calls.Load(); calls != 1 {
		t.Errorf("expected a single image download, got %d", calls)
	}
}

func TestPendingRevealBlocksCycle(t *testing.T) {
	fx := newFixture(t, Options{LookbackDays: 15}, map[string]struct{}{})
	fx.scheduler.Schedule(dates.StartOfDay(time.Now()))

	got := fx.tracker.DownloadMissing(context.Background(), []time.Time{dates.StartOfDay(time.Now())}, false)
	if got != nil {
		t.Errorf("pending reveal must abort the cycle, got %v", got)
	}
	if fx.provider.fetchCalls.Load() != 0 {
		t.Error("aborted cycle must not hit the network")
	}
	// the lock was released on the short-circuit path
	if !fx.tracker.lock.TryAcquire() {
		t.Error("lock must be released after an aborted cycle")
	}
	fx.tracker.lock.Release()
}
