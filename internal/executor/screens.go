// Package executor assigns the desktop wallpaper through the
// platform-native mechanism, tracking what each display currently shows so
// repeated requests for the same image become no-ops.
package executor

import (
	"sync"

	"github.com/kbinani/screenshot"
)

// screenTracker remembers the last image set per display. The display count
// is re-read on every call; monitors come and go.
type screenTracker struct {
	mu       sync.Mutex
	displays func() int
	lastSet  map[int]string
}

func newScreenTracker() *screenTracker {
	return &screenTracker{
		displays: screenshot.NumActiveDisplays,
		lastSet:  make(map[int]string),
	}
}

// pending returns the display indices not currently showing the given image.
// Zero detected displays degrades to a single logical display so wallpaper
// setting still works on headless or undetectable setups.
func (t *screenTracker) pending(path string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.displays()
	if n <= 0 {
		n = 1
	}

	var out []int
	for i := 0; i < n; i++ {
		if t.lastSet[i] != path {
			out = append(out, i)
		}
	}
	return out
}

// markSet records that the given displays now show the image
func (t *screenTracker) markSet(displays []int, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, i := range displays {
		t.lastSet[i] = path
	}
}
