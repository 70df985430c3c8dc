package executor

import "testing"

func TestScreenTrackerSkipsAlreadySetDisplays(t *testing.T) {
	tr := newScreenTracker()
	tr.displays = func() int { return 2 }

	first := tr.pending("/tmp/a.jpg")
	if len(first) != 2 {
		t.Fatalf("expected both displays pending, got %v", first)
	}
	tr.markSet(first, "/tmp/a.jpg")

	if got := tr.pending("/tmp/a.jpg"); len(got) != 0 {
		t.Errorf("expected no pending displays for the same image, got %v", got)
	}
	if got := tr.pending("/tmp/b.jpg"); len(got) != 2 {
		t.Errorf("expected both displays pending for a new image, got %v", got)
	}
}

func TestScreenTrackerPartialUpdate(t *testing.T) {
	tr := newScreenTracker()
	tr.displays = func() int { return 3 }

	tr.markSet([]int{0}, "/tmp/a.jpg")

	got := tr.pending("/tmp/a.jpg")
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected displays 1 and 2 pending, got %v", got)
	}
}

func TestScreenTrackerNoDisplaysFallsBackToOne(t *testing.T) {
	tr := newScreenTracker()
	tr.displays = func() int { return 0 }

	if got := tr.pending("/tmp/a.jpg"); len(got) != 1 {
		t.Errorf("expected one logical display, got %v", got)
	}
}
