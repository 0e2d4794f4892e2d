package usecase

import (
	"context"
	"errors"
	"testing"

	"torrentplay/internal/domain"
)

func TestGetProgressMonotonic(t *testing.T) {
	engine := newFakeEngine()
	tr := engine.prepare(newFakeTransfer("abc", map[string][]byte{"movie.mp4": payload(1000, 1)}, "movie.mp4"))
	reg := newRegistry(engine)
	if _, err := reg.StartOrAttach(context.Background(), "magnet:abc"); err != nil {
		t.Fatalf("StartOrAttach: %v", err)
	}

	uc := GetProgress{Sessions: reg}
	last := -1.0
	for _, n := range []int64{0, 0, 100, 250, 250, 999, 1000} {
		tr.setAvailable(0, n)
		snap, err := uc.Execute("abc")
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if snap.Fraction < last {
			t.Fatalf("fraction went backwards: %v after %v", snap.Fraction, last)
		}
		if snap.Complete != (n == 1000) {
			t.Fatalf("complete=%v at %d bytes", snap.Complete, n)
		}
		last = snap.Fraction
	}
	if last != 1 {
		t.Fatalf("final fraction = %v", last)
	}
}

func TestGetProgressUnknown(t *testing.T) {
	uc := GetProgress{Sessions: newRegistry(newFakeEngine())}
	if _, err := uc.Execute("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
