package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wudi/flipbook/source/placeholder"
)

func TestBusyGuardIsNonReentrant(t *testing.T) {
	s := NewStore()
	defer s.Close()

	if !s.TryBusy() {
		t.Fatal("first TryBusy should succeed")
	}
	if s.TryBusy() {
		t.Fatal("second TryBusy should fail while guard is held")
	}
	s.ClearBusy()
	if !s.TryBusy() {
		t.Fatal("TryBusy should succeed after ClearBusy")
	}
	s.ClearBusy()
}

func TestInstallDocumentResetsNavigation(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.InstallDocument(placeholder.New(10, 50, 70), 10)
	s.CommitSpread(3)
	if s.CommittedSpread() != 3 {
		t.Fatalf("committed = %d, want 3", s.CommittedSpread())
	}

	s.InstallDocument(placeholder.New(4, 50, 70), 4)
	if s.CurrentSpread() != 0 || s.CommittedSpread() != 0 {
		t.Fatal("navigation position must reset on reload")
	}
	if s.PageCount() != 4 {
		t.Fatalf("page count = %d, want 4", s.PageCount())
	}
}

func TestCommitSpreadClamped(t *testing.T) {
	s := NewStore()
	defer s.Close()

	s.InstallDocument(placeholder.New(10, 50, 70), 10) // 5 spreads
	s.CommitSpread(99)
	if got := s.CommittedSpread(); got != 4 {
		t.Fatalf("committed = %d, want clamp to 4", got)
	}
	s.CommitSpread(-1)
	if got := s.CommittedSpread(); got != 0 {
		t.Fatalf("committed = %d, want clamp to 0", got)
	}
}

func TestSpreadAndPageDerivation(t *testing.T) {
	cases := []struct {
		pages   int
		spreads int
	}{
		{1, 1}, {2, 1}, {3, 2}, {10, 5}, {11, 6},
	}
	for _, c := range cases {
		s := NewStore()
		s.InstallDocument(placeholder.New(c.pages, 50, 70), c.pages)
		if got := s.SpreadCount(); got != c.spreads {
			t.Fatalf("pages=%d: spreads = %d, want %d", c.pages, got, c.spreads)
		}
		s.CommitSpread(1)
		want := s.CommittedSpread()*2 + 1
		if got := s.CurrentPageNumber(); got != want {
			t.Fatalf("pages=%d: current page = %d, want %d", c.pages, got, want)
		}
		s.Close()
	}
}

func TestSubscribeDeliversAsynchronously(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var mu sync.Mutex
	var got []Snapshot
	notified := make(chan struct{}, 16)
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		got = append(got, snap)
		mu.Unlock()
		select {
		case notified <- struct{}{}:
		default:
		}
	})

	s.InstallDocument(placeholder.New(6, 50, 70), 6)
	s.SetSettled(true)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		var last *Snapshot
		if len(got) > 0 {
			snap := got[len(got)-1]
			last = &snap
		}
		mu.Unlock()
		if last != nil && last.Settled && last.PageCount == 6 {
			return
		}
		select {
		case <-notified:
		case <-deadline:
			t.Fatal("subscriber never observed the final state")
		}
	}
}

func TestFailRecordsError(t *testing.T) {
	s := NewStore()
	defer s.Close()

	boom := errors.New("boom")
	s.Fail(boom)
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("err = %v, want boom", s.Err())
	}
	if s.Snapshot().Status != StatusFailed {
		t.Fatalf("status = %v, want failed", s.Snapshot().Status)
	}
}

func TestCloseReleasesDocument(t *testing.T) {
	s := NewStore()
	doc := placeholder.New(2, 50, 70)
	s.InstallDocument(doc, 2)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
