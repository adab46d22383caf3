// Package state holds the viewer's shared observable state: load status,
// document handle, navigation position, cache metadata and error state. It is
// the single source of truth consumed by the render pipeline, the flip
// controller and the presentation layer.
package state

import (
	"sync"

	"github.com/wudi/flipbook/source"
)

// Status is the document load status.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the store handed to subscribers.
type Snapshot struct {
	Status          Status
	PageCount       int
	CacheLen        int
	CurrentSpread   int
	CommittedSpread int
	Busy            bool
	Zoomed          bool
	Settled         bool
	Err             error
}

// Store is the shared state store. All accessors are safe for concurrent
// use. Change notifications are coalesced and delivered on a dedicated
// dispatch goroutine, never synchronously during a mutation.
type Store struct {
	mu        sync.Mutex
	doc       source.Source
	status    Status
	pageCount int
	cacheLen  int
	current   int
	committed int
	busy      bool
	zoomed    bool
	settled   bool
	err       error

	listeners []func(Snapshot)
	dirty     chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewStore() *Store {
	s := &Store{
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.dispatch()
	return s
}

func (s *Store) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
			s.mu.Lock()
			snap := s.snapshotLocked()
			listeners := s.listeners
			s.mu.Unlock()
			for _, fn := range listeners {
				fn(snap)
			}
		}
	}
}

// Subscribe registers a listener for state changes. The listener runs on the
// store's dispatch goroutine with a coalesced snapshot.
func (s *Store) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Close releases the installed document and stops notification dispatch.
func (s *Store) Close() error {
	s.mu.Lock()
	doc := s.doc
	s.doc = nil
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	if doc != nil {
		return doc.Close()
	}
	return nil
}

// publish marks the store dirty. The send is non-blocking: an already
// pending notification covers this change too.
func (s *Store) publish() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Status:          s.status,
		PageCount:       s.pageCount,
		CacheLen:        s.cacheLen,
		CurrentSpread:   s.current,
		CommittedSpread: s.committed,
		Busy:            s.busy,
		Zoomed:          s.zoomed,
		Settled:         s.settled,
		Err:             s.err,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetLoading marks a (re)load in progress.
func (s *Store) SetLoading() {
	s.mu.Lock()
	s.status = StatusLoading
	s.err = nil
	s.mu.Unlock()
	s.publish()
}

// InstallDocument replaces the document handle. A previously installed
// handle is released. Navigation resets to the first spread.
func (s *Store) InstallDocument(doc source.Source, pageCount int) {
	s.mu.Lock()
	old := s.doc
	s.doc = doc
	s.pageCount = pageCount
	s.status = StatusReady
	s.current = 0
	s.committed = 0
	s.cacheLen = 0
	s.err = nil
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.publish()
}

// Fail records a failed top-level operation.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	s.status = StatusFailed
	s.err = err
	s.mu.Unlock()
	s.publish()
}

// Err returns the last recorded error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Document returns the installed document handle, or nil.
func (s *Store) Document() source.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// PageCount returns the installed document's page count.
func (s *Store) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCount
}

// SpreadCount derives the number of two-page spreads.
func (s *Store) SpreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (s.pageCount + 1) / 2
}

// CurrentPageNumber derives the 1-based page number shown to consumers from
// the committed spread.
func (s *Store) CurrentPageNumber() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed*2 + 1
}

// TryBusy attempts to take the non-reentrant busy guard. It returns false
// when an operation already holds it.
func (s *Store) TryBusy() bool {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return false
	}
	s.busy = true
	s.mu.Unlock()
	s.publish()
	return true
}

// ClearBusy releases the busy guard. Safe to call on every exit path.
func (s *Store) ClearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	s.publish()
}

// Busy reports whether the guard is held.
func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// SetCacheLen records the raster cache length for observers.
func (s *Store) SetCacheLen(n int) {
	s.mu.Lock()
	s.cacheLen = n
	s.mu.Unlock()
	s.publish()
}

// SetSettled records whether the flip animation has settled on the current
// spread boundary.
func (s *Store) SetSettled(settled bool) {
	s.mu.Lock()
	s.settled = settled
	s.mu.Unlock()
	s.publish()
}

// Settled reports the animation-settled flag.
func (s *Store) Settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// SetZoomed records the zoom flag derived from the external transform.
func (s *Store) SetZoomed(zoomed bool) {
	s.mu.Lock()
	s.zoomed = zoomed
	s.mu.Unlock()
	s.publish()
}

// Zoomed reports the zoom flag.
func (s *Store) Zoomed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoomed
}

// SetCurrentSpread moves the working spread index without committing it.
func (s *Store) SetCurrentSpread(idx int) {
	s.mu.Lock()
	s.current = s.clampSpreadLocked(idx)
	s.mu.Unlock()
	s.publish()
}

// CommitSpread moves both the working and the committed spread index.
// The committed index never exceeds the last valid spread.
func (s *Store) CommitSpread(idx int) {
	s.mu.Lock()
	idx = s.clampSpreadLocked(idx)
	s.current = idx
	s.committed = idx
	s.mu.Unlock()
	s.publish()
}

func (s *Store) clampSpreadLocked(idx int) int {
	if idx < 0 {
		return 0
	}
	if max := (s.pageCount+1)/2 - 1; max >= 0 && idx > max {
		return max
	}
	return idx
}

// CurrentSpread returns the working spread index.
func (s *Store) CurrentSpread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CommittedSpread returns the committed spread index.
func (s *Store) CommittedSpread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}
