// Package watch implements the single-producer / multi-consumer
// broadcast slot described in spec.md §5 and §9: a slot holds the
// latest value of a key plus a version counter. Subscribers receive the
// current value immediately, then block until the version advances. A
// slow subscriber may miss intermediate values but will always
// eventually observe the most recent one — it never observes a value
// that was never written.
package watch

import "sync"

// Slot holds the latest value written to a watch key.
type Slot[T any] struct {
	mu      sync.Mutex
	version uint64
	value   T
	present bool
	wake    chan struct{}
}

// NewSlot returns an empty slot (absent lifecycle state).
func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{wake: make(chan struct{})}
}

// Set overwrites the slot's value and wakes every blocked subscriber.
// When equal is non-nil and reports the new value equal to the present
// one, Set does nothing (no overwrite, no version bump, no wake-up) —
// callers that want unconditional broadcast should use SetForce.
func (s *Slot[T]) Set(v T, equal func(a, b T) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.present && equal != nil && equal(s.value, v) {
		return
	}
	s.value = v
	s.present = true
	s.version++
	close(s.wake)
	s.wake = make(chan struct{})
}

// SetForce overwrites the value unconditionally.
func (s *Slot[T]) SetForce(v T) {
	s.Set(v, nil)
}

// Clear transitions the slot back to the absent state (spec.md §4.1:
// "present(snapshot) -> absent" on workload/port deletion).
func (s *Slot[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.present = false
	s.version++
	close(s.wake)
	s.wake = make(chan struct{})
}

// Get returns the current value and whether the slot is present.
func (s *Slot[T]) Get() (T, bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.present, s.version
}

// next returns the wake channel for the given last-seen version along
// with the value to hand back immediately if the version has already
// advanced past it.
func (s *Slot[T]) next(lastVersion uint64) (T, bool, uint64, chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != lastVersion {
		return s.value, s.present, s.version, nil
	}
	return s.value, s.present, s.version, s.wake
}

// Watch streams values to fn until ctx is done or fn returns false.
// The first call to fn receives the value present at subscribe time.
// Subsequent calls receive the next distinct version; if multiple
// writes land between sends, only the most recent is delivered.
func (s *Slot[T]) Watch(done <-chan struct{}, fn func(value T, present bool) (more bool)) {
	value, present, version := s.Get()
	if !fn(value, present) {
		return
	}
	for {
		v, p, ver, wake := s.next(version)
		if wake == nil {
			// version already advanced past what we last saw; deliver now
			if !fn(v, p) {
				return
			}
			version = ver
			continue
		}
		select {
		case <-done:
			return
		case <-wake:
		}
		v, p, ver, _ = s.next(version)
		if !fn(v, p) {
			return
		}
		version = ver
	}
}

// Bool is a convenience alias for the watched leader-election boolean
// (spec.md §9).
type Bool = Slot[bool]

func NewBool(initial bool) *Bool {
	b := NewSlot[bool]()
	b.SetForce(initial)
	return b
}
