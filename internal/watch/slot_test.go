package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSlotDeliversCurrentValueOnSubscribe(t *testing.T) {
	s := NewSlot[int]()
	s.SetForce(42)

	done := make(chan struct{})
	defer close(done)

	got := make(chan int, 1)
	go s.Watch(done, func(v int, present bool) bool {
		require.True(t, present)
		got <- v
		return false
	})

	select {
	case v := <-got:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial value")
	}
}

func TestSlotCoalescesIntermediateValues(t *testing.T) {
	s := NewSlot[int]()
	s.SetForce(1)

	done := make(chan struct{})
	defer close(done)

	seen := make(chan int, 10)
	release := make(chan struct{})
	go s.Watch(done, func(v int, present bool) bool {
		seen <- v
		<-release // block the consumer so writes pile up
		return v != 4
	})

	require.Equal(t, 1, <-seen)
	// writer races ahead while the consumer is still blocked on the
	// first delivery
	s.SetForce(2)
	s.SetForce(3)
	s.SetForce(4)
	release <- struct{}{}

	require.Equal(t, 4, <-seen)
}

func TestSlotClearTransitionsToAbsent(t *testing.T) {
	s := NewSlot[string]()
	s.SetForce("hi")
	s.Clear()
	v, present, _ := s.Get()
	require.False(t, present)
	require.Equal(t, "", v)
}

func TestSlotSetEqualIsNoOp(t *testing.T) {
	s := NewSlot[int]()
	s.SetForce(5)
	_, _, v1 := s.Get()
	s.Set(5, func(a, b int) bool { return a == b })
	_, _, v2 := s.Get()
	require.Equal(t, v1, v2)
}
