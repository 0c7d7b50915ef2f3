package telemetry

import (
	"sync/atomic"

	"github.com/fleetsim/fleetsim-core/internal/device"
)

// Subscription is one consumer's bounded view of the reading stream.
//
// Readings are received from C in publish order. When the consumer falls
// behind, the oldest buffered readings are discarded and Dropped grows;
// delivery resumes as soon as the consumer catches up.
type Subscription struct {
	id      string
	ch      chan device.Reading
	dropped atomic.Uint64
	hub     *Hub
}

// ID returns the subscriber identifier given at Subscribe time.
func (s *Subscription) ID() string {
	return s.id
}

// C returns the reading channel. It is closed when the subscription is
// cancelled or the hub shuts down.
func (s *Subscription) C() <-chan device.Reading {
	return s.ch
}

// Dropped returns how many readings have been discarded for this
// subscriber so far.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close cancels the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}
