package executor

import "sync/atomic"

// segmentRingCapacity is the canonical small segment-ring size (spec
// §3): deep enough that prep can stay ahead of the dispatcher through
// one scheduling jitter, shallow enough that a block's tail end (where
// entry/exit speeds change fastest) is never more than a few segments
// stale.
const segmentRingCapacity = 6

// segmentRing is single-producer (prep, main context) / single-
// consumer (dispatcher ISR). head is written only by the producer,
// tail only by the consumer; each side reads the other's index with
// Load, which on every Go-supported architecture is sufficient
// acquire/release ordering for this one-word handoff.
type segmentRing struct {
	segments [segmentRingCapacity]Segment

	head atomic.Uint32
	tail atomic.Uint32
}

func (r *segmentRing) count() uint32 {
	return r.head.Load() - r.tail.Load()
}

func (r *segmentRing) full() bool {
	return r.count() == segmentRingCapacity
}

func (r *segmentRing) empty() bool {
	return r.head.Load() == r.tail.Load()
}

// reserve returns the slot the producer should populate next. The
// caller must not publish (push) until the segment is fully formed.
func (r *segmentRing) reserve() *Segment {
	return &r.segments[r.head.Load()%segmentRingCapacity]
}

func (r *segmentRing) push() {
	r.head.Add(1)
}

// peek returns the segment at tail, the one the consumer should be
// running, or nil if the ring is empty.
func (r *segmentRing) peek() *Segment {
	if r.empty() {
		return nil
	}
	return &r.segments[r.tail.Load()%segmentRingCapacity]
}

// retire advances tail past the segment the consumer just finished.
func (r *segmentRing) retire() {
	r.tail.Add(1)
}
