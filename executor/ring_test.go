package executor

import "testing"

// TestSegmentRing_ProducerRunsAheadOfConsumer drives the producer to
// full and partially drains from the consumer side repeatedly, the
// exact pattern that exposed the non-power-of-two aliasing bug: a
// bitmask index wraps slots {0,1,4,5} with period 8 for a capacity of
// 6, silently overwriting segments 2 and 3 hadn't retired yet. Every
// pushed NStep must survive to retire unmodified.
func TestSegmentRing_ProducerRunsAheadOfConsumer(t *testing.T) {
	var r segmentRing

	const total = 1000
	pushed := 0
	retired := 0

	for retired < total {
		for !r.full() && pushed < total {
			seg := r.reserve()
			*seg = Segment{NStep: uint32(pushed)}
			r.push()
			pushed++
		}
		for i := 0; i < 2 && !r.empty(); i++ {
			got := r.peek()
			if got == nil {
				t.Fatalf("peek returned nil with count=%d", r.count())
			}
			if got.NStep != uint32(retired) {
				t.Fatalf("retire order corrupted: want NStep=%d, got %d (pushed=%d retired=%d)", retired, got.NStep, pushed, retired)
			}
			r.retire()
			retired++
		}
	}

	if pushed != total || retired != total {
		t.Fatalf("pushed=%d retired=%d, want %d each", pushed, retired, total)
	}
}

func TestSegmentRing_FullAtExactCapacity(t *testing.T) {
	var r segmentRing
	for i := 0; i < segmentRingCapacity; i++ {
		if r.full() {
			t.Fatalf("ring reported full early at i=%d", i)
		}
		seg := r.reserve()
		*seg = Segment{NStep: uint32(i)}
		r.push()
	}
	if !r.full() {
		t.Fatalf("ring should be full after %d pushes", segmentRingCapacity)
	}
}
