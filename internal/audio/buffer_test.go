package audio

import "testing"

func samplesOf(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i + 1)
	}
	return s
}

func TestCircularSampleBufferAppendWithinCapacity(t *testing.T) {
	b := NewCircularSampleBuffer(10)
	overflow := b.Append(samplesOf(4))
	if overflow != nil {
		t.Fatalf("expected no overflow, got %v", overflow)
	}
	if b.Len() != 4 {
		t.Fatalf("expected len 4, got %d", b.Len())
	}
}

func TestCircularSampleBufferAppendOverflow(t *testing.T) {
	b := NewCircularSampleBuffer(5)
	overflow := b.Append(samplesOf(8))
	if len(overflow) != 3 {
		t.Fatalf("expected 3 overflow samples, got %d", len(overflow))
	}
	if b.Len() != 5 {
		t.Fatalf("expected len capped at capacity 5, got %d", b.Len())
	}
}

func TestCircularSampleBufferPurgeAdvancesOffset(t *testing.T) {
	b := NewCircularSampleBuffer(10)
	b.Append(samplesOf(10))
	b.Purge(4)
	if b.Len() != 6 {
		t.Fatalf("expected len 6 after purge, got %d", b.Len())
	}
	if b.OffsetSamples() != 4 {
		t.Fatalf("expected offset 4, got %d", b.OffsetSamples())
	}
	view := b.View()
	if view[0] != 5 {
		t.Fatalf("expected view to start at sample value 5, got %v", view[0])
	}
}

func TestCircularSampleBufferPurgeMoreThanLen(t *testing.T) {
	b := NewCircularSampleBuffer(10)
	b.Append(samplesOf(3))
	b.Purge(100)
	if b.Len() != 0 {
		t.Fatalf("expected len 0, got %d", b.Len())
	}
	if b.OffsetSamples() != 3 {
		t.Fatalf("expected offset to only advance by the samples actually held, got %d", b.OffsetSamples())
	}
}

func TestCircularSampleBufferInvariantAcrossSequence(t *testing.T) {
	b := NewCircularSampleBuffer(16)
	total := 0
	for i := 0; i < 20; i++ {
		n := 3
		overflow := b.Append(samplesOf(n))
		total += n - len(overflow)
		if b.Len() < 0 || b.Len() > b.Cap() {
			t.Fatalf("invariant violated: len=%d cap=%d", b.Len(), b.Cap())
		}
		b.Purge(2)
		if b.OffsetSamples()+b.Len() > total {
			t.Fatalf("offset+len exceeds total admitted: offset=%d len=%d total=%d",
				b.OffsetSamples(), b.Len(), total)
		}
	}
}
