// Package audio holds the fixed-capacity PCM buffer and the pure-silence
// gate that sit in front of voice-activity detection in the streaming
// pipeline.
package audio

// SampleRate is the fixed mono sample rate, in Hz, that every decoded
// buffer in the pipeline is normalized to. The audio codec dependency
// (out of scope here, see decoder package) validates incoming audio
// against it.
const SampleRate = 16000

// CircularSampleBuffer is a fixed-capacity, append-only window of PCM
// samples. offsetSamples counts how many samples have been purged from
// the front over the buffer's lifetime, so offsetSamples+Len() always
// equals the total number of samples ever admitted.
//
// Not safe for concurrent use: a buffer is owned by exactly one
// StreamingJob invocation at a time.
type CircularSampleBuffer struct {
	capacity int
	data     []float32
	offset   int // offsetSamples
}

// NewCircularSampleBuffer creates a buffer that holds at most capacity
// samples at once.
func NewCircularSampleBuffer(capacity int) *CircularSampleBuffer {
	return &CircularSampleBuffer{
		capacity: capacity,
		data:     make([]float32, 0, capacity),
	}
}

// Append copies as many of samples as fit into the remaining capacity and
// returns the suffix that did not fit (never a copy more than necessary).
func (b *CircularSampleBuffer) Append(samples []float32) (overflow []float32) {
	room := b.capacity - len(b.data)
	if room <= 0 {
		return samples
	}
	if len(samples) <= room {
		b.data = append(b.data, samples...)
		return nil
	}
	b.data = append(b.data, samples[:room]...)
	return samples[room:]
}

// View returns a read-only slice over the live region of the buffer. The
// slice aliases internal storage and is only valid until the next Append
// or Purge call.
func (b *CircularSampleBuffer) View() []float32 {
	return b.data
}

// Purge discards the first n samples (or the whole buffer, whichever is
// smaller), sliding the remainder to the front and advancing offset.
func (b *CircularSampleBuffer) Purge(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	copy(b.data, b.data[n:])
	b.data = b.data[:len(b.data)-n]
	b.offset += n
}

// Len returns the number of samples currently held.
func (b *CircularSampleBuffer) Len() int {
	return len(b.data)
}

// Cap returns the buffer's fixed capacity.
func (b *CircularSampleBuffer) Cap() int {
	return b.capacity
}

// OffsetSamples returns the count of samples purged from the front over
// the buffer's lifetime; offset+Len() is the total count ever admitted.
func (b *CircularSampleBuffer) OffsetSamples() int {
	return b.offset
}
