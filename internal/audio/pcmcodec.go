package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// RawPCMCodec decodes chunk bytes as a flat little-endian float32 mono PCM
// stream, with no container framing. It stands in for the opaque audio
// codec dependency (§6): provider.NewImplFactory gives it to every
// streaming job, and tests use it too, so clients send already-decoded
// samples rather than a compressed format.
type RawPCMCodec struct {
	ExpectedSampleRate int
}

// NewRawPCMCodec constructs a codec for the configured sample rate. The
// rate is stored but Decode does not check it: a raw payload carries no
// rate information.
func NewRawPCMCodec(expectedSampleRate int) *RawPCMCodec {
	return &RawPCMCodec{ExpectedSampleRate: expectedSampleRate}
}

// Decode implements Codec.
func (c *RawPCMCodec) Decode(data []byte) ([][]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio: raw pcm payload length %d is not a multiple of 4 bytes", len(data))
	}
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	return [][]float32{samples}, nil
}
