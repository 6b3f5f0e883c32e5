package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func encodeFloat32LE(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(s))
	}
	return buf
}

func TestRawPCMCodecDecode(t *testing.T) {
	codec := NewRawPCMCodec(SampleRate)
	want := []float32{0.1, -0.2, 0.3}
	data := encodeFloat32LE(want)

	got, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || len(got[0]) != len(want) {
		t.Fatalf("unexpected shape: %v", got)
	}
	for i, s := range want {
		if got[0][i] != s {
			t.Fatalf("sample %d: got %v, want %v", i, got[0][i], s)
		}
	}
}

func TestRawPCMCodecRejectsMisalignedPayload(t *testing.T) {
	codec := NewRawPCMCodec(SampleRate)
	if _, err := codec.Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-4 payload")
	}
}
