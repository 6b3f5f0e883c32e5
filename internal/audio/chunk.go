package audio

import "time"

// Chunk is the opaque, encoded audio a client pushes over its stream.
// The bytes are container/codec-encoded (e.g. Opus-in-WebM, or whatever
// the front door negotiated) and are meaningless to anything in this
// module beyond the Codec dependency below.
type Chunk struct {
	Data       []byte
	ReceivedAt time.Time
	ChunkID    string
}

// Codec decodes opaque, client-encoded bytes into a 2-D array of float32
// PCM samples in [-1, 1), indexed channel first: samples[c] is the sample
// vector of channel c. It is an external collaborator: the concrete codec
// (container demuxing, resampling) is out of scope for this module and is
// injected by the caller. The pipeline maps any Decode error into
// errs.KindClientTranscription, and rejects the same way a result that
// does not hold exactly one channel.
type Codec interface {
	Decode(data []byte) (samples [][]float32, err error)
}
