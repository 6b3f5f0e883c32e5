package provider

import (
	"encoding/json"
	"fmt"

	"github.com/scribear/scribear/internal/audio"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/pipeline"
)

// StreamingJobConfig is the JobImplConfig JSON shape for jobImplName
// "streaming", covering both the "debug" and "whisper-streaming"
// provider_uid values — they share the same StreamingJob implementation
// and differ only in which decoder context their ContextSpec resolves.
type StreamingJobConfig struct {
	MaxBufferLenSec  float64  `json:"max_buffer_len_sec"`
	LocalAgreeDim    int      `json:"local_agree_dim"`
	VADEnabled       bool     `json:"vad_enabled"`
	VADThreshold     float64  `json:"vad_threshold"`
	VADNegThreshold  *float64 `json:"vad_neg_threshold"`
	SilenceThreshold float64  `json:"silence_threshold"`
	Language         string   `json:"language"`
	ExpectedSampleRate int    `json:"expected_sample_rate"`
}

// NewImplFactory returns a worker.ImplFactory that builds a fresh
// *pipeline.StreamingJob per REGISTER_JOB task. Each connection gets its
// own job implementation instance since StreamingJob carries private
// mutable state (buffer, stabilizer) — grounded on the per-call
// transcriber instance in the teacher's handleTranscriptionRequests,
// generalized from "one instance per transcriber goroutine" to "one
// instance per registered job."
func NewImplFactory() func(name string, config []byte) (jobs.Implementation, error) {
	return func(name string, config []byte) (jobs.Implementation, error) {
		switch name {
		case "streaming":
			var cfg StreamingJobConfig
			if len(config) > 0 {
				if err := json.Unmarshal(config, &cfg); err != nil {
					return nil, fmt.Errorf("provider: invalid streaming job config: %w", err)
				}
			}
			sampleRate := cfg.ExpectedSampleRate
			if sampleRate == 0 {
				sampleRate = audio.SampleRate
			}
			return pipeline.NewStreamingJob(pipeline.Config{
				MaxBufferLenSec:  cfg.MaxBufferLenSec,
				LocalAgreeDim:    cfg.LocalAgreeDim,
				VADEnabled:       cfg.VADEnabled,
				VADThreshold:     cfg.VADThreshold,
				VADNegThreshold:  cfg.VADNegThreshold,
				SilenceThreshold: cfg.SilenceThreshold,
				Language:         cfg.Language,
			}, audio.NewRawPCMCodec(sampleRate))
		default:
			return nil, fmt.Errorf("provider: unknown job implementation %q", name)
		}
	}
}
