// Package provider maps the provider_uid/context_uid strings read from
// the provider-config JSON document (§6) to concrete constructors:
// ContextFactory implementations for the job-context table, and
// ImplFactory constructors for per-connection job implementations.
// Grounded on the teacher's newLiveCaptionsTranscriber switch-on-config
// idiom (cmd/transcriber/call/live_captions.go).
package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scribear/scribear/internal/decoder"
	"github.com/scribear/scribear/internal/jobs"
)

// DecoderContextConfig is the ContextConfig JSON shape for decoder-kind
// contexts ("debug" and "whisper-streaming").
type DecoderContextConfig struct {
	Kind       string `json:"kind"`
	ModelFile  string `json:"model_file"`
	NumThreads int    `json:"num_threads"`
	SampleRate int    `json:"sample_rate"`
}

// DecoderContextFactory implements jobs.ContextFactory, constructing a
// decoder.Context instance (debug or whisper) per ContextSpec.
type DecoderContextFactory struct{}

// NewDecoderContextFactory constructs a DecoderContextFactory.
func NewDecoderContextFactory() *DecoderContextFactory { return &DecoderContextFactory{} }

func (f *DecoderContextFactory) Create(log *slog.Logger, spec jobs.ContextSpec) (any, error) {
	var cfg DecoderContextConfig
	if len(spec.ContextConfig) > 0 {
		if err := json.Unmarshal(spec.ContextConfig, &cfg); err != nil {
			return nil, fmt.Errorf("provider: invalid decoder context config for %q: %w", spec.UID, err)
		}
	}

	switch cfg.Kind {
	case "", "debug":
		sampleRate := cfg.SampleRate
		if sampleRate == 0 {
			sampleRate = 16000
		}
		return decoder.NewDebugContext(sampleRate), nil
	case "whisper-streaming":
		return decoder.NewWhisperContext(decoder.WhisperConfig{
			ModelFile:  cfg.ModelFile,
			NumThreads: cfg.NumThreads,
		})
	default:
		return nil, fmt.Errorf("provider: unknown decoder context kind %q", cfg.Kind)
	}
}

func (f *DecoderContextFactory) Destroy(log *slog.Logger, instance any) error {
	type destroyer interface{ Destroy() error }
	if d, ok := instance.(destroyer); ok {
		return d.Destroy()
	}
	return nil
}
