package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/vad"
)

// VADContextConfig is the ContextConfig JSON shape for vad-kind contexts.
type VADContextConfig struct {
	ModelPath            string `json:"model_path"`
	SampleRate           int    `json:"sample_rate"`
	WindowSize           int    `json:"window_size"`
	SpeechPadMs          int    `json:"speech_pad_ms"`
	MinSilenceDurationMs int    `json:"min_silence_duration_ms"`
}

// VADContextFactory implements jobs.ContextFactory, constructing a
// *vad.Driver wrapping a Silero detector per ContextSpec.
type VADContextFactory struct{}

// NewVADContextFactory constructs a VADContextFactory.
func NewVADContextFactory() *VADContextFactory { return &VADContextFactory{} }

func (f *VADContextFactory) Create(log *slog.Logger, spec jobs.ContextSpec) (any, error) {
	var cfg VADContextConfig
	if len(spec.ContextConfig) > 0 {
		if err := json.Unmarshal(spec.ContextConfig, &cfg); err != nil {
			return nil, fmt.Errorf("provider: invalid vad context config for %q: %w", spec.UID, err)
		}
	}
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("provider: vad context %q missing model_path", spec.UID)
	}

	det, err := vad.NewSileroDetector(vad.SileroConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		WindowSize:           cfg.WindowSize,
		SpeechPadMs:          cfg.SpeechPadMs,
		MinSilenceDurationMs: cfg.MinSilenceDurationMs,
	})
	if err != nil {
		return nil, err
	}
	return vad.NewDriver(det), nil
}

func (f *VADContextFactory) Destroy(log *slog.Logger, instance any) error {
	driver, ok := instance.(*vad.Driver)
	if !ok {
		return fmt.Errorf("provider: vad context destroy: unexpected instance type %T", instance)
	}
	return driver.Destroy()
}
