package decoder

// #cgo LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"unsafe"
)

// WhisperConfig configures a WhisperContext. Grounded on the teacher's
// apis/whisper.cpp.Config; language and word-timestamp settings are not
// part of it and arrive per call through Options.
type WhisperConfig struct {
	ModelFile  string
	NumThreads int
}

// IsValid mirrors the teacher's Config.IsValid.
func (c WhisperConfig) IsValid() error {
	if c == (WhisperConfig{}) {
		return fmt.Errorf("invalid empty config")
	}
	if c.ModelFile == "" {
		return fmt.Errorf("invalid ModelFile: should not be empty")
	}
	if numCPU := runtime.NumCPU(); c.NumThreads == 0 || c.NumThreads > numCPU {
		return fmt.Errorf("invalid NumThreads: should be in the range [1, %d]", numCPU)
	}
	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("invalid ModelFile: failed to stat model file: %w", err)
	}
	return nil
}

// WhisperContext wraps a whisper.cpp model instance as a decoder.Context.
// Unlike the teacher's segment-level Context.Transcribe, this always
// requests token timestamps and reshapes them into per-word Segments,
// since Options.WordTimestamps is load-bearing for LocalAgree.
type WhisperContext struct {
	cfg WhisperConfig
	ctx *C.struct_whisper_context
}

// NewWhisperContext loads the GGML model at cfg.ModelFile.
func NewWhisperContext(cfg WhisperConfig) (*WhisperContext, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	ctx := C.whisper_init_from_file(path)
	if ctx == nil {
		return nil, fmt.Errorf("decoder: failed to load whisper model file %q", cfg.ModelFile)
	}

	return &WhisperContext{cfg: cfg, ctx: ctx}, nil
}

// Destroy releases the whisper_context. Implements jobs.ContextFactory's
// per-instance teardown contract via provider.DecoderContextFactory.
func (c *WhisperContext) Destroy() error {
	if c.ctx == nil {
		return fmt.Errorf("decoder: whisper context already destroyed")
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}

// Transcribe implements decoder.Context.
func (c *WhisperContext) Transcribe(log *slog.Logger, samples []float32, opts Options) ([]Segment, error) {
	if c.ctx == nil {
		return nil, fmt.Errorf("decoder: whisper context is not initialized")
	}
	if !opts.WordTimestamps {
		return nil, fmt.Errorf("decoder: whisper context requires word_timestamps=true")
	}
	if len(samples) == 0 {
		return nil, nil
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.n_threads = C.int(c.cfg.NumThreads)
	params.token_timestamps = C.bool(true)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.single_segment = C.bool(false)
	params.translate = C.bool(false)
	params.no_context = C.bool(true)

	if opts.Language != "" {
		lang := C.CString(opts.Language)
		defer C.free(unsafe.Pointer(lang))
		params.language = lang
	}
	if !opts.Multilingual {
		detect := C.CString("en")
		defer C.free(unsafe.Pointer(detect))
		if opts.Language == "" {
			params.language = detect
		}
	}
	if opts.InitialPrompt != "" {
		prompt := C.CString(opts.InitialPrompt)
		defer C.free(unsafe.Pointer(prompt))
		params.initial_prompt = prompt
	}

	ret := C.whisper_full(c.ctx, params, (*C.float)(&samples[0]), C.int(len(samples)))
	if ret != 0 {
		return nil, fmt.Errorf("decoder: whisper_full failed with code %d", ret)
	}

	nSegments := int(C.whisper_full_n_segments(c.ctx))
	segments := make([]Segment, 0, nSegments)
	for i := 0; i < nSegments; i++ {
		nTokens := int(C.whisper_full_n_tokens(c.ctx, C.int(i)))
		words := make([]Word, 0, nTokens)
		for j := 0; j < nTokens; j++ {
			text := C.GoString(C.whisper_full_get_token_text(c.ctx, C.int(i), C.int(j)))
			if isWhisperSpecialToken(text) {
				continue
			}
			data := C.whisper_full_get_token_data(c.ctx, C.int(i), C.int(j))
			words = append(words, Word{
				Text:     text,
				StartSec: float64(data.t0) / 100.0,
				EndSec:   float64(data.t1) / 100.0,
			})
		}
		if len(words) > 0 {
			segments = append(segments, Segment{Words: words})
		}
	}

	return segments, nil
}

func isWhisperSpecialToken(text string) bool {
	return len(text) > 1 && text[0] == '[' && text[len(text)-1] == ']'
}
