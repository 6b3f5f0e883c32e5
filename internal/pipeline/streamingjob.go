// Package pipeline implements the audio-to-transcript processing loop run
// once per period inside a worker: decode, silence-gate, forced
// finalization under backpressure, VAD segmentation, decoder invocation,
// and LocalAgree stabilization.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/scribear/scribear/internal/audio"
	"github.com/scribear/scribear/internal/decoder"
	"github.com/scribear/scribear/internal/errs"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/stabilize"
	"github.com/scribear/scribear/internal/vad"
)

// Config constructs one StreamingJob.
type Config struct {
	MaxBufferLenSec  float64
	LocalAgreeDim    int
	VADEnabled       bool
	VADThreshold     float64
	VADNegThreshold  *float64
	SilenceThreshold float64
	Language         string
}

// Contexts bundles the two resolved job contexts a StreamingJob needs:
// the decoder and, when VAD is enabled, the voice-activity detector.
type Contexts struct {
	Decoder decoder.Context
	VAD     *vad.Driver
}

// StreamingJob is the per-connection transcription pipeline. It is a
// jobs.Implementation: the worker scheduler calls ProcessBatch once per
// period with the batch of audio chunks queued since the last call.
type StreamingJob struct {
	cfg Config

	buffer        *audio.CircularSampleBuffer
	stabilizer    *stabilize.LocalAgree
	gate          *audio.SilenceGate
	codec         audio.Codec
	lastFinalized string

	maxBufferSamples int
}

// NewStreamingJob constructs a StreamingJob. codec decodes the opaque
// chunk bytes this connection's provider receives into mono-16kHz PCM.
func NewStreamingJob(cfg Config, codec audio.Codec) (*StreamingJob, error) {
	la, err := stabilize.NewLocalAgree(cfg.LocalAgreeDim)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	maxBufferSamples := int(cfg.MaxBufferLenSec * float64(audio.SampleRate))
	return &StreamingJob{
		cfg:              cfg,
		buffer:           audio.NewCircularSampleBuffer(2 * maxBufferSamples),
		stabilizer:       la,
		gate:             audio.NewSilenceGate(),
		codec:            codec,
		maxBufferSamples: maxBufferSamples,
	}, nil
}

// ProcessBatch implements jobs.Implementation. contexts[0] must be a
// decoder.Context; contexts[1], if vad is enabled, must be a *vad.Driver.
func (j *StreamingJob) ProcessBatch(log *slog.Logger, contexts []any, batch jobs.Batch) (any, error) {
	var dec decoder.Context
	var vd *vad.Driver
	if len(contexts) > 0 {
		dec, _ = contexts[0].(decoder.Context)
	}
	if dec == nil {
		return nil, fmt.Errorf("pipeline: no decoder context resolved")
	}
	if j.cfg.VADEnabled && len(contexts) > 1 {
		vd, _ = contexts[1].(*vad.Driver)
	}

	// 1. Decode, 2. silence-gate append.
	for _, item := range batch {
		chunk, ok := item.(audio.Chunk)
		if !ok {
			return nil, fmt.Errorf("pipeline: unexpected batch item type %T", item)
		}

		channels, err := j.codec.Decode(chunk.Data)
		if err != nil {
			return nil, errs.New(errs.KindClientTranscription, fmt.Errorf("failed to decode audio chunk: %w", err))
		}
		if len(channels) != 1 {
			return nil, errs.New(errs.KindClientTranscription, fmt.Errorf("expected mono audio, got %d channels", len(channels)))
		}
		samples := channels[0]

		if j.gate.IsSilent(channels, j.cfg.SilenceThreshold) {
			continue
		}

		overflow := j.buffer.Append(samples)
		if len(overflow) > 0 {
			return nil, errs.New(errs.KindClientTranscription, fmt.Errorf("audio too fast"))
		}
	}

	// 3. Forced finalization (backpressure).
	var forcedFinal *stabilize.Sequence
	if j.buffer.Len() > j.maxBufferSamples {
		toPurge := j.buffer.Len() - j.maxBufferSamples
		forcedEnd := float64(j.buffer.OffsetSamples()+toPurge) / float64(audio.SampleRate)
		if seq, ok := j.stabilizer.ForceFinalized(forcedEnd); ok {
			forcedFinal = &seq
		}
		j.buffer.Purge(toPurge)
	}

	// 4. Segmentation.
	view := j.buffer.View()
	var ranges []vad.Range
	if !j.cfg.VADEnabled {
		if len(view) > 0 {
			ranges = []vad.Range{{Start: 0, End: len(view)}}
		}
	} else if vd != nil {
		ranges = vd.DetectSpeechRanges(view, j.cfg.VADThreshold, j.cfg.VADNegThreshold)
	}

	// 5. Decode transcription.
	var segments []stabilize.Segment
	for _, r := range ranges {
		start, end := r.Start, r.End
		if start < 0 {
			start = 0
		}
		if end > len(view) {
			end = len(view)
		}
		if end <= start {
			continue
		}

		hypSegs, err := dec.Transcribe(log, view[start:end], decoder.Options{
			InitialPrompt:   j.lastFinalized,
			WordTimestamps:  true,
			VADFilter:       false,
			Language:        j.cfg.Language,
			Multilingual:    false,
		})
		if err != nil {
			return nil, err
		}

		rangeStartSec := float64(j.buffer.OffsetSamples()+start) / float64(audio.SampleRate)
		for _, hs := range hypSegs {
			for _, w := range hs.Words {
				segments = append(segments, stabilize.Segment{
					Text:     w.Text,
					StartSec: rangeStartSec + w.StartSec,
					EndSec:   rangeStartSec + w.EndSec,
				})
			}
		}
	}

	// 6. Stabilize.
	var localFinal *stabilize.Sequence
	var inProgress *stabilize.Sequence
	if len(segments) > 0 {
		j.stabilizer.AppendTranscription(segments)
		if seq, ok := j.stabilizer.PopFinalized(); ok {
			localFinal = &seq
		}
		if seq, ok := j.stabilizer.GetInProgress(); ok {
			inProgress = &seq
		}
	}

	var final *stabilize.Sequence
	switch {
	case forcedFinal != nil && localFinal != nil:
		merged := stabilize.ConcatSequences(*forcedFinal, *localFinal)
		final = &merged
	case forcedFinal != nil:
		final = forcedFinal
	case localFinal != nil:
		final = localFinal
	}

	if final != nil && len(final.Ends) > 0 {
		cutSec := final.Ends[len(final.Ends)-1]
		cutSamples := int(cutSec*float64(audio.SampleRate)) - j.buffer.OffsetSamples()
		if cutSamples > 0 {
			j.buffer.Purge(cutSamples)
		}
		j.lastFinalized = concatText(final.Text)
	}

	return Result{InProgress: inProgress, Final: final}, nil
}

func concatText(text []string) string {
	out := ""
	for i, t := range text {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
