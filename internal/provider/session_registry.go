package provider

// Registry wires the provider-config document's providers[] list (§6)
// to the dispatcher: it resolves a session's api key and provider_key
// selection into a registered job. Grounded on the teacher's
// provider_uid-keyed config-to-constructor pattern
// (cmd/transcriber/call/live_captions.go's newLiveCaptionsTranscriber),
// generalized from "one hardcoded provider" to "a registry of
// configured providers looked up by key".

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"github.com/scribear/scribear/internal/config"
	"github.com/scribear/scribear/internal/manager"
)

// Dispatcher is the subset of dispatcher.Dispatcher the registry needs.
type Dispatcher interface {
	RegisterJob(requiredTags []string, periodMs int64, jobImplName string, jobImplConfig []byte) (*manager.JobHandle, error)
}

// entry is one configured provider: its placement requirements and the
// job implementation it drives.
type entry struct {
	requiredTags []string
	periodMs     int64
	jobImplName  string
	jobImplCfg   []byte
}

// Registry implements session.Providers: it authenticates against a
// single configured API key (§6) and resolves a provider_key to a
// dispatcher registration.
type Registry struct {
	apiKey     string
	dispatcher Dispatcher
	byKey      map[string]entry
}

// defaultStreamingConfig fills in the provider_uid-specific defaults a
// bare provider-config document leaves unset, mirroring each provider_uid's
// intended StreamingJob behavior (§4.10): "debug" never runs VAD, since it
// never decodes real speech; "whisper-streaming" runs VAD by default.
func defaultStreamingConfig(providerUID string, raw json.RawMessage) (json.RawMessage, error) {
	var cfg map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("provider: invalid provider_config for %q: %w", providerUID, err)
		}
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}
	if _, ok := cfg["local_agree_dim"]; !ok {
		cfg["local_agree_dim"] = 2
	}
	if _, ok := cfg["max_buffer_len_sec"]; !ok {
		cfg["max_buffer_len_sec"] = 30.0
	}
	if _, ok := cfg["silence_threshold"]; !ok {
		cfg["silence_threshold"] = 0.01
	}
	if _, ok := cfg["vad_enabled"]; !ok {
		cfg["vad_enabled"] = providerUID == "whisper-streaming"
	}
	if _, ok := cfg["vad_threshold"]; !ok {
		cfg["vad_threshold"] = 0.5
	}
	return json.Marshal(cfg)
}

// New builds a Registry from the server's API key and the provider-config
// document's providers[] list, forwarding registrations to dispatcher.
func New(apiKey string, doc config.ProviderConfigDocument, dispatcher Dispatcher) (*Registry, error) {
	r := &Registry{
		apiKey:     apiKey,
		dispatcher: dispatcher,
		byKey:      make(map[string]entry, len(doc.Providers)),
	}

	for _, p := range doc.Providers {
		jobImplName := p.JobImplName
		if jobImplName == "" {
			jobImplName = "streaming"
		}

		cfg, err := defaultStreamingConfig(p.ProviderUID, nil)
		if err != nil {
			return nil, err
		}

		r.byKey[p.ProviderKey] = entry{
			requiredTags: p.RequiredTags,
			periodMs:     p.PeriodMs,
			jobImplName:  jobImplName,
			jobImplCfg:   cfg,
		}
	}

	return r, nil
}

// Authenticate reports whether apiKey matches the configured key, using a
// constant-time comparison since this is a credential check (§6).
func (r *Registry) Authenticate(apiKey string) bool {
	return subtle.ConstantTimeCompare([]byte(apiKey), []byte(r.apiKey)) == 1
}

// RegisterJob resolves providerKey to its configured placement
// requirements and forwards the registration to the dispatcher.
// sessionConfig is the session's provider_config selection (§6); when non-empty it is
// merged over the provider's configured defaults.
func (r *Registry) RegisterJob(providerKey string, sessionConfig json.RawMessage) (*manager.JobHandle, error) {
	e, ok := r.byKey[providerKey]
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider_key %q", providerKey)
	}

	jobImplCfg := e.jobImplCfg
	if len(sessionConfig) > 0 {
		merged := make(map[string]any)
		if err := json.Unmarshal(e.jobImplCfg, &merged); err != nil {
			return nil, fmt.Errorf("provider: invalid configured defaults for %q: %w", providerKey, err)
		}
		var overrides map[string]any
		if err := json.Unmarshal(sessionConfig, &overrides); err != nil {
			return nil, fmt.Errorf("provider: invalid session config: %w", err)
		}
		for k, v := range overrides {
			merged[k] = v
		}
		var err error
		jobImplCfg, err = json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("provider: failed to remarshal merged config: %w", err)
		}
	}

	return r.dispatcher.RegisterJob(e.requiredTags, e.periodMs, e.jobImplName, jobImplCfg)
}
