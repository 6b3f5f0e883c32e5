// Package config loads the main-process configuration surface (§6):
// environment variables for the server itself, and the JSON
// provider-config document describing the cluster's job contexts and
// providers. Grounded on the teacher's config.FromEnv/SetDefaults/IsValid
// pattern (cmd/transcriber/config/config.go), generalized from a single
// flat struct to a top-level env config plus a nested document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// idRE mirrors the teacher's 26-char lowercase-alnum id format, reused
// verbatim as a sensible opaque-identifier validator for provider_key.
var idRE = regexp.MustCompile(`^[a-z0-9]{26}$`)

const (
	LogLevelDefault           = "info"
	PortDefault               = 8080
	HostDefault               = "0.0.0.0"
	WSInitTimeoutSecDefault   = 10
)

// EnvConfig is the server's environment-sourced configuration.
type EnvConfig struct {
	LogLevel          string
	Port              int
	Host              string
	APIKey            string
	WSInitTimeoutSec  int
	ProviderConfigPath string
}

// SetDefaults fills zero-valued fields with their defaults, mirroring
// the teacher's CallTranscriberConfig.SetDefaults.
func (c *EnvConfig) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = LogLevelDefault
	}
	if c.Port == 0 {
		c.Port = PortDefault
	}
	if c.Host == "" {
		c.Host = HostDefault
	}
	if c.WSInitTimeoutSec == 0 {
		c.WSInitTimeoutSec = WSInitTimeoutSecDefault
	}
}

// IsValid mirrors the teacher's CallTranscriberConfig.IsValid.
func (c EnvConfig) IsValid() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: APIKey cannot be empty")
	}
	if c.ProviderConfigPath == "" {
		return fmt.Errorf("config: ProviderConfigPath cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: Port should be in the range [1, 65535]")
	}
	if c.WSInitTimeoutSec < 1 {
		return fmt.Errorf("config: WSInitTimeoutSec should be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: LogLevel value is not valid")
	}
	return nil
}

// WSInitTimeout returns the handshake timeout as a time.Duration.
func (c EnvConfig) WSInitTimeout() time.Duration {
	return time.Duration(c.WSInitTimeoutSec) * time.Second
}

// FromEnv loads an EnvConfig from the process environment, first
// loading a .env file if present (local development convenience; a
// missing .env is not an error).
func FromEnv() (EnvConfig, error) {
	_ = godotenv.Load()

	var c EnvConfig
	c.LogLevel = os.Getenv("LOG_LEVEL")
	c.Host = os.Getenv("HOST")
	c.APIKey = os.Getenv("API_KEY")
	c.ProviderConfigPath = os.Getenv("PROVIDER_CONFIG_PATH")

	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return EnvConfig{}, fmt.Errorf("config: invalid PORT: %w", err)
		}
		c.Port = port
	}

	if val := os.Getenv("WS_INIT_TIMEOUT_SEC"); val != "" {
		sec, err := strconv.Atoi(val)
		if err != nil {
			return EnvConfig{}, fmt.Errorf("config: invalid WS_INIT_TIMEOUT_SEC: %w", err)
		}
		c.WSInitTimeoutSec = sec
	}

	c.SetDefaults()
	return c, nil
}

// ContextDocument is one entry of ProviderConfigDocument.Contexts.
type ContextDocument struct {
	UID              string          `json:"uid"`
	Factory          string          `json:"factory"` // "decoder" or "vad"
	MaxInstances     int             `json:"max_instances"`
	Tags             []string        `json:"tags"`
	NegativeAffinity *string         `json:"negative_affinity"`
	CreationCost     float64         `json:"creation_cost"`
	ContextConfig    json.RawMessage `json:"context_config"`
}

// ProviderDocument describes one provider_uid entry: its job
// implementation name, period, and required context tags.
type ProviderDocument struct {
	ProviderKey  string   `json:"provider_key"`
	ProviderUID  string   `json:"provider_uid"`
	JobImplName  string   `json:"job_impl_name"`
	PeriodMs     int64    `json:"period_ms"`
	RequiredTags []string `json:"required_tags"`
}

// ProviderConfigDocument is the full PROVIDER_CONFIG_PATH document.
type ProviderConfigDocument struct {
	NumWorkers                 int               `json:"num_workers"`
	RollingUtilizationWindowSec int              `json:"rolling_utilization_window_sec"`
	Contexts                   []ContextDocument `json:"contexts"`
	Providers                  []ProviderDocument `json:"providers"`
}

// IsValid validates the document the way the teacher validates nested
// OutputOptions: delegate to each element, surface the first error.
func (d ProviderConfigDocument) IsValid() error {
	if d.NumWorkers < 1 {
		return fmt.Errorf("config: num_workers must be positive")
	}
	if d.RollingUtilizationWindowSec < 1 {
		return fmt.Errorf("config: rolling_utilization_window_sec must be positive")
	}
	seenContexts := make(map[string]bool, len(d.Contexts))
	for _, c := range d.Contexts {
		if c.UID == "" {
			return fmt.Errorf("config: context uid cannot be empty")
		}
		if seenContexts[c.UID] {
			return fmt.Errorf("config: duplicate context uid %q", c.UID)
		}
		seenContexts[c.UID] = true
		if c.MaxInstances == 0 {
			return fmt.Errorf("config: context %q max_instances cannot be 0 (use -1 for unlimited)", c.UID)
		}
		switch c.Factory {
		case "decoder", "vad":
		default:
			return fmt.Errorf("config: context %q has unknown factory %q", c.UID, c.Factory)
		}
	}
	if len(d.Providers) == 0 {
		return fmt.Errorf("config: providers cannot be empty")
	}
	for _, p := range d.Providers {
		if p.ProviderKey == "" {
			return fmt.Errorf("config: provider_key cannot be empty")
		}
		if !idRE.MatchString(p.ProviderKey) {
			return fmt.Errorf("config: provider_key %q is not a valid id", p.ProviderKey)
		}
		if p.ProviderUID == "" {
			return fmt.Errorf("config: provider_uid cannot be empty")
		}
		if p.JobImplName == "" {
			return fmt.Errorf("config: job_impl_name cannot be empty")
		}
		if p.PeriodMs <= 0 {
			return fmt.Errorf("config: period_ms must be positive")
		}
	}
	return nil
}

// RollingUtilizationWindow returns the window as a time.Duration.
func (d ProviderConfigDocument) RollingUtilizationWindow() time.Duration {
	return time.Duration(d.RollingUtilizationWindowSec) * time.Second
}

// LoadProviderConfigDocument reads and validates the JSON document at path.
func LoadProviderConfigDocument(path string) (ProviderConfigDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProviderConfigDocument{}, fmt.Errorf("config: failed to read provider config: %w", err)
	}

	var doc ProviderConfigDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ProviderConfigDocument{}, fmt.Errorf("config: failed to parse provider config: %w", err)
	}

	if err := doc.IsValid(); err != nil {
		return ProviderConfigDocument{}, err
	}

	return doc, nil
}
