package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvConfigSetDefaults(t *testing.T) {
	var c EnvConfig
	c.SetDefaults()
	require.Equal(t, LogLevelDefault, c.LogLevel)
	require.Equal(t, PortDefault, c.Port)
	require.Equal(t, HostDefault, c.Host)
	require.Equal(t, WSInitTimeoutSecDefault, c.WSInitTimeoutSec)
}

func TestEnvConfigIsValidRequiresAPIKeyAndPath(t *testing.T) {
	c := EnvConfig{}
	c.SetDefaults()
	require.Error(t, c.IsValid())

	c.APIKey = "secret"
	require.Error(t, c.IsValid())

	c.ProviderConfigPath = "/tmp/providers.json"
	require.NoError(t, c.IsValid())
}

func TestEnvConfigIsValidRejectsBadLogLevel(t *testing.T) {
	c := EnvConfig{APIKey: "k", ProviderConfigPath: "p", LogLevel: "verbose"}
	c.SetDefaults()
	c.LogLevel = "verbose"
	require.Error(t, c.IsValid())
}

func TestProviderConfigDocumentIsValid(t *testing.T) {
	doc := ProviderConfigDocument{
		NumWorkers:                  2,
		RollingUtilizationWindowSec: 60,
		Contexts: []ContextDocument{
			{UID: "whisper-a", Factory: "decoder", MaxInstances: -1, Tags: []string{"whisper"}},
		},
		Providers: []ProviderDocument{
			{
				ProviderKey:  "abcdefghijklmnopqrstuvwxyz",
				ProviderUID:  "whisper-streaming",
				JobImplName:  "streaming",
				PeriodMs:     500,
				RequiredTags: []string{"whisper"},
			},
		},
	}
	require.NoError(t, doc.IsValid())
}

func TestProviderConfigDocumentRejectsDuplicateContextUID(t *testing.T) {
	doc := ProviderConfigDocument{
		NumWorkers:                  1,
		RollingUtilizationWindowSec: 60,
		Contexts: []ContextDocument{
			{UID: "x", Factory: "decoder", MaxInstances: -1},
			{UID: "x", Factory: "decoder", MaxInstances: -1},
		},
		Providers: []ProviderDocument{
			{ProviderKey: "abcdefghijklmnopqrstuvwxyz", ProviderUID: "p", JobImplName: "streaming", PeriodMs: 100},
		},
	}
	require.Error(t, doc.IsValid())
}

func TestProviderConfigDocumentRejectsBadProviderKey(t *testing.T) {
	doc := ProviderConfigDocument{
		NumWorkers:                  1,
		RollingUtilizationWindowSec: 60,
		Providers: []ProviderDocument{
			{ProviderKey: "not-26-chars", ProviderUID: "p", JobImplName: "streaming", PeriodMs: 100},
		},
	}
	require.Error(t, doc.IsValid())
}

func TestLoadProviderConfigDocumentRoundTrip(t *testing.T) {
	doc := ProviderConfigDocument{
		NumWorkers:                  1,
		RollingUtilizationWindowSec: 30,
		Providers: []ProviderDocument{
			{ProviderKey: "abcdefghijklmnopqrstuvwxyz", ProviderUID: "debug", JobImplName: "streaming", PeriodMs: 200},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "providers.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := LoadProviderConfigDocument(path)
	require.NoError(t, err)
	require.Equal(t, doc, loaded)
}

func TestLoadProviderConfigDocumentRejectsMissingFile(t *testing.T) {
	_, err := LoadProviderConfigDocument(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
