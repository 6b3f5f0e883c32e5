package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImplFactoryBuildsStreamingJob(t *testing.T) {
	factory := NewImplFactory()

	cfg, err := json.Marshal(StreamingJobConfig{
		MaxBufferLenSec: 5,
		LocalAgreeDim:   2,
	})
	require.NoError(t, err)

	impl, err := factory("streaming", cfg)
	require.NoError(t, err)
	require.NotNil(t, impl)
}

func TestImplFactoryUnknownNameErrors(t *testing.T) {
	factory := NewImplFactory()

	_, err := factory("not-a-job", nil)
	require.Error(t, err)
}

func TestImplFactoryRejectsInvalidConfig(t *testing.T) {
	factory := NewImplFactory()

	_, err := factory("streaming", []byte("not json"))
	require.Error(t, err)
}
