package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval/providers"
)

func TestNew_Fake(t *testing.T) {
	p, err := providers.New("fake:perfect")
	require.NoError(t, err)
	assert.Equal(t, "fake", p.Name())
}

func TestNew_MockAgent(t *testing.T) {
	p, err := providers.New("mockagent:unused")
	require.NoError(t, err)
	assert.Equal(t, "mockagent", p.Name())
}

func TestNew_MissingColonFails(t *testing.T) {
	_, err := providers.New("openai")
	require.Error(t, err)
}

func TestNew_UnknownProviderFails(t *testing.T) {
	_, err := providers.New("nonexistent:model")
	require.Error(t, err)
}

func TestNew_RealProviderWithoutKeyFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := providers.New("openai:gpt-4o")
	require.Error(t, err)
}
