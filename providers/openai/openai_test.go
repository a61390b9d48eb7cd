package openai_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/openai"
)

func TestNew_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := openai.New("gpt-4o", "")
	require.Error(t, err)
	var need *shipeval.ErrAPIKeyRequired
	require.ErrorAs(t, err, &need)
}

func TestGenerate_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{
				{"finish_reason": "stop", "message": map[string]any{"content": "hello there"}},
			},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p, err := openai.New("gpt-4o", "test-key")
	require.NoError(t, err)
	openai.SetBaseURLForTest(p, srv.URL)

	resp, err := p.Generate(t.Context(), shipeval.Messages{{Role: shipeval.User, Content: "hi"}}, shipeval.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.ModelIdentifier)
	assert.Equal(t, int64(15), resp.Tokens.Total)
}
