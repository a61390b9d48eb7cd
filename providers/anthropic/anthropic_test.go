package anthropic_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/anthropic"
)

func TestNew_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := anthropic.New("claude-sonnet-4", "")
	require.Error(t, err)
	var need *shipeval.ErrAPIKeyRequired
	require.ErrorAs(t, err, &need)
}

func TestGenerate_SplitsSystemAndDecodesResponse(t *testing.T) {
	var gotSystem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotSystem, _ = body["system"].(string)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content":     []map[string]any{{"type": "text", "text": "hi there"}},
			"usage":       map[string]any{"input_tokens": 20, "output_tokens": 4},
		})
	}))
	defer srv.Close()

	p, err := anthropic.New("claude-sonnet-4", "test-key")
	require.NoError(t, err)
	anthropic.SetBaseURLForTest(p, srv.URL)

	resp, err := p.Generate(t.Context(), shipeval.Messages{
		{Role: shipeval.System, Content: "be terse"},
		{Role: shipeval.User, Content: "hi"},
	}, shipeval.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "be terse", gotSystem)
	assert.Equal(t, int64(24), resp.Tokens.Total)
}
