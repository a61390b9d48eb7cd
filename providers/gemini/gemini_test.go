package gemini_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/providers/gemini"
)

func TestNew_MissingAPIKeyFails(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	_, err := gemini.New("gemini-2.0-flash", "")
	require.Error(t, err)
	var need *shipeval.ErrAPIKeyRequired
	require.ErrorAs(t, err, &need)
}

func TestGenerate_DecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.RawQuery, "key=test-key"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"modelVersion": "gemini-2.0-flash-001",
			"candidates": []map[string]any{
				{"finishReason": "STOP", "content": map[string]any{"parts": []map[string]any{{"text": "hi there"}}}},
			},
			"usageMetadata": map[string]any{"promptTokenCount": 8, "candidatesTokenCount": 3, "totalTokenCount": 11},
		})
	}))
	defer srv.Close()

	p, err := gemini.New("gemini-2.0-flash", "test-key")
	require.NoError(t, err)
	gemini.SetBaseURLForTest(p, srv.URL+"/")

	resp, err := p.Generate(t.Context(), shipeval.Messages{{Role: shipeval.User, Content: "hi"}}, shipeval.Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, int64(11), resp.Tokens.Total)
}
