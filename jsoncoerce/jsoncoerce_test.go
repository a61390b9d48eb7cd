package jsoncoerce_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval/jsoncoerce"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{
			name: "bare object",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "preamble and postamble",
			in:   "Sure, here is my answer:\n" + `{"a":1}` + "\nLet me know if you have questions!",
			want: `{"a":1}`,
		},
		{
			name: "fenced with language tag",
			in:   "```json\n" + `{"a":1}` + "\n```",
			want: `{"a":1}`,
		},
		{
			name: "truncated opening fence only",
			in:   "```json\n" + `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "nested object with brace inside string",
			in:   `prefix {"a":{"b":2},"c":"a } b"} suffix`,
			want: `{"a":{"b":2},"c":"a } b"}`,
		},
		{
			name:    "no object",
			in:      "no json here",
			wantErr: true,
		},
		{
			name:    "unbalanced braces",
			in:      `{"a":1`,
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := jsoncoerce.Extract(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecode(t *testing.T) {
	type payload struct {
		Score int    `json:"score"`
		Note  string `json:"note"`
	}
	var p payload
	err := jsoncoerce.Decode(`Here you go: {"score": 3, "note": "ok"} thanks`, &p)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Score)
	assert.Equal(t, "ok", p.Note)
}

func TestDecode_InvalidJSONIncludesCandidate(t *testing.T) {
	var p struct{}
	err := jsoncoerce.Decode(`{"score": }`, &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `{"score": }`)
}
