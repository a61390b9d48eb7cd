package base_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/maruel/httpjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/base"
)

type echoRequest struct {
	Prompt string `json:"prompt"`
}

type echoResponse struct {
	Reply string `json:"reply"`
}

func TestProviderBase_Do_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"hi"}`))
	}))
	defer srv.Close()

	p := &base.ProviderBase{Name: "fake"}
	var out echoResponse
	_, err := p.Do(t.Context(), http.MethodPost, srv.URL, nil, echoRequest{Prompt: "hello"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Reply)
}

func TestProviderBase_Do_FatalNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	p := &base.ProviderBase{Name: "fake"}
	_, err := p.Do(t.Context(), http.MethodPost, srv.URL, nil, echoRequest{}, nil)
	require.Error(t, err)
	var fatal *shipeval.ProviderFatal
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, calls)

	var herr *httpjson.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusBadRequest, herr.StatusCode)
}

func TestProviderBase_Do_RateLimitExhaustsSchedule(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the real 1s/2s/4s backoff schedule")
	}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &base.ProviderBase{Name: "fake"}
	_, err := p.Do(t.Context(), http.MethodPost, srv.URL, nil, echoRequest{}, nil)
	require.Error(t, err)
	var rl *shipeval.ProviderRateLimit
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, base.MaxAttempts(), rl.Attempts)
	assert.Equal(t, base.MaxAttempts(), calls)
}

func TestProviderBase_Do_UnauthorizedMentionsAPIKeyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := &base.ProviderBase{Name: "fake", APIKeyURL: "https://example.test/keys"}
	_, err := p.Do(t.Context(), http.MethodPost, srv.URL, nil, echoRequest{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://example.test/keys")
}

func TestProviderBase_Do_ContextCanceledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	p := &base.ProviderBase{Name: "fake"}
	_, err := p.Do(ctx, http.MethodPost, srv.URL, nil, echoRequest{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || !errors.Is(err, context.DeadlineExceeded))
}

func TestSplitSystem(t *testing.T) {
	msgs := shipeval.Messages{
		{Role: shipeval.System, Content: "be terse"},
		{Role: shipeval.System, Content: "cite sources"},
		{Role: shipeval.User, Content: "what is medicare part d"},
	}
	system, rest := base.SplitSystem(msgs)
	assert.Equal(t, "be terse\n\ncite sources", system)
	require.Len(t, rest, 1)
	assert.Equal(t, shipeval.User, rest[0].Role)
}

func TestSplitSystem_NoSystemMessages(t *testing.T) {
	msgs := shipeval.Messages{{Role: shipeval.User, Content: "hello"}}
	system, rest := base.SplitSystem(msgs)
	assert.Empty(t, system)
	assert.Equal(t, msgs, rest)
}
