// Package base is shared HTTP plumbing for the providers subpackages.
//
// It is not meant to be used directly by callers of shipeval; it exists to
// reduce duplication across provider adapters the way maruel/genai's base
// package does for its own provider set.
package base

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/maruel/httpjson"
	"github.com/maruel/roundtrippers"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shipeval/shipeval"
	"github.com/shipeval/shipeval/internal/telemetry"
)

// DefaultTransport wraps http.DefaultTransport with a short, low-level retry
// policy for connection-level hiccups (DNS, reset connections). It is
// intentionally distinct from the provider-level retry loop in Do, which
// implements the documented 1s/2s/4s schedule for rate limits (§4.1).
var DefaultTransport http.RoundTripper = &roundtrippers.Retry{
	Transport: http.DefaultTransport,
	Policy: &roundtrippers.ExponentialBackoff{
		MaxTryCount: 2,
		MaxDuration: 5 * time.Second,
		Exp:         2,
	},
}

// ProviderBase holds the fields common to every HTTP-backed provider
// adapter: the client, the model in use, and the name reported to callers.
type ProviderBase struct {
	Client    http.Client
	Name      string
	Model     string
	APIKeyURL string
}

// adapterMetrics are the latency/token histograms spec §4.1 names ("token/
// latency metrics") and §4.6's metadata requirements feed from, recorded for
// every successful provider call (see RecordCall). Initialized lazily against the
// global meter provider so tests that never call telemetry.Init still get a
// working (no-op) instrument, matching ashita-ai-akashi's
// internal/server/middleware.go fallback-on-error pattern.
var (
	metricsOnce sync.Once
	latencyHist metric.Float64Histogram
	tokensHist  metric.Int64Histogram
)

func initMetrics() {
	meter := telemetry.Meter("shipeval/adapter")
	latencyHist, _ = meter.Float64Histogram("shipeval.adapter.latency_ms",
		metric.WithDescription("Provider adapter call latency"),
		metric.WithUnit("ms"),
	)
	tokensHist, _ = meter.Int64Histogram("shipeval.adapter.tokens_used",
		metric.WithDescription("Tokens consumed per provider adapter call"),
	)
}

// RecordCall records one completed (successful) provider call's latency and
// token usage, tagged by provider and model. Adapters call this immediately
// after building their ModelResponse.
func RecordCall(ctx context.Context, provider, model string, latencyMS int64, tokens shipeval.Usage) {
	metricsOnce.Do(initMetrics)
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	if latencyHist != nil {
		latencyHist.Record(ctx, float64(latencyMS), attrs)
	}
	if tokensHist != nil {
		tokensHist.Record(ctx, tokens.Total, attrs)
	}
}

// isRateLimited reports whether an httpjson.Error indicates the caller
// should back off and retry rather than fail the trial immediately.
func isRateLimited(e *httpjson.Error) bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// retrySchedule is the capped exponential backoff from spec §4.1: the
// initial attempt plus up to three retries, waiting 1s, then 2s, then 4s
// before each retry (four attempts in all).
var retrySchedule = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Do executes a JSON request and decodes a JSON response, retrying
// transient failures (HTTP 429, 5xx, or a network error from Client.Do)
// according to retrySchedule. Non-transient 4xx errors are returned
// immediately. Exhausting the schedule on a transient failure returns
// *shipeval.ProviderRateLimit; any other terminal failure is wrapped in
// *shipeval.ProviderFatal, except that a context cancelled during a backoff
// wait returns ctx.Err() as is.
func (p *ProviderBase) Do(ctx context.Context, method, url string, headers map[string]string, in, out any) (http.Header, error) {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return nil, &shipeval.ProviderFatal{Provider: p.Name, Err: fmt.Errorf("encode request: %w", err)}
		}
	}

	var lastErr error
	for attempt := 0; attempt < len(retrySchedule)+1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retrySchedule[attempt-1]):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, &shipeval.ProviderFatal{Provider: p.Name, Err: err}
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := p.Client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < len(retrySchedule) {
				continue
			}
			return nil, &shipeval.ProviderRateLimit{Provider: p.Name, Attempts: attempt + 1, Err: err}
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, &shipeval.ProviderFatal{Provider: p.Name, Err: fmt.Errorf("read response: %w", err)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			httpErr := &httpjson.Error{StatusCode: resp.StatusCode, ResponseBody: respBody}
			var fatalErr error = httpErr
			if resp.StatusCode == http.StatusUnauthorized && p.APIKeyURL != "" {
				fatalErr = fmt.Errorf("%w (get a new API key at %s)", httpErr, p.APIKeyURL)
			}
			if isRateLimited(httpErr) {
				lastErr = httpErr
				if attempt < len(retrySchedule) {
					continue
				}
				return resp.Header, &shipeval.ProviderRateLimit{Provider: p.Name, Attempts: attempt + 1, Err: httpErr}
			}
			return resp.Header, &shipeval.ProviderFatal{Provider: p.Name, Err: fatalErr}
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return resp.Header, &shipeval.ProviderFatal{Provider: p.Name, Err: fmt.Errorf("decode response: %w; body: %s", err, respBody)}
			}
		}
		return resp.Header, nil
	}
	return nil, &shipeval.ProviderRateLimit{Provider: p.Name, Attempts: len(retrySchedule) + 1, Err: lastErr}
}

// SplitSystem extracts a leading run of System-role messages (joined with
// blank lines) and returns the remaining conversation. Providers that take
// the system prompt as a top-level field (Anthropic, Gemini) use this;
// providers that accept a system message in-line (OpenAI) don't need it.
func SplitSystem(msgs shipeval.Messages) (system string, rest shipeval.Messages) {
	i := 0
	var parts []string
	for ; i < len(msgs); i++ {
		if msgs[i].Role != shipeval.System {
			break
		}
		parts = append(parts, msgs[i].Content)
	}
	if len(parts) == 0 {
		return "", msgs
	}
	system = parts[0]
	for _, s := range parts[1:] {
		system += "\n\n" + s
	}
	return system, msgs[i:]
}

// MaxAttempts exposes the effective attempt count, used by tests asserting
// the retry schedule length without hardcoding it twice.
func MaxAttempts() int { return len(retrySchedule) + 1 }
