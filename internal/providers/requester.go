package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
	"github.com/rcollins22/rugchekr/internal/retry"
)

// maxResponseBytes caps upstream bodies. Multi-file verified sources are
// the largest payloads we read.
const maxResponseBytes = 16 << 20

const userAgent = "rugchekr/1.0"

// Deps are the shared resilience pieces injected into every client.
type Deps struct {
	HTTPClient *http.Client
	Breaker    *circuitbreaker.Breaker
	Retry      retry.Policy
}

func (d Deps) withDefaults() Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if d.Breaker == nil {
		d.Breaker = circuitbreaker.New(5, 30*time.Second)
	}
	if d.Retry.Attempts == 0 {
		d.Retry = retry.DefaultPolicy
	}
	return d
}

// requester performs JSON calls against one upstream. It is safe for
// concurrent use; the limiter and breaker are shared by every provider
// built on the same upstream.
type requester struct {
	upstream string
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Breaker
	policy   retry.Policy
}

// newRequester builds a requester. rps <= 0 disables client-side limiting.
func newRequester(upstream string, rps float64, burst int, deps Deps) *requester {
	deps = deps.withDefaults()
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &requester{
		upstream: upstream,
		client:   deps.HTTPClient,
		limiter:  limiter,
		breaker:  deps.Breaker,
		policy:   deps.Retry,
	}
}

// request describes one call. Body is JSON-encoded when non-nil.
type request struct {
	method  string
	url     string
	headers map[string]string
	body    any
}

// getJSON issues a GET and decodes the response into out.
func (r *requester) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	return r.do(ctx, request{method: http.MethodGet, url: url, headers: headers}, out)
}

// postJSON issues a POST with a JSON body and decodes the response into out.
func (r *requester) postJSON(ctx context.Context, url string, headers map[string]string, body, out any) error {
	return r.do(ctx, request{method: http.MethodPost, url: url, headers: headers, body: body}, out)
}

func (r *requester) do(ctx context.Context, req request, out any) error {
	err := r.breaker.Execute(r.upstream, func(err error) bool {
		return KindOf(err).tripsBreaker()
	}, func() error {
		return retry.Do(ctx, r.policy, func() error {
			err := r.once(ctx, req, out)
			if err == nil {
				return nil
			}
			pe := Wrap(r.upstream, err)
			if pe.Kind == KindRateLimited {
				var ra *retryAfter
				if errors.As(pe.Err, &ra) {
					return retry.After(pe, ra.wait)
				}
			}
			if !pe.Kind.Retryable() {
				return retry.Permanent(pe)
			}
			return pe
		})
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return newError(r.upstream, KindUnavailable, err)
	}
	if err != nil {
		return Wrap(r.upstream, err)
	}
	return nil
}

func (r *requester) once(ctx context.Context, req request, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		kind := KindTimeout
		if errors.Is(ctx.Err(), context.Canceled) {
			kind = KindCanceled
			err = ctx.Err()
		}
		return newError(r.upstream, kind, fmt.Errorf("waiting for rate limiter: %w", err))
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return errorf(r.upstream, KindConfig, "marshal request body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, body)
	if err != nil {
		return errorf(r.upstream, KindConfig, "create request: %v", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Wrap(r.upstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Wrap(r.upstream, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 300 {
		return statusError(r.upstream, resp, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return errorf(r.upstream, KindMalformed, "decode response: %v", err)
	}
	if c, ok := out.(envelope); ok {
		return c.check()
	}
	return nil
}

// envelope is implemented by response schemas that carry their own
// success flag. check runs inside the retry loop so envelope-level rate
// limits are retried like HTTP 429s.
type envelope interface {
	check() error
}

// retryAfter carries an upstream Retry-After hint.
type retryAfter struct {
	wait time.Duration
	msg  string
}

func (e *retryAfter) Error() string { return e.msg }

func statusError(upstream string, resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	pe := &ProviderError{Provider: upstream, Status: resp.StatusCode, Err: errors.New(msg)}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Kind = KindRateLimited
		pe.Err = &retryAfter{wait: parseRetryAfter(resp.Header.Get("Retry-After")), msg: msg}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		pe.Kind = KindAuth
	case resp.StatusCode == http.StatusNotFound:
		pe.Kind = KindNotFound
	case resp.StatusCode >= 500:
		pe.Kind = KindUpstream
	default:
		pe.Kind = KindMalformed
	}
	return pe
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
