package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dunamismax/pixelgate/internal/signing"
)

const (
	OriginPrimary  = "primary"
	OriginFailover = "failover"
)

var forwardedHeaders = []string{"Accept", "X-Request-Id"}

type requestSigner interface {
	Sign(req *http.Request) *http.Request
}

type OriginClientConfig struct {
	OriginURL      string
	FailoverURL    string
	VariantsURL    string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type OriginClient struct {
	httpClient     *http.Client
	originURL      string
	failoverURL    string
	variantsURL    string
	signer         requestSigner
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewOriginClient(cfg OriginClientConfig, signer requestSigner) (*OriginClient, error) {
	originURL := strings.TrimRight(strings.TrimSpace(cfg.OriginURL), "/")
	if originURL == "" {
		return nil, errors.New("origin URL is required")
	}
	variantsURL := strings.TrimRight(strings.TrimSpace(cfg.VariantsURL), "/")
	if variantsURL == "" {
		return nil, errors.New("variants URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 200 * time.Millisecond
	}

	maxBackoff := cfg.MaxBackoff
	if maxBackoff < initialBackoff {
		maxBackoff = 2 * time.Second
	}

	if signer == nil {
		signer = signing.New(signing.Config{})
	}

	return &OriginClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		originURL:      originURL,
		failoverURL:    strings.TrimRight(strings.TrimSpace(cfg.FailoverURL), "/"),
		variantsURL:    variantsURL,
		signer:         signer,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}, nil
}

func (c *OriginClient) FetchVariant(ctx context.Context, variantKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.variantsURL+"/"+escapeKeyPath(variantKey), nil)
	if err != nil {
		return nil, fmt.Errorf("build variant request: %w", err)
	}

	req = c.signer.Sign(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch variant %s: %w", variantKey, err)
	}
	return resp, nil
}

func (c *OriginClient) FetchOrigin(ctx context.Context, path string, forward http.Header) (*http.Response, string, error) {
	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		resp, err := c.fetch(ctx, c.originURL, path, forward, false)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, OriginPrimary, nil
		}

		lastErr = classifyOriginError(err, resp)
		drainAndClose(resp)
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(backoff):
		}

		backoff = minDuration(backoff*2, c.maxBackoff)
	}

	if c.failoverURL == "" {
		return nil, "", fmt.Errorf("origin fetch failed after %d attempts: %w", c.maxAttempts, lastErr)
	}

	resp, err := c.fetch(ctx, c.failoverURL, path, forward, true)
	if err != nil {
		return nil, "", fmt.Errorf("origin fetch failed after %d attempts, failover: %v: %w", c.maxAttempts, err, lastErr)
	}
	return resp, OriginFailover, nil
}

func (c *OriginClient) fetch(ctx context.Context, base, path string, forward http.Header, failover bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build origin request: %w", err)
	}

	for _, header := range forwardedHeaders {
		if value := forward.Get(header); value != "" {
			req.Header.Set(header, value)
		}
	}
	if failover {
		req.Header.Set(signing.HeaderOriginFailover, "1")
	}

	req = c.signer.Sign(req)
	return c.httpClient.Do(req)
}

func escapeKeyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func drainAndClose(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func classifyOriginError(err error, resp *http.Response) error {
	if err != nil {
		return err
	}
	if resp == nil {
		return errors.New("origin request failed: no response")
	}
	return fmt.Errorf("origin returned status=%d", resp.StatusCode)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
