// SPDX-License-Identifier: MIT

package linker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/idna"
	"golang.org/x/time/rate"

	"github.com/visualaoi/aoid/internal/log"
	"github.com/visualaoi/aoid/internal/metrics"
	"github.com/visualaoi/aoid/internal/platform/httpx"
)

// linkEndpoint is the ProcessLock path appended to the base URL.
const linkEndpoint = "/api/ProcessLock/FA/GetLinkData"

// maxLinkResponseBytes bounds how much of a response body is read.
// Linked identifiers are short strings; anything bigger is garbage.
const maxLinkResponseBytes = 64 << 10

// Options configures the HTTP linker client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	Rate    float64 // outbound requests per second
	Burst   int
}

// Client calls the external linking service with a per-call timeout
// and an outbound rate limit.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// NewClient validates the base URL (including IDNA hostname rules) and
// builds the client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse link base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("link base url must be http or https: %s", opts.BaseURL)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("link base url missing host: %s", opts.BaseURL)
	}
	if _, err := idna.Lookup.ToASCII(host); err != nil {
		// Literal IPs fail IDNA lookup rules but are fine as hosts.
		if net.ParseIP(host) == nil {
			return nil, fmt.Errorf("link base url host %q: %w", host, err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := opts.Rate
	if r <= 0 {
		r = 20
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		endpoint: u.String() + linkEndpoint,
		http:     httpx.NewClient(timeout),
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(r), burst),
		logger:   log.WithComponent("linker"),
	}, nil
}

// Link posts the raw barcode and returns the linked identifier. The
// response is accepted as {"data": ...}, {"link_data": ...} or a plain
// text body.
func (c *Client) Link(ctx context.Context, barcode string) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.RecordLink("timeout", time.Since(start).Seconds())
		return "", fmt.Errorf("link rate limit: %w", err)
	}

	body, err := json.Marshal(map[string]string{"barcode": barcode})
	if err != nil {
		return "", fmt.Errorf("encode link request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build link request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		outcome := "error"
		if ctx.Err() != nil {
			outcome = "timeout"
		}
		metrics.RecordLink(outcome, time.Since(start).Seconds())
		return "", fmt.Errorf("link request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.RecordLink("error", time.Since(start).Seconds())
		return "", fmt.Errorf("link service returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxLinkResponseBytes))
	if err != nil {
		metrics.RecordLink("error", time.Since(start).Seconds())
		return "", fmt.Errorf("read link response: %w", err)
	}

	linked := parseLinkResponse(raw)
	if linked == "" {
		metrics.RecordLink("error", time.Since(start).Seconds())
		return "", fmt.Errorf("link service returned no data")
	}

	metrics.RecordLink("success", time.Since(start).Seconds())
	c.logger.Debug().
		Str("event", "link.resolved").
		Dur(log.FieldDuration, time.Since(start)).
		Msg("barcode linked")
	return linked, nil
}

func parseLinkResponse(raw []byte) string {
	var obj struct {
		Data     string `json:"data"`
		LinkData string `json:"link_data"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Data != "" {
			return obj.Data
		}
		if obj.LinkData != "" {
			return obj.LinkData
		}
	}
	// Plain-text bodies: a bare string, possibly JSON-quoted.
	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		return strings.TrimSpace(quoted)
	}
	return strings.TrimSpace(string(raw))
}
