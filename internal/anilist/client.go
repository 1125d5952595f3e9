// Package anilist is a small GraphQL client for the AniList API.
//
// Every HTTP call is released by a shared ratelimit.Scheduler, so callers
// never talk to AniList directly and a 429 is retried by the scheduler
// instead of surfacing as an error. Identical concurrent queries are
// collapsed into one scheduled call.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garyellow/guildbot-go/internal/buildinfo"
	"github.com/garyellow/guildbot-go/internal/config"
	"github.com/garyellow/guildbot-go/internal/ctxutil"
	apperrors "github.com/garyellow/guildbot-go/internal/errors"
	"github.com/garyellow/guildbot-go/internal/logger"
	"github.com/garyellow/guildbot-go/internal/metrics"
	"github.com/garyellow/guildbot-go/internal/ratelimit"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	service = "anilist"

	// MaxPerPage is the largest page AniList serves.
	MaxPerPage = 50

	maxResponseBytes = 2 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint string
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration
	// CallTimeout bounds a shared call including queueing and retries.
	CallTimeout time.Duration

	Scheduler  *ratelimit.Scheduler
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
	Clock      clockwork.Clock
}

// Client is an AniList GraphQL client.
type Client struct {
	endpoint    string
	timeout     time.Duration
	callTimeout time.Duration
	httpClient  *http.Client
	scheduler   *ratelimit.Scheduler
	group       singleflight.Group
	metrics     *metrics.Metrics
	log         *logger.Logger
	clock       clockwork.Clock
	userAgent   string
}

// New creates a client. A scheduler is required.
func New(opts Options) (*Client, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("anilist: scheduler is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = config.DefaultAniListEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.UpstreamRequest
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = config.HandlerProcessing
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewWithWriter("error", io.Discard)
	}

	ua := "guildbot-go"
	if buildinfo.Version != "" {
		ua += "/" + buildinfo.Version
	}

	return &Client{
		endpoint:    opts.Endpoint,
		timeout:     opts.Timeout,
		callTimeout: opts.CallTimeout,
		httpClient:  opts.HTTPClient,
		scheduler:   opts.Scheduler,
		metrics:     opts.Metrics,
		log:         log.WithModule("anilist"),
		clock:       opts.Clock,
		userAgent:   ua,
	}, nil
}

// SearchAnime returns up to perPage anime matching search, best match first.
func (c *Client) SearchAnime(ctx context.Context, search string, perPage int) ([]Media, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		return nil, apperrors.NewValidationError("query", "search text is empty")
	}
	if perPage <= 0 || perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	var data searchData
	vars := map[string]any{"search": search, "perPage": perPage}
	if err := c.query(ctx, searchQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.Page.Media, nil
}

// GetAnime returns one anime by AniList id. Returns an error matching
// errors.ErrNotFound for unknown ids.
func (c *Client) GetAnime(ctx context.Context, id int) (*Media, error) {
	if id <= 0 {
		return nil, apperrors.NewValidationError("id", "must be positive")
	}

	var data mediaData
	if err := c.query(ctx, mediaQuery, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Media == nil {
		return nil, fmt.Errorf("anilist: media %d: %w", id, apperrors.ErrNotFound)
	}
	return data.Media, nil
}

// query runs one GraphQL request through the scheduler and decodes its data
// into dst. Concurrent identical requests share one call; each caller still
// honors its own ctx.
func (c *Client) query(ctx context.Context, q string, vars map[string]any, dst any) error {
	body, err := json.Marshal(graphQLRequest{Query: q, Variables: vars})
	if err != nil {
		return fmt.Errorf("anilist: encode request: %w", err)
	}

	leader := false
	ch := c.group.DoChan(string(body), func() (any, error) {
		leader = true
		callCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), c.callTimeout)
		defer cancel()
		return ratelimit.Do(callCtx, c.scheduler, func(ctx context.Context) (json.RawMessage, error) {
			return c.post(ctx, body)
		})
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	}

	if res.Shared && !leader && c.metrics != nil {
		c.metrics.RecordSingleflightDedup(service)
	}
	if res.Err != nil {
		return res.Err
	}

	data, _ := res.Val.(json.RawMessage)
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewUpstreamError(service, http.StatusOK, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// post performs one HTTP attempt. A 429 is returned as a throttling signal
// for the scheduler.
func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clock.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anilist: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, 0, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	payload, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.record("throttled", start)
		retryAfter := ratelimit.ParseRetryAfter(resp.Header, c.clock.Now())
		c.log.WithField("retry_after_ms", retryAfter.Milliseconds()).Debug("Throttled by AniList")
		return nil, ratelimit.Throttled(retryAfter, fmt.Errorf("anilist: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		c.record("not_found", start)
		return nil, fmt.Errorf("anilist: %w", apperrors.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, resp.StatusCode, fmt.Errorf("unexpected status: %s", errorSummary(payload)))
	}

	if readErr != nil {
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, resp.StatusCode, fmt.Errorf("read body: %w", readErr))
	}

	var gr graphQLResponse
	if err := json.Unmarshal(payload, &gr); err != nil {
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, resp.StatusCode, fmt.Errorf("malformed response: %w", err))
	}
	if len(gr.Errors) > 0 {
		for _, e := range gr.Errors {
			if e.Status == http.StatusNotFound {
				c.record("not_found", start)
				return nil, fmt.Errorf("anilist: %s: %w", e.Message, apperrors.ErrNotFound)
			}
		}
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, resp.StatusCode, fmt.Errorf("graphql: %s", gr.Errors[0].Message))
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		c.record("error", start)
		return nil, apperrors.NewUpstreamError(service, resp.StatusCode, errors.New("response has no data"))
	}

	c.record("success", start)
	return gr.Data, nil
}

func (c *Client) record(status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordUpstreamRequest(service, status, c.clock.Since(start).Seconds())
}

const maxErrorSummary = 200

// errorSummary picks the first GraphQL error message from an error body,
// falling back to a short prefix of the raw payload.
func errorSummary(payload []byte) string {
	var gr graphQLResponse
	if json.Unmarshal(payload, &gr) == nil && len(gr.Errors) > 0 && gr.Errors[0].Message != "" {
		return gr.Errors[0].Message
	}
	s := strings.TrimSpace(string(payload))
	if len(s) > maxErrorSummary {
		// Drop the rune the byte cut may have split.
		s = strings.ToValidUTF8(s[:maxErrorSummary], "")
	}
	if s == "" {
		return "empty body"
	}
	return s
}
