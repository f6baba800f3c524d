// Package fetch is the shared outbound HTTP client used by every
// extraction strategy.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"mime"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/pricelens/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultMaxBodyBytes caps every response body read by the client.
const DefaultMaxBodyBytes int64 = 4 << 20

// DefaultUserAgents is the rotation pool used when none is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Options configures a Client
type Options struct {
	Timeout          time.Duration
	MaxBodyBytes     int64
	CloudflareBypass bool
	UserAgents       []string
}

// Response is a fully read upstream response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	URL         string
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the upstream answered with a markup document.
func (r *Response) IsHTML() bool {
	return strings.Contains(r.ContentType, "text/html")
}

// IsJSON reports whether the upstream declared a JSON body.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "json")
}

// Client performs GET and JSON POST requests with rotating user agents
// and a hard cap on the bytes read from each response.
type Client struct {
	http         *resty.Client
	maxBodyBytes int64
	userAgents   []string
}

// NewClient creates a new fetch client
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}

	c := &Client{
		http:         resty.New(),
		maxBodyBytes: opts.MaxBodyBytes,
		userAgents:   opts.UserAgents,
	}

	c.http.SetTimeout(opts.Timeout)
	c.http.SetHeader("Accept-Language", "es-CO,es;q=0.9,en;q=0.8")
	if opts.CloudflareBypass {
		c.http.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(c.http.GetClient().Transport)
	}
	c.http.OnBeforeRequest(c.rotateUserAgent)

	return c
}

func (c *Client) rotateUserAgent(_ *resty.Client, req *resty.Request) error {
	if req.Header.Get("User-Agent") == "" {
		req.SetHeader("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	}
	return nil
}

// Get fetches url. A non-2xx status returns the response together with an
// error wrapping domain.ErrUpstreamStatus.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeaders(headers)

	res, err := req.Get(url)
	return c.read(url, res, err)
}

// PostJSON sends body encoded as JSON to url.
func (c *Client) PostJSON(ctx context.Context, url string, headers map[string]string, body any) (*Response, error) {
	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Content-Type", "application/json").
		SetHeaders(headers).
		SetBody(body)

	res, err := req.Post(url)
	return c.read(url, res, err)
}

func (c *Client) read(url string, res *resty.Response, err error) (*Response, error) {
	if err != nil {
		if res != nil && res.RawResponse != nil && res.RawResponse.Body != nil {
			res.RawResponse.Body.Close()
		}
		log.Debug().Err(err).Str("url", url).Msg("[FETCH] request failed")
		return nil, fmt.Errorf("request %s: %w", url, err)
	}

	raw := res.RawBody()
	defer raw.Close()

	body, err := io.ReadAll(io.LimitReader(raw, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		log.Warn().Str("url", url).Int64("limit", c.maxBodyBytes).Msg("[FETCH] body exceeds limit")
		return nil, fmt.Errorf("%w: %s over %d bytes", domain.ErrBodyTooLarge, url, c.maxBodyBytes)
	}

	out := &Response{
		StatusCode:  res.StatusCode(),
		ContentType: mediaType(res.Header().Get("Content-Type")),
		Body:        body,
		URL:         url,
	}
	log.Debug().Str("url", url).Int("status", out.StatusCode).Int("bytes", len(body)).Msg("[FETCH] response")

	if !out.OK() {
		return out, fmt.Errorf("%w: status %d from %s", domain.ErrUpstreamStatus, out.StatusCode, url)
	}
	return out, nil
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}
