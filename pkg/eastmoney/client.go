// Package eastmoney provides a client for the East Money data-center
// report API (datacenter-web.eastmoney.com).
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/earnings-cli/internal/resilience"
)

const (
	// DefaultBaseURL is the report API endpoint.
	DefaultBaseURL = "https://datacenter-web.eastmoney.com/api/data/v1/get"
	// DefaultReportName selects the quarterly results report.
	DefaultReportName = "RPT_LICO_FN_CPD"
	// DefaultPageSize is the number of records requested per page.
	DefaultPageSize = 50
)

// ErrMalformedResponse is returned when the response body cannot be decoded
// into the expected envelope.
var ErrMalformedResponse = eris.New("eastmoney: malformed response")

// ServerError is returned when the API answers with success=false.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}
	return "eastmoney: api error: " + msg
}

// Client fetches report pages.
type Client interface {
	// FetchPage requests one page of records for a report date.
	FetchPage(ctx context.Context, q Query) (*Result, error)
}

// Query selects one page of one report date.
type Query struct {
	ReportDate string // YYYY-MM-DD
	Page       int    // 1-based
	PageSize   int
}

// Response is the API envelope.
type Response struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Code    int     `json:"code"`
	Result  *Result `json:"result"`
}

// Result is one page of records plus the totals for the whole query.
type Result struct {
	Count int      `json:"count"`
	Pages int      `json:"pages"`
	Data  []Record `json:"data"`
}

// DefaultHeaders returns the static request headers the public web client sends.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "zh-CN,zh;q=0.9",
		"Referer":         "https://data.eastmoney.com/",
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom endpoint (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithReportName overrides the reportName query parameter.
func WithReportName(name string) Option {
	return func(c *httpClient) {
		c.reportName = name
	}
}

// WithHeaders replaces the static request headers.
func WithHeaders(h map[string]string) Option {
	return func(c *httpClient) {
		c.headers = make(map[string]string, len(h))
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLimiter caps the request rate regardless of caller pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

type httpClient struct {
	baseURL    string
	reportName string
	headers    map[string]string
	http       *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a report API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    DefaultBaseURL,
		reportName: DefaultReportName,
		headers:    DefaultHeaders(),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Filter returns the filter expression selecting one report date.
func Filter(reportDate string) string {
	return fmt.Sprintf("(REPORTDATE='%s')", reportDate)
}

func (c *httpClient) pageURL(q Query) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", eris.Wrap(err, "eastmoney: parse base url")
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	params := url.Values{}
	params.Set("sortColumns", "UPDATE_DATE,SECURITY_CODE")
	params.Set("sortTypes", "-1,-1")
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("pageNumber", strconv.Itoa(q.Page))
	params.Set("reportName", c.reportName)
	params.Set("columns", "ALL")
	params.Set("filter", Filter(q.ReportDate))
	params.Set("source", "WEB")
	params.Set("client", "WEB")
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// FetchPage issues a single GET for one page. Transport and HTTP status
// failures are returned as resilience.TransientError, undecodable bodies as
// ErrMalformedResponse, and success=false as *ServerError.
func (c *httpClient) FetchPage(ctx context.Context, q Query) (*Result, error) {
	if q.Page < 1 {
		return nil, eris.Errorf("eastmoney: invalid page number %d", q.Page)
	}

	rawURL, err := c.pageURL(q)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "eastmoney: rate limiter wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "eastmoney: create request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "eastmoney: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resilience.NewTransientError(
			eris.Errorf("eastmoney: http %d for page %d", resp.StatusCode, q.Page),
			resp.StatusCode,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "eastmoney: read body"), resp.StatusCode)
	}

	var env Response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "page %d: %v", q.Page, err)
	}

	if !env.Success {
		return nil, &ServerError{Message: env.Message}
	}

	if env.Result == nil {
		return nil, eris.Wrapf(ErrMalformedResponse, "page %d: missing result", q.Page)
	}

	return env.Result, nil
}
