// Package fetcher retrieves report pages with bounded retry. Failures are
// returned, never panicked or fatal, so the caller can skip a page and carry
// on with the rest of the report.
package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/earnings-cli/internal/metrics"
	"github.com/sells-group/earnings-cli/internal/period"
	"github.com/sells-group/earnings-cli/internal/resilience"
	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

// Options configures a PageFetcher.
type Options struct {
	PageSize    int
	MaxAttempts int
	Backoff     resilience.BackoffFunc
	Metrics     *metrics.Metrics
}

// PageFetcher fetches one page of one unit at a time.
type PageFetcher struct {
	client   eastmoney.Client
	pageSize int
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
}

// New wraps client in the retry policy described by opts. Transport errors,
// HTTP status failures and malformed bodies are retried. A server-reported
// failure (success=false) fails immediately.
func New(client eastmoney.Client, opts Options) *PageFetcher {
	if opts.PageSize <= 0 {
		opts.PageSize = eastmoney.DefaultPageSize
	}
	cfg := resilience.DefaultRetryConfig()
	if opts.MaxAttempts > 0 {
		cfg.MaxAttempts = opts.MaxAttempts
	}
	if opts.Backoff != nil {
		cfg.Backoff = opts.Backoff
	}
	cfg.ShouldRetry = retryable

	return &PageFetcher{
		client:   client,
		pageSize: opts.PageSize,
		retry:    cfg,
		metrics:  opts.Metrics,
	}
}

// retryable reports whether a page request failure may succeed on a later
// attempt.
func retryable(err error) bool {
	if resilience.IsPermanent(err) {
		return false
	}
	return resilience.IsTransient(err) || errors.Is(err, eastmoney.ErrMalformedResponse)
}

// PageSize returns the number of records requested per page.
func (f *PageFetcher) PageSize() int {
	return f.pageSize
}

// Fetch returns one page of unit. A nil result with a non-nil error means
// the page is unavailable: retries were exhausted, the server reported a
// failure (*eastmoney.ServerError), or ctx was cancelled.
func (f *PageFetcher) Fetch(ctx context.Context, unit period.Unit, page int) (*eastmoney.Result, error) {
	log := zap.L().With(
		zap.String("component", "fetcher"),
		zap.String("unit", unit.ID()),
		zap.Int("page", page),
	)

	cfg := f.retry
	cfg.OnRetry = func(attempt int, err error) {
		f.metrics.IncRetry()
		log.Warn("page request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("retry_in", cfg.Backoff(attempt)),
			zap.Error(err),
		)
	}
	cfg.OnExhausted = func(attempts int, err error) {
		log.Error("page request failed, retries exhausted",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}

	q := eastmoney.Query{
		ReportDate: unit.ReportDate(),
		Page:       page,
		PageSize:   f.pageSize,
	}

	start := time.Now()
	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*eastmoney.Result, error) {
		res, err := f.client.FetchPage(ctx, q)
		var se *eastmoney.ServerError
		if errors.As(err, &se) {
			return nil, resilience.Permanent(err)
		}
		return res, err
	})
	took := time.Since(start)

	if err != nil {
		var se *eastmoney.ServerError
		if errors.As(err, &se) {
			f.metrics.ObservePage(metrics.PageServerError, took)
			log.Error("api reported failure", zap.String("message", se.Message))
		} else {
			f.metrics.ObservePage(metrics.PageFailed, took)
		}
		return nil, eris.Wrapf(err, "fetcher: %s page %d", unit.ID(), page)
	}

	f.metrics.ObservePage(metrics.PageOK, took)
	return res, nil
}
