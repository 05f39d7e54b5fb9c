package main

import (
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/earnings-cli/internal/config"
	"github.com/sells-group/earnings-cli/internal/download"
	"github.com/sells-group/earnings-cli/internal/fetcher"
	"github.com/sells-group/earnings-cli/internal/metrics"
	"github.com/sells-group/earnings-cli/internal/resilience"
	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

// downloadEnv holds the wired components for a download command.
type downloadEnv struct {
	Downloader *download.Downloader
	Metrics    *metrics.Metrics
}

// envOverrides carries command-line values that take precedence over config.
type envOverrides struct {
	OutputDir string
	PageDelay *time.Duration
}

// initDownloader builds the API client, retrying fetcher and downloader from c.
func initDownloader(c *config.Config, ov envOverrides) (*downloadEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	policy, err := download.ParseSchemaPolicy(c.Download.SchemaPolicy)
	if err != nil {
		return nil, err
	}

	opts := []eastmoney.Option{
		eastmoney.WithBaseURL(c.API.BaseURL),
		eastmoney.WithReportName(c.API.ReportName),
		eastmoney.WithTimeout(c.API.Timeout()),
	}
	if len(c.API.Headers) > 0 {
		opts = append(opts, eastmoney.WithHeaders(c.API.Headers))
	}
	if c.API.RateLimit > 0 {
		opts = append(opts, eastmoney.WithLimiter(rate.NewLimiter(rate.Limit(c.API.RateLimit), 1)))
	}

	m := metrics.New()
	f := fetcher.New(eastmoney.NewClient(opts...), fetcher.Options{
		PageSize:    c.API.PageSize,
		MaxAttempts: c.Retry.MaxAttempts,
		Backoff:     backoff(c.Retry),
		Metrics:     m,
	})

	outputDir := c.Download.OutputDir
	if ov.OutputDir != "" {
		outputDir = ov.OutputDir
	}
	pageDelay := c.Download.PageDelay()
	if ov.PageDelay != nil {
		pageDelay = *ov.PageDelay
	}
	if pageDelay < 0 {
		return nil, eris.Errorf("page delay must be >= 0, got %s", pageDelay)
	}

	d, err := download.New(f, download.Options{
		OutputDir:    outputDir,
		PageDelay:    pageDelay,
		UnitPause:    c.Download.UnitPause(),
		SchemaPolicy: policy,
		KeyField:     eastmoney.KeyField,
		Labels:       eastmoney.NewLabels(c.Columns),
		Metrics:      m,
	})
	if err != nil {
		return nil, err
	}

	return &downloadEnv{Downloader: d, Metrics: m}, nil
}

// backoff builds the retry wait schedule named by c.Backoff.
func backoff(c config.RetryConfig) resilience.BackoffFunc {
	if c.Backoff == "exponential" {
		return resilience.Exponential(c.BaseDelay(), c.MaxDelay(), 2, 0.1)
	}
	return resilience.Linear(c.BaseDelay())
}
