// Package download drives the resumable paginated download of report units,
// one unit at a time.
package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/earnings-cli/internal/metrics"
	"github.com/sells-group/earnings-cli/internal/period"
	"github.com/sells-group/earnings-cli/internal/resilience"
	"github.com/sells-group/earnings-cli/internal/store"
	"github.com/sells-group/earnings-cli/pkg/eastmoney"
)

const (
	outputPrefix = "业绩报表_"
	outputSuffix = ".csv"

	// FilePattern matches every output file in an output directory.
	FilePattern = outputPrefix + "*" + outputSuffix
)

// ErrSchemaMismatch is returned when an existing output file was written
// with a different column layout than the API currently returns.
var ErrSchemaMismatch = eris.New("download: output file header does not match current fields")

// State is a step of the per-unit download state machine.
type State int

const (
	StateInit State = iota
	StateFirstPageFetched
	StatePaging
	StateDone
	StateAborted // first page unavailable, zero records, or empty first page
	StateFailed  // local write failure, schema mismatch, or interrupted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFirstPageFetched:
		return "first_page_fetched"
	case StatePaging:
		return "paging"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SchemaPolicy decides what happens when an existing file's header differs
// from the header derived from the current first page.
type SchemaPolicy string

const (
	SchemaReject SchemaPolicy = "reject"
	SchemaAppend SchemaPolicy = "append"
)

// ParseSchemaPolicy validates a policy name. Empty selects SchemaReject.
func ParseSchemaPolicy(s string) (SchemaPolicy, error) {
	switch SchemaPolicy(s) {
	case "", SchemaReject:
		return SchemaReject, nil
	case SchemaAppend:
		return SchemaAppend, nil
	default:
		return "", eris.Errorf("download: unknown schema policy %q (valid: reject, append)", s)
	}
}

// PageSource fetches one page of a unit. A nil result with an error means
// the page is unavailable.
type PageSource interface {
	Fetch(ctx context.Context, unit period.Unit, page int) (*eastmoney.Result, error)
}

// Options configures a Downloader. The zero value of every field except
// OutputDir has a usable default.
type Options struct {
	OutputDir    string
	PageDelay    time.Duration // wait before each page after the first
	UnitPause    time.Duration // wait between units in a batch
	SchemaPolicy SchemaPolicy
	KeyField     string
	Labels       eastmoney.Labels
	Metrics      *metrics.Metrics

	// Sleep waits between pages and units. Defaults to resilience.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Downloader downloads report units into CSV files under OutputDir.
type Downloader struct {
	src  PageSource
	opts Options
}

// New creates a Downloader and ensures the output directory exists.
func New(src PageSource, opts Options) (*Downloader, error) {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.KeyField == "" {
		opts.KeyField = eastmoney.KeyField
	}
	if opts.SchemaPolicy == "" {
		opts.SchemaPolicy = SchemaReject
	}
	if opts.Labels.IsZero() {
		opts.Labels = eastmoney.NewLabels(nil)
	}
	if opts.Sleep == nil {
		opts.Sleep = resilience.Sleep
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "download: create output dir %s", opts.OutputDir)
	}
	return &Downloader{src: src, opts: opts}, nil
}

// OutputPath returns the CSV path for unit in dir.
func OutputPath(dir string, unit period.Unit) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", outputPrefix, unit, outputSuffix))
}

// ParseOutputName recovers the unit from an output file name produced by
// OutputPath. The directory part of name is ignored.
func ParseOutputName(name string) (period.Unit, bool) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, outputPrefix) || !strings.HasSuffix(base, outputSuffix) {
		return period.Unit{}, false
	}
	yearStr, label, ok := strings.Cut(strings.TrimSuffix(strings.TrimPrefix(base, outputPrefix), outputSuffix), "年")
	if !ok {
		return period.Unit{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return period.Unit{}, false
	}
	p, err := period.Parse(label)
	if err != nil {
		return period.Unit{}, false
	}
	return period.Unit{Year: year, Period: p}, true
}

// Path returns the CSV path this downloader uses for unit.
func (d *Downloader) Path(unit period.Unit) string {
	return OutputPath(d.opts.OutputDir, unit)
}

// UnitResult describes how one unit's download ended.
type UnitResult struct {
	Unit        period.Unit
	State       State
	Path        string
	TotalCount  int   // records reported by the API
	Pages       int   // pages reported by the API
	NewRecords  int   // rows appended by this run
	FailedPages []int // pages skipped after exhausting retries
	Reason      string
	Err         error
}

// Download fetches every page of unit and appends new records to its output
// file. It returns the number of records appended. Page-level failures are
// logged and skipped; an error is returned only for local failures, a schema
// mismatch, or cancellation.
func (d *Downloader) Download(ctx context.Context, unit period.Unit) (int, error) {
	res := d.Run(ctx, unit)
	return res.NewRecords, res.Err
}

// Run is Download with the full outcome.
func (d *Downloader) Run(ctx context.Context, unit period.Unit) *UnitResult {
	log := zap.L().With(zap.String("component", "download"), zap.String("unit", unit.ID()))
	res := &UnitResult{Unit: unit, State: StateInit, Path: d.Path(unit)}

	defer func() {
		switch res.State {
		case StateDone:
			d.opts.Metrics.ObserveUnit(metrics.UnitDone)
		case StateAborted:
			d.opts.Metrics.ObserveUnit(metrics.UnitAborted)
		default:
			d.opts.Metrics.ObserveUnit(metrics.UnitFailed)
		}
	}()

	keyLabel := d.opts.Labels.Label(d.opts.KeyField)
	snap, err := store.Scan(res.Path, keyLabel, d.opts.KeyField)
	if err != nil {
		log.Warn("could not fully read existing output, continuing with keys read so far",
			zap.String("path", res.Path),
			zap.Int("keys", snap.Keys.Len()),
			zap.Error(err),
		)
	} else if snap.Exists {
		log.Info("loaded existing records", zap.Int("keys", snap.Keys.Len()))
	}
	keys := snap.Keys

	log.Info("starting download",
		zap.String("report", unit.String()),
		zap.String("report_date", unit.ReportDate()),
		zap.String("path", res.Path),
	)

	first, err := d.src.Fetch(ctx, unit, 1)
	if err != nil {
		if ctx.Err() != nil {
			return d.fail(res, eris.Wrap(ctx.Err(), "download: interrupted"))
		}
		return d.abort(res, log, "first page unavailable", err)
	}

	res.TotalCount = first.Count
	res.Pages = max(first.Pages, 1)
	log.Info("report size", zap.Int("records", res.TotalCount), zap.Int("pages", res.Pages))

	if first.Count == 0 {
		return d.abort(res, log, "no records for this report", nil)
	}
	if len(first.Data) == 0 {
		return d.abort(res, log, "first page is empty", nil)
	}
	res.State = StateFirstPageFetched

	fields := first.Data[0].Fields()
	header := d.opts.Labels.Header(fields)

	if snap.Exists && !slices.Equal(snap.Header, header) {
		if d.opts.SchemaPolicy == SchemaReject {
			log.Error("output header differs from current fields",
				zap.Strings("file_header", snap.Header),
				zap.Strings("api_header", header),
			)
			return d.fail(res, eris.Wrapf(ErrSchemaMismatch, "%s", res.Path))
		}
		log.Warn("output header differs from current fields, appending anyway",
			zap.Strings("file_header", snap.Header),
			zap.Strings("api_header", header),
		)
	}

	w, err := store.OpenWriter(res.Path, d.opts.KeyField, fields, header)
	if err != nil {
		return d.fail(res, err)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && res.Err == nil {
			res.Err = cerr
			res.State = StateFailed
		}
	}()

	if err := d.writePage(res, w, keys, first, 1, log); err != nil {
		return d.fail(res, err)
	}
	res.State = StatePaging

	for page := 2; page <= res.Pages; page++ {
		if err := d.opts.Sleep(ctx, d.opts.PageDelay); err != nil {
			return d.fail(res, eris.Wrap(err, "download: interrupted"))
		}

		pr, err := d.src.Fetch(ctx, unit, page)
		if err != nil {
			if ctx.Err() != nil {
				return d.fail(res, eris.Wrap(ctx.Err(), "download: interrupted"))
			}
			res.FailedPages = append(res.FailedPages, page)
			log.Warn("page unavailable, skipping",
				zap.Int("page", page),
				zap.Int("pages", res.Pages),
				zap.Error(err),
			)
			continue
		}

		if err := d.writePage(res, w, keys, pr, page, log); err != nil {
			return d.fail(res, err)
		}
	}

	res.State = StateDone
	log.Info("download complete",
		zap.Int("new_records", res.NewRecords),
		zap.Ints("failed_pages", res.FailedPages),
		zap.String("path", res.Path),
	)
	return res
}

func (d *Downloader) writePage(res *UnitResult, w *store.Writer, keys store.KeySet, page *eastmoney.Result, n int, log *zap.Logger) error {
	added, err := w.WritePage(page.Data, keys)
	res.NewRecords += added
	d.opts.Metrics.AddRecords(added)
	if err != nil {
		return err
	}
	log.Info("page saved",
		zap.Int("page", n),
		zap.Int("pages", res.Pages),
		zap.Int("new_records", added),
	)
	return nil
}

func (d *Downloader) abort(res *UnitResult, log *zap.Logger, reason string, err error) *UnitResult {
	res.State = StateAborted
	res.Reason = reason
	fields := []zap.Field{zap.String("reason", reason)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	log.Warn("download aborted", fields...)
	return res
}

func (d *Downloader) fail(res *UnitResult, err error) *UnitResult {
	res.State = StateFailed
	res.Err = err
	res.Reason = err.Error()
	return res
}
