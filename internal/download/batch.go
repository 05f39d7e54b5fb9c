package download

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/earnings-cli/internal/period"
)

// Summary is the outcome of a batch run.
type Summary struct {
	RunID       string
	StartedAt   time.Time
	Elapsed     time.Duration
	Interrupted bool
	Results     []*UnitResult
}

// Counts returns new-record counts keyed by unit ID ("2024_Q4").
func (s *Summary) Counts() map[string]int {
	out := make(map[string]int, len(s.Results))
	for _, r := range s.Results {
		out[r.Unit.ID()] = r.NewRecords
	}
	return out
}

// Sorted returns the results ordered by unit ID.
func (s *Summary) Sorted() []*UnitResult {
	out := slices.Clone(s.Results)
	slices.SortFunc(out, func(a, b *UnitResult) int {
		switch {
		case a.Unit.ID() < b.Unit.ID():
			return -1
		case a.Unit.ID() > b.Unit.ID():
			return 1
		default:
			return 0
		}
	})
	return out
}

// Total returns the number of records appended across all units.
func (s *Summary) Total() int {
	n := 0
	for _, r := range s.Results {
		n += r.NewRecords
	}
	return n
}

// Year downloads all four periods of year.
func (d *Downloader) Year(ctx context.Context, year int) *Summary {
	return d.Batch(ctx, period.Units(year, year, period.All()))
}

// Range downloads periods for every year in [start, end], year-major.
func (d *Downloader) Range(ctx context.Context, start, end int, periods []period.Period) (*Summary, error) {
	if start > end {
		return nil, eris.Errorf("download: start year %d is after end year %d", start, end)
	}
	if len(periods) == 0 {
		periods = period.All()
	}
	return d.Batch(ctx, period.Units(start, end, periods)), nil
}

// Batch downloads units sequentially with UnitPause between them. A unit
// that fails or yields nothing is recorded with zero new records and the
// batch moves on. Cancellation stops the batch after the current unit.
func (d *Downloader) Batch(ctx context.Context, units []period.Unit) *Summary {
	s := &Summary{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := zap.L().With(zap.String("component", "download"), zap.String("run_id", s.RunID))
	log.Info("batch started", zap.Int("units", len(units)))

	for i, u := range units {
		if i > 0 {
			if err := d.opts.Sleep(ctx, d.opts.UnitPause); err != nil {
				s.Interrupted = true
				break
			}
		}

		res := d.Run(ctx, u)
		s.Results = append(s.Results, res)
		if res.Err != nil {
			if ctx.Err() != nil {
				s.Interrupted = true
				break
			}
			log.Error("unit failed",
				zap.String("unit", u.ID()),
				zap.Error(res.Err),
			)
		}
	}

	s.Elapsed = time.Since(s.StartedAt)
	log.Info("batch finished",
		zap.Int("total", s.Total()),
		zap.Int("units_run", len(s.Results)),
		zap.Bool("interrupted", s.Interrupted),
		zap.Duration("elapsed", s.Elapsed),
	)
	return s
}

type summaryDoc struct {
	RunID       string    `yaml:"run_id"`
	StartedAt   time.Time `yaml:"started_at"`
	ElapsedSecs float64   `yaml:"elapsed_secs"`
	Interrupted bool      `yaml:"interrupted"`
	Total       int       `yaml:"total"`
	Units       []unitDoc `yaml:"units"`
}

type unitDoc struct {
	ID          string `yaml:"id"`
	Report      string `yaml:"report"`
	State       string `yaml:"state"`
	NewRecords  int    `yaml:"new_records"`
	TotalCount  int    `yaml:"total_count"`
	Pages       int    `yaml:"pages"`
	FailedPages []int  `yaml:"failed_pages,omitempty"`
	Reason      string `yaml:"reason,omitempty"`
	Path        string `yaml:"path"`
}

// MarshalYAML renders the summary as a YAML document.
func (s *Summary) MarshalYAML() (any, error) {
	doc := summaryDoc{
		RunID:       s.RunID,
		StartedAt:   s.StartedAt.UTC().Truncate(time.Second),
		ElapsedSecs: s.Elapsed.Round(time.Millisecond).Seconds(),
		Interrupted: s.Interrupted,
		Total:       s.Total(),
	}
	for _, r := range s.Sorted() {
		doc.Units = append(doc.Units, unitDoc{
			ID:          r.Unit.ID(),
			Report:      r.Unit.String(),
			State:       r.State.String(),
			NewRecords:  r.NewRecords,
			TotalCount:  r.TotalCount,
			Pages:       r.Pages,
			FailedPages: r.FailedPages,
			Reason:      r.Reason,
			Path:        r.Path,
		})
	}
	return doc, nil
}

// WriteSummary writes s as YAML to path.
func WriteSummary(path string, s *Summary) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "download: marshal summary")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "download: write summary %s", path)
	}
	return nil
}
