package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/earnings-cli/internal/download"
	"github.com/sells-group/earnings-cli/internal/period"
)

const interruptedMsg = "interrupted; downloaded data has been saved"

var (
	dlYear        int
	dlQuarter     string
	dlAll         bool
	dlStart       int
	dlEnd         int
	dlOutput      string
	dlDelay       time.Duration
	dlSummaryPath string
	dlMetricsPath string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download one report, a full year, or a range of years",
	Long: `Download earnings report records into CSV files.

  earnings-cli download -y 2024 -q Q4          one report (2024年年报)
  earnings-cli download -y 2024 -q 一季报       one report (2024年一季报)
  earnings-cli download -y 2024 --all          all four reports of 2024
  earnings-cli download -s 2020 -e 2024 -q Q2  半年报 for 2020..2024
  earnings-cli download -s 2020 -e 2024 --all  every report for 2020..2024

Quarter accepts Q1..Q4, 1..4, 一季报/半年报/中报/三季报/年报 and 1季报..4季报.
With no year or range the command falls back to interactive prompts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ov := envOverrides{OutputDir: dlOutput}
		if cmd.Flags().Changed("delay") {
			ov.PageDelay = &dlDelay
		}
		env, err := initDownloader(cfg, ov)
		if err != nil {
			return err
		}

		p, err := planFromFlags(downloadFlags{
			Year:    dlYear,
			Quarter: dlQuarter,
			All:     dlAll,
			Start:   dlStart,
			End:     dlEnd,
		})
		if err != nil {
			return err
		}
		if p == nil {
			p, err = readPlan(ctx, os.Stdin, os.Stdout, time.Now().Year())
			if err != nil || p == nil {
				return err
			}
		}

		return runPlan(ctx, env, p, os.Stdout)
	},
}

func init() {
	f := downloadCmd.Flags()
	f.IntVarP(&dlYear, "year", "y", 0, "report year")
	f.StringVarP(&dlQuarter, "quarter", "q", "Q4", "report period (Q1..Q4 or localized name)")
	f.BoolVarP(&dlAll, "all", "a", false, "download all four periods")
	f.IntVarP(&dlStart, "start", "s", 0, "first year of a range")
	f.IntVarP(&dlEnd, "end", "e", 0, "last year of a range")
	f.StringVarP(&dlOutput, "output", "o", "", "output directory (default from config)")
	f.DurationVarP(&dlDelay, "delay", "d", 500*time.Millisecond, "wait between page requests")
	f.StringVar(&dlSummaryPath, "summary", "", "write a YAML run summary to this path")
	f.StringVar(&dlMetricsPath, "metrics-file", "", "write Prometheus metrics in text format to this path")
	rootCmd.AddCommand(downloadCmd)
}

// downloadFlags is the subset of download flags that selects units.
type downloadFlags struct {
	Year    int
	Quarter string
	All     bool
	Start   int
	End     int
}

// plan is the ordered list of units one invocation downloads.
type plan struct {
	Units []period.Unit
}

// planFromFlags selects units the way the flags ask for. A nil plan with no
// error means no selection was made and the caller should prompt.
func planFromFlags(f downloadFlags) (*plan, error) {
	switch {
	case f.Year != 0 && f.All:
		return &plan{Units: period.Units(f.Year, f.Year, period.All())}, nil

	case f.Year != 0:
		u, err := period.NewUnit(f.Year, f.Quarter)
		if err != nil {
			return nil, err
		}
		return &plan{Units: []period.Unit{u}}, nil

	case f.Start != 0 && f.End != 0:
		if f.Start > f.End {
			return nil, eris.Errorf("start year %d is after end year %d", f.Start, f.End)
		}
		periods := period.All()
		if !f.All {
			p, err := period.Parse(f.Quarter)
			if err != nil {
				return nil, err
			}
			periods = []period.Period{p}
		}
		return &plan{Units: period.Units(f.Start, f.End, periods)}, nil

	case f.Start != 0 || f.End != 0:
		return nil, eris.New("both --start and --end are required for a range")
	}
	return nil, nil
}

// runPlan downloads p, prints the summary and writes any requested reports.
func runPlan(ctx context.Context, env *downloadEnv, p *plan, out io.Writer) error {
	s := env.Downloader.Batch(ctx, p.Units)

	printSummary(out, s)

	if dlSummaryPath != "" {
		if err := download.WriteSummary(dlSummaryPath, s); err != nil {
			return err
		}
		zap.L().Info("summary written", zap.String("path", dlSummaryPath))
	}
	if dlMetricsPath != "" {
		if err := env.Metrics.WriteTextfile(dlMetricsPath); err != nil {
			return err
		}
	}

	if s.Interrupted {
		_, _ = fmt.Fprintln(out, interruptedMsg)
	}
	return nil
}

// printSummary writes a table of per-unit results and the total.
func printSummary(out io.Writer, s *download.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIT\tREPORT\tSTATE\tNEW\tPAGES\tSKIPPED\tNOTE")
	_, _ = fmt.Fprintln(w, "----\t------\t-----\t---\t-----\t-------\t----")

	for _, r := range s.Sorted() {
		skipped := "-"
		if len(r.FailedPages) > 0 {
			parts := make([]string, len(r.FailedPages))
			for i, p := range r.FailedPages {
				parts[i] = fmt.Sprint(p)
			}
			skipped = strings.Join(parts, ",")
		}
		note := r.Reason
		if note == "" {
			note = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Unit.ID(), r.Unit, r.State, r.NewRecords, r.Pages, skipped, note)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t%d\t\t\t\n", s.Total())
	_ = w.Flush()
}
