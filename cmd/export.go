package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/earnings-cli/internal/download"
	"github.com/sells-group/earnings-cli/internal/store"
)

var (
	exportDir         string
	exportConcurrency int
)

var exportCmd = &cobra.Command{
	Use:   "export [file.csv ...]",
	Short: "Convert report CSVs to Excel workbooks",
	Long: `Writes an .xlsx next to each report CSV. With no arguments every report in
the output directory is converted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			dir := exportDir
			if dir == "" {
				dir = cfg.Download.OutputDir
			}
			entries, err := listReports(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
		}
		if len(paths) == 0 {
			zap.L().Info("nothing to export")
			return nil
		}

		results, err := exportAll(cmd.Context(), paths, exportConcurrency)
		for _, r := range results {
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%d rows\n", r.XLSXPath, r.Rows)
		}
		return err
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "output", "o", "", "directory to scan when no files are given (default from config)")
	exportCmd.Flags().IntVar(&exportConcurrency, "concurrency", 4, "files converted at once")
	rootCmd.AddCommand(exportCmd)
}

// exportResult records one converted workbook.
type exportResult struct {
	CSVPath  string
	XLSXPath string
	Rows     int
}

// xlsxPath returns the workbook path for a CSV path.
func xlsxPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
}

// sheetName names the sheet after the report when the file name parses.
func sheetName(csvPath string) string {
	if u, ok := download.ParseOutputName(csvPath); ok {
		return u.String()
	}
	return strings.TrimSuffix(filepath.Base(csvPath), filepath.Ext(csvPath))
}

// exportAll converts paths concurrently. It stops scheduling new files after
// the first failure and returns the workbooks written so far.
func exportAll(ctx context.Context, paths []string, concurrency int) ([]exportResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var (
		mu      sync.Mutex
		results []exportResult
	)
	for _, p := range paths {
		p := p // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := xlsxPath(p)
			n, err := store.ExportXLSX(p, out, sheetName(p))
			if err != nil {
				return eris.Wrapf(err, "export %s", p)
			}
			zap.L().Debug("exported", zap.String("csv", p), zap.String("xlsx", out), zap.Int("rows", n))

			mu.Lock()
			results = append(results, exportResult{CSVPath: p, XLSXPath: out, Rows: n})
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].CSVPath < results[j].CSVPath })
	return results, err
}
