package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/earnings-cli/internal/download"
	"github.com/sells-group/earnings-cli/internal/store"
)

var statusDir string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List downloaded reports",
	Long:  "Lists the report CSV files in the output directory with their row counts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := statusDir
		if dir == "" {
			dir = cfg.Download.OutputDir
		}

		entries, err := listReports(dir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			zap.L().Info("no report files found, run 'download' first", zap.String("dir", dir))
			return nil
		}

		formatReports(os.Stdout, entries)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVarP(&statusDir, "output", "o", "", "output directory (default from config)")
	rootCmd.AddCommand(statusCmd)
}

// reportFile describes one output CSV on disk.
type reportFile struct {
	ID       string // unit ID, empty when the name does not parse
	Name     string
	Path     string
	Rows     int
	Size     int64
	Modified time.Time
	Err      error
}

// listReports finds output files in dir, sorted by unit ID then name.
func listReports(dir string) ([]reportFile, error) {
	paths, err := filepath.Glob(filepath.Join(dir, download.FilePattern))
	if err != nil {
		return nil, eris.Wrapf(err, "status: glob %s", dir)
	}

	out := make([]reportFile, 0, len(paths))
	for _, p := range paths {
		rf := reportFile{Name: filepath.Base(p), Path: p}
		if u, ok := download.ParseOutputName(p); ok {
			rf.ID = u.ID()
		}
		if fi, err := os.Stat(p); err == nil {
			rf.Size = fi.Size()
			rf.Modified = fi.ModTime()
		}
		rf.Rows, rf.Err = store.CountRows(p)
		out = append(out, rf)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// formatReports writes a tabular representation of report files to out.
func formatReports(out io.Writer, entries []reportFile) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "UNIT\tFILE\tROWS\tSIZE\tMODIFIED\tERROR")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t----\t--------\t-----")

	total := 0
	for _, e := range entries {
		id := e.ID
		if id == "" {
			id = "-"
		}
		modified := "-"
		if !e.Modified.IsZero() {
			modified = e.Modified.Format("2006-01-02 15:04")
		}
		errStr := "-"
		if e.Err != nil {
			errStr = e.Err.Error()
			if len(errStr) > 60 {
				errStr = errStr[:57] + "..."
			}
		}
		total += e.Rows
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", id, e.Name, e.Rows, e.Size, modified, errStr)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t%d\t\t\t\n", total)
	_ = w.Flush()
}
