package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/earnings-cli/internal/period"
)

// firstReportYear is the earliest year the API has results for.
const firstReportYear = 2007

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Choose what to download through prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDownloader(cfg, envOverrides{})
		if err != nil {
			return err
		}

		p, err := readPlan(ctx, os.Stdin, os.Stdout, time.Now().Year())
		if err != nil || p == nil {
			return err
		}
		return runPlan(ctx, env, p, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

// prompter reads one trimmed line per question. Input is read on its own
// goroutine so a question can be abandoned when ctx is cancelled.
type prompter struct {
	ctx   context.Context
	lines <-chan inputLine
	out   io.Writer
}

type inputLine struct {
	text string
	err  error
}

func newPrompter(ctx context.Context, in io.Reader, out io.Writer) *prompter {
	lines := make(chan inputLine)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- inputLine{text: sc.Text()}:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			select {
			case lines <- inputLine{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return &prompter{ctx: ctx, lines: lines, out: out}
}

func (p *prompter) ask(question string) (string, error) {
	_, _ = fmt.Fprint(p.out, question)
	if err := p.ctx.Err(); err != nil {
		return "", err
	}
	select {
	case <-p.ctx.Done():
		return "", p.ctx.Err()
	case l, ok := <-p.lines:
		if !ok {
			return "", eris.New("input closed")
		}
		if l.err != nil {
			return "", eris.Wrap(l.err, "read input")
		}
		return strings.TrimSpace(l.text), nil
	}
}

func (p *prompter) askYear(question string) (int, error) {
	s, err := p.ask(question)
	if err != nil {
		return 0, err
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Errorf("invalid year %q", s)
	}
	return y, nil
}

// readPlan prompts for a plan. When ctx is cancelled while waiting for an
// answer it prints the interrupt notice and returns a nil plan and no error.
func readPlan(ctx context.Context, in io.Reader, out io.Writer, currentYear int) (*plan, error) {
	p, err := promptPlan(ctx, in, out, currentYear)
	if err != nil && ctx.Err() != nil {
		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, interruptedMsg)
		return nil, nil
	}
	return p, err
}

// promptPlan asks for a download mode and its parameters. It returns
// ctx.Err() if ctx is cancelled before every answer is read.
func promptPlan(ctx context.Context, in io.Reader, out io.Writer, currentYear int) (*plan, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := newPrompter(ctx, in, out)

	_, _ = fmt.Fprintln(out, "East Money earnings report downloader")
	_, _ = fmt.Fprintln(out, "Reports: 一季报 / 半年报 / 三季报 / 年报")
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Download mode:")
	_, _ = fmt.Fprintln(out, "  1. single report")
	_, _ = fmt.Fprintln(out, "  2. every report of one year")
	_, _ = fmt.Fprintln(out, "  3. range of years")
	_, _ = fmt.Fprintln(out)

	choice, err := p.ask("Choose (1/2/3): ")
	if err != nil {
		return nil, err
	}

	yearPrompt := fmt.Sprintf("Year (%d-%d): ", firstReportYear, currentYear)

	switch choice {
	case "1":
		year, err := p.askYear(yearPrompt)
		if err != nil {
			return nil, err
		}
		_, _ = fmt.Fprintln(out, "Quarter: 1=一季报, 2=半年报, 3=三季报, 4=年报")
		q, err := p.ask("Quarter: ")
		if err != nil {
			return nil, err
		}
		u, err := period.NewUnit(year, q)
		if err != nil {
			return nil, err
		}
		return &plan{Units: []period.Unit{u}}, nil

	case "2":
		year, err := p.askYear(yearPrompt)
		if err != nil {
			return nil, err
		}
		return &plan{Units: period.Units(year, year, period.All())}, nil

	case "3":
		start, err := p.askYear("Start year: ")
		if err != nil {
			return nil, err
		}
		end, err := p.askYear("End year: ")
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, eris.Errorf("start year %d is after end year %d", start, end)
		}
		_, _ = fmt.Fprintln(out, "Quarter: 1=一季报, 2=半年报, 3=三季报, 4=年报, all=every report")
		q, err := p.ask("Quarter (default all): ")
		if err != nil {
			return nil, err
		}
		periods, err := period.ParseList(q)
		if err != nil {
			return nil, err
		}
		return &plan{Units: period.Units(start, end, periods)}, nil

	default:
		return nil, eris.Errorf("invalid choice %q", choice)
	}
}
