package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/litescript/ls-skychart/internal/astro"
	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/engine"
	"github.com/litescript/ls-skychart/internal/resolver"
	"github.com/litescript/ls-skychart/internal/skyview"
)

var (
	snapshotCols int
	snapshotRows int
	mansionLon   float64
	showEvents   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Probe the configured data roots and print the winner",
	Long: `Probes every candidate root in order (local, proxy, remote, mirrors) for
the files the configured culture needs and prints each attempt.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

var mansionsCmd = &cobra.Command{
	Use:   "mansions",
	Short: "Print the 28 lunar mansion sectors",
	Args:  cobra.NoArgs,
	RunE:  runMansions,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Mount the chart headlessly and print one frame",
	Long: `Runs the full mount sequence without the interactive UI and writes the
rendered canvas to stdout, followed by a one-line summary on stderr.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotCols, "cols", 0, "Canvas width in cells (default: terminal width or 100)")
	snapshotCmd.Flags().IntVar(&snapshotRows, "rows", 0, "Canvas height in cells (default: terminal height or 36)")
	snapshotCmd.Flags().BoolVar(&showEvents, "events", false, "Print the render-state event log on stderr")
	mansionsCmd.Flags().Float64Var(&mansionLon, "lon", -1, "Highlight the sector holding this ecliptic longitude")
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	r := resolver.New(cfg.Candidates(),
		resolver.WithTimeout(cfg.GetDataTimeout()),
		resolver.WithRequiredFiles(catalog.RequiredFiles()...),
		resolver.WithLogger(logger),
	)
	res := r.Resolve(ctx)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CANDIDATE\tROOT\tRESULT\tTIME")
	for _, a := range res.Attempts {
		result := "ok"
		if a.Err != nil {
			result = fmt.Sprintf("failed %s: %v", a.Failed, a.Err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Candidate.Name, a.Candidate.Root, result, a.Duration.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !res.Validated {
		fmt.Fprintf(cmd.OutOrStdout(), "\nno candidate validated, falling back to %s\n", res.Root())
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nresolved %s (%s)\n", res.Root(), res.Candidate.Name)
	return nil
}

func runMansions(cmd *cobra.Command, args []string) error {
	mark := -1
	if mansionLon >= 0 {
		mark = astro.MansionAt(mansionLon).Index
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tPINYIN\tLON\tRA\tDEC\t")
	for _, m := range astro.Mansions() {
		flag := ""
		if m.Index == mark {
			flag = "◀"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%6.2f-%6.2f\t%9.5f\t%+9.5f\t%s\n",
			m.Index, m.Name, m.Pinyin, m.StartLon, m.EndLon, m.Mid.RAdeg, m.Mid.DecDeg, flag)
	}
	return w.Flush()
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cols, rows := snapshotSize()
	view := skyview.New(skyview.WithLogger(logger))
	view.SetTerminalSize(cols, rows)

	e := newEngine(view)
	defer e.Close()

	rep := e.Mount(ctx)
	if rep.HostErr != nil {
		return fmt.Errorf("chart host: %w", rep.HostErr)
	}

	canvas := view.Render()
	if canvas == "" {
		return fmt.Errorf("chart not visible at %dx%d", cols, rows)
	}
	fmt.Fprintln(cmd.OutOrStdout(), canvas)
	fmt.Fprintln(cmd.ErrOrStderr(), summary(rep))
	if showEvents {
		for _, ev := range e.Events(50) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %-13s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Type, ev.Detail)
		}
	}

	logger.Debug("snapshot rendered", zap.Int("cols", cols), zap.Int("rows", rows))
	return nil
}

func snapshotSize() (int, int) {
	cols, rows := 100, 36
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		cols, rows = w, h-2
	}
	if snapshotCols > 0 {
		cols = snapshotCols
	}
	if snapshotRows > 0 {
		rows = snapshotRows
	}
	return cols, rows
}

func summary(rep engine.Report) string {
	parts := []string{
		"root " + rep.Resolution.Root(),
		fmt.Sprintf("tier %s", rep.Outcome.Tier),
		fmt.Sprintf("%d stars (%d joined)", rep.Stars.Drawn, rep.Stars.Joined),
		fmt.Sprintf("%d mansions", rep.Mansions.Drawn),
	}
	if len(rep.Failed) > 0 {
		parts = append(parts, "failed "+strings.Join(rep.Failed, ","))
	}
	return strings.Join(parts, " | ")
}
