// Command ls-skychart is a terminal star chart with Chinese and Western
// overlays, lunar mansions and time playback.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/litescript/ls-skychart/internal/config"
	"github.com/litescript/ls-skychart/internal/engine"
	"github.com/litescript/ls-skychart/internal/logging"
	"github.com/litescript/ls-skychart/internal/skyview"
	"github.com/litescript/ls-skychart/internal/ui"
	"github.com/litescript/ls-skychart/internal/version"
)

// Terminal cells are about twice as tall as wide; labels sit two cells to
// the right of their marker, tooltips one row above, and clicks snap within
// a cell and a half.
const (
	labelOffsetX = 2
	tooltipDX    = 2
	tooltipDY    = -1
	hitRadius    = 1.5
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFile    string

	logger *zap.Logger
	cfg    *config.Config

	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:     "ls-skychart",
	Short:   "Terminal star chart with Chinese and Western overlays",
	Version: version.Version,
	Long: `ls-skychart resolves a star-data root, renders the sky for the configured
observer and overlays culture star names and the 28 lunar mansions.

Run without arguments to start the interactive chart.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.ParseLevel(logLevel)
		if logFile != "" {
			l, closer, err := logging.NewFile(level, logFile)
			if err != nil {
				return err
			}
			logger, closeLog = l, closer
		} else if cmd == cmd.Root() {
			// Anything on stderr would tear the alternate screen.
			logger = logging.Discard()
		} else {
			logger = logging.New(level)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		_ = closeLog()
	},
	RunE: runInteractive,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when missing)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append logs to this file")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(mansionsCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newEngine(view *skyview.View) *engine.Engine {
	return engine.New(cfg, view,
		engine.WithLogger(logger),
		engine.WithLabelOffset(labelOffsetX, 0),
		engine.WithTooltipOffset(tooltipDX, tooltipDY),
		engine.WithHitRadius(hitRadius),
	)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("stdout is not a terminal; use the snapshot command for headless output")
	}

	ctx, cancel := signalContext()
	defer cancel()

	view := skyview.New(skyview.WithLogger(logger))
	e := newEngine(view)
	defer e.Close()

	p := tea.NewProgram(ui.New(ctx, e, view), tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}

	// Pending toggles are committed before exit rather than dropped.
	if err := e.Flush(context.Background()); err != nil {
		logger.Warn("settings flush failed", zap.Error(err))
	}
	return nil
}
