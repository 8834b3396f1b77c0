package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zboralski/hltest/internal/config"
	"github.com/zboralski/hltest/internal/driver"
	"github.com/zboralski/hltest/internal/highlight"
	"github.com/zboralski/hltest/internal/host"
	hlog "github.com/zboralski/hltest/internal/log"
	"github.com/zboralski/hltest/internal/trace"
	"github.com/zboralski/hltest/internal/ui/colorize"
)

var (
	verbose    bool
	configPath string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hltest",
		Short: "Fake syntax highlighter for testing asynchronous highlighting hosts",
		Long: `hltest reads bytes on stdin and writes one R,G,B triple per byte on stdout.

It stands in for a real highlighter so an editor's highlighting pipeline can be
tested against slow and crashing workers. Classification:

  T            arm; grey
  F            disarm; grey
  S            grey; sleeps first when armed
  C            grey; crashes the process when armed
  R G B        red, green, blue
  0-9          blue
  whitespace   white
  anything     black

The armed bit persists for the life of the process.

Examples:
  printf 'TRGB' | hltest | xxd       # four triples: grey red green blue
  hltest preview main.go             # show the coloring in the terminal
  printf 'RGB\nTC\n' | hltest host   # supervise hltest workers, print highlights`,
		Args:                  cobra.NoArgs,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
		RunE:                  runDriver,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config (defaults to $"+config.EnvPath+")")

	previewCmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Show the classification of a file or stdin in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPreview,
	}
	rootCmd.AddCommand(previewCmd)

	hostCmd := &cobra.Command{
		Use:   "host [-- worker command...]",
		Short: "Feed stdin lines to supervised workers and print highlights",
		Long: `host runs the worker command (by default this executable) as a highlighter,
inserts each stdin line at the end of a document, and prints one line per
highlight: position, red, green, blue. Worker restarts are reported on stderr.`,
		RunE: runHost,
	}
	rootCmd.AddCommand(hostCmd)

	return rootCmd
}

// setup loads the configuration and initializes the global logger.
func setup() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if verbose {
		cfg.Log.Development = true
		if cfg.Log.Level == "" {
			cfg.Log.Level = "debug"
		}
	}
	hlog.Init(cfg.Log)
	return cfg, nil
}

func runDriver(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer hlog.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := highlight.New(
		highlight.WithDelay(cfg.Delay),
		highlight.WithCancelEvery(cfg.CancelEvery),
		highlight.WithLogger(hlog.L.Named("highlight")),
	)
	return driver.Run(ctx, os.Stdin, os.Stdout, c, driver.Options{
		ChunkSize: cfg.ChunkSize,
		Log:       hlog.L.Named("driver"),
	})
}

func runPreview(cmd *cobra.Command, args []string) error {
	if _, err := setup(); err != nil {
		return err
	}
	defer hlog.L.Sync()

	var (
		input []byte
		err   error
	)
	if len(args) == 1 {
		input, err = os.ReadFile(args[0])
	} else {
		input, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// Preview never sleeps or crashes; it only shows colors.
	c := highlight.New(highlight.WithFaults(highlight.NopFaults{}))
	colors, err := c.Classify(input, highlight.Never)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, colorize.Render(input, colors))
	if len(input) > 0 && input[len(input)-1] != '\n' {
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, colorize.Legend(colors))
	return nil
}

func runHost(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer hlog.L.Sync()

	command := args
	if len(command) == 0 {
		command = cfg.Host.Command
	}
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		command = []string{self}
		if configPath != "" {
			command = append(command, "--config", configPath)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan struct{}, 1)
	errOut := cmd.ErrOrStderr()
	h := host.New(host.Config{
		Command:       command,
		Timeout:       cfg.Host.Timeout,
		QueueLimit:    cfg.Host.QueueLimit,
		ReadColors:    cfg.Host.ReadColors,
		RetryInterval: cfg.Host.RetryInterval,
	},
		host.WithLogger(hlog.L),
		host.WithNotify(func() {
			select {
			case ready <- struct{}{}:
			default:
			}
		}),
		host.WithEventHandler(func(e *trace.Event) {
			if e.Tags.Primary() == trace.Colors {
				return
			}
			fmt.Fprintln(errOut, formatEvent(e))
		}),
	)
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("start host: %w", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text() + "\n"
		}
		if err := sc.Err(); err != nil {
			hlog.L.Warn("read stdin", zap.Error(err))
		}
	}()

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer out.Flush()

	docLen := 0
	inputDone := false
	// Once input ends, give up when pending bytes make no progress for
	// two worker timeouts; a worker that always crashes never finishes.
	idle := time.NewTimer(time.Hour)
	defer idle.Stop()

	for {
		drain(h, out)
		if inputDone && h.Pending() == 0 {
			drain(h, out)
			break
		}

		select {
		case <-ctx.Done():
			return h.Close()
		case line, ok := <-lines:
			if !ok {
				inputDone = true
				lines = nil
				idle.Reset(2 * cfg.Host.Timeout)
				continue
			}
			h.Insert(docLen, line)
			docLen += len(line)
		case <-ready:
			if inputDone {
				idle.Reset(2 * cfg.Host.Timeout)
			}
		case <-idle.C:
			fmt.Fprintln(errOut, colorize.Error(fmt.Sprintf("giving up on %d pending bytes", h.Pending())))
			out.Flush()
			return h.Close()
		}
	}
	return h.Close()
}

func drain(h *host.Host, out *bufio.Writer) {
	for {
		hl, ok := h.Dequeue()
		if !ok {
			break
		}
		fmt.Fprintf(out, "%s %3d %3d %3d %s\n",
			colorize.Pos(hl.Pos), hl.Color.R, hl.Color.G, hl.Color.B, colorize.Swatch(hl.Color))
	}
	out.Flush()
}

func formatEvent(e *trace.Event) string {
	line := colorize.Header("▶") + " " + colorize.Tag(e.String())
	if e.Tags.Has(trace.Restart) {
		line += " " + colorize.Detail("(restarting)")
	}
	return line
}
