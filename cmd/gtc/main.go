// Package main provides the gtc CLI for converting build operation traces.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gtc/internal/config"
	"gtc/internal/convert"
	"gtc/internal/format"
	"gtc/internal/logging"
	"gtc/internal/model"
	"gtc/internal/parser"
	"gtc/internal/store"
	"gtc/internal/transforms"
	"gtc/internal/traverse"
	"gtc/internal/view"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gtc: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand. Flags left unset fall back to
// the config file and GTC_* variables.
type globalFlags struct {
	configPath string
	logLevel   string
	include    string
	exclude    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "gtc",
		Short:         "Convert build operation traces into trace-viewer and CSV outputs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "YAML config file")
	flags.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error (env: GTC_LOG_LEVEL)")
	flags.StringVarP(&g.include, "include", "i", "", "regex an operation display name must fully match, children included (env: GTC_INCLUDE)")
	flags.StringVarP(&g.exclude, "exclude", "e", "", "regex of operation display names to drop (env: GTC_EXCLUDE)")

	cmd.AddCommand(newConvertCmd(g))
	cmd.AddCommand(newTransformsCmd(g))
	cmd.AddCommand(newInfoCmd(g))
	return cmd
}

// loadConfig layers defaults, the config file, the environment and changed
// flags. override applies command specific flags before validation.
func (g *globalFlags) loadConfig(cmd *cobra.Command, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Changed("include") {
		cfg.Include = g.include
	}
	if flags.Changed("exclude") {
		cfg.Exclude = g.exclude
	}
	if override != nil {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *zap.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = zap.InfoLevel
	}
	return logging.ForTerminal(cmd.ErrOrStderr(), level)
}

// readTrace reads path, drawing a byte progress bar on terminals.
func readTrace(cmd *cobra.Command, path string, showProgress bool) (*model.Trace, error) {
	errOut := cmd.ErrOrStderr()
	if !showProgress || !view.IsTerminal(errOut) {
		return parser.ReadFile(path, nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read build operation trace %s: %w", path, err)
	}
	bar := progressbar.NewOptions64(info.Size(),
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionSetDescription("reading "+store.BaseName(path)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	trace, err := parser.ReadFile(path, bar)
	_ = bar.Finish()
	return trace, err
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	var (
		outputFormat string
		outputDir    string
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "convert <trace-or-dir>...",
		Short: "Convert traces into trace-viewer, timeline and transform summary files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, func(cfg *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("output-format") {
					cfg.OutputFormat = outputFormat
				}
				if flags.Changed("output-dir") {
					cfg.OutputDir = outputDir
				}
				if flags.Changed("progress") {
					cfg.Progress = showProgress
				}
			})
			if err != nil {
				return err
			}
			outputs, err := cfg.Outputs()
			if err != nil {
				return err
			}
			filter, err := cfg.Filter()
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			defer logger.Sync() //nolint:errcheck

			errs := cmd.ErrOrStderr()
			var paths []string
			for _, arg := range args {
				found, err := store.FindTraces(arg)
				if err != nil {
					return err
				}
				for _, warn := range found.Warnings {
					fmt.Fprintf(errs, "warning: %v\n", warn)
				}
				paths = append(paths, found.Paths...)
			}
			if len(paths) == 0 {
				return errors.New("no build operation traces found")
			}

			out := cmd.OutOrStdout()
			for _, path := range paths {
				trace, err := readTrace(cmd, path, cfg.Progress)
				if err != nil {
					return err
				}
				result, err := convert.Run(cmd.Context(), trace, path, convert.Options{
					Outputs:   outputs,
					OutputDir: cfg.OutputDir,
					Filter:    filter,
					Logger:    logger.With(zap.String("trace", path)),
				})
				if err != nil {
					return err
				}
				renderResult(out, path, result)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outputFormat, "output-format", "o", string(config.FormatAll), "output: all, chrome, timeline or transforms (env: GTC_OUTPUT_FORMAT)")
	flags.StringVar(&outputDir, "output-dir", "", "directory for converted files (default: next to each trace)")
	flags.BoolVar(&showProgress, "progress", true, "show a progress bar while reading traces on a terminal")

	return cmd
}

func renderResult(out io.Writer, path string, result convert.Result) {
	fmt.Fprintf(out, "Processed %d build operation records from %s\n", result.Stats.Records, path)
	for _, o := range result.Outputs {
		unit := "rows"
		switch o.Format {
		case config.FormatChrome:
			unit = "packets"
		case config.FormatTransforms:
			unit = "transforms"
		}
		fmt.Fprintf(out, "Wrote %d %s to %s\n", o.Items, unit, o.Path)
	}
}

func newTransformsCmd(g *globalFlags) *cobra.Command {
	var (
		formatFlag string
		width      int
		noHeader   bool
		colorFlag  string
		usePager   bool
	)

	cmd := &cobra.Command{
		Use:   "transforms <trace>",
		Short: "Summarise transform identifications and executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			filter, err := cfg.Filter()
			if err != nil {
				return err
			}
			mode, err := view.ParseColorMode(colorFlag)
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			defer logger.Sync() //nolint:errcheck

			trace, err := readTrace(cmd, args[0], cfg.Progress)
			if err != nil {
				return err
			}
			summary := transforms.NewConverter(logger)
			traverse.Walk(trace, summary, filter, logger)

			out := cmd.OutOrStdout()
			useColor := view.UseColor(mode, out)
			var buf bytes.Buffer
			target := out
			if usePager {
				target = &buf
			}

			formatMode := strings.ToLower(formatFlag)
			opts := format.Options{Width: view.Width(out, width), NoHeader: noHeader}
			if err := format.Write(target, formatMode, summary.Table(), summary.Transforms(), opts); err != nil {
				return err
			}
			if formatMode == format.FormatTable || formatMode == "" {
				fmt.Fprintln(target, view.Colorize(useColor, view.AnsiDim, summaryFooter(summary.Transforms())))
			}

			if usePager {
				return view.Page(buf.String(), useColor)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", format.FormatTable, "output format: table, plain, csv, json, or jsonl")
	flags.IntVar(&width, "width", 0, "table width (default: terminal width)")
	flags.BoolVar(&noHeader, "no-header", false, "omit the header row")
	flags.StringVar(&colorFlag, "color", string(view.ColorAuto), "color output: auto, always or never")
	flags.BoolVar(&usePager, "pager", false, "page the output through $PAGER or less")

	return cmd
}

func summaryFooter(infos []*transforms.TransformInfo) string {
	var executions int
	var millis int64
	for _, info := range infos {
		executions += info.ExecutionCount
		millis += info.ExecutionTimeMillis
	}
	return fmt.Sprintf("%d transforms, %d executions, %s executing", len(infos), executions, formatMillis(millis))
}

type infoPayload struct {
	Path        string         `json:"path"`
	Nested      bool           `json:"nested"`
	Stats       traverse.Stats `json:"stats"`
	SpanMillis  int64          `json:"spanMillis"`
	SpanDisplay string         `json:"spanDisplay"`
}

func newInfoCmd(g *globalFlags) *cobra.Command {
	var (
		formatFlag string
		colorFlag  string
	)

	cmd := &cobra.Command{
		Use:   "info <trace>",
		Short: "Show traversal statistics of a trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			filter, err := cfg.Filter()
			if err != nil {
				return err
			}
			mode, err := view.ParseColorMode(colorFlag)
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			defer logger.Sync() //nolint:errcheck

			path := args[0]
			trace, err := readTrace(cmd, path, cfg.Progress)
			if err != nil {
				return err
			}
			stats := traverse.Walk(trace, nil, filter, logger)

			payload := infoPayload{
				Path:        path,
				Nested:      trace.Nested(),
				Stats:       stats,
				SpanMillis:  stats.Span(),
				SpanDisplay: formatMillis(stats.Span()),
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(formatFlag) {
			case "json":
				return format.WriteJSON(out, payload)
			case "text":
				renderInfoText(out, payload, view.UseColor(mode, out))
				return nil
			default:
				return fmt.Errorf("unsupported format: %s", formatFlag)
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "text", "output format: text or json")
	flags.StringVar(&colorFlag, "color", string(view.ColorAuto), "color output: auto, always or never")

	return cmd
}

func renderInfoText(out io.Writer, payload infoPayload, useColor bool) {
	const labelWidth = 18
	stats := payload.Stats
	shape := "flat log"
	if payload.Nested {
		shape = "nested records"
	}

	kv := func(label, value string) { writeKV(out, labelWidth, label, value, useColor) }
	kv("Trace", payload.Path)
	kv("Shape", shape)
	kv("Records", fmt.Sprintf("%d", stats.Records))
	kv("Operations", fmt.Sprintf("%d", stats.Starts))
	kv("Visited", fmt.Sprintf("%d", stats.Visited))
	kv("Filtered", fmt.Sprintf("%d", stats.Filtered))
	kv("Top-level", fmt.Sprintf("%d", stats.Roots))
	kv("Progress events", fmt.Sprintf("%d", stats.Progress))
	writeCount(out, labelWidth, "Unmatched finishes", stats.Unmatched, useColor)
	writeCount(out, labelWidth, "Re-opened ids", stats.Reopened, useColor)
	writeCount(out, labelWidth, "Unfinished", stats.Unfinished, useColor)
	writeCount(out, labelWidth, "Invalid intervals", stats.InvalidIntervals, useColor)
	kv("Span", payload.SpanDisplay)
}

func writeKV(out io.Writer, width int, label string, value string, useColor bool) {
	label = view.Colorize(useColor, view.AnsiBold, fmt.Sprintf("%-*s", width, label))
	fmt.Fprintf(out, "%s: %s\n", label, value)
}

// writeCount highlights anomaly counts: warning color above zero.
func writeCount(out io.Writer, width int, label string, n int, useColor bool) {
	code := view.AnsiOK
	if n > 0 {
		code = view.AnsiWarning
	}
	writeKV(out, width, label, view.Colorize(useColor, code, fmt.Sprintf("%d", n)), useColor)
}

func formatMillis(millis int64) string {
	if millis <= 0 {
		return "00:00:00.000"
	}
	h := millis / 3_600_000
	m := (millis % 3_600_000) / 60_000
	s := (millis % 60_000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}
