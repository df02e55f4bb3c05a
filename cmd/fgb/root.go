package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	flatgeobuf "github.com/tingold/fgbstream"
	"github.com/tingold/fgbstream/httprange"
	"github.com/tingold/fgbstream/internal/config"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "fgb",
		Short: "FlatGeobuf conversion, inspection and range serving",
		Long: `fgb writes FlatGeobuf containers from GeoJSON, reads them back from
disk or over HTTP range requests, and serves directories of containers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Flags())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newConvertCmd(a),
		newInfoCmd(a),
		newDumpCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the config file, applies flag overrides and builds the logger.
func (a *app) setup(flags *pflag.FlagSet) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(a.stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(a.stderr, handlerOpts)
	}

	a.cfg = cfg
	a.logger = slog.New(handler)
	return nil
}

// rangeOptions returns the httprange options for remote reads.
func (a *app) rangeOptions() []httprange.Option {
	opts := []httprange.Option{
		httprange.WithHTTPClient(&http.Client{Timeout: a.cfg.Remote.Timeout}),
		httprange.WithLogger(a.logger),
	}
	for k, v := range a.cfg.Remote.Headers {
		opts = append(opts, httprange.WithHeader(k, v))
	}
	return opts
}

func readerOptions(legacyBoolPad bool) []flatgeobuf.ReaderOption {
	if legacyBoolPad {
		return []flatgeobuf.ReaderOption{flatgeobuf.WithLegacyBoolPad()}
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func columnSummary(columns []flatgeobuf.Column) string {
	if len(columns) == 0 {
		return "-"
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s:%s", c.Name, c.Type)
	}
	return strings.Join(parts, ", ")
}
