package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franksops/lzstage/config"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	flagSodarURL string
	flagToken    string
	flagStorage  string
	flagStateDir string
	flagRate     int64

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lzstage",
	Short: "Stage local files into SODAR landing zones.",
	Long: `lzstage builds transfer jobs from local files, writes missing MD5 sidecars
and uploads everything into a landing zone collection with bounded concurrency.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := c.ApplyEnv(); err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("sodar-url") {
			c.SodarURL = flagSodarURL
		}
		if flags.Changed("sodar-api-token") {
			c.SodarAPIToken = flagToken
		}
		if flags.Changed("storage") {
			c.Storage = flagStorage
		}
		if flags.Changed("state-dir") {
			c.StateDir = flagStateDir
		}
		if flags.Changed("max-bytes-per-second") {
			c.MaxBytesPerSecond = flagRate
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to the config file (default $XDG_CONFIG_HOME/"+config.RelativePath+")")
	pf.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	pf.StringVar(&flagSodarURL, "sodar-url", "", "Base URL of the SODAR server (env SODAR_URL)")
	pf.StringVar(&flagToken, "sodar-api-token", "", "SODAR API token (env SODAR_API_TOKEN)")
	pf.StringVar(&flagStorage, "storage", "", "Collection storage: file:///path, s3://bucket/prefix, gs://bucket or mem://")
	pf.StringVar(&flagStateDir, "state-dir", "", "Directory for the transfer journal")
	pf.Int64Var(&flagRate, "max-bytes-per-second", 0, "Upload bandwidth cap shared by all transfers, 0 for none")

	rootCmd.AddCommand(itransferCmd, blueprintCmd, ingestCmd, statusCmd)
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
