package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/provide-io/mpqpack/pkg/logging"
)

const version = "0.1.0"

func getBuildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.time" {
				if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					return t.UTC().Format(time.RFC3339)
				}
			}
		}
	}
	if exePath, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exePath); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// cli holds state shared by every subcommand.
type cli struct {
	logLevel string
	logger   hclog.Logger
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	c := &cli{closeLog: func() error { return nil }}

	rootCmd := &cobra.Command{
		Use:           "mpqpack",
		Short:         "Build, inspect and extract MPQ archives",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := logging.ResolveConfig(c.logLevel)
			output, closeLog := logging.OpenOutput()
			c.closeLog = closeLog
			c.logger = logging.NewLogger("mpqpack", cfg, output)
			c.logger.Debug("Log level", "level", cfg.Level, "source", cfg.Source)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.closeLog()
		},
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("mpqpack {{.Version}}\nBuilt: %s\n", getBuildTimestamp()))
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error, json[:level])")

	rootCmd.AddCommand(
		newBuildCmd(c),
		newListCmd(c),
		newExtractCmd(c),
		newVerifyCmd(c),
		newHashCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
