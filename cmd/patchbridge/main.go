package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patchbridge/internal/config"
	"patchbridge/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = &logging.Logger{Logger: zap.NewNop()}
)

var rootCmd = &cobra.Command{
	Use:   "patchbridge",
	Short: "Translate change descriptions between git and Perforce",
	Long: `patchbridge converts git unified diffs into the diff dialect of Perforce
changelists and back, and rebuilds a pending Perforce changelist as a single
git diff that git apply accepts.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err = logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	if cfg.ConfigFile != "" {
		logger.Debug("using config file", zap.String("path", cfg.ConfigFile))
	}
	return nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./patchbridge.yaml or ~/.config/patchbridge/patchbridge.yaml)")
	flags.StringP("working-dir", "C", ".", "client workspace root")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("p4", "p4", "p4 executable")
	flags.String("diff-engine", "exec", "synthetic diff engine (exec, builtin)")
	flags.String("archive-dir", "", "archive location (default ~/.patchbridge/archive)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(toPerforceCmd)
	rootCmd.AddCommand(toGitCmd)
	rootCmd.AddCommand(changelistCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(archiveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
