package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patchbridge/internal/archive"
	"patchbridge/internal/gitdiff"
	"patchbridge/internal/watch"
)

var changelistCmd = &cobra.Command{
	Use:   "changelist <id>",
	Short: "Rebuild a pending changelist as a git diff",
	Long: `Collects every file open in a pending changelist and prints one git diff
covering all of them, including the full content of added and deleted files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creator, err := newCreator()
		if err != nil {
			return err
		}

		out, err := creator.Create(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("creating diff for changelist %s: %w", args[0], err)
		}

		if err := output(cmd, out); err != nil {
			return err
		}
		return store(cmd, archive.Entry{
			Kind:   "changelist",
			Source: args[0],
			Files:  diffFiles(out),
			Body:   []byte(out),
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Keep a changelist diff up to date while files change",
	Long: `Rebuilds the diff of a pending changelist into --output every time files
under the workspace root change, until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		creator, err := newCreator()
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("output")
		w, err := watch.New(watch.Options{
			Root:     cfg.WorkingDir,
			Output:   path,
			Debounce: cfg.Watch.Debounce,
		}, func(ctx context.Context) (string, error) {
			return creator.Create(ctx, args[0])
		}, logger.Component("watch"))
		if err != nil {
			return err
		}

		logger.Info("watching workspace", zap.String("root", cfg.WorkingDir), zap.String("changelist", args[0]))
		return w.Run(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List the changes in the git working tree",
	Long:  `Prints the change type and path(s) of every tracked change git status reports.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		changes, err := newGit(newRunner(), cfg.WorkingDir).StatusChanges(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading git status: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, c := range changes {
			fmt.Fprintln(out, c.String())
		}
		return nil
	},
}

// diffFiles lists the files a produced git diff touches.
func diffFiles(out string) []string {
	changes, err := gitdiff.NewParser().Parse(strings.NewReader(out))
	if err != nil {
		logger.Debug("listing archived files", zap.Error(err))
		return nil
	}
	return changedPaths(changes)
}

func init() {
	changelistCmd.Flags().StringP("output", "o", "", "write the diff to a file instead of stdout")
	changelistCmd.Flags().Bool("archive", false, "keep a copy of the diff in the archive")
	changelistCmd.Flags().Bool("color", false, "colour the diff on stdout")
	changelistCmd.Flags().Int("workers", 8, "synthetic diffs run at once")
	changelistCmd.Flags().Bool("binary-diff", false, "pass -t to p4 diff")

	watchCmd.Flags().StringP("output", "o", "", "file to keep the diff in")
	watchCmd.Flags().Duration("debounce", 0, "quiet period before regenerating (default 500ms)")
	watchCmd.Flags().Int("workers", 8, "synthetic diffs run at once")
	watchCmd.MarkFlagRequired("output")
}
