package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"patchbridge/internal/archive"
	"patchbridge/internal/changelist"
	"patchbridge/internal/diff"
	"patchbridge/internal/git"
	"patchbridge/internal/perforce"
	"patchbridge/internal/vcs"
)

func newRunner() *vcs.ExecRunner {
	return vcs.NewExecRunner(logger.Component("vcs"))
}

func newPerforce(runner vcs.Runner) (*perforce.Client, error) {
	return perforce.NewClient(runner, perforce.Options{
		Executable:     cfg.Perforce.Executable,
		Dir:            cfg.WorkingDir,
		DepotPathDepth: cfg.Perforce.DepotPathDepth,
	}, logger.Component("perforce"))
}

func newGit(runner vcs.Runner, root string) *git.Client {
	return git.NewClient(runner, cfg.Git.Executable, root, logger.Component("git"))
}

func newHasher(runner vcs.Runner, root string) (git.ObjectHasher, error) {
	return git.NewHasher(cfg.Git.Hasher, newGit(runner, root), root)
}

func newCreator() (*changelist.Creator, error) {
	runner := newRunner()
	p4, err := newPerforce(runner)
	if err != nil {
		return nil, err
	}
	hasher, err := newHasher(runner, p4.Paths().Root)
	if err != nil {
		return nil, err
	}
	differ, err := diff.New(cfg.Diff.Engine, runner, cfg.Diff.Executable, cfg.Diff.Context)
	if err != nil {
		return nil, err
	}

	return changelist.NewCreator(p4, differ, hasher, p4.Paths(), changelist.Options{
		Workers:    cfg.Diff.Workers,
		BinaryDiff: cfg.Perforce.BinaryDiff,
	}, logger.Component("changelist")), nil
}

// openArchive opens the archive; the returned func closes it.
func openArchive() (*archive.Archive, func(), error) {
	db, err := archive.OpenDB(cfg.Archive.Path)
	if err != nil {
		return nil, nil, err
	}
	a, err := archive.New(db, archive.Options{CacheSize: cfg.Archive.CacheSize})
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return a, func() { db.Close() }, nil
}

// store archives body when the command's --archive flag is set and reports
// the new entry id on stderr.
func store(cmd *cobra.Command, entry archive.Entry) error {
	if on, _ := cmd.Flags().GetBool("archive"); !on {
		return nil
	}

	a, closeArchive, err := openArchive()
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer closeArchive()

	id, err := a.Put(entry)
	if err != nil {
		return fmt.Errorf("archiving output: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "archived as %s\n", id)
	return nil
}

// input opens the file named by args, stdin for none or "-".
func input(cmd *cobra.Command, args []string) (io.ReadCloser, string, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), "-", nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, "", fmt.Errorf("opening input: %w", err)
	}
	return f, args[0], nil
}

// output writes text to --output when given, otherwise to stdout, coloured
// with --color.
func output(cmd *cobra.Command, text string) error {
	path, _ := cmd.Flags().GetString("output")
	if path != "" {
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		return nil
	}

	if colored, _ := cmd.Flags().GetBool("color"); colored {
		color.NoColor = false
		printColoredDiff(cmd.OutOrStdout(), text)
		return nil
	}
	_, err := io.WriteString(cmd.OutOrStdout(), text)
	return err
}
