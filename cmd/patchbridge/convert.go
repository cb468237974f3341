package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"patchbridge/internal/archive"
	"patchbridge/internal/convert"
	"patchbridge/internal/filechange"
	"patchbridge/internal/gitdiff"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "List the file changes in a git diff",
	Long:  `Reads a git unified diff and prints one line per changed file: its status code and path(s).`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := input(cmd, args)
		if err != nil {
			return err
		}
		defer r.Close()

		changes, err := gitdiff.NewParser().Parse(r)
		if err != nil {
			return fmt.Errorf("parsing diff: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, c := range changes {
			fmt.Fprintf(out, "%s\t%s\n", c.Type.StatusCode(), strings.Join(c.Paths, "\t"))
		}
		return nil
	},
}

var toPerforceCmd = &cobra.Command{
	Use:   "to-perforce [file]",
	Short: "Convert a git diff into a Perforce changelist diff",
	Long: `Reads a git unified diff and rewrites it in the p4 diff dialect, resolving
every path against the depot. With --draft, prints the unresolved draft with
[!!path!!] placeholders instead and runs no p4 commands.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, source, err := input(cmd, args)
		if err != nil {
			return err
		}
		defer r.Close()

		if draft, _ := cmd.Flags().GetBool("draft"); draft {
			d, _, err := convert.NewGitToPerforce(convert.Deps{Logger: logger.Component("convert")}).Draft(r)
			if err != nil {
				return fmt.Errorf("drafting conversion: %w", err)
			}
			return output(cmd, d.String())
		}

		p4, err := newPerforce(newRunner())
		if err != nil {
			return err
		}
		conv, err := convert.New(convert.ToPerforce, convert.Deps{
			Resolver: p4,
			Paths:    p4.Paths(),
			Logger:   logger.Component("convert"),
		})
		if err != nil {
			return err
		}
		return runConversion(cmd, conv, r, source)
	},
}

var toGitCmd = &cobra.Command{
	Use:   "to-git [file]",
	Short: "Convert a Perforce changelist diff into a git diff",
	Long:  `Reads p4 diff or p4 describe output and rewrites it as a git unified diff.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, source, err := input(cmd, args)
		if err != nil {
			return err
		}
		defer r.Close()

		runner := newRunner()
		p4, err := newPerforce(runner)
		if err != nil {
			return err
		}
		hasher, err := newHasher(runner, p4.Paths().Root)
		if err != nil {
			return err
		}
		conv, err := convert.New(convert.ToGit, convert.Deps{
			Hasher: hasher,
			Paths:  p4.Paths(),
			Logger: logger.Component("convert"),
		})
		if err != nil {
			return err
		}
		return runConversion(cmd, conv, r, source)
	},
}

func runConversion(cmd *cobra.Command, conv convert.Converter, r io.Reader, source string) error {
	result, err := conv.Convert(cmd.Context(), r)
	if err != nil {
		return fmt.Errorf("converting %s: %w", conv.Direction(), err)
	}

	if err := output(cmd, result.Text); err != nil {
		return err
	}
	return store(cmd, archive.Entry{
		Kind:   conv.Direction().String(),
		Source: source,
		Files:  changedPaths(result.Changes),
		Body:   []byte(result.Text),
	})
}

func changedPaths(changes []filechange.FileChange) []string {
	paths := make([]string, 0, len(changes))
	for _, c := range changes {
		paths = append(paths, c.Path())
	}
	return paths
}

func init() {
	for _, c := range []*cobra.Command{toPerforceCmd, toGitCmd} {
		c.Flags().StringP("output", "o", "", "write the result to a file instead of stdout")
		c.Flags().Bool("archive", false, "keep a copy of the result in the archive")
		c.Flags().Bool("color", false, "colour the diff on stdout")
	}
	toPerforceCmd.Flags().Bool("draft", false, "print the unresolved draft instead of querying p4")
}
