package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse diffs kept with --archive",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived diffs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeArchive, err := openArchive()
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer closeArchive()

		entries, err := a.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No archived diffs")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tSOURCE\tCREATED\tSIZE\tFILES")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
				e.ID, e.Kind, e.Source, e.CreatedAt.Local().Format(time.DateTime), e.Size, strings.Join(e.Files, ","))
		}
		return tw.Flush()
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived diff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeArchive, err := openArchive()
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer closeArchive()

		e, err := a.Get(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		return output(cmd, string(e.Body))
	},
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an archived diff",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeArchive, err := openArchive()
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer closeArchive()

		if err := a.Delete(args[0]); err != nil {
			return fmt.Errorf("deleting %s: %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
		return nil
	},
}

func init() {
	archiveShowCmd.Flags().StringP("output", "o", "", "write the diff to a file instead of stdout")
	archiveShowCmd.Flags().Bool("color", false, "colour the diff on stdout")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)
	archiveCmd.AddCommand(archiveDeleteCmd)
}
