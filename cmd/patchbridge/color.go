package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

func printColoredDiff(w io.Writer, diff string) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	hunk := color.New(color.FgCyan)
	header := color.New(color.Bold)

	if diff == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			hunk.Fprintln(w, line)
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"),
			strings.HasPrefix(line, "diff --git"), strings.HasPrefix(line, "===="):
			header.Fprintln(w, line)
		case strings.HasPrefix(line, "+"):
			added.Fprintln(w, line)
		case strings.HasPrefix(line, "-"):
			removed.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}
