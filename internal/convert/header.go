package convert

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"patchbridge/internal/filechange"
	"patchbridge/internal/gitdiff"
)

// Header builds the git header of one file. OldID and NewID are full blob
// ids; a missing side of an add or delete becomes the zero id.
type Header struct {
	Change filechange.FileChange
	OldID  string
	NewID  string
	// Hunks adds the ---/+++ lines that must precede hunks.
	Hunks bool
	// Binary replaces them with a "Binary files ... differ" line.
	Binary bool
}

// Lines returns the header without line terminators.
func (h Header) Lines() []string {
	c := h.Change
	from, to := c.FromPath(), c.Path()
	oldName, newName := "a/"+from, "b/"+to
	mode := c.ModeString()

	lines := []string{fmt.Sprintf("diff --git a/%s b/%s", from, to)}

	switch c.Type {
	case filechange.Added, filechange.AddedAndModified:
		oldName = gitdiff.DevNull
		lines = append(lines, "new file mode "+mode)
		if h.NewID != "" {
			lines = append(lines, index(h.OldID, h.NewID, ""))
		}
	case filechange.Deleted, filechange.DeletedAfterRename:
		newName = gitdiff.DevNull
		lines = append(lines, "deleted file mode "+mode)
		if h.OldID != "" {
			lines = append(lines, index(h.OldID, h.NewID, ""))
		}
	case filechange.Renamed, filechange.RenamedAndModified, filechange.Copied:
		verb := "rename"
		if c.Type == filechange.Copied {
			verb = "copy"
		}
		lines = append(lines, verb+" from "+from, verb+" to "+to)
		if h.OldID != "" && h.NewID != "" {
			lines = append(lines, index(h.OldID, h.NewID, mode))
		}
	default:
		if h.OldID != "" && h.NewID != "" {
			lines = append(lines, index(h.OldID, h.NewID, mode))
		}
	}

	switch {
	case h.Binary:
		lines = append(lines, fmt.Sprintf("Binary files %s and %s differ", oldName, newName))
	case h.Hunks:
		lines = append(lines, "--- "+oldName, "+++ "+newName)
	}
	return lines
}

func (h Header) String() string {
	return strings.Join(h.Lines(), "\n") + "\n"
}

func index(oldID, newID, mode string) string {
	if oldID == "" {
		oldID = plumbing.ZeroHash.String()
	}
	if newID == "" {
		newID = plumbing.ZeroHash.String()
	}
	if mode == "" {
		return fmt.Sprintf("index %s..%s", oldID, newID)
	}
	return fmt.Sprintf("index %s..%s %s", oldID, newID, mode)
}
