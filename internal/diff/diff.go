// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int
	NewNum  int
	// NoNewline marks the last line of a file that lacks a terminator.
	NoNewline bool
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

// DiffResult contains the complete diff information
type DiffResult struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
		Changes   int
	}
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) (*DiffResult, error) {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	result := &DiffResult{}
	result.Hunks = e.groupHunks(editScript(oldLines, newLines))

	for _, hunk := range result.Hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				result.Stats.Additions++
			case Deletion:
				result.Stats.Deletions++
			}
		}
	}
	result.Stats.Changes = result.Stats.Additions + result.Stats.Deletions

	return result, nil
}

// groupHunks cuts the edit script into hunks, merging changes separated by
// no more than twice the context size.
func (e *Engine) groupHunks(ops []edit) []Hunk {
	var hunks []Hunk
	ctx := e.contextLines

	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].typ == Context {
			i++
		}
		if i == len(ops) {
			break
		}

		last := i
		j := i
		for j < len(ops) {
			if ops[j].typ != Context {
				last = j
				j++
				continue
			}
			k := j
			for k < len(ops) && ops[k].typ == Context {
				k++
			}
			if k == len(ops) || k-j > 2*ctx {
				break
			}
			j = k
		}

		start := max(0, i-ctx)
		end := min(len(ops), last+ctx+1)
		hunks = append(hunks, newHunk(ops[start:end]))
		i = end
	}

	return hunks
}

func newHunk(ops []edit) Hunk {
	h := Hunk{}
	for _, op := range ops {
		line := Line{Type: op.typ, Content: op.text, NoNewline: op.noNewline}
		switch op.typ {
		case Context:
			h.OldLines++
			h.NewLines++
			line.OldNum, line.NewNum = op.oldIdx+1, op.newIdx+1
		case Deletion:
			h.OldLines++
			line.OldNum = op.oldIdx + 1
		case Addition:
			h.NewLines++
			line.NewNum = op.newIdx + 1
		}
		h.Lines = append(h.Lines, line)
	}

	// An empty side is anchored on the line before it.
	h.OldStart = ops[0].oldIdx
	if h.OldLines > 0 {
		h.OldStart++
	}
	h.NewStart = ops[0].newIdx
	if h.NewLines > 0 {
		h.NewStart++
	}
	return h
}

// Format returns the hunks in unified diff form, without file headers.
func (r *DiffResult) Format() string {
	var buf bytes.Buffer

	for _, hunk := range r.Hunks {
		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n",
			hunk.OldStart, hunk.OldLines,
			hunk.NewStart, hunk.NewLines)

		for _, line := range hunk.Lines {
			switch line.Type {
			case Addition:
				buf.WriteByte('+')
			case Deletion:
				buf.WriteByte('-')
			case Context:
				buf.WriteByte(' ')
			}
			buf.WriteString(line.Content)
			buf.WriteString("\n")
			if line.NoNewline {
				buf.WriteString("\\ No newline at end of file\n")
			}
		}
	}

	return buf.String()
}

// Unified returns the full unified diff with --- and +++ headers, or ""
// when the contents are equal.
func (r *DiffResult) Unified(oldName, newName string) string {
	if len(r.Hunks) == 0 {
		return ""
	}
	return fmt.Sprintf("--- %s\n+++ %s\n%s", oldName, newName, r.Format())
}
