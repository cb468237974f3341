package gitdiff

import (
	"fmt"
	"io"
	"strings"

	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
)

// Parser lists the file changes in a git diff without translating it.
//
// Rename headers are not recognised: a pure rename yields nothing and a
// rename with edits yields a modification of the new path.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse returns nil for a nil reader and an empty slice for empty input.
func (p *Parser) Parse(r io.Reader) ([]filechange.FileChange, error) {
	if r == nil {
		return nil, nil
	}
	tokens, err := Tokens(r)
	if err != nil {
		return nil, fmt.Errorf("reading diff: %w", err)
	}

	changes := make([]filechange.FileChange, 0)
	var lastOld *Token
	var command string
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case DiffCommand:
			command = tok.Line
		case OldFile:
			t := tok
			lastOld = &t
			if i+1 >= len(tokens) || tokens[i+1].Kind != NewFile {
				return nil, errors.GrammarMismatch("before path without after path", tok.Line).WithPath(tok.Path)
			}
			if !tok.IsNull() {
				continue
			}
			next := tokens[i+1]
			if next.IsNull() {
				return nil, errors.GrammarMismatch("both sides point at "+DevNull, next.Line).WithPath(commandPath(command))
			}
			change, err := filechange.New(filechange.Git, filechange.Added, 0, next.Path)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
			i++
		case NewFile:
			if lastOld == nil {
				return nil, errors.GrammarMismatch("after path without before path", tok.Line).WithPath(tok.Path)
			}
			path, typ := tok.Path, filechange.Modified
			if tok.IsNull() {
				path, typ = lastOld.Path, filechange.Deleted
			}
			change, err := filechange.New(filechange.Git, typ, 0, path)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
			lastOld = nil
		}
	}
	return changes, nil
}

// commandPath is the after path of a "diff --git a/x b/y" line.
func commandPath(line string) string {
	if i := strings.LastIndex(line, " b/"); i >= 0 {
		return line[i+3:]
	}
	return ""
}
