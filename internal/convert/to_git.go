package convert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
	"patchbridge/internal/p4diff"
)

// PerforceToGit turns p4 diff or describe output into a diff git apply
// accepts.
//
// Renames are told apart from modifications by path only, so a moved and
// edited file comes out as a plain rename followed by its hunks.
type PerforceToGit struct {
	deps Deps
}

func NewPerforceToGit(deps Deps) *PerforceToGit {
	return &PerforceToGit{deps: deps.withDefaults()}
}

func (c *PerforceToGit) Direction() Direction {
	return ToGit
}

type p4File struct {
	depotPath  string
	rev        int
	before     string
	after      string
	fromHeader bool // opened by a describe header
	hasBefore  bool
	emitted    bool
}

type gitWriter struct {
	ctx     context.Context
	deps    Deps
	out     strings.Builder
	changes []filechange.FileChange
	file    *p4File
}

func (c *PerforceToGit) Convert(ctx context.Context, r io.Reader) (*Conversion, error) {
	if r == nil {
		return nil, nil
	}

	tokens, err := p4diff.Tokens(r)
	if err != nil {
		return nil, fmt.Errorf("reading diff: %w", err)
	}

	w := &gitWriter{ctx: ctx, deps: c.deps, changes: make([]filechange.FileChange, 0)}
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case p4diff.Header:
			if err := w.finish(); err != nil {
				return nil, err
			}
			rel, err := w.relative(tok.Path, tok.Line)
			if err != nil {
				return nil, err
			}
			w.file = &p4File{depotPath: tok.Path, rev: tok.Rev, before: rel, after: rel, fromHeader: true}
		case p4diff.Move:
			if err := w.move(tok); err != nil {
				return nil, err
			}
		case p4diff.MovedFrom, p4diff.MovedTo:
		case p4diff.Before:
			if i+1 >= len(tokens) || tokens[i+1].Kind != p4diff.After {
				return nil, w.mismatch("before path without after path", tok)
			}
			if err := w.before(tok, tokens[i+1]); err != nil {
				return nil, err
			}
			i++
		case p4diff.After:
			return nil, w.mismatch("after path without before path", tok)
		case p4diff.HunkHeader:
			if err := w.hunk(tok, tokens[i+1:]); err != nil {
				return nil, err
			}
		default:
			// Describe preambles and blank separators are dropped.
			if tok.InHunk {
				w.emit(tok.Line)
			}
		}
	}
	if err := w.finish(); err != nil {
		return nil, err
	}

	c.deps.Logger.Debug("converted perforce diff", zap.Int("files", len(w.changes)))
	return &Conversion{Text: w.out.String(), Changes: w.changes}, nil
}

func (w *gitWriter) relative(p, line string) (string, error) {
	rel, ok := w.deps.Paths.Relative(p)
	if !ok {
		return "", errors.UnresolvedIdentity(p, line)
	}
	return rel, nil
}

// mismatch binds a grammar error to the working-tree path of tok, falling
// back to its raw path and then to the open file.
func (w *gitWriter) mismatch(message string, tok p4diff.Token) error {
	path := tok.Path
	if rel, ok := w.deps.Paths.Relative(tok.Path); ok && tok.Path != "" {
		path = rel
	}
	if path == "" && w.file != nil {
		path = w.file.after
	}
	return errors.GrammarMismatch(message, tok.Line).WithPath(path)
}

func (w *gitWriter) before(before, after p4diff.Token) error {
	beforeRel, err := w.relative(before.Path, before.Line)
	if err != nil {
		return err
	}
	afterRel, err := w.relative(after.Path, after.Line)
	if err != nil {
		return err
	}

	rev := before.Rev
	if f := w.file; f != nil && f.fromHeader && !f.hasBefore && !f.emitted {
		// The ---/+++ pair belongs to the describe header above it.
		if rev == p4diff.NoRevision {
			rev = f.rev
		}
		f.before, f.after, f.rev, f.hasBefore = beforeRel, afterRel, rev, true
		return nil
	}

	if err := w.finish(); err != nil {
		return err
	}
	if rev == p4diff.NoRevision {
		rev = 0
	}
	w.file = &p4File{depotPath: before.Path, rev: rev, before: beforeRel, after: afterRel, hasBefore: true}
	return nil
}

func (w *gitWriter) move(tok p4diff.Token) error {
	if err := w.finish(); err != nil {
		return err
	}
	from, err := w.relative(tok.Path, tok.Line)
	if err != nil {
		return err
	}
	to, err := w.relative(tok.To, tok.Line)
	if err != nil {
		return err
	}
	change, err := filechange.New(filechange.Perforce, filechange.Renamed, tok.Rev, from, to)
	if err != nil {
		return err
	}
	w.emit(Header{Change: change}.Lines()...)
	w.changes = append(w.changes, change)
	return nil
}

func (w *gitWriter) hunk(tok p4diff.Token, rest []p4diff.Token) error {
	f := w.file
	if f == nil {
		return w.mismatch("hunk without file header", tok)
	}
	if !f.emitted {
		t := filechange.Modified
		switch {
		case f.before != f.after:
			t = filechange.Renamed
		case tok.NewLines == 0:
			t = filechange.Deleted
		}
		if err := w.header(t, true, func() ([]byte, bool) { return deletedContent(tok, rest) }); err != nil {
			return err
		}
	}
	w.emit(tok.Line)
	return nil
}

// header writes the git header of the current file. content recovers the
// text of a deleted file when the hasher cannot read it.
func (w *gitWriter) header(t filechange.Type, hunks bool, content func() ([]byte, bool)) error {
	f := w.file
	paths := []string{f.after}
	if t == filechange.Renamed {
		paths = []string{f.before, f.after}
	}
	change, err := filechange.New(filechange.Perforce, t, max(f.rev, 0), paths...)
	if err != nil {
		return err
	}

	h := Header{Change: change, Hunks: hunks}
	if t == filechange.Deleted {
		h.OldID, err = w.deps.Hasher.HashObject(w.ctx, f.before)
		if err != nil {
			data, ok := content()
			if !ok {
				return fmt.Errorf("hashing deleted file %s: %w", f.before, err)
			}
			w.deps.Logger.Debug("hashing deleted file from its hunk",
				zap.String("path", f.before), zap.Error(err))
			h.OldID = plumbing.ComputeHash(plumbing.BlobObject, data).String()
		}
	}

	w.emit(h.Lines()...)
	w.changes = append(w.changes, change)
	f.emitted = true
	return nil
}

// finish closes the current file. A file without hunks only produces
// output when it moved.
func (w *gitWriter) finish() error {
	f := w.file
	w.file = nil
	if f == nil || f.emitted {
		return nil
	}
	if f.before == f.after {
		w.deps.Logger.Debug("no hunks for file", zap.String("path", f.after))
		return nil
	}
	w.file = f
	err := w.header(filechange.Renamed, false, nil)
	w.file = nil
	return err
}

func (w *gitWriter) emit(lines ...string) {
	for _, l := range lines {
		w.out.WriteString(l)
		w.out.WriteByte('\n')
	}
}

// deletedContent rebuilds a file from a deletion hunk that spans all of it.
func deletedContent(hunk p4diff.Token, rest []p4diff.Token) ([]byte, bool) {
	if !strings.HasPrefix(hunk.Line, "@@ -1,") && !strings.HasPrefix(hunk.Line, "@@ -1 ") {
		return nil, false
	}
	if len(rest) < hunk.OldLines {
		return nil, false
	}

	var b strings.Builder
	for _, tok := range rest[:hunk.OldLines] {
		line, ok := strings.CutPrefix(tok.Line, "-")
		if tok.Kind != p4diff.Body || !ok {
			return nil, false
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	content := b.String()

	tail := rest[hunk.OldLines:]
	if len(tail) > 0 && strings.HasPrefix(tail[0].Line, `\`) {
		content = strings.TrimSuffix(content, "\n")
		tail = tail[1:]
	}
	if len(tail) > 0 && tail[0].Kind == p4diff.HunkHeader {
		return nil, false
	}
	return []byte(content), true
}
