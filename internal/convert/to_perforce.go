package convert

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
	"patchbridge/internal/gitdiff"
)

// GitToPerforce turns a git diff into the review diff format used in
// changelist descriptions, with depot paths and revisions.
type GitToPerforce struct {
	deps Deps
}

func NewGitToPerforce(deps Deps) *GitToPerforce {
	return &GitToPerforce{deps: deps.withDefaults()}
}

func (c *GitToPerforce) Direction() Direction {
	return ToPerforce
}

// Convert drafts the output with pending depot references, resolves them
// with one file info and one where query, then renders the text.
func (c *GitToPerforce) Convert(ctx context.Context, r io.Reader) (*Conversion, error) {
	if r == nil {
		return nil, nil
	}

	tokens, err := gitdiff.Tokens(r)
	if err != nil {
		return nil, fmt.Errorf("reading diff: %w", err)
	}

	b := &draftBuilder{stamp: c.deps.Now().Format(TimestampLayout), logger: c.deps.Logger}
	if err := b.build(tokens); err != nil {
		return nil, err
	}

	mapping, err := c.resolve(ctx, b)
	if err != nil {
		return nil, err
	}

	out, err := b.draft.Render(mapping)
	if err != nil {
		return nil, err
	}

	for i := range b.changes {
		if entry, ok := mapping[b.changes[i].FromPath()]; ok && b.changes[i].Type != filechange.Added {
			b.changes[i].Version = entry.Rev
		}
	}

	c.deps.Logger.Debug("converted git diff",
		zap.Int("files", len(b.changes)),
		zap.Int("lines", len(b.draft.Lines)))

	return &Conversion{Text: out, Changes: b.changes}, nil
}

func (c *GitToPerforce) resolve(ctx context.Context, b *draftBuilder) (DepotMapping, error) {
	mapping := make(DepotMapping, len(b.existing)+len(b.destinations))

	if len(b.existing) > 0 {
		info, err := c.deps.Resolver.FileInfo(ctx, b.existing)
		if err != nil {
			return nil, fmt.Errorf("resolving depot files: %w", err)
		}
		for _, p := range b.existing {
			if rev, ok := info[p]; ok {
				mapping[p] = DepotEntry{DepotPath: rev.DepotFile, Rev: rev.Rev}
			}
		}
	}

	if len(b.destinations) > 0 {
		where, err := c.deps.Resolver.Where(ctx, b.destinations)
		if err != nil {
			return nil, fmt.Errorf("resolving new depot files: %w", err)
		}
		for _, p := range b.destinations {
			if depotPath, ok := where[p]; ok {
				mapping[p] = DepotEntry{DepotPath: depotPath}
			}
		}
	}
	return mapping, nil
}

// draftBuilder is the first pass of GitToPerforce.
type draftBuilder struct {
	stamp   string
	logger  *zap.Logger
	draft   Draft
	changes []filechange.FileChange

	// existing paths are looked up with fstat, destinations with where.
	existing     []string
	destinations []string
	seen         map[string]bool

	file fileHeader
}

// fileHeader collects the extended header lines of the current file.
type fileHeader struct {
	command    string
	similarity int
	hasSim     bool
	renameFrom string
	renameTo   string
	moved      bool // rename with edits, ---/+++ still to come
	handled    bool // a change was recorded for this file
	newFile    bool
	deleted    bool
	binary     bool // content not printed; later body lines are dropped
}

// path is the file the header names, empty before it is known.
func (f fileHeader) path() string {
	if f.renameTo != "" {
		return f.renameTo
	}
	if p, ok := commandPath(f.command); ok {
		return p
	}
	if i := strings.LastIndex(f.command, " b/"); i >= 0 {
		return f.command[i+3:]
	}
	return ""
}

// mismatch binds a grammar error to the current file, or to the path of
// tok when no file header has been read.
func (b *draftBuilder) mismatch(message string, tok gitdiff.Token) error {
	path := b.file.path()
	if path == "" && tok.Path != gitdiff.DevNull {
		path = tok.Path
	}
	return errors.GrammarMismatch(message, tok.Line).WithPath(path)
}

func (b *draftBuilder) build(tokens []gitdiff.Token) error {
	b.changes = make([]filechange.FileChange, 0)
	b.seen = make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case gitdiff.DiffCommand:
			if err := b.finishFile(); err != nil {
				return err
			}
			b.file = fileHeader{command: tok.Line}
		case gitdiff.Index, gitdiff.OldMode, gitdiff.NewMode:
		case gitdiff.NewFileMode:
			b.file.newFile = true
		case gitdiff.DeletedFileMode:
			b.file.deleted = true
		case gitdiff.Similarity:
			b.file.similarity, b.file.hasSim = tok.Percent, true
		case gitdiff.RenameFrom:
			b.file.renameFrom = tok.Path
		case gitdiff.RenameTo:
			if err := b.rename(tok); err != nil {
				return err
			}
		case gitdiff.CopyFrom, gitdiff.CopyTo:
			return b.mismatch("copies have no changelist equivalent", tok)
		case gitdiff.Binary:
			if err := b.binary(tok); err != nil {
				return err
			}
		case gitdiff.OldFile:
			if i+1 >= len(tokens) || tokens[i+1].Kind != gitdiff.NewFile {
				return b.mismatch("before path without after path", tok)
			}
			if err := b.paths(tok, tokens[i+1]); err != nil {
				return err
			}
			i++
		case gitdiff.NewFile:
			return b.mismatch("after path without before path", tok)
		default:
			if b.file.binary {
				continue
			}
			b.draft.add(text(tok.Line))
		}
	}
	return b.finishFile()
}

func (b *draftBuilder) rename(tok gitdiff.Token) error {
	f := &b.file
	f.renameTo = tok.Path
	if f.renameFrom == "" {
		return b.mismatch("rename to without rename from", tok)
	}
	if !f.hasSim {
		return b.mismatch("rename without similarity index", tok)
	}

	if f.similarity == 100 {
		b.draft.add(text("==== "), depotRev(f.renameFrom), text(" ==MV== "), depot(f.renameTo), text(" ===="))
		if err := b.record(filechange.Renamed, f.renameFrom, f.renameTo); err != nil {
			return err
		}
	} else {
		b.draft.add(text("Moved from: "), depot(f.renameFrom))
		b.draft.add(text("Moved to: "), depot(f.renameTo))
		if err := b.record(filechange.RenamedAndModified, f.renameFrom, f.renameTo); err != nil {
			return err
		}
		f.moved = true
	}
	b.need(&b.existing, f.renameFrom)
	b.need(&b.destinations, f.renameTo)
	f.handled = true
	return nil
}

// paths handles a ---/+++ pair.
func (b *draftBuilder) paths(oldTok, newTok gitdiff.Token) error {
	f := &b.file
	switch {
	case f.moved:
		b.fileLines(f.renameFrom, f.renameTo)
		f.moved = false
		return nil
	case f.hasSim && !f.handled:
		return b.mismatch("similarity index without rename", oldTok)
	case oldTok.IsNull() && newTok.IsNull():
		return b.mismatch("both sides point at "+gitdiff.DevNull, newTok)
	case oldTok.IsNull():
		b.need(&b.destinations, newTok.Path)
		b.fileLines(newTok.Path, newTok.Path)
		f.handled = true
		return b.record(filechange.Added, newTok.Path)
	case newTok.IsNull():
		b.need(&b.existing, oldTok.Path)
		b.fileLines(oldTok.Path, oldTok.Path)
		f.handled = true
		return b.record(filechange.Deleted, oldTok.Path)
	default:
		b.need(&b.existing, newTok.Path)
		b.fileLines(newTok.Path, newTok.Path)
		f.handled = true
		return b.record(filechange.Modified, newTok.Path)
	}
}

// finishFile covers files whose diff has no ---/+++ lines, such as empty
// adds and deletes.
func (b *draftBuilder) finishFile() error {
	f := b.file
	if f.hasSim && !f.handled {
		return errors.GrammarMismatch("similarity index without rename", f.command).WithPath(f.path())
	}
	if f.handled || (!f.newFile && !f.deleted) {
		return nil
	}

	path, ok := commandPath(f.command)
	if !ok {
		return errors.GrammarMismatch("cannot read path of diff command", f.command)
	}
	if f.newFile {
		b.need(&b.destinations, path)
		b.fileLines(path, path)
		return b.record(filechange.Added, path)
	}
	b.need(&b.existing, path)
	b.fileLines(path, path)
	return b.record(filechange.Deleted, path)
}

// binary records a file git printed no content for. The binary line is
// carried through as text, the review format having no binary form.
func (b *draftBuilder) binary(tok gitdiff.Token) error {
	f := &b.file
	f.binary = true

	switch {
	case f.moved:
		b.fileLines(f.renameFrom, f.renameTo)
		f.moved = false
	case !f.handled:
		path, ok := commandPath(f.command)
		if !ok {
			return b.mismatch("cannot read path of binary file", tok)
		}
		t, bucket := filechange.Modified, &b.existing
		switch {
		case f.newFile:
			t, bucket = filechange.Added, &b.destinations
		case f.deleted:
			t = filechange.Deleted
		}
		b.need(bucket, path)
		b.fileLines(path, path)
		if err := b.record(t, path); err != nil {
			return err
		}
		f.handled = true
	}

	b.draft.add(text(tok.Line))
	b.logger.Debug("binary file carried without content", zap.String("path", f.path()))
	return nil
}

// fileLines writes the before and after lines of the review format.
func (b *draftBuilder) fileLines(from, to string) {
	b.draft.add(text("--- "), depot(from), text("\t"), depotRev(from))
	b.draft.add(text("+++ "), depot(to), text("\t"+b.stamp))
}

func (b *draftBuilder) record(t filechange.Type, paths ...string) error {
	change, err := filechange.New(filechange.Git, t, 0, paths...)
	if err != nil {
		return err
	}
	b.changes = append(b.changes, change)
	return nil
}

func (b *draftBuilder) need(bucket *[]string, path string) {
	if b.seen[path] {
		return
	}
	b.seen[path] = true
	*bucket = append(*bucket, path)
}

// commandPath reads the path of "diff --git a/p b/p" when both sides name
// the same file.
func commandPath(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "diff --git ")
	if !ok || len(rest) < 5 || len(rest)%2 == 0 {
		return "", false
	}
	half := (len(rest) - 1) / 2
	a, bSide := rest[:half], rest[half+1:]
	if !strings.HasPrefix(a, "a/") || !strings.HasPrefix(bSide, "b/") || a[2:] != bSide[2:] {
		return "", false
	}
	return a[2:], true
}

// Draft runs only the first pass, for inspecting output before any depot
// query is made.
func (c *GitToPerforce) Draft(r io.Reader) (*Draft, []filechange.FileChange, error) {
	tokens, err := gitdiff.Tokens(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading diff: %w", err)
	}
	b := &draftBuilder{stamp: c.deps.Now().Format(TimestampLayout), logger: c.deps.Logger}
	if err := b.build(tokens); err != nil {
		return nil, nil, err
	}
	return &b.draft, b.changes, nil
}
