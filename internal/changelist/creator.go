// Package changelist rebuilds a pending Perforce changelist as one git diff,
// filling in the whole-file content that p4 diff leaves out.
package changelist

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"patchbridge/internal/convert"
	"patchbridge/internal/diff"
	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
	"patchbridge/internal/p4diff"
	"patchbridge/internal/perforce"
)

// DefaultWorkers bounds the synthetic diffs that run at once.
const DefaultWorkers = 8

// Source is the part of the p4 client the creator needs.
type Source interface {
	OpenedChanges(ctx context.Context, changelist string) ([]filechange.FileChange, error)
	Diff(ctx context.Context, paths []string, binary bool) (string, error)
	Print(ctx context.Context, fileSpec, dest string) error
}

type Options struct {
	Workers int
	// BinaryDiff passes -t to p4 diff.
	BinaryDiff bool
	// TempDir holds the comparison files, os.TempDir() when empty.
	TempDir string
}

// Creator turns a pending changelist into a git diff.
type Creator struct {
	source Source
	differ diff.FileDiffer
	hasher convert.ObjectHasher
	paths  perforce.PathMapper
	opts   Options
	logger *zap.Logger
}

func NewCreator(source Source, differ diff.FileDiffer, hasher convert.ObjectHasher,
	paths perforce.PathMapper, opts Options, logger *zap.Logger) *Creator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Creator{
		source: source,
		differ: differ,
		hasher: hasher,
		paths:  paths,
		opts:   opts,
		logger: logger,
	}
}

// Create diffs every file open in changelist. An empty changelist yields
// "".
func (c *Creator) Create(ctx context.Context, changelist string) (string, error) {
	changes, err := c.source.OpenedChanges(ctx, changelist)
	if err != nil {
		return "", err
	}
	if len(changes) == 0 {
		c.logger.Warn("changelist has no open files", zap.String("changelist", changelist))
		return "", nil
	}
	return c.CreateFromChanges(ctx, changes)
}

// CreateFromChanges diffs an already listed changelist. Fragments come out
// in the order of changes.
func (c *Creator) CreateFromChanges(ctx context.Context, changes []filechange.FileChange) (string, error) {
	if len(changes) == 0 {
		c.logger.Warn("changelist has no open files")
		return "", nil
	}

	fragments := make([]string, len(changes))

	var plain, whole []int
	for i, change := range changes {
		switch {
		case change.IsWholeFile():
			whole = append(whole, i)
		case change.Type == filechange.DeletedAfterRename:
			// Covered by the rename it belongs to.
		default:
			plain = append(plain, i)
		}
	}

	if err := c.plainFragments(ctx, changes, plain, fragments); err != nil {
		return "", err
	}
	if err := c.wholeFileFragments(ctx, changes, whole, fragments); err != nil {
		return "", err
	}

	return strings.Join(fragments, ""), nil
}

// plainFragments runs one p4 diff over every plain change and splices a
// git header in front of each file's hunks.
func (c *Creator) plainFragments(ctx context.Context, changes []filechange.FileChange, plain []int, fragments []string) error {
	if len(plain) == 0 {
		return nil
	}

	byPath := make(map[string]int, len(plain))
	paths := make([]string, 0, len(plain))
	for _, i := range plain {
		p := changes[i].Path()
		byPath[p] = i
		paths = append(paths, p)
	}

	out, err := c.source.Diff(ctx, paths, c.opts.BinaryDiff)
	if err != nil {
		return err
	}

	tokens, err := p4diff.Tokens(strings.NewReader(out))
	if err != nil {
		return fmt.Errorf("reading p4 diff: %w", err)
	}

	bodies := make(map[int]*strings.Builder, len(plain))
	current := -1
	for _, tok := range tokens {
		switch {
		case tok.Kind == p4diff.Header:
			// "==== //depot/p#3 - /ws/p ====" opens a file when its depot
			// path maps into the changelist; the +++ line decides otherwise.
			current = -1
			if rel, ok := c.paths.Relative(tok.Path); ok {
				if i, ok := byPath[rel]; ok {
					current = i
					if bodies[i] == nil {
						bodies[i] = &strings.Builder{}
					}
				}
			}
		case tok.Kind == p4diff.After:
			rel, ok := c.paths.Relative(tok.Path)
			if !ok {
				return errors.UnresolvedIdentity(tok.Path, tok.Line)
			}
			i, ok := byPath[rel]
			if !ok {
				return errors.UnresolvedIdentity(rel, tok.Line)
			}
			current = i
			if bodies[i] == nil {
				bodies[i] = &strings.Builder{}
			}
		case tok.Kind == p4diff.HunkHeader, tok.InHunk:
			if current < 0 {
				return errors.GrammarMismatch("hunk without file header", tok.Line)
			}
			bodies[current].WriteString(tok.Line)
			bodies[current].WriteByte('\n')
		case isPlaceholder(tok.Line):
			c.logger.Debug("dropping p4 diff placeholder", zap.String("line", tok.Line))
		}
	}

	for _, i := range plain {
		change := changes[i]
		body, ok := bodies[i]
		if !ok || body.Len() == 0 {
			// A pure move still has to show up as a rename.
			if change.Type == filechange.Renamed || change.Type == filechange.RenamedAndModified {
				fragments[i] = convert.Header{Change: change}.String()
			}
			continue
		}
		fragments[i] = convert.Header{Change: change, Hunks: true}.String() + body.String()
	}
	return nil
}

// isPlaceholder matches the lines p4 diff prints instead of content.
func isPlaceholder(line string) bool {
	return line == "No differing files." ||
		strings.HasSuffix(line, " - file(s) not opened for edit.") ||
		strings.HasSuffix(line, " - file(s) not opened on this client.")
}

// wholeFileFragments diffs added and deleted files against an empty
// baseline, one pool task per file.
func (c *Creator) wholeFileFragments(ctx context.Context, changes []filechange.FileChange, whole []int, fragments []string) error {
	if len(whole) == 0 {
		return nil
	}

	empty, err := c.tempFile("patchbridge-empty-*")
	if err != nil {
		return err
	}
	defer c.remove(empty)

	pool := pond.New(c.opts.Workers, 0, pond.MinWorkers(1))
	defer pool.StopAndWait()

	group, groupCtx := pool.GroupContext(ctx)
	for _, i := range whole {
		group.Submit(func() error {
			fragment, err := c.wholeFile(groupCtx, changes[i], empty)
			if err != nil {
				return err
			}
			fragments[i] = fragment
			return nil
		})
	}
	return group.Wait()
}

func (c *Creator) wholeFile(ctx context.Context, change filechange.FileChange, empty string) (string, error) {
	if change.Type == filechange.Deleted {
		return c.deletedFile(ctx, change, empty)
	}
	return c.addedFile(ctx, change, empty)
}

func (c *Creator) addedFile(ctx context.Context, change filechange.FileChange, empty string) (string, error) {
	local := c.paths.Local(change.Path())

	binary, err := diff.IsBinaryFile(local)
	if err != nil {
		return "", fmt.Errorf("sniffing added file %s: %w", change.Path(), err)
	}
	var body string
	if !binary {
		out, err := c.differ.DiffFiles(ctx, empty, local)
		if err != nil {
			return "", fmt.Errorf("diffing added file %s: %w", change.Path(), err)
		}
		body, binary = hunkBody(out)
	}
	if body == "" && !binary {
		c.logger.Info("added file is empty, skipping", zap.String("path", change.Path()))
		return "", nil
	}

	newID, err := c.hasher.HashObject(ctx, change.Path())
	if err != nil {
		return "", fmt.Errorf("hashing added file %s: %w", change.Path(), err)
	}
	h := convert.Header{Change: change, NewID: newID, Hunks: !binary, Binary: binary}
	return h.String() + body, nil
}

func (c *Creator) deletedFile(ctx context.Context, change filechange.FileChange, empty string) (string, error) {
	compare, err := c.tempFile("patchbridge-delete-*")
	if err != nil {
		return "", err
	}
	defer c.remove(compare)

	if err := c.source.Print(ctx, c.fileSpec(change), compare); err != nil {
		return "", err
	}

	out, err := c.differ.DiffFiles(ctx, compare, empty)
	if err != nil {
		return "", fmt.Errorf("diffing deleted file %s: %w", change.Path(), err)
	}
	oldID, err := c.hasher.HashObject(ctx, compare)
	if err != nil {
		return "", fmt.Errorf("hashing deleted file %s: %w", change.Path(), err)
	}

	body, binary := hunkBody(out)
	h := convert.Header{Change: change, OldID: oldID, Hunks: body != "", Binary: binary}
	return h.String() + body, nil
}

// fileSpec names the have revision of a change in client syntax.
func (c *Creator) fileSpec(change filechange.FileChange) string {
	rev := "have"
	if change.Version > 0 {
		rev = strconv.Itoa(change.Version)
	}
	return c.paths.Local(change.Path()) + "#" + rev
}

// hunkBody drops the ---/+++ lines of a diff -u result.
func hunkBody(out string) (string, bool) {
	if strings.HasPrefix(out, "Binary files ") || strings.Contains(out, "\nBinary files ") {
		return "", true
	}

	var body string
	switch i := strings.Index(out, "\n@@ "); {
	case strings.HasPrefix(out, "@@ "):
		body = out
	case i >= 0:
		body = out[i+1:]
	default:
		return "", false
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, false
}

func (c *Creator) tempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(c.opts.TempDir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		c.remove(name)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return name, nil
}

func (c *Creator) remove(path string) {
	if err := os.Remove(path); err != nil {
		c.logger.Warn("failed to delete temp file", zap.String("path", path), zap.Error(err))
	}
}
