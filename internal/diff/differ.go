package diff

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"

	"patchbridge/internal/vcs"
)

// sniffSize covers both filetype's magic-number window and git's NUL check.
const sniffSize = 8000

// FileDiffer produces a unified diff between two files on disk. An empty
// result means the files are identical.
type FileDiffer interface {
	DiffFiles(ctx context.Context, oldPath, newPath string) (string, error)
}

// ExecDiffer shells out to an external diff(1).
type ExecDiffer struct {
	runner     vcs.Runner
	executable string
}

// NewExecDiffer returns a differ that runs executable -u.
func NewExecDiffer(runner vcs.Runner, executable string) *ExecDiffer {
	if executable == "" {
		executable = "diff"
	}
	return &ExecDiffer{runner: runner, executable: executable}
}

func (d *ExecDiffer) DiffFiles(ctx context.Context, oldPath, newPath string) (string, error) {
	// diff exits 1 when the files differ.
	return d.runner.Run(ctx, vcs.Command{
		Name:        d.executable,
		Args:        []string{"-u", oldPath, newPath},
		OKExitCodes: []int{1},
	})
}

// BuiltinDiffer diffs in process with Engine.
type BuiltinDiffer struct {
	engine *Engine
}

func NewBuiltinDiffer(contextLines int) *BuiltinDiffer {
	return &BuiltinDiffer{engine: NewEngine(contextLines)}
}

func (d *BuiltinDiffer) DiffFiles(ctx context.Context, oldPath, newPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	oldContent, err := os.ReadFile(oldPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", oldPath, err)
	}
	newContent, err := os.ReadFile(newPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", newPath, err)
	}

	if bytes.Equal(oldContent, newContent) {
		return "", nil
	}
	if IsBinary(oldContent) || IsBinary(newContent) {
		return fmt.Sprintf("Binary files %s and %s differ\n", oldPath, newPath), nil
	}

	result, err := d.engine.Diff(oldContent, newContent)
	if err != nil {
		return "", err
	}
	return result.Unified(oldPath, newPath), nil
}

// IsBinary reports whether content looks like a non-text file, either by
// a known magic number or by a NUL byte near the start.
func IsBinary(content []byte) bool {
	head := content
	if len(head) > sniffSize {
		head = head[:sniffSize]
	}
	if filetype.IsImage(head) || filetype.IsVideo(head) || filetype.IsAudio(head) ||
		filetype.IsArchive(head) || filetype.IsDocument(head) {
		return true
	}
	return bytes.IndexByte(head, 0) >= 0
}

// IsBinaryFile applies IsBinary to the head of the file at path.
func IsBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return IsBinary(head[:n]), nil
}

// New picks a FileDiffer by engine name: "exec" or "builtin".
func New(engine string, runner vcs.Runner, executable string, contextLines int) (FileDiffer, error) {
	switch engine {
	case "", "exec":
		return NewExecDiffer(runner, executable), nil
	case "builtin":
		return NewBuiltinDiffer(contextLines), nil
	default:
		return nil, fmt.Errorf("unknown diff engine %q", engine)
	}
}
