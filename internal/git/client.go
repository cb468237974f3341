// Package git queries a git working tree.
package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"patchbridge/internal/filechange"
	"patchbridge/internal/vcs"
)

// Client runs git commands in a working tree.
type Client struct {
	runner     vcs.Runner
	executable string
	root       string
	logger     *zap.Logger
}

func NewClient(runner vcs.Runner, executable, root string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if executable == "" {
		executable = "git"
	}
	return &Client{runner: runner, executable: executable, root: root, logger: logger}
}

// HashObject returns the blob id git would store for the file at path.
func (c *Client) HashObject(ctx context.Context, path string) (string, error) {
	out, err := c.runner.Run(ctx, vcs.Command{
		Dir:  c.root,
		Name: c.executable,
		Args: []string{"hash-object", "--", filepath.ToSlash(path)},
	})
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return strings.TrimSpace(out), nil
}

// StatusChanges lists tracked changes in the working tree. Untracked and
// ignored files are left out.
func (c *Client) StatusChanges(ctx context.Context) ([]filechange.FileChange, error) {
	out, err := c.runner.Run(ctx, vcs.Command{
		Dir:  c.root,
		Name: c.executable,
		Args: []string{"status", "--porcelain=v1", "-z"},
	})
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}
	return parseStatus(out)
}

// parseStatus reads "git status --porcelain -z" entries: "XY path", with
// renames and copies followed by their source as a separate entry.
func parseStatus(out string) ([]filechange.FileChange, error) {
	entries := strings.Split(out, "\x00")
	var changes []filechange.FileChange

	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		if len(entry) < 4 {
			continue
		}
		xy, path := entry[:2], entry[3:]
		if xy == "??" || xy == "!!" {
			continue
		}

		t, err := statusType(xy)
		if err != nil {
			return nil, err
		}

		paths := []string{path}
		if t.Arity() == 2 {
			if i+1 >= len(entries) {
				return nil, fmt.Errorf("status entry %q has no source path", entry)
			}
			i++
			paths = []string{entries[i], path}
		}

		change, err := filechange.New(filechange.Git, t, 0, paths...)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// statusType folds the index and worktree columns into one status code.
func statusType(xy string) (filechange.Type, error) {
	code := strings.TrimSpace(xy)
	if len(code) == 2 && code[0] == code[1] {
		code = code[:1]
	}
	t, err := filechange.FromStatusCode(code)
	if err == nil || len(code) == 1 {
		return t, err
	}
	return filechange.FromStatusCode(code[:1])
}
