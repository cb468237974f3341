package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5/plumbing"
)

// ObjectHasher computes git blob ids for working-tree files.
type ObjectHasher interface {
	HashObject(ctx context.Context, path string) (string, error)
}

// BlobHasher hashes files in process the way "git hash-object" does,
// without filters.
type BlobHasher struct {
	root string
}

func NewBlobHasher(root string) *BlobHasher {
	return &BlobHasher{root: root}
}

func (h *BlobHasher) HashObject(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.FromSlash(path)
	if !filepath.IsAbs(full) {
		full = filepath.Join(h.root, full)
	}

	info, err := os.Lstat(full)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	var content []byte
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(full)
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", path, err)
		}
		content = []byte(target)
	} else if content, err = os.ReadFile(full); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return plumbing.ComputeHash(plumbing.BlobObject, content).String(), nil
}

// HashContent is the blob id of content.
func HashContent(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// NewHasher picks an ObjectHasher: "builtin" hashes in process, "exec"
// runs git through client.
func NewHasher(kind string, client *Client, root string) (ObjectHasher, error) {
	switch kind {
	case "", "builtin":
		return NewBlobHasher(root), nil
	case "exec":
		return client, nil
	default:
		return nil, fmt.Errorf("unknown git hasher %q", kind)
	}
}
