package perforce

import (
	"path/filepath"
	"strings"

	"patchbridge/internal/p4diff"
)

// DefaultDepotPathDepth strips "//depot/project/" from depot paths.
const DefaultDepotPathDepth = 4

// PathMapper turns depot and local paths into working-tree relative ones.
type PathMapper struct {
	Root  string // client root, absolute
	Depth int    // "/"-separated elements dropped from depot paths
}

// Relative maps a depot path by depth and a local path against the root.
func (m PathMapper) Relative(p string) (string, bool) {
	if p4diff.IsDepotPath(p) {
		depth := m.Depth
		if depth <= 0 {
			depth = DefaultDepotPathDepth
		}
		return p4diff.RelativePath(p, depth)
	}
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p)), true
	}
	if m.Root == "" {
		return "", false
	}
	rel, err := filepath.Rel(m.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Local is the absolute working-tree location of a relative path.
func (m PathMapper) Local(rel string) string {
	return filepath.Join(m.Root, filepath.FromSlash(rel))
}
