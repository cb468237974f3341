package filechange

import (
	"fmt"
	"slices"

	"patchbridge/internal/errors"

	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Origin identifies the system a FileChange was read from.
type Origin int

const (
	Git Origin = iota + 1
	Perforce
)

func (o Origin) String() string {
	switch o {
	case Git:
		return "git"
	case Perforce:
		return "perforce"
	default:
		return "unknown"
	}
}

// FileChange represents one file-level change within a diff or changelist.
type FileChange struct {
	Origin  Origin
	Type    Type
	Paths   []string // from-path then to-path for two-path types
	Version int      // base revision; 0 means no prior revision
	// Mode is set only for records serialized into git output.
	Mode filemode.FileMode
}

// New builds a FileChange, checking the path count against the type.
func New(origin Origin, t Type, version int, paths ...string) (FileChange, error) {
	c := FileChange{
		Origin:  origin,
		Type:    t,
		Paths:   slices.Clone(paths),
		Version: version,
	}
	if err := c.Validate(); err != nil {
		return FileChange{}, err
	}
	return c, nil
}

// Validate checks the record's invariants.
func (c FileChange) Validate() error {
	if _, ok := types[c.Type]; !ok {
		return errors.InvalidChange(fmt.Sprintf("unknown change type %d", int(c.Type)), "")
	}
	if len(c.Paths) == 0 {
		return errors.InvalidChange("change names no files", "")
	}
	if len(c.Paths) != c.Type.Arity() {
		return errors.InvalidChange(
			fmt.Sprintf("%s expects %d path(s), got %d", c.Type, c.Type.Arity(), len(c.Paths)),
			c.Paths[0])
	}
	if c.Version < 0 {
		return errors.InvalidChange(fmt.Sprintf("negative file version %d", c.Version), c.Paths[0])
	}
	return nil
}

// Path is the path the change leaves behind: the to-path for renames and
// copies, the only path otherwise.
func (c FileChange) Path() string {
	return c.Paths[len(c.Paths)-1]
}

// FromPath is the path the change starts from.
func (c FileChange) FromPath() string {
	return c.Paths[0]
}

// ModeString renders the mode the way git headers do, defaulting to a
// regular file.
func (c FileChange) ModeString() string {
	m := c.Mode
	if m == filemode.Empty {
		m = filemode.Regular
	}
	return fmt.Sprintf("%06o", uint32(m))
}

func (c FileChange) String() string {
	return c.Type.Describe(c.Paths...)
}

// Equal compares two records field by field, origin included.
func (c FileChange) Equal(o FileChange) bool {
	return c.Origin == o.Origin &&
		c.Type == o.Type &&
		c.Version == o.Version &&
		slices.Equal(c.Paths, o.Paths)
}

// NarrowedType is the type as seen from the target origin. Only a git
// renamedAndModified is narrowed, to renamed, when viewed from perforce.
func (c FileChange) NarrowedType(target Origin) Type {
	if c.Origin == Git && target == Perforce && c.Type == RenamedAndModified {
		return Renamed
	}
	return c.Type
}

// EqualNarrowed compares records that may come from different systems.
// Versions are ignored across origins since git records carry none.
func (c FileChange) EqualNarrowed(o FileChange) bool {
	if c.Origin == o.Origin {
		return c.Equal(o)
	}
	return c.NarrowedType(o.Origin) == o.NarrowedType(c.Origin) &&
		slices.Equal(c.Paths, o.Paths)
}

// IsWholeFile reports whether p4 diff omits this change's content.
func (c FileChange) IsWholeFile() bool {
	switch c.Type {
	case Added, AddedAndModified, Deleted:
		return true
	}
	return false
}
