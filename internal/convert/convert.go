// Package convert translates change descriptions between git unified diffs
// and the diff dialect of Perforce changelists.
package convert

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"patchbridge/internal/filechange"
	"patchbridge/internal/perforce"
)

// TimestampLayout is how p4 stamps the after side of a diff.
const TimestampLayout = "2006/01/02 15:04:05"

type Direction int

const (
	ToPerforce Direction = iota + 1
	ToGit
)

func (d Direction) String() string {
	switch d {
	case ToPerforce:
		return "to-perforce"
	case ToGit:
		return "to-git"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Conversion is the translated text and the changes it describes.
type Conversion struct {
	Text    string
	Changes []filechange.FileChange
}

// Converter translates one diff dialect into the other. A nil reader
// yields a nil Conversion.
type Converter interface {
	Convert(ctx context.Context, r io.Reader) (*Conversion, error)
	Direction() Direction
}

// DepotResolver answers the depot identity queries of GitToPerforce.
type DepotResolver interface {
	FileInfo(ctx context.Context, paths []string) (map[string]perforce.FileRevision, error)
	Where(ctx context.Context, paths []string) (map[string]string, error)
}

// ObjectHasher computes git blob ids for working-tree paths.
type ObjectHasher interface {
	HashObject(ctx context.Context, path string) (string, error)
}

// Deps are the collaborators a converter may query.
type Deps struct {
	Resolver DepotResolver
	Hasher   ObjectHasher
	Paths    perforce.PathMapper
	// Now stamps synthesized after lines. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Paths.Depth <= 0 {
		d.Paths.Depth = perforce.DefaultDepotPathDepth
	}
	return d
}

// New returns the converter for direction.
func New(direction Direction, deps Deps) (Converter, error) {
	switch direction {
	case ToPerforce:
		if deps.Resolver == nil {
			return nil, fmt.Errorf("%s needs a depot resolver", direction)
		}
		return NewGitToPerforce(deps), nil
	case ToGit:
		if deps.Hasher == nil {
			return nil, fmt.Errorf("%s needs an object hasher", direction)
		}
		return NewPerforceToGit(deps), nil
	default:
		return nil, fmt.Errorf("unknown conversion direction %d", int(direction))
	}
}
