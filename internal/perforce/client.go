// Package perforce queries a p4 workspace through the p4 command line.
package perforce

import (
	"context"
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"go.uber.org/zap"

	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
	"patchbridge/internal/vcs"
)

// FileRevision locates a working-tree file in the depot.
type FileRevision struct {
	DepotFile  string
	ClientFile string
	// Rev is the have revision, 0 for files new to the depot.
	Rev int
}

// Options configures a Client.
type Options struct {
	Executable     string
	Dir            string // client root
	DepotPathDepth int
}

// Client runs p4 commands in a client workspace.
type Client struct {
	runner     vcs.Runner
	executable string
	paths      PathMapper
	logger     *zap.Logger
}

func NewClient(runner vcs.Runner, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Executable == "" {
		opts.Executable = "p4"
	}
	if opts.DepotPathDepth <= 0 {
		opts.DepotPathDepth = DefaultDepotPathDepth
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	root, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolving client root: %w", err)
	}

	return &Client{
		runner:     runner,
		executable: opts.Executable,
		paths:      PathMapper{Root: root, Depth: opts.DepotPathDepth},
		logger:     logger,
	}, nil
}

// Paths is the mapper for this client's root and depot depth.
func (c *Client) Paths() PathMapper {
	return c.paths
}

func (c *Client) run(ctx context.Context, okExit []int, args ...string) (string, error) {
	return c.runner.Run(ctx, vcs.Command{
		Dir:  c.paths.Root,
		Name: c.executable,
		Args: args,
		// p4 resolves relative file arguments against PWD.
		Env:         []string{"PWD=" + c.paths.Root},
		OKExitCodes: okExit,
	})
}

// FileInfo looks up depot files that already exist, keyed by the relative
// path they were asked for. Paths p4 does not know are absent from the map.
func (c *Client) FileInfo(ctx context.Context, paths []string) (map[string]FileRevision, error) {
	if len(paths) == 0 {
		return map[string]FileRevision{}, nil
	}

	args := append([]string{"-ztag", "fstat", "-T", "depotFile,clientFile,haveRev"}, paths...)
	// fstat exits 1 when some of the files are unknown.
	out, err := c.run(ctx, []int{1}, args...)
	if err != nil {
		return nil, fmt.Errorf("querying file info: %w", err)
	}

	records, err := parseTagged(out)
	if err != nil {
		return nil, fmt.Errorf("querying file info: %w", err)
	}

	result := make(map[string]FileRevision, len(paths))
	for _, rec := range records {
		rev := FileRevision{
			DepotFile:  rec["depotFile"],
			ClientFile: rec["clientFile"],
			Rev:        atoi(rec["haveRev"]),
		}
		rel, ok := c.relative(rec["clientFile"], rec["depotFile"])
		if !ok || rev.DepotFile == "" {
			c.logger.Debug("skipping fstat record", zap.String("depotFile", rev.DepotFile))
			continue
		}
		result[rel] = rev
	}
	return result, nil
}

// Where maps relative paths to depot paths through the client view,
// without requiring that the files exist in the depot.
func (c *Client) Where(ctx context.Context, paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return map[string]string{}, nil
	}

	args := append([]string{"-ztag", "where"}, paths...)
	out, err := c.run(ctx, []int{1}, args...)
	if err != nil {
		return nil, fmt.Errorf("querying client view: %w", err)
	}

	records, err := parseTagged(out)
	if err != nil {
		return nil, fmt.Errorf("querying client view: %w", err)
	}

	result := make(map[string]string, len(paths))
	for _, rec := range records {
		if _, unmapped := rec["unmap"]; unmapped {
			continue
		}
		rel, ok := c.relative(rec["path"], rec["depotFile"])
		if !ok || rec["depotFile"] == "" {
			continue
		}
		result[rel] = rec["depotFile"]
	}
	return result, nil
}

// OpenedChanges lists the files open in a pending changelist, in depot
// order. A move/add is joined with its source into a renamed change.
func (c *Client) OpenedChanges(ctx context.Context, changelist string) ([]filechange.FileChange, error) {
	out, err := c.run(ctx, nil, "-ztag", "fstat", "-Ro", "-e", changelist,
		"-T", "depotFile,clientFile,action,type,haveRev,movedFile", "//...")
	if err != nil {
		return nil, fmt.Errorf("listing changelist %s: %w", changelist, err)
	}

	records, err := parseTagged(out)
	if err != nil {
		return nil, fmt.Errorf("listing changelist %s: %w", changelist, err)
	}
	haveRevs := make(map[string]int, len(records))
	for _, rec := range records {
		haveRevs[rec["depotFile"]] = atoi(rec["haveRev"])
	}

	changes := make([]filechange.FileChange, 0, len(records))
	for _, rec := range records {
		change, err := c.openedChange(rec, haveRevs)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func (c *Client) openedChange(rec Record, haveRevs map[string]int) (filechange.FileChange, error) {
	action := rec["action"]
	t, err := filechange.FromActionKeyword(action)
	if err != nil {
		var pbErr *errors.Error
		if stderrors.As(err, &pbErr) {
			return filechange.FileChange{}, pbErr.WithPath(rec["depotFile"])
		}
		return filechange.FileChange{}, err
	}

	path, ok := c.relative(rec["clientFile"], rec["depotFile"])
	if !ok {
		return filechange.FileChange{}, errors.UnresolvedIdentity(rec["depotFile"], action)
	}

	var change filechange.FileChange
	switch t {
	case filechange.Renamed:
		source := rec["movedFile"]
		from, ok := c.paths.Relative(source)
		if source == "" || !ok {
			return filechange.FileChange{}, errors.UnresolvedIdentity(rec["depotFile"], "movedFile "+source)
		}
		change, err = filechange.New(filechange.Perforce, t, haveRevs[source], from, path)
	case filechange.Copied:
		// fstat carries no integration source, and p4 diff skips
		// branched files just like adds.
		change, err = filechange.New(filechange.Perforce, filechange.Added, 0, path)
	default:
		change, err = filechange.New(filechange.Perforce, t, atoi(rec["haveRev"]), path)
	}
	if err != nil {
		return filechange.FileChange{}, err
	}
	change.Mode = modeOf(rec["type"])
	return change, nil
}

// Diff runs "p4 diff -du" over opened files. binary forces diffs of
// binary files.
func (c *Client) Diff(ctx context.Context, paths []string, binary bool) (string, error) {
	if len(paths) == 0 {
		return "", nil
	}
	args := []string{"diff", "-du"}
	if binary {
		args = append(args, "-t")
	}
	args = append(args, paths...)

	out, err := c.run(ctx, nil, args...)
	if err != nil {
		return "", fmt.Errorf("diffing opened files: %w", err)
	}
	return out, nil
}

// Print writes the depot content of fileSpec, such as //depot/a.txt#3, to
// dest.
func (c *Client) Print(ctx context.Context, fileSpec, dest string) error {
	if _, err := c.run(ctx, nil, "print", "-q", "-o", dest, fileSpec); err != nil {
		return fmt.Errorf("printing %s: %w", fileSpec, err)
	}
	return nil
}

func (c *Client) relative(local, depot string) (string, bool) {
	if local != "" {
		if rel, ok := c.paths.Relative(local); ok {
			return rel, true
		}
	}
	if depot != "" {
		return c.paths.Relative(depot)
	}
	return "", false
}

// modeOf reads the executable and symlink bits of a p4 file type such as
// "text+x", "xtext" or "symlink".
func modeOf(fileType string) filemode.FileMode {
	base, mods, _ := strings.Cut(fileType, "+")
	switch {
	case base == "symlink":
		return filemode.Symlink
	case strings.Contains(mods, "x"), strings.HasPrefix(base, "x"):
		return filemode.Executable
	default:
		return filemode.Regular
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
