// Package watch regenerates a changelist diff whenever the client
// workspace changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Generator produces the diff to write out.
type Generator func(ctx context.Context) (string, error)

type Options struct {
	Root     string
	Output   string
	Debounce time.Duration
}

// Watcher watches every directory under Root and rewrites Output with a
// fresh diff once events stop arriving for Debounce.
type Watcher struct {
	root       string
	output     string
	debounce   time.Duration
	generate   Generator
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool
	logger     *zap.Logger
}

func New(opts Options, generate Generator, logger *zap.Logger) (*Watcher, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("output file is required")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving output: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		output:   output,
		debounce: opts.Debounce,
		generate: generate,
		watcher:  watcher,
		ignoreDirs: map[string]bool{
			".git":         true,
			"node_modules": true,
			"vendor":       true,
		},
		logger: logger,
	}

	if err := w.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree adds dir and every directory below it that is not ignored.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ShouldIgnore(w.rel(path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run writes the output once, then again after each burst of relevant
// events, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.regenerate(ctx); err != nil {
		return err
	}

	// Nil until an event arrives; each event restarts the quiet period.
	var quiet <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(event) {
				continue
			}
			quiet = time.After(w.debounce)

		case <-quiet:
			quiet = nil
			if err := w.regenerate(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Error("regenerating diff", zap.Error(err))
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleEvent reports whether event should trigger a regeneration.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	if event.Name == w.output || event.Name == w.tmpPath() {
		return false
	}
	rel := w.rel(event.Name)
	if w.ShouldIgnore(rel) {
		return false
	}
	if event.Op == fsnotify.Chmod {
		return false
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
		}
	}

	w.logger.Debug("workspace changed", zap.String("path", rel), zap.String("op", event.Op.String()))
	return true
}

func (w *Watcher) regenerate(ctx context.Context) error {
	out, err := w.generate(ctx)
	if err != nil {
		return fmt.Errorf("generating diff: %w", err)
	}

	tmp := w.tmpPath()
	if err := os.WriteFile(tmp, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.Rename(tmp, w.output); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing output: %w", err)
	}

	w.logger.Info("diff written", zap.String("path", w.output), zap.Int("bytes", len(out)))
	return nil
}

// ShouldIgnore reports whether a root-relative path lies in an ignored or
// hidden directory.
func (w *Watcher) ShouldIgnore(rel string) bool {
	if rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignoreDirs[part] || strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func (w *Watcher) tmpPath() string {
	return filepath.Join(filepath.Dir(w.output), "."+filepath.Base(w.output)+".tmp")
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return ""
	}
	return rel
}

// Close releases the watcher when Run was never called.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
