// Package emitter writes encoded document trees to disk. A call either
// writes every changed file of a tree or leaves the output directory as it
// found it.
package emitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/document"
	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/storage"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

const (
	fileMode = 0644
	dirMode  = 0755
)

// EmitError is returned when a tree cannot be encoded or written. Nothing
// from the failed call remains on disk.
type EmitError struct {
	Format model.Format
	// Path is the file that failed, relative to the output directory
	Path string
	Err  error
}

// Error implements the error interface
func (e *EmitError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("emit %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("emit %s: %s: %v", e.Format, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *EmitError) Unwrap() error {
	return e.Err
}

// Result lists what an emission did. Paths are relative to Dir and use
// forward slashes.
type Result struct {
	Format    model.Format
	Dir       string
	Written   []string
	Unchanged []string
	Pruned    []string
}

// Files returns every path of the emitted tree, sorted
func (r *Result) Files() []string {
	files := make([]string, 0, len(r.Written)+len(r.Unchanged))
	files = append(files, r.Written...)
	files = append(files, r.Unchanged...)
	sort.Strings(files)
	return files
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request id recorded with
// emissions
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Emitter writes trees into output directories
type Emitter struct {
	ledger storage.Ledger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now    func() time.Time
	rename func(oldpath, newpath string) error
}

// Option configures an Emitter
type Option func(*Emitter)

// WithLedger records every emission and prunes files a previous emission of
// the same format wrote into the same directory but the current one did not
func WithLedger(l storage.Ledger) Option {
	return func(e *Emitter) {
		e.ledger = l
	}
}

// New creates an Emitter
func New(opts ...Option) *Emitter {
	e := &Emitter{
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Emitter) lock(dir string) func() {
	e.mu.Lock()
	l, ok := e.locks[dir]
	if !ok {
		l = &sync.Mutex{}
		e.locks[dir] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Emit encodes every file of tree and writes the changed ones under dir.
// Files whose content is already byte-identical are not touched.
func (e *Emitter) Emit(ctx context.Context, tree *document.Tree, dir string) (*Result, error) {
	encoded, err := document.EncodeAll(tree)
	if err != nil {
		return nil, &EmitError{Format: tree.Format, Err: err}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, &EmitError{Format: tree.Format, Err: fmt.Errorf("failed to resolve output directory: %w", err)}
	}

	unlock := e.lock(absDir)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, &EmitError{Format: tree.Format, Err: err}
	}

	log := logger.With(
		zap.String("request_id", requestID(ctx)),
		zap.String("format", string(tree.Format)),
		zap.String("dir", absDir))

	result := &Result{Format: tree.Format, Dir: absDir}
	tx := &transaction{rename: e.rename}

	for _, rel := range document.SortedPaths(encoded) {
		target := filepath.Join(absDir, filepath.FromSlash(rel))
		data := encoded[rel]

		current, err := os.ReadFile(target)
		switch {
		case err == nil && bytes.Equal(current, data):
			result.Unchanged = append(result.Unchanged, rel)
			continue
		case err != nil && !errors.Is(err, os.ErrNotExist):
			tx.rollback()
			return nil, &EmitError{Format: tree.Format, Path: rel, Err: err}
		}

		existed := err == nil
		if err := tx.stage(target, data, current, existed); err != nil {
			tx.rollback()
			return nil, &EmitError{Format: tree.Format, Path: rel, Err: err}
		}
		result.Written = append(result.Written, rel)
	}

	if err := ctx.Err(); err != nil {
		tx.rollback()
		return nil, &EmitError{Format: tree.Format, Err: err}
	}

	if path, err := tx.commit(); err != nil {
		tx.rollback()
		rel, _ := filepath.Rel(absDir, path)
		return nil, &EmitError{Format: tree.Format, Path: filepath.ToSlash(rel), Err: err}
	}

	log.Debug("Emitted tree",
		zap.Int("written", len(result.Written)),
		zap.Int("unchanged", len(result.Unchanged)))

	if e.ledger != nil {
		result.Pruned = e.prune(ctx, log, tree.Format, absDir, result.Files())
		emission := &storage.Emission{
			ID:        requestID(ctx),
			Format:    tree.Format,
			Dir:       absDir,
			Files:     result.Files(),
			Written:   len(result.Written),
			Unchanged: len(result.Unchanged),
			Pruned:    len(result.Pruned),
			CreatedAt: e.now().UTC(),
		}
		if err := e.ledger.Record(ctx, emission); err != nil {
			log.Warn("Failed to record emission", zap.Error(err))
		}
	}

	return result, nil
}

// prune removes files the previous emission wrote that the current one did
// not. Failures are logged and the file is left in place.
func (e *Emitter) prune(ctx context.Context, log *zap.Logger, format model.Format, dir string, current []string) []string {
	last, err := e.ledger.Last(ctx, format, dir)
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Warn("Failed to read previous emission", zap.Error(err))
		}
		return nil
	}

	keep := make(map[string]bool, len(current))
	for _, f := range current {
		keep[f] = true
	}

	var pruned []string
	for _, rel := range last.Files {
		if keep[rel] {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.Remove(target); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				log.Warn("Failed to prune stale file", zap.String("file", rel), zap.Error(err))
			}
			continue
		}
		removeEmptyParents(filepath.Dir(target), dir)
		pruned = append(pruned, rel)
	}
	if len(pruned) > 0 {
		log.Debug("Pruned stale files", zap.Strings("files", pruned))
	}
	return pruned
}

func removeEmptyParents(dir, root string) {
	for dir != root && len(dir) > len(root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
