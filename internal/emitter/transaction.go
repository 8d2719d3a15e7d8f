package emitter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// staged is a temp file waiting to be renamed over target
type staged struct {
	tmp    string
	target string
	// previous content of target, restored on rollback
	existed  bool
	previous []byte
	mode     os.FileMode
	renamed  bool
}

// transaction tracks everything one Emit call changed on disk
type transaction struct {
	files   []*staged
	created []string // directories, parents first
	rename  func(oldpath, newpath string) error
}

// stage writes data to a temp file next to target
func (tx *transaction) stage(target string, data, previous []byte, existed bool) error {
	dir := filepath.Dir(target)
	if err := tx.mkdirAll(dir); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	mode := os.FileMode(fileMode)
	if existed {
		if info, err := os.Stat(target); err == nil {
			mode = info.Mode().Perm()
		}
	}

	f, err := os.CreateTemp(dir, ".stackctl-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	s := &staged{tmp: f.Name(), target: target, existed: existed, previous: previous, mode: mode}
	tx.files = append(tx.files, s)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(s.tmp, mode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	return nil
}

// mkdirAll creates dir and its missing parents, remembering which ones it
// created
func (tx *transaction) mkdirAll(dir string) error {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		info, err := os.Stat(d)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", d)
			}
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		missing = append(missing, d)
		if filepath.Dir(d) == d {
			break
		}
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], dirMode); err != nil && !errors.Is(err, os.ErrExist) {
			return err
		}
		tx.created = append(tx.created, missing[i])
	}
	return nil
}

// commit renames every staged file into place. On failure it returns the
// target that could not be replaced.
func (tx *transaction) commit() (string, error) {
	for _, s := range tx.files {
		if err := tx.rename(s.tmp, s.target); err != nil {
			return s.target, fmt.Errorf("failed to replace file: %w", err)
		}
		s.renamed = true
	}
	return "", nil
}

// rollback removes temp files, restores replaced files and removes created
// directories. It is best effort.
func (tx *transaction) rollback() {
	for i := len(tx.files) - 1; i >= 0; i-- {
		s := tx.files[i]
		if !s.renamed {
			os.Remove(s.tmp)
			continue
		}
		if s.existed {
			os.WriteFile(s.target, s.previous, s.mode)
			os.Chmod(s.target, s.mode)
		} else {
			os.Remove(s.target)
		}
	}
	for i := len(tx.created) - 1; i >= 0; i-- {
		os.Remove(tx.created[i])
	}
	tx.files = nil
	tx.created = nil
}
