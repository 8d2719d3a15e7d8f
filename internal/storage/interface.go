package storage

import (
	"context"
	"errors"
	"time"

	"github.com/withobsrvr/stackctl/internal/model"
)

// Emission records the files one generation wrote for a format into an
// output directory
type Emission struct {
	// ID is the request id of the generation
	ID     string       `json:"id"`
	Format model.Format `json:"format"`
	// Dir is the absolute output directory
	Dir string `json:"dir"`
	// Files are the emitted paths relative to Dir, sorted
	Files     []string  `json:"files"`
	Written   int       `json:"written"`
	Unchanged int       `json:"unchanged"`
	Pruned    int       `json:"pruned"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger defines the interface for persistent storage of emissions
type Ledger interface {
	// Open initializes the storage and makes it ready for use
	Open() error

	// Close closes the storage and releases any resources
	Close() error

	// Record stores an emission and makes it the latest for its format and
	// directory
	Record(ctx context.Context, emission *Emission) error

	// Last returns the latest emission for format into dir
	Last(ctx context.Context, format model.Format, dir string) (*Emission, error)

	// List returns emissions newest first. limit <= 0 returns all.
	List(ctx context.Context, limit int) ([]*Emission, error)
}

// ErrEmissionNotFound is returned when no emission exists for a format and
// directory
type ErrEmissionNotFound struct {
	Format model.Format
	Dir    string
}

// Error implements the error interface
func (e ErrEmissionNotFound) Error() string {
	return "no emission recorded for " + string(e.Format) + " in " + e.Dir
}

// IsNotFound returns true if the error is ErrEmissionNotFound
func IsNotFound(err error) bool {
	var notFound ErrEmissionNotFound
	return errors.As(err, &notFound)
}

func latestKey(format model.Format, dir string) []byte {
	return []byte(string(format) + "\x00" + dir)
}
