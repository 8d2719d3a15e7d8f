package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/withobsrvr/stackctl/internal/model"
	"github.com/withobsrvr/stackctl/internal/utils/logger"
)

const (
	// DefaultBoltFilePath is the default path for the BoltDB file
	DefaultBoltFilePath = "stackctl-history.db"

	// DefaultBoltFileMode is the default file mode for the BoltDB file
	DefaultBoltFileMode = 0600

	// DefaultBoltTimeout is the default timeout for BoltDB operations
	DefaultBoltTimeout = 1 * time.Second
)

var (
	// emissionBucket holds emissions keyed by sequence number
	emissionBucket = []byte("emissions")
	// latestBucket maps format and directory to the latest emission key
	latestBucket = []byte("latest")
)

// BoltDBStorage implements the Ledger interface using BoltDB
type BoltDBStorage struct {
	db      *bolt.DB
	path    string
	options *BoltOptions
}

// BoltOptions configures the BoltDB storage
type BoltOptions struct {
	// Path to the BoltDB file
	Path string
	// File mode for the BoltDB file
	FileMode os.FileMode
	// Timeout for BoltDB operations
	Timeout time.Duration
}

// NewBoltDBStorage creates a new BoltDBStorage with the given options
func NewBoltDBStorage(opts *BoltOptions) *BoltDBStorage {
	if opts == nil {
		opts = &BoltOptions{}
	}

	// Set default options if not provided
	if opts.Path == "" {
		opts.Path = DefaultBoltFilePath
	}
	if opts.FileMode == 0 {
		opts.FileMode = DefaultBoltFileMode
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultBoltTimeout
	}

	return &BoltDBStorage{
		path:    opts.Path,
		options: opts,
	}
}

// Open initializes the BoltDB database
func (s *BoltDBStorage) Open() error {
	logger.Debug("Opening BoltDB database", zap.String("path", s.path))

	// Make sure the directory exists
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for database: %w", err)
	}

	db, err := bolt.Open(s.path, s.options.FileMode, &bolt.Options{Timeout: s.options.Timeout})
	if err != nil {
		return fmt.Errorf("failed to open BoltDB: %w", err)
	}
	s.db = db

	// Initialize the buckets
	err = s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{emissionBucket, latestBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		// Close the database if initialization fails
		s.db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Close closes the BoltDB database
func (s *BoltDBStorage) Close() error {
	if s.db != nil {
		logger.Debug("Closing BoltDB database")
		return s.db.Close()
	}
	return nil
}

// Record stores an emission under the next sequence number
func (s *BoltDBStorage) Record(ctx context.Context, emission *Emission) error {
	logger.Debug("Recording emission",
		zap.String("id", emission.ID),
		zap.String("format", string(emission.Format)),
		zap.String("dir", emission.Dir))

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(emissionBucket)
		if b == nil {
			return fmt.Errorf("emissions bucket not found")
		}
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate emission key: %w", err)
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(emission)
		if err != nil {
			return fmt.Errorf("failed to marshal emission: %w", err)
		}
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("failed to store emission: %w", err)
		}
		if err := tx.Bucket(latestBucket).Put(latestKey(emission.Format, emission.Dir), key); err != nil {
			return fmt.Errorf("failed to store latest emission: %w", err)
		}
		return nil
	})
}

// Last returns the latest emission for format into dir
func (s *BoltDBStorage) Last(ctx context.Context, format model.Format, dir string) (*Emission, error) {
	var emission *Emission
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(latestBucket).Get(latestKey(format, dir))
		if key == nil {
			return ErrEmissionNotFound{Format: format, Dir: dir}
		}
		data := tx.Bucket(emissionBucket).Get(key)
		if data == nil {
			return ErrEmissionNotFound{Format: format, Dir: dir}
		}
		var e Emission
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("failed to unmarshal emission: %w", err)
		}
		emission = &e
		return nil
	})
	return emission, err
}

// List returns emissions newest first
func (s *BoltDBStorage) List(ctx context.Context, limit int) ([]*Emission, error) {
	var emissions []*Emission
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(emissionBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(emissions) >= limit {
				break
			}
			var e Emission
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal emission: %w", err)
			}
			emissions = append(emissions, &e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return emissions, nil
}
