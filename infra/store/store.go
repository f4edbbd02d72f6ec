package store

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"sharedptr"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("store: key not found")

// Config defines configuration for a Store.
type Config struct {
	Dir string
	// Sync makes every write durable before it returns.
	Sync   bool
	Logger *zap.Logger
}

// Store is a pebble-backed key/value store meant to be opened once and
// shared: Open returns it behind a shared pointer and the database closes
// when the last owner releases it.
type Store struct {
	db    *pebble.DB
	write *pebble.WriteOptions
	log   *zap.Logger
	dir   string
}

// Open opens (or creates) the store in cfg.Dir.
func Open(cfg Config) (sharedptr.Ptr[*Store], error) {
	if cfg.Dir == "" {
		cfg.Dir = "./store_data"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	db, err := pebble.Open(cfg.Dir, &pebble.Options{})
	if err != nil {
		return sharedptr.Ptr[*Store]{}, errors.Wrapf(err, "store: open %s", cfg.Dir)
	}

	write := pebble.NoSync
	if cfg.Sync {
		write = pebble.Sync
	}
	s := &Store{db: db, write: write, log: cfg.Logger, dir: cfg.Dir}
	s.log.Info("store opened", zap.String("dir", cfg.Dir))
	return sharedptr.New(s), nil
}

// Close closes the database. Owners should call Release on their pointer
// instead; the last release calls Close.
func (s *Store) Close() error {
	s.log.Info("store closing", zap.String("dir", s.dir))
	return errors.Wrap(s.db.Close(), "store: close")
}

func (s *Store) Put(key, value []byte) error {
	return errors.Wrap(s.db.Set(key, value, s.write), "store: put")
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	defer closer.Close()

	return bytes.Clone(val), nil
}

func (s *Store) Delete(key []byte) error {
	return errors.Wrap(s.db.Delete(key, s.write), "store: delete")
}

// Scan calls fn for every key with the given prefix, in key order. Key and
// value are only valid for the duration of the call.
func (s *Store) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "store: scan")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return errors.Wrap(iter.Error(), "store: scan")
}

// prefixEnd returns the smallest key greater than every key with prefix,
// or nil when there is none.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
