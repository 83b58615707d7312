package diag

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var diagBucket = []byte("diag")

// Store persists a Sink's ring buffer across process invocations — the
// CLI driver is a new process per command, so the diags command must
// recover prior entries from disk rather than an in-memory-only ring
// (spec's domain-stack rationale for go.etcd.io/bbolt).
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the bbolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("open diag store: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(diagBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, xerrors.Errorf("init diag bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save persists entries as JSON under a fixed key, overwriting whatever
// was there before.
func (s *Store) Save(entries []Entry) error {
	buf, err := json.Marshal(entries)
	if err != nil {
		return xerrors.Errorf("marshal diag entries: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(diagBucket).Put([]byte("entries"), buf)
	})
}

// Load returns the persisted entries, or an empty slice if none have
// been saved yet.
func (s *Store) Load() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		buf := tx.Bucket(diagBucket).Get([]byte("entries"))
		if buf == nil {
			return nil
		}
		return json.Unmarshal(buf, &entries)
	})
	if err != nil {
		return nil, xerrors.Errorf("load diag entries: %w", err)
	}
	return entries, nil
}
