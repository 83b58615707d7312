package target

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var planBucket = []byte("target_plan")

// Store persists a Planner's mount list across process invocations — the
// CLI driver is a new process per `target set` call, so the plan built up
// over several invocations must survive between them (spec §4.11 read
// together with the CLI's per-invocation process lifetime, spec §6).
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the bbolt database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("open target plan store: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(planBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, xerrors.Errorf("init target plan bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save persists the planner's current mount list.
func (s *Store) Save(p *Planner) error {
	buf, err := json.Marshal(p.Mounts())
	if err != nil {
		return xerrors.Errorf("marshal target plan: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(planBucket).Put([]byte("mounts"), buf)
	})
}

// Load returns a Planner reconstructed from whatever was last saved, or
// an empty Planner if nothing has been persisted yet.
func (s *Store) Load() (*Planner, error) {
	var mounts []Mount
	err := s.db.View(func(tx *bbolt.Tx) error {
		buf := tx.Bucket(planBucket).Get([]byte("mounts"))
		if buf == nil {
			return nil
		}
		return json.Unmarshal(buf, &mounts)
	})
	if err != nil {
		return nil, xerrors.Errorf("load target plan: %w", err)
	}
	return &Planner{mounts: mounts}, nil
}

// Clear empties the persisted plan, used once Finalize has written fstab
// and the plan no longer needs to survive to the next invocation.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(planBucket).Delete([]byte("mounts"))
	})
}
