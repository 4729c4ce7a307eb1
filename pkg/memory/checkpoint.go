package memory

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/clawster/clawster/pkg/types"
)

var bucketCheckpoints = []byte("memory_checkpoints")

// CheckpointStore persists high-value memory checkpoints in BoltDB so a
// node can restore them after a restart.
type CheckpointStore struct {
	db *bolt.DB
}

// NewCheckpointStore opens (or creates) the checkpoint database under
// dataDir.
func NewCheckpointStore(dataDir string) (*CheckpointStore, error) {
	dbPath := filepath.Join(dataDir, "clawster.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint bucket: %w", err)
	}

	return &CheckpointStore{db: db}, nil
}

// Save writes checkpoints keyed by their content hash. Saving the same
// content twice overwrites in place.
func (s *CheckpointStore) Save(checkpoints []*types.MemoryCheckpoint) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		for _, cp := range checkpoints {
			if cp == nil {
				continue
			}
			data, err := json.Marshal(cp)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(ContentID(cp.Content)), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load returns every persisted checkpoint.
func (s *CheckpointStore) Load() ([]*types.MemoryCheckpoint, error) {
	var checkpoints []*types.MemoryCheckpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		return b.ForEach(func(k, v []byte) error {
			var cp types.MemoryCheckpoint
			if err := json.Unmarshal(v, &cp); err != nil {
				return err
			}
			checkpoints = append(checkpoints, &cp)
			return nil
		})
	})
	return checkpoints, err
}

// Prune removes persisted checkpoints whose content is no longer in the
// keep set.
func (s *CheckpointStore) Prune(keep []*types.MemoryCheckpoint) error {
	wanted := make(map[string]struct{}, len(keep))
	for _, cp := range keep {
		wanted[ContentID(cp.Content)] = struct{}{}
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if _, ok := wanted[string(k)]; !ok {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Close closes the database
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}
