package facts

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketFacts   = []byte("facts")
	bucketDaemons = []byte("daemons")
	bucketMeta    = []byte("meta")

	metaOutcome  = []byte("outcome")
	metaSequence = []byte("sequence")
)

// BoltStore implements Store using BoltDB. Facts are keyed
// "<relation>:<relation-id>/<name>" so that a departed scope can be cleared
// with a single prefix scan.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if needed) the fact database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "facts.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketFacts, bucketDaemons, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "init", Err: err}
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func factKey(scope types.Scope, name string) []byte {
	return []byte(scope.String() + "/" + name)
}

func parseFactKey(key []byte) (types.Scope, string, error) {
	k := string(key)
	slash := strings.Index(k, "/")
	if slash < 0 {
		return types.Scope{}, "", fmt.Errorf("malformed fact key %q", k)
	}
	scopePart, name := k[:slash], k[slash+1:]
	colon := strings.LastIndex(scopePart, ":")
	if colon < 0 {
		return types.Scope{}, "", fmt.Errorf("malformed fact scope %q", scopePart)
	}
	id, err := strconv.Atoi(scopePart[colon+1:])
	if err != nil {
		return types.Scope{}, "", fmt.Errorf("malformed relation id in %q: %w", scopePart, err)
	}
	return types.Scope{Relation: types.RelationName(scopePart[:colon]), ID: id}, name, nil
}

func (s *BoltStore) Put(scope types.Scope, name, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacts).Put(factKey(scope, name), []byte(value))
	})
	if err != nil {
		return &PersistenceError{Op: "put", Err: err}
	}
	return nil
}

func (s *BoltStore) Get(scope types.Scope, name string) (string, bool, error) {
	var value string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFacts).Get(factKey(scope, name))
		if data != nil {
			value, ok = string(data), true
		}
		return nil
	})
	if err != nil {
		return "", false, &PersistenceError{Op: "get", Err: err}
	}
	return value, ok, nil
}

func (s *BoltStore) Clear(scope types.Scope) error {
	prefix := []byte(scope.String() + "/")
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketFacts).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

func (s *BoltStore) Snapshot() (types.Snapshot, error) {
	snapshot := types.Snapshot{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFacts).ForEach(func(k, v []byte) error {
			scope, name, err := parseFactKey(k)
			if err != nil {
				return err
			}
			if snapshot[scope] == nil {
				snapshot[scope] = map[string]string{}
			}
			snapshot[scope][name] = string(v)
			return nil
		})
	})
	if err != nil {
		return nil, &PersistenceError{Op: "snapshot", Err: err}
	}
	return snapshot, nil
}

func (s *BoltStore) DaemonState(id types.DaemonID) (types.DaemonState, error) {
	state := types.DaemonState{ID: id}
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDaemons).Get([]byte(id))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &state)
	})
	if err != nil {
		return state, &PersistenceError{Op: "daemon state", Err: err}
	}
	return state, nil
}

func (s *BoltStore) SaveDaemonState(state types.DaemonState) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(state)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDaemons).Put([]byte(state.ID), data)
	})
	if err != nil {
		return &PersistenceError{Op: "save daemon state", Err: err}
	}
	return nil
}

func (s *BoltStore) Outcome() (types.Outcome, error) {
	var outcome types.Outcome
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(metaOutcome)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &outcome)
	})
	if err != nil {
		return outcome, &PersistenceError{Op: "outcome", Err: err}
	}
	return outcome, nil
}

func (s *BoltStore) SaveOutcome(outcome types.Outcome) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(outcome)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(metaOutcome, data)
	})
	if err != nil {
		return &PersistenceError{Op: "save outcome", Err: err}
	}
	return nil
}

func (s *BoltStore) LastSequence() (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(metaSequence)
		if len(data) == 8 {
			seq = binary.BigEndian.Uint64(data)
		}
		return nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "last sequence", Err: err}
	}
	return seq, nil
}

func (s *BoltStore) SaveLastSequence(seq uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(metaSequence, buf)
	})
	if err != nil {
		return &PersistenceError{Op: "save last sequence", Err: err}
	}
	return nil
}
