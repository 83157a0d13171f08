package state

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/envsync/envsync/internal/config"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.envsync/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

var (
	appBucket     = []byte("app")
	tokenKey      = []byte("token")
	cursorsBucket = []byte("cursors")
)

func cursorKey(project, environment string) []byte {
	return []byte(project + "/" + environment)
}

// SyncCursor records the outcome of the last successful push or pull for
// one (project, environment) pair. Used for `envsync status` style
// reporting and for detecting whether a one-shot push is a no-op.
type SyncCursor struct {
	Project     string `json:"project"`
	Environment string `json:"environment"`
	// ContentHash is hex(SHA-256) of the serialized plaintext snapshot
	// at the time of the last successful sync.
	ContentHash string `json:"content_hash"`
	RecordCount int    `json:"record_count"`
	PushedAt    int64  `json:"pushed_at,omitempty"`
	PulledAt    int64  `json:"pulled_at,omitempty"`
}

// State wraps a bbolt database for all persistent application state.
type State struct {
	db *bolt.DB
}

// Load opens the state database at ~/.envsync/state.db, creating it if it
// does not exist. Buckets are created on open.
func Load() (*State, error) {
	dir, err := config.DefaultStateDir()
	if err != nil {
		return nil, err
	}

	return LoadAt(filepath.Join(dir, "state.db"))
}

// LoadAt opens a state database at the given path, creating it if it does
// not exist. Useful for tests that need an isolated database.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(appBucket); err != nil {
			return err
		}

		_, err := tx.CreateBucketIfNotExists(cursorsBucket)

		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Token returns the cached authentication token, or empty string.
func (s *State) Token() string {
	var token string

	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(appBucket)

		v := b.Get(tokenKey)
		if v != nil {
			token = string(v)
		}

		return nil
	})

	return token
}

// SetToken persists the authentication token.
func (s *State) SetToken(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(tokenKey, []byte(token))
	})
}

// GetCursor returns the sync cursor for a (project, environment) pair, or
// nil if no sync has completed yet.
func (s *State) GetCursor(project, environment string) (*SyncCursor, error) {
	var sc *SyncCursor

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorsBucket)

		v := b.Get(cursorKey(project, environment))
		if v == nil {
			return nil
		}

		sc = &SyncCursor{}

		return json.Unmarshal(v, sc)
	})

	return sc, err
}

// SetCursor persists the sync cursor for a (project, environment) pair.
func (s *State) SetCursor(sc SyncCursor) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(sc)
		if err != nil {
			return err
		}

		return tx.Bucket(cursorsBucket).Put(cursorKey(sc.Project, sc.Environment), data)
	})
}

// AllCursors returns every stored sync cursor, keyed by "project/environment".
func (s *State) AllCursors() (map[string]SyncCursor, error) {
	result := make(map[string]SyncCursor)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(cursorsBucket)

		return b.ForEach(func(k, v []byte) error {
			var sc SyncCursor
			if err := json.Unmarshal(v, &sc); err != nil {
				return err
			}

			result[string(k)] = sc

			return nil
		})
	})

	return result, err
}
