// Package store provides Badger-backed persistence for the small pieces
// of state voxara keeps between runs: the recently-scanned path list and
// saved application settings. It is a plain key-value surface with
// explicit load and save points; nothing else in the program touches the
// database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Key prefixes for the different record types.
const (
	keyHistory  = "m:history"
	keySettings = "m:settings"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// Settings are the persisted application settings.
type Settings struct {
	// AgentBind is the saved agent listen address.
	AgentBind string `json:"agentBind,omitempty"`

	// RemoteAddress is the last remote agent the client connected to.
	RemoteAddress string `json:"remoteAddress,omitempty"`

	// Token is the shared auth token for the remote protocol.
	Token string `json:"token,omitempty"`

	// LastOptions are the most recently used scan options.
	LastOptions *types.ScanOptions `json:"lastOptions,omitempty"`
}

// Store is the persisted state store backed by Badger.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store at the given directory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's own logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveHistory persists the recently-scanned path list.
func (s *Store) SaveHistory(paths []string) error {
	return s.putJSON(keyHistory, paths)
}

// LoadHistory returns the persisted recently-scanned path list. A store
// with no saved history returns an empty list, not an error.
func (s *Store) LoadHistory() ([]string, error) {
	var paths []string
	err := s.getJSON(keyHistory, &paths)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return paths, err
}

// SaveSettings persists the application settings.
func (s *Store) SaveSettings(settings Settings) error {
	return s.putJSON(keySettings, settings)
}

// LoadSettings returns the persisted settings, or zero settings when
// none were saved yet.
func (s *Store) LoadSettings() (Settings, error) {
	var settings Settings
	err := s.getJSON(keySettings, &settings)
	if errors.Is(err, ErrNotFound) {
		return Settings{}, nil
	}
	return settings, err
}

func (s *Store) putJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *Store) getJSON(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}
