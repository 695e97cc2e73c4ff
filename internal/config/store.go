package config

import (
	"sync"

	"github.com/zjrosen/replpane/internal/pubsub"
)

// Store holds the current configuration snapshot. Readers take a copy, so a
// reload never changes values a caller already holds.
type Store struct {
	mu      sync.RWMutex
	cfg     Config
	path    string
	changes *pubsub.Broker[Config]
}

// NewStore returns a store seeded with cfg. path is the file cfg was loaded
// from and may be empty.
func NewStore(cfg Config, path string) *Store {
	return &Store{
		cfg:     cfg,
		path:    path,
		changes: pubsub.NewBroker[Config](pubsub.WithBuffer(4)),
	}
}

// Snapshot returns the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Path returns the backing config file path.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

// Replace installs cfg and notifies subscribers.
func (s *Store) Replace(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.changes.Publish(pubsub.ConfigReloadedEvent, cfg)
}

// Changes exposes reload notifications.
func (s *Store) Changes() pubsub.Subscriber[Config] {
	return s.changes
}

// Close releases subscribers.
func (s *Store) Close() {
	s.changes.Close()
}
