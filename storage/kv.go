package storage

import (
	"errors"
	"fmt"
	"time"
)

// KVConfig contains settings specific to BadgerDB connections
type KVConfig struct {
	StorageDirPath  string        `yaml:"storageDir" json:"storageDir"`
	KeyTTLDuration  time.Duration `yaml:"keyTTL" json:"keyTTL"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" json:"CleanupInterval"`
}

// UnmarshalYAML parses the "journal" section of the user config. All three
// keys are required once the section is present.
func (kv *KVConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	v := make(map[string]string)
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the journal config: %v", err)
	}

	sp, ok := v["storageDir"]
	if !ok || sp == "" {
		return errors.New("the journal config must include a storageDir")
	}

	ttl, ok := v["keyTTL"]
	if !ok {
		return errors.New("the journal config must include a keyTTL")
	}
	td, err := time.ParseDuration(ttl)
	if err != nil {
		return fmt.Errorf("can't parse the journal keyTTL as a duration: %v", err)
	}

	ci, ok := v["cleanupInterval"]
	if !ok {
		return errors.New("the journal config must include a cleanupInterval")
	}
	cd, err := time.ParseDuration(ci)
	if err != nil {
		return fmt.Errorf("can't parse the journal cleanupInterval as a duration: %v", err)
	}

	kv.StorageDirPath = sp
	kv.KeyTTLDuration = td
	kv.CleanupInterval = cd

	return nil
}

// Enabled reports whether the config points at a storage directory. An
// empty config means the journal is turned off.
func (kv *KVConfig) Enabled() bool {
	return kv.StorageDirPath != ""
}

// CheckAndSetDefaults validates kv and either returns a copy of kv with
// default settings applied or returns an error due to an invalid
// configuration. A disabled journal is always valid.
func (kv *KVConfig) CheckAndSetDefaults() (KVConfig, error) {
	c := *kv
	if !c.Enabled() {
		return c, nil
	}
	if c.KeyTTLDuration <= 0 {
		return KVConfig{}, errors.New("the journal keyTTL must be positive")
	}
	if c.CleanupInterval < 0 {
		return KVConfig{}, errors.New("the journal cleanupInterval can't be negative")
	}
	return c, nil
}

// KeyValue exposes a common interface for performing CRUD operations on an
// underlying storage layer.
//
// Implentations need to include connection logic in code to initialize
// a Store.
type KeyValue interface {
	// Replace the value of a key or create a new one if it doesn't exist
	Put(KVEntry) error
	// Return an entry given its key
	Read(key []byte) (KVEntry, error)
	// Cleanup performs routine deletion of old records. We assign
	// TTLs to KV pairs and delete them periodically.
	Cleanup() error
	// Drain/tear down the connection, or something analogous for
	// an embedded database
	Close() error
}

// KVEntry is what we'll write to and read from the KV store
type KVEntry struct {
	Key   []byte
	Value []byte
}

// Open returns a BadgerDB for an enabled config and a NoOpDB otherwise. It
// is up to the caller to close the returned KeyValue.
func Open(conf *KVConfig) (KeyValue, error) {
	if !conf.Enabled() {
		return &NoOpDB{}, nil
	}
	db, err := NewBadgerDB(conf)
	if err != nil {
		return nil, err
	}
	return db, nil
}
