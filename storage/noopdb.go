package storage

import "errors"

// ErrNoOpDB is returned by every read or write against a NoOpDB.
var ErrNoOpDB = errors.New("the journal is disabled")

// NoOpDB is used when no journal directory is configured. Sends still go
// through the same journal calls, but nothing is stored.
//
// For get and put operations, we always return an error, so the caller knows that
// no actual data has been read or written.
//
// For database-wide operations, such as cleaning up or closing the database,
// we always return a nil error, since there is nothing to close or clean up.
type NoOpDB struct{}

// Put always returns an error so callers don't assume a new key has been
// written.
func (n *NoOpDB) Put(KVEntry) error {
	return ErrNoOpDB
}

// Read always returns an error so callers don't assume a key has been read.
func (n *NoOpDB) Read(key []byte) (KVEntry, error) {
	return KVEntry{}, ErrNoOpDB
}

// Cleanup always returns nil.
func (n *NoOpDB) Cleanup() error {
	return nil
}

// Close is no-op
func (n *NoOpDB) Close() error {
	return nil
}
