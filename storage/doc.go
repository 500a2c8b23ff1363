package storage

// storage contains the KeyValue interface for working with a persistent key/
// value store, as well as an implementation for BadgerDB. The delivery
// journal writes one Record per send attempt, keyed by the send ID. The
// KeyValue implementations themselves deal only in opaque binary data.
