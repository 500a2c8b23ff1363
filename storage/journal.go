package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// lastCleanupKey holds the time of the most recent journal garbage
// collection. Send IDs are UUIDs, so they can't collide with it.
var lastCleanupKey = []byte("onemail/last-cleanup")

// Record is the journal entry for one send attempt.
type Record struct {
	ID      string    `json:"id"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	SentAt  time.Time `json:"sentAt"`
	// Error is empty when the relay accepted the message.
	Error string `json:"error,omitempty"`
}

// NewRecord returns a Record with a fresh send ID.
func NewRecord(to, subject string, at time.Time) Record {
	return Record{
		ID:      uuid.New().String(),
		To:      to,
		Subject: subject,
		SentAt:  at.UTC(),
	}
}

// Delivered reports whether the relay accepted the message.
func (r Record) Delivered() bool {
	return r.Error == ""
}

// Entry serializes r into a KVEntry keyed by its send ID.
func (r Record) Entry() (KVEntry, error) {
	if _, err := uuid.Parse(r.ID); err != nil {
		return KVEntry{}, fmt.Errorf("can't use %q as a send ID: %v", r.ID, err)
	}
	b, err := json.Marshal(r)
	if err != nil {
		return KVEntry{}, fmt.Errorf("can't serialize the journal record: %v", err)
	}
	return KVEntry{
		Key:   []byte(r.ID),
		Value: b,
	}, nil
}

// RecordFromEntry is the inverse of Record.Entry.
func RecordFromEntry(e KVEntry) (Record, error) {
	var r Record
	if err := json.Unmarshal(e.Value, &r); err != nil {
		return Record{}, fmt.Errorf("can't read the journal record: %v", err)
	}
	if r.ID != string(e.Key) {
		return Record{}, fmt.Errorf("journal record %v is stored under key %v", r.ID, string(e.Key))
	}
	return r, nil
}

// Journal writes send records to a KeyValue and runs its garbage collection
// no more often than the configured interval.
type Journal struct {
	kv              KeyValue
	cleanupInterval time.Duration
}

// NewJournal wraps kv. A zero cleanupInterval runs garbage collection on
// every call to Cleanup.
func NewJournal(kv KeyValue, cleanupInterval time.Duration) *Journal {
	return &Journal{
		kv:              kv,
		cleanupInterval: cleanupInterval,
	}
}

// Write stores r.
func (j *Journal) Write(r Record) error {
	e, err := r.Entry()
	if err != nil {
		return err
	}
	return j.kv.Put(e)
}

// Lookup returns the record stored for the send ID id.
func (j *Journal) Lookup(id string) (Record, error) {
	e, err := j.kv.Read([]byte(id))
	if err != nil {
		return Record{}, err
	}
	return RecordFromEntry(e)
}

// Cleanup garbage collects the underlying store if the last collection
// happened at least one cleanup interval before now. It reports whether a
// collection ran.
func (j *Journal) Cleanup(now time.Time) (bool, error) {
	e, err := j.kv.Read(lastCleanupKey)
	if err == nil {
		var last time.Time
		if err := last.UnmarshalText(e.Value); err == nil && now.Sub(last) < j.cleanupInterval {
			return false, nil
		}
	} else if errors.Is(err, ErrNoOpDB) {
		return false, nil
	}

	if err := j.kv.Cleanup(); err != nil {
		return false, err
	}

	b, err := now.UTC().MarshalText()
	if err != nil {
		return true, err
	}
	return true, j.kv.Put(KVEntry{Key: lastCleanupKey, Value: b})
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.kv.Close()
}
