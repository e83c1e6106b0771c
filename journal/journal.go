package journal

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

var bucketEvents = []byte("events")

// Record is one journalled marketplace event. The sequence number is assigned
// by the journal and strictly increases in emission order.
type Record struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	RecordedAt time.Time         `json:"recordedAt"`
}

type payloadEvent interface {
	events.Event
	Event() *types.Event
}

// Journal is an append-only, BoltDB-backed log of marketplace events for
// external observers. It is best effort and never authoritative: a failed
// append is logged and dropped, it never fails the operation that emitted the
// event.
type Journal struct {
	db     *bolt.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open initialises (and migrates) the journal at the given path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, logger: logger, nowFn: time.Now}, nil
}

// Close releases the underlying Bolt database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Emit implements events.Emitter. Events without a structured payload are
// journalled with their type only.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || j.db == nil || evt == nil {
		return
	}
	record := Record{Type: evt.EventType(), RecordedAt: j.nowFn().UTC()}
	if payload, ok := evt.(payloadEvent); ok {
		if inner := payload.Event(); inner != nil {
			record.Type = inner.Type
			record.Attributes = inner.Attributes
		}
	}
	if err := j.append(&record); err != nil {
		j.logger.Error("journal append failed", slog.String("event", record.Type), slog.Any("error", err))
	}
}

func (j *Journal) append(record *Record) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		record.Sequence = seq
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return bucket.Put(sequenceKey(seq), encoded)
	})
}

// Events returns up to limit records with sequence numbers strictly greater
// than after, in emission order. A non-positive limit returns all matching
// records.
func (j *Journal) Events(after uint64, limit int) ([]Record, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	var records []Record
	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEvents).Cursor()
		for key, value := cursor.Seek(sequenceKey(after + 1)); key != nil; key, value = cursor.Next() {
			var record Record
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			if limit > 0 && len(records) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func sequenceKey(seq uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], seq)
	return key[:]
}
