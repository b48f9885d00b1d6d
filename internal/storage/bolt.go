package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	logx "remindd/pkg/logx"
)

var (
	bucketPending = []byte("pending")
	bucketAudit   = []byte("audit")
)

// boltStore keeps pending reminders keyed by big-endian handle and audit
// entries keyed by (unix milli, id) so a cursor walks them oldest first.
type boltStore struct {
	db  *bolt.DB
	log logx.Logger
}

func openBolt(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketPending, bucketAudit} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, log: log}, nil
}

func (s *boltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func handleKey(h int32) []byte {
	k := make([]byte, 4)
	binary.BigEndian.PutUint32(k, uint32(h))
	return k
}

func (s *boltStore) PutPending(ctx context.Context, r PendingRecord) error {
	_ = ctx
	v, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).Put(handleKey(r.Handle), v)
	})
}

func (s *boltStore) DeletePending(ctx context.Context, handles ...int32) error {
	_ = ctx
	if len(handles) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		for _, h := range handles {
			if err := b.Delete(handleKey(h)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) ListPending(ctx context.Context) ([]PendingRecord, error) {
	_ = ctx
	var out []PendingRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPending).ForEach(func(k, v []byte) error {
			var r PendingRecord
			if err := json.Unmarshal(v, &r); err != nil {
				s.log.Warn("pending record unreadable", logx.Err(err))
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortPending(out)
	return out, nil
}

func auditKey(at time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(at.UnixMilli()))
	return append(k, id...)
}

func (s *boltStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	v, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAudit).Put(auditKey(e.At, e.ID), v)
	})
}

func (s *boltStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	limit := make([]byte, 8)
	binary.BigEndian.PutUint64(limit, uint64(before.UnixMilli()))
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		// collect first: deleting under a live cursor skips keys
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil && bytes.Compare(k[:8], limit) < 0; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(stale)
		return nil
	})
	return n, err
}
