package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	logx "remindd/pkg/logx"
)

const fileCompactEvery = 500

// fileStore keeps pending reminders in memory and on disk as:
//   - <prefix>.pending.snapshot.json (periodic snapshot)
//   - <prefix>.pending.journal.jsonl (append-only put/delete journal)
//   - <prefix>.audit.jsonl           (append-only audit)
//
// The journal is folded into the snapshot every fileCompactEvery writes and on Close.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	auditPath string
	auditFile *os.File

	snapshotPath string
	journalFile  *os.File
	pending      map[int32]PendingRecord
	writes       int
}

type journalOp struct {
	Op     string         `json:"op"` // "put" | "del"
	Record *PendingRecord `json:"record,omitempty"`
	Handle int32          `json:"handle,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	auditPath := prefix + ".audit.jsonl"
	snapPath := prefix + ".pending.snapshot.json"
	journalPath := prefix + ".pending.journal.jsonl"

	af, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	pending := map[int32]PendingRecord{}
	if err := loadSnapshot(snapPath, pending); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("pending snapshot unreadable; starting from journal", logx.Err(err))
	}
	if err := replayJournal(journalPath, pending); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("pending journal replay stopped early", logx.Err(err))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}

	return &fileStore{
		log:          log,
		auditPath:    auditPath,
		auditFile:    af,
		snapshotPath: snapPath,
		journalFile:  jf,
		pending:      pending,
	}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.journalFile != nil {
		if err := s.compactLocked(); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, s.journalFile.Close())
		s.journalFile = nil
	}
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) PutPending(ctx context.Context, r PendingRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrDisabled
	}
	s.pending[r.Handle] = r
	return s.journalLocked(journalOp{Op: "put", Record: &r})
}

func (s *fileStore) DeletePending(ctx context.Context, handles ...int32) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return ErrDisabled
	}
	for _, h := range handles {
		if _, ok := s.pending[h]; !ok {
			continue
		}
		delete(s.pending, h)
		if err := s.journalLocked(journalOp{Op: "del", Handle: h}); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) ListPending(ctx context.Context) ([]PendingRecord, error) {
	_ = ctx
	s.mu.Lock()
	out := make([]PendingRecord, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	s.mu.Unlock()
	sortPending(out)
	return out, nil
}

func (s *fileStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return errors.New("audit file closed")
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

// PruneAudit rewrites the audit file keeping entries at or after before.
func (s *fileStore) PruneAudit(ctx context.Context, before time.Time) (int, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return 0, errors.New("audit file closed")
	}

	f, err := os.Open(s.auditPath)
	if err != nil {
		return 0, err
	}
	kept := make([][]byte, 0, 256)
	dropped := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		line := sc.Bytes()
		if err := json.Unmarshal(line, &e); err == nil && e.At.Before(before) {
			dropped++
			continue
		}
		kept = append(kept, append([]byte(nil), line...))
	}
	_ = f.Close()
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if dropped == 0 {
		return 0, nil
	}

	tmp := s.auditPath + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	w := bufio.NewWriter(out)
	for _, l := range kept {
		_, _ = w.Write(l)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Close(); err != nil {
		return 0, err
	}
	_ = s.auditFile.Close()
	if err := os.Rename(tmp, s.auditPath); err != nil {
		return 0, err
	}
	af, err := os.OpenFile(s.auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		s.auditFile = nil
		return dropped, err
	}
	s.auditFile = af
	return dropped, nil
}

func (s *fileStore) journalLocked(op journalOp) error {
	if err := json.NewEncoder(s.journalFile).Encode(op); err != nil {
		return err
	}
	s.writes++
	if s.writes%fileCompactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("pending compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	recs := make([]PendingRecord, 0, len(s.pending))
	for _, r := range s.pending {
		recs = append(recs, r)
	}
	sortPending(recs)
	if err := json.NewEncoder(f).Encode(recs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err = s.journalFile.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, out map[int32]PendingRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var recs []PendingRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		return err
	}
	for _, r := range recs {
		out[r.Handle] = r
	}
	return nil
}

func replayJournal(path string, out map[int32]PendingRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var op journalOp
		if err := json.Unmarshal(sc.Bytes(), &op); err != nil {
			// torn trailing write
			continue
		}
		switch op.Op {
		case "put":
			if op.Record != nil {
				out[op.Record.Handle] = *op.Record
			}
		case "del":
			delete(out, op.Handle)
		}
	}
	return sc.Err()
}

func sortPending(recs []PendingRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].FireAt.Equal(recs[j].FireAt) {
			return recs[i].FireAt.Before(recs[j].FireAt)
		}
		return recs[i].Handle < recs[j].Handle
	})
}
