// Package auditlog appends completed negotiations to a write-ahead log. The
// log is the durable audit trail of every purchase and sale; writes never
// block or fail a ledger operation (the ledger swallows sink errors).
package auditlog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/epconsortium/cryptomarket/internal/domain"
)

const (
	defaultAuditDir   = "./wal/audit"
	auditSegmentLimit = 1000
	auditMaxSegments  = 100
	auditKeyPrefix    = "negotiation_"
)

// WALStore persists negotiation entries in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// Record bundles a negotiation entry with the log index it was written at.
type Record struct {
	Index uint64
	Entry domain.NegotiationEntry
}

// NewWALStore initializes the audit WAL under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultAuditDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "audit_",
		SegmentThreshold: auditSegmentLimit,
		MaxSegments:      auditMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init audit WAL")
	}
	return &WALStore{wal: wal}, nil
}

// Record appends one negotiation entry.
func (s *WALStore) Record(entry domain.NegotiationEntry) error {
	if s == nil || s.wal == nil {
		return errors.New("audit store is not initialized")
	}
	if entry.InvestorID == "" {
		return errors.New("negotiation entry investor id is required")
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "marshal negotiation entry")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, auditKeyPrefix+entry.InvestorID, payload)
}

// EntriesAfter returns every negotiation recorded after the given log index.
func (s *WALStore) EntriesAfter(index uint64) ([]Record, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("audit store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]Record, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, auditKeyPrefix) {
			continue
		}
		var entry domain.NegotiationEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, errors.Wrap(err, "decode negotiation entry")
		}
		records = append(records, Record{Index: idx, Entry: entry})
	}
	return records, nil
}

// CurrentIndex returns the latest log index written.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("audit store is not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}
