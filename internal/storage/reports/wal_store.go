// Package reports persists reconciliation diagnoses in a WAL so runs
// survive restarts and the web stream can replay history.
package reports

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

const (
	defaultReportDir   = "./wal/reports"
	reportSegmentLimit = 1000
	reportMaxSegments  = 100
	reportKeyPrefix    = "diagnosis_"
)

// WALStore is an append-only journal of diagnoses.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes the journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultReportDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "report_",
		SegmentThreshold: reportSegmentLimit,
		MaxSegments:      reportMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init diagnosis WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the diagnosis to the journal.
func (s *WALStore) Save(diagnosis entity.Diagnosis) error {
	if s == nil || s.wal == nil {
		return errors.New("diagnosis store is not initialized")
	}
	if diagnosis.Venue == "" {
		return errors.New("diagnosis venue is required")
	}

	payload, err := json.Marshal(diagnosis)
	if err != nil {
		return errors.Wrap(err, "marshal diagnosis")
	}

	key := reportKeyPrefix + diagnosis.Venue

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// ReportsAfter returns all diagnoses written after the provided index.
func (s *WALStore) ReportsAfter(index uint64) ([]entity.DiagnosisRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("diagnosis store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]entity.DiagnosisRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil || !strings.HasPrefix(key, reportKeyPrefix) {
			continue
		}
		var diagnosis entity.Diagnosis
		if err := json.Unmarshal(payload, &diagnosis); err != nil {
			return nil, errors.Wrap(err, "decode diagnosis")
		}
		records = append(records, entity.DiagnosisRecord{
			Index:     idx,
			Diagnosis: diagnosis,
		})
	}

	return records, nil
}

// CurrentIndex returns the latest journal index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("diagnosis store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
