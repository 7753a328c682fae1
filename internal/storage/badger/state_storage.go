package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/fabrica/internal/interfaces"
	"github.com/ternarybob/fabrica/internal/models"
)

// logSequence disambiguates log keys written within the same nanosecond
var logSequence uint64

// StateStorage implements the StateStorage interface for Badger
type StateStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewStateStorage creates a new StateStorage instance
func NewStateStorage(db *BadgerDB, logger arbor.ILogger) interfaces.StateStorage {
	return &StateStorage{
		db:     db,
		logger: logger,
	}
}

// GetNodeState returns the persisted state for an output path, or nil when
// the output has never been recorded
func (s *StateStorage) GetNodeState(ctx context.Context, outputPath string) (*models.NodeState, error) {
	var state models.NodeState
	err := s.db.Store().Get(outputPath, &state)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node state: %w", err)
	}
	return &state, nil
}

// PutNodeState records the command hash behind an output path
func (s *StateStorage) PutNodeState(ctx context.Context, state *models.NodeState) error {
	if err := s.db.Store().Upsert(state.OutputPath, state); err != nil {
		return fmt.Errorf("failed to store node state: %w", err)
	}
	return nil
}

// DeleteNodeStates drops all recorded node state, forcing the next run to
// rebuild everything
func (s *StateStorage) DeleteNodeStates(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.NodeState{}, badgerhold.Where("OutputPath").Ne("")); err != nil {
		return fmt.Errorf("failed to delete node states: %w", err)
	}
	return nil
}

// SaveRun persists a run record
func (s *StateStorage) SaveRun(ctx context.Context, run *models.RunRecord) error {
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// ListRuns returns run records newest first
func (s *StateStorage) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	var records []models.RunRecord
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs := make([]*models.RunRecord, len(records))
	for i := range records {
		runs[i] = &records[i]
	}
	return runs, nil
}

// AppendRunLogs persists captured log entries under their run. A batch lands
// in one raw badger transaction; the key layout makes lexicographic key order
// chronological, so reads replay the log without sorting.
func (s *StateStorage) AppendRunLogs(ctx context.Context, runID string, entries []*models.RunLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	err := s.db.Badger().Update(func(txn *badgerdb.Txn) error {
		for _, entry := range entries {
			entry.RunID = runID
			key := runLogKey(runID, atomic.AddUint64(&logSequence, 1))
			if entry.ID == "" {
				entry.ID = string(key)
			}

			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal run log entry: %w", err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append run logs: %w", err)
	}
	return nil
}

// GetRunLogs returns a run's log entries in chronological order
func (s *StateStorage) GetRunLogs(ctx context.Context, runID string) ([]*models.RunLogEntry, error) {
	var entries []*models.RunLogEntry

	err := s.db.Badger().View(func(txn *badgerdb.Txn) error {
		prefix := runLogPrefix(runID)
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.RunLogEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return fmt.Errorf("failed to unmarshal run log entry: %w", err)
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read run logs: %w", err)
	}
	return entries, nil
}

// runLogPrefix bounds the key space holding one run's log entries
func runLogPrefix(runID string) []byte {
	return []byte("runlog:" + runID + ":")
}

// runLogKey builds a log entry key whose zero-padded nanosecond timestamp
// keeps keys in append order; the sequence number breaks ties within one
// nanosecond.
func runLogKey(runID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("runlog:%s:%020d:%020d", runID, time.Now().UnixNano(), seq))
}

// Close closes the underlying database
func (s *StateStorage) Close() error {
	return s.db.Close()
}
