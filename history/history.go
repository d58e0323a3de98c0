// Package history serves previously published schedule data. A Service is
// constructed once per process, loads every dataset's latest blob during
// Initialize, and answers queries from memory afterwards. Query methods
// before Initialize fail with ErrNotInitialized.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/aliawhy/train-list/publish"
	"github.com/aliawhy/train-list/traindata"
)

// ErrNotInitialized is returned by query methods called before a successful
// Initialize.
var ErrNotInitialized = errors.New("history service not initialized")

// ErrUnknownDataset is returned for datasets Initialize did not load.
var ErrUnknownDataset = errors.New("unknown dataset")

// Snapshot is one dataset's latest published blob, decoded, together with the
// version pointer it was found through.
type Snapshot struct {
	Pointer publish.VersionPointer
	Records []traindata.TrainRecord
}

// Loader fetches the latest version pointer and the encoded blob bytes it
// names for one dataset.
type Loader func(ctx context.Context, dataset publish.Dataset) (publish.VersionPointer, []byte, error)

// Service answers schedule queries from the latest published snapshots.
type Service struct {
	loader Loader
	log    *zap.Logger

	mu          sync.RWMutex
	initialized bool
	snapshots   map[string]Snapshot
}

// NewService creates an uninitialized Service backed by the given loader.
func NewService(loader Loader, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		loader:    loader,
		log:       log,
		snapshots: map[string]Snapshot{},
	}
}

// Initialize loads the latest blob of every dataset. Datasets load
// independently: one failure does not stop the others, and all failures are
// reported together. The service becomes queryable only when every dataset
// loaded. Initialize may be called again after a failure.
func (s *Service) Initialize(ctx context.Context, datasets []publish.Dataset) error {
	if len(datasets) == 0 {
		return errors.New("no datasets to load")
	}

	loaded := map[string]Snapshot{}
	var failures []error

	for _, dataset := range datasets {
		snapshot, err := s.loadDataset(ctx, dataset)
		if err != nil {
			s.log.Warn("dataset load failed",
				zap.String("dataset", dataset.Name),
				zap.Error(err))
			failures = append(failures, fmt.Errorf("load dataset %q: %w", dataset.Name, err))
			continue
		}

		s.log.Info("dataset loaded",
			zap.String("dataset", dataset.Name),
			zap.String("version", snapshot.Pointer.Version),
			zap.Int("records", len(snapshot.Records)))
		loaded[dataset.Name] = snapshot
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = loaded
	s.initialized = true
	return nil
}

func (s *Service) loadDataset(ctx context.Context, dataset publish.Dataset) (Snapshot, error) {
	pointer, raw, err := s.loader(ctx, dataset)
	if err != nil {
		return Snapshot{}, err
	}

	codec, err := traindata.CodecFor(dataset.Ext)
	if err != nil {
		return Snapshot{}, err
	}
	decoded, err := codec.Decode(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode blob %q: %w", pointer.FileName, err)
	}

	var records []traindata.TrainRecord
	if err := json.Unmarshal(decoded, &records); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal blob %q: %w", pointer.FileName, err)
	}

	return Snapshot{Pointer: pointer, Records: records}, nil
}

// Snapshot returns the loaded snapshot of one dataset.
func (s *Service) Snapshot(dataset string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Snapshot{}, ErrNotInitialized
	}
	snapshot, ok := s.snapshots[dataset]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownDataset, dataset)
	}
	return snapshot, nil
}

// Records returns every record of one dataset's latest blob.
func (s *Service) Records(dataset string) ([]traindata.TrainRecord, error) {
	snapshot, err := s.Snapshot(dataset)
	if err != nil {
		return nil, err
	}
	return snapshot.Records, nil
}

// RecordsOn returns the records of one dataset for a single date (YYYY-MM-DD).
func (s *Service) RecordsOn(dataset, date string) ([]traindata.TrainRecord, error) {
	all, err := s.Records(dataset)
	if err != nil {
		return nil, err
	}

	var matched []traindata.TrainRecord
	for _, record := range all {
		if record.Date == date {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// Version returns the version stamp of one dataset's latest blob.
func (s *Service) Version(dataset string) (string, error) {
	snapshot, err := s.Snapshot(dataset)
	if err != nil {
		return "", err
	}
	return snapshot.Pointer.Version, nil
}
