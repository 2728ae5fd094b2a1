package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"bank-dashboard/pkg/backend"
	"bank-dashboard/pkg/logging"
	"bank-dashboard/pkg/metrics"
	"bank-dashboard/pkg/transaction"

	"go.uber.org/zap"
)

// Fetcher retrieves the full transaction list from the backend.
type Fetcher interface {
	FetchTransactions(ctx context.Context) ([]transaction.Record, error)
}

// State is a snapshot of the store.
type State struct {
	Records    []transaction.Record `json:"transactions"`
	IsLoading  bool                 `json:"is_loading"`
	Generation uint64               `json:"generation"`
	LastError  string               `json:"-"`
}

// Config holds optional collaborators for the store.
type Config struct {
	Logger  *logging.Logger
	Metrics metrics.MetricsCollector
}

// Store owns the transaction list and the loading flag. Records are only
// ever replaced wholesale: by the server list on success, by an empty list
// on any failure.
//
// Every Refresh is tagged with a sequence number. Only the most recently
// issued request may apply its outcome; a response that arrives after a
// newer request was issued is discarded.
type Store struct {
	fetcher Fetcher
	logger  *logging.Logger
	metrics metrics.MetricsCollector

	mu      sync.RWMutex
	records []transaction.Record
	loading bool
	issued  uint64
	applied uint64
	lastErr string
	subs    map[uint64]func(State)
	nextSub uint64
}

// New creates an empty store backed by fetcher.
func New(fetcher Fetcher, config Config) *Store {
	if config.Logger == nil {
		config.Logger = logging.L()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NoOpCollector{}
	}

	return &Store{
		fetcher: fetcher,
		logger:  config.Logger.Named("store"),
		metrics: config.Metrics,
		records: []transaction.Record{},
		subs:    make(map[uint64]func(State)),
	}
}

// Refresh fetches the transaction list once and replaces the records.
// Failures are logged and leave an empty list; the classified error is
// returned for callers that want it, but the store is consistent either way.
func (s *Store) Refresh(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.loading = true
	pending := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(pending)

	records, err := s.fetcher.FetchTransactions(ctx)
	if err != nil {
		s.logFailure(err)
		records = []transaction.Record{}
	} else if records == nil {
		records = []transaction.Record{}
	}

	s.mu.Lock()
	if seq != s.issued {
		latest := s.issued
		s.mu.Unlock()
		s.metrics.RecordStaleResponse()
		s.logger.Debug("discarding stale transactions response",
			zap.Uint64("sequence", seq),
			zap.Uint64("latest", latest),
		)
		return err
	}
	s.records = records
	s.loading = false
	s.applied = seq
	s.lastErr = ""
	if err != nil {
		s.lastErr = backend.ClassifyError(err)
	}
	settled := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.RecordRefresh(backend.ClassifyError(err), len(records), time.Since(start))
	s.notify(settled)

	return err
}

// logFailure writes the diagnostic for a failed fetch.
func (s *Store) logFailure(err error) {
	var reqErr *backend.RequestError
	errors.As(err, &reqErr)

	switch {
	case backend.IsBackendError(err) && reqErr != nil:
		s.logger.Error("backend error",
			zap.String("error", reqErr.Message),
			zap.Int("status", reqErr.Status),
		)
	case backend.IsShapeError(err):
		s.logger.Error("unexpected response format", zap.Error(err))
	default:
		s.logger.Error("failed to fetch transactions",
			zap.String("kind", backend.ClassifyError(err)),
			zap.Error(err),
		)
	}
}

// State returns a snapshot of the current state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Records returns the current records.
func (s *Store) Records() []transaction.Record {
	return s.State().Records
}

// IsLoading reports whether the latest refresh is still in flight.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// GroupByAccount returns the current records grouped by account.
func (s *Store) GroupByAccount() []transaction.Group {
	return transaction.GroupByAccount(s.Records())
}

// Subscribe registers fn to be called after every state change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(state State) {
	s.mu.RLock()
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(state)
	}
}

// snapshotLocked copies the state. Records are immutable, so sharing the
// backing array is safe as long as the slice is never appended to in place.
func (s *Store) snapshotLocked() State {
	return State{
		Records:    s.records[:len(s.records):len(s.records)],
		IsLoading:  s.loading,
		Generation: s.applied,
		LastError:  s.lastErr,
	}
}
