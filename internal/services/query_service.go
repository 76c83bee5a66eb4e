package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/metrics"
	"github.com/stwalsh4118/covidroom/internal/models"
)

// Number of executions kept in the SQL editor history.
const MaxHistoryEntries = 50

// Query label used for ad-hoc statements in metrics.
const adhocQueryLabel = "adhoc"

// SQL editor errors
var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrQueryFailed  = errors.New("query failed")
	ErrQueryTimeout = errors.New("query timed out")
)

// QueryResult is the outcome of one ad-hoc execution.
type QueryResult struct {
	ID         string       `json:"id"`
	SQL        string       `json:"sql"`
	Columns    []string     `json:"columns"`
	Rows       []models.Row `json:"rows"`
	RowCount   int          `json:"row_count"`
	Truncated  bool         `json:"truncated"`
	DurationMS int64        `json:"duration_ms"`
}

// HistoryEntry records one execution, successful or not.
type HistoryEntry struct {
	ID         string             `json:"id"`
	SQL        string             `json:"sql"`
	Status     models.QueryStatus `json:"status"`
	RowCount   int                `json:"row_count"`
	DurationMS int64              `json:"duration_ms"`
	Error      string             `json:"error,omitempty"`
	ExecutedAt time.Time          `json:"executed_at"`
}

// QueryService defines the SQL editor: free-form statements against the
// room's tables.
type QueryService interface {
	// Execute runs sql with the configured timeout and row cap.
	// Returns ErrEmptyQuery for blank input, ErrQueryTimeout when the
	// deadline passes and ErrQueryFailed wrapping the engine message otherwise.
	Execute(ctx context.Context, sql string) (*QueryResult, error)

	// History returns past executions, newest first.
	History() []HistoryEntry
}

// QueryOptions bounds ad-hoc execution.
type QueryOptions struct {
	Timeout time.Duration
	MaxRows int
}

// queryService is the concrete implementation of QueryService.
type queryService struct {
	engine  database.Engine
	opts    QueryOptions
	log     *logger.Logger
	metrics *metrics.Manager

	mu      sync.Mutex
	history []HistoryEntry
}

// NewQueryService creates a new instance of QueryService.
func NewQueryService(engine database.Engine, opts QueryOptions, log *logger.Logger, m *metrics.Manager) QueryService {
	return &queryService{
		engine:  engine,
		opts:    opts,
		log:     log.WithComponent("sql-editor"),
		metrics: m,
	}
}

func (s *queryService) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, ErrEmptyQuery
	}

	id := uuid.New().String()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	batch, err := s.engine.QueryLimit(ctx, s.opts.MaxRows, sql)
	elapsed := time.Since(start)
	s.metrics.ObserveQuery(adhocQueryLabel, err, elapsed)

	entry := HistoryEntry{
		ID:         id,
		SQL:        sql,
		DurationMS: elapsed.Milliseconds(),
		ExecutedAt: start.UTC(),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrQueryTimeout, s.opts.Timeout)
		} else {
			err = fmt.Errorf("%w: %s", ErrQueryFailed, rootMessage(err))
		}

		entry.Status = models.StatusError
		entry.Error = err.Error()
		s.record(entry)

		s.log.Warn("Ad-hoc query failed", map[string]interface{}{
			"query_id": id,
			"error":    err.Error(),
		})
		return nil, err
	}

	entry.Status = models.StatusReady
	entry.RowCount = batch.Len()
	s.record(entry)

	s.log.Info("Ad-hoc query executed", map[string]interface{}{
		"query_id":    id,
		"rows":        batch.Len(),
		"truncated":   batch.Truncated,
		"duration_ms": entry.DurationMS,
	})

	return &QueryResult{
		ID:         id,
		SQL:        sql,
		Columns:    batch.Columns,
		Rows:       batch.Rows,
		RowCount:   batch.Len(),
		Truncated:  batch.Truncated,
		DurationMS: entry.DurationMS,
	}, nil
}

func (s *queryService) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HistoryEntry, len(s.history))
	for i, e := range s.history {
		out[len(s.history)-1-i] = e
	}
	return out
}

func (s *queryService) record(e HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, e)
	if over := len(s.history) - MaxHistoryEntries; over > 0 {
		s.history = append([]HistoryEntry(nil), s.history[over:]...)
	}
}

// rootMessage strips our own wrapping so the editor shows the engine's text.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
