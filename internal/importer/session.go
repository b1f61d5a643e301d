package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxsyncpro/taxsync/internal/common"
	"github.com/taxsyncpro/taxsync/internal/entity"
	"github.com/taxsyncpro/taxsync/internal/importer/analyze"
	"github.com/taxsyncpro/taxsync/internal/importer/decode"
	"github.com/taxsyncpro/taxsync/internal/importer/materialize"
)

// Status is the lifecycle position of a Session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusParsing   Status = "parsing"
	StatusReady     Status = "ready"
	StatusFailed    Status = "failed"
	StatusCommitted Status = "committed"
)

// Snapshot is a read-only copy of a Session's published state.
type Snapshot struct {
	ID            uuid.UUID            `json:"id"`
	Status        Status               `json:"status"`
	FileName      string               `json:"file_name,omitempty"`
	FileSize      int64                `json:"file_size,omitempty"`
	Mapping       entity.ColumnMapping `json:"mapping"`
	MappingSource string               `json:"mapping_source,omitempty"`
	ClientID      *int64               `json:"client_id,omitempty"`
	Analysis      *analyze.Analysis    `json:"analysis,omitempty"`
	Result        *materialize.Result  `json:"result,omitempty"`
	Error         string               `json:"error,omitempty"`
	ErrorCode     string               `json:"error_code,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Session is one user's import in progress. At most one parse runs at a
// time: Load cancels any parse already running, and a parse that has been
// superseded never publishes its rows or analysis.
type Session struct {
	id       uuid.UUID
	pipeline *Pipeline

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	status   Status
	prepared *Prepared
	clientID *int64
	result   *materialize.Result
	err      error
	touched  time.Time
}

func NewSession(p *Pipeline) *Session {
	return &Session{
		id:       uuid.New(),
		pipeline: p,
		status:   StatusIdle,
		touched:  time.Now(),
	}
}

func (s *Session) ID() uuid.UUID { return s.id }

// Load parses src and publishes its analysis. It returns ErrSuperseded if a
// later Load started before this one finished.
func (s *Session) Load(ctx context.Context, src decode.Source) (*Snapshot, error) {
	parseCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.status = StatusParsing
	s.prepared = nil
	s.result = nil
	s.err = nil
	s.touched = time.Now()
	s.mu.Unlock()

	prep, err := s.pipeline.Prepare(parseCtx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if s.gen != gen {
		return nil, common.ErrSuperseded
	}
	s.cancel = nil
	s.touched = time.Now()
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			err = common.ErrSuperseded
		}
		s.status = StatusFailed
		s.err = err
		return s.snapshotLocked(), err
	}
	s.status = StatusReady
	s.prepared = prep
	return s.snapshotLocked(), nil
}

// SetMapping replaces the reviewed mapping and refreshes the analysis.
func (s *Session) SetMapping(ctx context.Context, mapping entity.ColumnMapping) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prep, err := s.readyLocked()
	if err != nil {
		return nil, err
	}
	if err := CheckMapping(mapping, prep.Table); err != nil {
		return nil, err
	}
	analysis, err := s.pipeline.Analyze(ctx, prep.Table, mapping)
	if err != nil {
		return nil, err
	}
	next := *prep
	next.Mapping = mapping
	next.Analysis = analysis
	s.prepared = &next
	s.touched = time.Now()
	return s.snapshotLocked(), nil
}

// SetClient selects the client stamped on every imported receipt; nil clears it.
func (s *Session) SetClient(clientID *int64) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clientID != nil {
		id := *clientID
		clientID = &id
	}
	s.clientID = clientID
	s.touched = time.Now()
	return s.snapshotLocked()
}

// Commit materializes the loaded rows with the current mapping and client.
// begin, when set, runs under the session lock once the session is ready to
// commit; an error from it aborts the commit before any row is written.
//
// A commit that fails after writing some rows leaves the session failed for
// good: retrying it would write those rows a second time.
func (s *Session) Commit(ctx context.Context, begin func(*Prepared) error) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prep, err := s.readyLocked()
	if err != nil {
		return nil, err
	}
	if begin != nil {
		if err := begin(prep); err != nil {
			return nil, err
		}
	}
	res, err := s.pipeline.Commit(ctx, prep.Table.Rows, prep.Mapping, s.clientID)
	s.touched = time.Now()
	if err != nil {
		if res != nil && res.Count > 0 {
			s.result = res
			s.status = StatusFailed
			s.err = err
		}
		return s.snapshotLocked(), err
	}
	s.result = res
	s.status = StatusCommitted
	return s.snapshotLocked(), nil
}

// Prepared returns the published upload, if any.
func (s *Session) Prepared() *Prepared {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepared
}

func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close cancels any running parse.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

func (s *Session) readyLocked() (*Prepared, error) {
	switch {
	case s.status == StatusCommitted:
		return nil, common.NewAppError(common.CodeImportFailure, "This file has already been imported.", nil)
	case s.status == StatusFailed && s.result != nil:
		return nil, common.NewAppError(common.CodeImportFailure,
			fmt.Sprintf("This import stopped after %d receipts were saved. Upload the file again to retry.", s.result.Count), nil)
	case s.prepared == nil:
		return nil, common.NewAppError(common.CodeNoData, "No file has been loaded yet.", nil)
	}
	return s.prepared, nil
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ID:        s.id,
		Status:    s.status,
		ClientID:  s.clientID,
		Result:    s.result,
		UpdatedAt: s.touched,
	}
	if p := s.prepared; p != nil {
		snap.FileName = p.FileName
		snap.FileSize = p.Size
		snap.Mapping = p.Mapping
		snap.MappingSource = p.MappingSource
		snap.Analysis = p.Analysis
	}
	if s.err != nil {
		snap.Error = common.UserMessage(s.err)
		snap.ErrorCode = common.ErrorCode(s.err)
	}
	return snap
}
