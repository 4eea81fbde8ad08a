package importer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is an import session's lifecycle position.
//
//	Empty -> Parsed -> Validated -> Committing -> Committed
//
// Failed is reachable from Parsed (parse failure) or Committing
// (resolution or commit failure). A failed commit leaves the rows intact,
// so commit may be attempted again from Failed; Reset returns to Empty
// from anywhere. Every recovery is user-initiated; nothing here retries
// automatically.
type State string

const (
	StateEmpty      State = "empty"
	StateParsed     State = "parsed"
	StateValidated  State = "validated"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// Mode distinguishes the two row sources.
type Mode string

const (
	ModeFile Mode = "file"
	ModeGrid Mode = "grid"
)

// PreviewLimit is the number of rows shown in the dry-run preview.
// Validation always runs over all rows, not just the preview slice.
const PreviewLimit = 10

// ErrCommitNotAllowed is returned when commit is attempted while row
// errors are outstanding, no valid record exists, or a commit is already
// in flight.
var ErrCommitNotAllowed = errors.New("commit not allowed in current session state")

// Session holds the mutable state of one import attempt, from input
// acquisition to commit or reset. The controller is the only component
// that mutates it; pipeline stages never overlap.
type Session struct {
	ID        string
	Mode      Mode
	FileName  string
	CreatedAt time.Time

	mu        sync.Mutex
	state     State
	source    RowSource
	grid      *GridSource // non-nil in grid mode
	rawRows   []RawRow
	records   []TaskRecord
	rowErrors []RowError
	committed int
	failure   string
}

// NewFileSession parses fileData immediately. On a malformed document the
// session is returned in Failed state together with the ParseError;
// nothing is salvaged from a partial parse.
func NewFileSession(fileName string, fileData []byte) (*Session, error) {
	s := &Session{
		ID:        uuid.New().String(),
		Mode:      ModeFile,
		FileName:  fileName,
		CreatedAt: time.Now(),
		state:     StateEmpty,
		source:    NewFileSource(fileData),
	}

	if err := s.refresh(); err != nil {
		return s, err
	}
	return s, nil
}

// NewGridSession starts an empty manual-entry session.
func NewGridSession() *Session {
	grid := NewGridSource()
	return &Session{
		ID:        uuid.New().String(),
		Mode:      ModeGrid,
		CreatedAt: time.Now(),
		state:     StateEmpty,
		source:    grid,
		grid:      grid,
	}
}

// refresh re-runs parse + validate from the row source.
func (s *Session) refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked()
}

func (s *Session) refreshLocked() error {
	rows, err := s.source.Rows()
	if err != nil {
		s.state = StateFailed
		s.failure = err.Error()
		s.rawRows = nil
		s.records = nil
		s.rowErrors = nil
		return err
	}

	s.rawRows = rows
	s.state = StateParsed
	s.records, s.rowErrors = ValidateAll(rows)
	s.failure = ""
	if len(rows) > 0 {
		s.state = StateValidated
	}
	return nil
}

// AddGridRow appends a row in grid mode and re-validates. Returns the new
// row's opaque ID. The session mutex covers the mutation and the
// revalidation together; concurrent edits serialize here.
func (s *Session) AddGridRow(fields map[string]string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid == nil {
		return "", fmt.Errorf("session %s is not in grid mode", s.ID)
	}
	id := s.grid.AddRow(fields)
	return id, s.refreshLocked()
}

// SetGridCell updates one cell in grid mode and re-validates.
func (s *Session) SetGridCell(rowID, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid == nil {
		return fmt.Errorf("session %s is not in grid mode", s.ID)
	}
	if err := s.grid.SetCell(rowID, column, value); err != nil {
		return err
	}
	return s.refreshLocked()
}

// RemoveGridRow deletes a row in grid mode and re-validates.
func (s *Session) RemoveGridRow(rowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grid == nil {
		return fmt.Errorf("session %s is not in grid mode", s.ID)
	}
	if err := s.grid.RemoveRow(rowID); err != nil {
		return err
	}
	return s.refreshLocked()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Records returns the validated records, in input order.
func (s *Session) Records() []TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaskRecord(nil), s.records...)
}

// RowErrors returns the outstanding per-row errors, in input order.
func (s *Session) RowErrors() []RowError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RowError(nil), s.rowErrors...)
}

// Preview returns the first PreviewLimit raw rows for display.
func (s *Session) Preview() []RawRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.rawRows)
	if n > PreviewLimit {
		n = PreviewLimit
	}
	return append([]RawRow(nil), s.rawRows[:n]...)
}

// TotalRows returns the number of non-blank input rows.
func (s *Session) TotalRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rawRows)
}

// Committed returns the count of rows persisted by the last commit,
// including the partial count when a later chunk failed.
func (s *Session) Committed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.committed
}

// Failure returns the last batch-level error message, if any.
func (s *Session) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// CanCommit reports whether the commit control is enabled: no outstanding
// row errors and at least one validated record.
func (s *Session) CanCommit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canCommitLocked()
}

func (s *Session) canCommitLocked() bool {
	committable := s.state == StateValidated ||
		(s.state == StateFailed && len(s.records) > 0)
	return committable && len(s.rowErrors) == 0 && len(s.records) > 0
}

// BeginCommit transitions to Committing, returning the records to
// resolve. Allowed from Validated, and from Failed when the row data
// survived the failure so the user can retry without re-entering it.
// Once begun, the commit runs to completion or first failure; there is
// no cancellation.
func (s *Session) BeginCommit() ([]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.canCommitLocked() {
		return nil, ErrCommitNotAllowed
	}
	s.state = StateCommitting
	return append([]TaskRecord(nil), s.records...), nil
}

// CompleteCommit records a successful commit.
func (s *Session) CompleteCommit(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateCommitted
	s.committed = count
	s.failure = ""
}

// FailCommit records a resolution or commit failure. Session data is
// preserved so the user can retry without re-entering rows; committed
// carries the partial count when a later chunk failed.
func (s *Session) FailCommit(committed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.committed = committed
	s.failure = err.Error()
}

// Reset clears all session state back to Empty. In grid mode the grid is
// replaced with a fresh empty one.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateEmpty
	s.rawRows = nil
	s.records = nil
	s.rowErrors = nil
	s.committed = 0
	s.failure = ""

	if s.Mode == ModeGrid {
		s.grid = NewGridSource()
		s.source = s.grid
	}
}
