// Package importer implements the tabular batch import pipeline for tasks:
// row parsing, per-field validation, reference resolution against the team
// and creator rosters, and chunked transactional commits.
// This package has no HTTP dependencies and can be driven by any frontend.
package importer

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column names recognized in import input. Header matching is
// case-insensitive; extra columns are ignored.
const (
	ColTitle         = "title"
	ColDescription   = "description"
	ColStatus        = "status"
	ColDueDate       = "due_date"
	ColAssigneeEmail = "assigned_to_email"
	ColCreatorName   = "creator_name"
)

// Status is the task workflow state.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
)

// Statuses lists the valid workflow states in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusBlocked, StatusDone}

// RawRow is one unvalidated input row keyed by lower-cased column name.
// Position is the 1-based source position: the physical CSV line in file
// mode, the row ordinal in grid mode. ID is an opaque identifier used only
// for grid-row addressing, never for business logic.
type RawRow struct {
	ID       string            `json:"id,omitempty"`
	Position int               `json:"position"`
	Fields   map[string]string `json:"fields"`
}

// TaskRecord is a row that passed every validation rule. It is immutable
// once produced; references are still human-readable strings at this stage.
type TaskRecord struct {
	Title         string
	Description   string
	Status        Status
	DueDate       pgtype.Date
	AssigneeEmail string
	CreatorName   string
}

// ResolvedTask is a TaskRecord with its references mapped to internal
// identifiers. CreatorID is null when no creator name was given or the
// name matched no known creator.
type ResolvedTask struct {
	Title       string
	Description string
	Status      Status
	DueDate     pgtype.Date
	AssignedTo  uuid.UUID
	CreatorID   pgtype.UUID
}

// RowError reports every rule violation for a single row. Rows with errors
// never produce a TaskRecord and block the commit step until fixed or
// removed.
type RowError struct {
	Position int      `json:"position"`
	RowID    string   `json:"rowId,omitempty"`
	Messages []string `json:"messages"`
	Row      RawRow   `json:"row"`
}

// ParseError means the input document itself is malformed. It is fatal to
// the whole import; no partial parse is surfaced.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "malformed CSV: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// ResolutionError means a required assignee reference could not be mapped.
// It aborts the whole pending commit before anything is persisted.
type ResolutionError struct {
	Email string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no team member found for email %q", e.Email)
}

// CommitError means a chunk submission failed. Chunks before the failed one
// stay persisted; Committed makes that partial count visible to the caller.
type CommitError struct {
	Chunk     int
	Committed int
	Err       error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("batch %d failed after %d rows committed: %v", e.Chunk+1, e.Committed, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
