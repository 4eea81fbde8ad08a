package importer

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// DateLayout is the only accepted due-date format.
const DateLayout = "2006-01-02"

// Validation messages surfaced per offending row. The wording is part of
// the UI contract; change with care.
const (
	MsgTitleRequired    = "Title is required"
	MsgAssigneeRequired = "Assignee email is required"
	MsgInvalidStatus    = "Invalid status. Use: todo, in_progress, blocked, done"
	MsgInvalidDate      = "Invalid date format. Use YYYY-MM-DD"
)

// ValidateRow applies the field rules to one raw row in fixed order so
// error lists are deterministic. All violations are collected; a row with
// any violation yields a RowError instead of a record. An absent status
// defaults to todo, an absent due date stays null.
func ValidateRow(row RawRow) (TaskRecord, *RowError) {
	var msgs []string

	title := strings.TrimSpace(row.Fields[ColTitle])
	if title == "" {
		msgs = append(msgs, MsgTitleRequired)
	}

	email := strings.TrimSpace(row.Fields[ColAssigneeEmail])
	if email == "" {
		msgs = append(msgs, MsgAssigneeRequired)
	}

	status := StatusTodo
	if raw := strings.TrimSpace(row.Fields[ColStatus]); raw != "" {
		s, ok := ParseStatus(raw)
		if !ok {
			msgs = append(msgs, MsgInvalidStatus)
		} else {
			status = s
		}
	}

	var due pgtype.Date
	if raw := strings.TrimSpace(row.Fields[ColDueDate]); raw != "" {
		d, err := ParseDueDate(raw)
		if err != nil {
			msgs = append(msgs, MsgInvalidDate)
		} else {
			due = d
		}
	}

	if len(msgs) > 0 {
		return TaskRecord{}, &RowError{
			Position: row.Position,
			RowID:    row.ID,
			Messages: msgs,
			Row:      row,
		}
	}

	return TaskRecord{
		Title:         title,
		Description:   strings.TrimSpace(row.Fields[ColDescription]),
		Status:        status,
		DueDate:       due,
		AssigneeEmail: email,
		CreatorName:   strings.TrimSpace(row.Fields[ColCreatorName]),
	}, nil
}

// ValidateAll runs ValidateRow over every row. Rows are independent: one
// row's failure never affects another's validity. Records and errors are
// each returned in input order and never mixed.
func ValidateAll(rows []RawRow) ([]TaskRecord, []RowError) {
	var records []TaskRecord
	var errs []RowError

	for _, row := range rows {
		rec, rowErr := ValidateRow(row)
		if rowErr != nil {
			errs = append(errs, *rowErr)
			continue
		}
		records = append(records, rec)
	}

	return records, errs
}

// ParseDueDate parses a strict YYYY-MM-DD date into a pgtype.Date.
func ParseDueDate(raw string) (pgtype.Date, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// ParseStatus matches a raw status value case-insensitively against the
// four workflow states, returning the lower-cased canonical value.
func ParseStatus(raw string) (Status, bool) {
	for _, s := range Statuses {
		if strings.EqualFold(raw, string(s)) {
			return s, true
		}
	}
	return "", false
}
