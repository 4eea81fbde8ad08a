package importer

import (
	"reflect"
	"testing"
)

func row(fields map[string]string) RawRow {
	return RawRow{Position: 2, Fields: fields}
}

func TestValidateRow_RuleOrder(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		wantMsgs []string
	}{
		{
			name:     "empty title",
			fields:   map[string]string{ColAssigneeEmail: "a@b.com"},
			wantMsgs: []string{MsgTitleRequired},
		},
		{
			name:     "title whitespace only",
			fields:   map[string]string{ColTitle: "   ", ColAssigneeEmail: "a@b.com"},
			wantMsgs: []string{MsgTitleRequired},
		},
		{
			name:     "empty assignee",
			fields:   map[string]string{ColTitle: "Write brief"},
			wantMsgs: []string{MsgAssigneeRequired},
		},
		{
			name:     "bad status",
			fields:   map[string]string{ColTitle: "Write brief", ColAssigneeEmail: "a@b.com", ColStatus: "doing"},
			wantMsgs: []string{MsgInvalidStatus},
		},
		{
			name:     "bad date",
			fields:   map[string]string{ColTitle: "Write brief", ColAssigneeEmail: "a@b.com", ColDueDate: "04/15/2025"},
			wantMsgs: []string{MsgInvalidDate},
		},
		{
			name:     "impossible calendar date",
			fields:   map[string]string{ColTitle: "Write brief", ColAssigneeEmail: "a@b.com", ColDueDate: "2025-02-30"},
			wantMsgs: []string{MsgInvalidDate},
		},
		{
			name:   "all rules violated, fixed order",
			fields: map[string]string{ColStatus: "later", ColDueDate: "tomorrow"},
			wantMsgs: []string{
				MsgTitleRequired,
				MsgAssigneeRequired,
				MsgInvalidStatus,
				MsgInvalidDate,
			},
		},
		{
			name:   "bad date regardless of other fields",
			fields: map[string]string{ColDueDate: "not-a-date"},
			wantMsgs: []string{
				MsgTitleRequired,
				MsgAssigneeRequired,
				MsgInvalidDate,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rowErr := ValidateRow(row(tt.fields))
			if rowErr == nil {
				t.Fatal("expected a RowError, got none")
			}
			if !reflect.DeepEqual(rowErr.Messages, tt.wantMsgs) {
				t.Errorf("messages = %v, want %v", rowErr.Messages, tt.wantMsgs)
			}
			if rowErr.Position != 2 {
				t.Errorf("position = %d, want 2", rowErr.Position)
			}
		})
	}
}

func TestValidateRow_Defaults(t *testing.T) {
	rec, rowErr := ValidateRow(row(map[string]string{
		ColTitle:         "  Write brief  ",
		ColAssigneeEmail: " a@b.com ",
	}))
	if rowErr != nil {
		t.Fatalf("unexpected row error: %v", rowErr.Messages)
	}
	if rec.Title != "Write brief" {
		t.Errorf("title = %q, want trimmed", rec.Title)
	}
	if rec.AssigneeEmail != "a@b.com" {
		t.Errorf("email = %q, want trimmed", rec.AssigneeEmail)
	}
	if rec.Status != StatusTodo {
		t.Errorf("status = %q, want default todo", rec.Status)
	}
	if rec.DueDate.Valid {
		t.Error("due date should be null when absent")
	}
}

func TestValidateRow_StatusCanonicalized(t *testing.T) {
	tests := []struct {
		in   string
		want Status
	}{
		{"todo", StatusTodo},
		{"TODO", StatusTodo},
		{"In_Progress", StatusInProgress},
		{"BLOCKED", StatusBlocked},
		{"Done", StatusDone},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			rec, rowErr := ValidateRow(row(map[string]string{
				ColTitle:         "t",
				ColAssigneeEmail: "a@b.com",
				ColStatus:        tt.in,
			}))
			if rowErr != nil {
				t.Fatalf("unexpected row error: %v", rowErr.Messages)
			}
			if rec.Status != tt.want {
				t.Errorf("status = %q, want %q", rec.Status, tt.want)
			}
		})
	}
}

func TestValidateRow_DueDateParsed(t *testing.T) {
	rec, rowErr := ValidateRow(row(map[string]string{
		ColTitle:         "t",
		ColAssigneeEmail: "a@b.com",
		ColDueDate:       "2025-04-15",
	}))
	if rowErr != nil {
		t.Fatalf("unexpected row error: %v", rowErr.Messages)
	}
	if !rec.DueDate.Valid {
		t.Fatal("due date should be set")
	}
	if got := rec.DueDate.Time.Format(DateLayout); got != "2025-04-15" {
		t.Errorf("due date = %s, want 2025-04-15", got)
	}
}

func TestValidateAll_RowsIndependent(t *testing.T) {
	rows := []RawRow{
		{Position: 2, Fields: map[string]string{ColTitle: "one", ColAssigneeEmail: "a@b.com"}},
		{Position: 3, Fields: map[string]string{ColAssigneeEmail: "a@b.com"}},
		{Position: 4, Fields: map[string]string{ColTitle: "three", ColAssigneeEmail: "c@d.com"}},
	}

	records, errs := ValidateAll(rows)

	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if len(errs) != 1 {
		t.Fatalf("row errors = %d, want 1", len(errs))
	}
	if errs[0].Position != 3 {
		t.Errorf("error position = %d, want 3", errs[0].Position)
	}
	if records[0].Title != "one" || records[1].Title != "three" {
		t.Errorf("records out of order: %q, %q", records[0].Title, records[1].Title)
	}
}
