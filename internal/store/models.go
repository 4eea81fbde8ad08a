package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/creatordesk/creatordesk/internal/importer"
)

// Role controls task visibility: admins see every task, members only the
// tasks assigned to them.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// TeamMember is a staff account on the dashboard.
type TeamMember struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
}

// IsAdmin reports whether the member sees all tasks.
func (m TeamMember) IsAdmin() bool { return m.Role == RoleAdmin }

// Creator is a talent profile tasks can reference by name.
type Creator struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Platform string    `json:"platform,omitempty"`
	Handle   string    `json:"handle,omitempty"`
}

// Campaign groups tasks under a client engagement.
type Campaign struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	CreatorID pgtype.UUID `json:"creator_id"`
	Status    string      `json:"status"`
	StartsAt  pgtype.Date `json:"starts_at"`
	EndsAt    pgtype.Date `json:"ends_at"`
}

// Task is a persisted work item, either created one at a time or landed by
// a batch import.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      importer.Status `json:"status"`
	DueDate     pgtype.Date     `json:"due_date"`
	AssignedTo  uuid.UUID       `json:"assigned_to"`
	CreatorID   pgtype.UUID     `json:"creator_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewTaskParams carries the fields for a single manual task creation.
type NewTaskParams struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      importer.Status `json:"status"`
	DueDate     pgtype.Date     `json:"due_date"`
	AssignedTo  uuid.UUID       `json:"assigned_to"`
	CreatorID   pgtype.UUID     `json:"creator_id"`
}
