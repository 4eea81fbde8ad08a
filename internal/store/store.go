// Package store is the pgx-backed persistence layer. It owns all SQL; no
// other package builds queries.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatordesk/creatordesk/internal/importer"
)

// ErrUnknownAPIKey is returned by CurrentUser for keys with no account.
var ErrUnknownAPIKey = errors.New("unknown API key")

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store over an existing pool. The caller owns the pool's
// lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FetchReferenceTables loads the member-email and creator-name lookup
// tables in two bulk queries. Called fresh at the start of every import
// commit so mid-session roster changes are always picked up.
func (s *Store) FetchReferenceTables(ctx context.Context) (importer.ReferenceTables, error) {
	members := make(map[string]uuid.UUID)
	rows, err := s.pool.Query(ctx, `SELECT id, email FROM team_members`)
	if err != nil {
		return importer.ReferenceTables{}, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var email string
		if err := rows.Scan(&id, &email); err != nil {
			return importer.ReferenceTables{}, fmt.Errorf("scan team member: %w", err)
		}
		members[email] = id
	}
	if err := rows.Err(); err != nil {
		return importer.ReferenceTables{}, fmt.Errorf("team member rows: %w", err)
	}

	creators := make(map[string]uuid.UUID)
	rows, err = s.pool.Query(ctx, `SELECT id, name FROM creators`)
	if err != nil {
		return importer.ReferenceTables{}, fmt.Errorf("query creators: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return importer.ReferenceTables{}, fmt.Errorf("scan creator: %w", err)
		}
		creators[name] = id
	}
	if err := rows.Err(); err != nil {
		return importer.ReferenceTables{}, fmt.Errorf("creator rows: %w", err)
	}

	return importer.NewReferenceTables(members, creators), nil
}

// InsertTaskChunk persists one chunk inside a single transaction. The chunk
// lands in full or not at all; atomicity across chunks is the committer's
// concern, not ours.
func (s *Store) InsertTaskChunk(ctx context.Context, tasks []importer.ResolvedTask) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	for _, task := range tasks {
		_, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, title, description, status, due_date, assigned_to, creator_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), task.Title, task.Description, task.Status,
			task.DueDate, task.AssignedTo, task.CreatorID,
		)
		if err != nil {
			return fmt.Errorf("insert task %q: %w", task.Title, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListTasks returns tasks newest-first. A non-nil assignee restricts the
// result to that member's tasks (member-role visibility).
func (s *Store) ListTasks(ctx context.Context, assignee *uuid.UUID) ([]Task, error) {
	query := `
		SELECT id, title, description, status, due_date, assigned_to, creator_id, created_at
		FROM tasks`
	var args []any
	if assignee != nil {
		query += ` WHERE assigned_to = $1`
		args = append(args, *assignee)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.Status,
			&t.DueDate, &t.AssignedTo, &t.CreatorID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task rows: %w", err)
	}
	return tasks, nil
}

// CreateTask inserts a single task and returns it.
func (s *Store) CreateTask(ctx context.Context, params NewTaskParams) (Task, error) {
	t := Task{
		ID:          uuid.New(),
		Title:       params.Title,
		Description: params.Description,
		Status:      params.Status,
		DueDate:     params.DueDate,
		AssignedTo:  params.AssignedTo,
		CreatorID:   params.CreatorID,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, title, description, status, due_date, assigned_to, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		t.ID, t.Title, t.Description, t.Status, t.DueDate, t.AssignedTo, t.CreatorID,
	).Scan(&t.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus moves a task to a new status.
func (s *Store) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status importer.Status) error {
	tag, err := s.pool.Exec(ctx, `UPDATE tasks SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// ListCreators returns all creator profiles ordered by name.
func (s *Store) ListCreators(ctx context.Context) ([]Creator, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, COALESCE(platform, ''), COALESCE(handle, '')
		FROM creators ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query creators: %w", err)
	}
	defer rows.Close()

	var creators []Creator
	for rows.Next() {
		var c Creator
		if err := rows.Scan(&c.ID, &c.Name, &c.Platform, &c.Handle); err != nil {
			return nil, fmt.Errorf("scan creator: %w", err)
		}
		creators = append(creators, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("creator rows: %w", err)
	}
	return creators, nil
}

// ListCampaigns returns all campaigns, most recent start first.
func (s *Store) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, creator_id, status, starts_at, ends_at
		FROM campaigns ORDER BY starts_at DESC NULLS LAST, name`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatorID, &c.Status, &c.StartsAt, &c.EndsAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("campaign rows: %w", err)
	}
	return campaigns, nil
}

// ListTeamMembers returns all staff accounts ordered by name.
func (s *Store) ListTeamMembers(ctx context.Context) ([]TeamMember, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, email, role FROM team_members ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query team members: %w", err)
	}
	defer rows.Close()

	var members []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Role); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("team member rows: %w", err)
	}
	return members, nil
}

// CurrentUser resolves an API key to the owning team member.
func (s *Store) CurrentUser(ctx context.Context, apiKey string) (TeamMember, error) {
	var m TeamMember
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, role FROM team_members WHERE api_key = $1`,
		apiKey,
	).Scan(&m.ID, &m.Name, &m.Email, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return TeamMember{}, ErrUnknownAPIKey
	}
	if err != nil {
		return TeamMember{}, fmt.Errorf("lookup api key: %w", err)
	}
	return m, nil
}
