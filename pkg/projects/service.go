package projects

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atelierhq/atelier/pkg/observability"
)

// Service manages projects, milestones, and tasks
type Service struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewService creates a new project service
func NewService(db *sql.DB, logger *observability.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateProject creates a draft project for a client
func (s *Service) CreateProject(ctx context.Context, studioID, clientID int64, name, description string) (*Project, error) {
	var p Project
	var status string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO projects (studio_id, client_id, name, description, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, studio_id, client_id, name, description, status, created_at, updated_at`,
		studioID, clientID, name, description, string(StatusDraft),
	).Scan(&p.ID, &p.StudioID, &p.ClientID, &p.Name, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	p.Status = ProjectStatus(status)
	return &p, nil
}

// GetProject fetches a project by ID
func (s *Service) GetProject(ctx context.Context, id int64) (*Project, error) {
	var p Project
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, studio_id, client_id, name, description, status, created_at, updated_at
		 FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.StudioID, &p.ClientID, &p.Name, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project: %w", err)
	}
	p.Status = ProjectStatus(status)
	return &p, nil
}

// ListProjects lists a studio's projects, optionally filtered by client
func (s *Service) ListProjects(ctx context.Context, studioID int64, clientID *int64) ([]Project, error) {
	query := `SELECT id, studio_id, client_id, name, description, status, created_at, updated_at
		 FROM projects WHERE studio_id = $1`
	args := []interface{}{studioID}
	if clientID != nil {
		query += ` AND client_id = $2`
		args = append(args, *clientID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var status string
		if err := rows.Scan(&p.ID, &p.StudioID, &p.ClientID, &p.Name, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Status = ProjectStatus(status)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateStatus transitions a project to a new status
func (s *Service) UpdateStatus(ctx context.Context, id int64, status ProjectStatus) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid project status: %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("updating project status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes a project and its milestones and tasks
func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMilestone adds a milestone to a project
func (s *Service) CreateMilestone(ctx context.Context, projectID int64, title string, dueDate *time.Time) (*Milestone, error) {
	var m Milestone
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO milestones (project_id, title, due_date) VALUES ($1, $2, $3)
		 RETURNING id, project_id, title, due_date, completed_at, created_at`,
		projectID, title, dueDate,
	).Scan(&m.ID, &m.ProjectID, &m.Title, &m.DueDate, &m.CompletedAt, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating milestone: %w", err)
	}
	return &m, nil
}

// CompleteMilestone marks a milestone complete
func (s *Service) CompleteMilestone(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE milestones SET completed_at = $1 WHERE id = $2 AND completed_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("completing milestone: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMilestones lists a project's milestones in due-date order
func (s *Service) ListMilestones(ctx context.Context, projectID int64) ([]Milestone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, due_date, completed_at, created_at
		 FROM milestones WHERE project_id = $1 ORDER BY due_date, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing milestones: %w", err)
	}
	defer rows.Close()

	var milestones []Milestone
	for rows.Next() {
		var m Milestone
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.DueDate, &m.CompletedAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning milestone: %w", err)
		}
		milestones = append(milestones, m)
	}
	return milestones, rows.Err()
}

// CreateTask adds a task to a project
func (s *Service) CreateTask(ctx context.Context, projectID int64, milestoneID *int64, title string) (*Task, error) {
	var t Task
	var status string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (project_id, milestone_id, title, status) VALUES ($1, $2, $3, $4)
		 RETURNING id, project_id, milestone_id, title, status, assignee_id, created_at`,
		projectID, milestoneID, title, string(TaskOpen),
	).Scan(&t.ID, &t.ProjectID, &t.MilestoneID, &t.Title, &status, &t.AssigneeID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	t.Status = TaskStatus(status)
	return &t, nil
}

// AssignTask sets the task assignee
func (s *Service) AssignTask(ctx context.Context, id, assigneeID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET assignee_id = $1 WHERE id = $2`,
		assigneeID, id,
	)
	if err != nil {
		return fmt.Errorf("assigning task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskStatus moves a task between open, in_progress, and done
func (s *Service) UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus) error {
	switch status {
	case TaskOpen, TaskInProgress, TaskDone:
	default:
		return fmt.Errorf("invalid task status: %s", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks lists a project's tasks
func (s *Service) ListTasks(ctx context.Context, projectID int64) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, milestone_id, title, status, assignee_id, created_at
		 FROM tasks WHERE project_id = $1 ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var status string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.MilestoneID, &t.Title, &status, &t.AssigneeID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		t.Status = TaskStatus(status)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountByStudio returns the number of projects per status for a studio
func (s *Service) CountByStudio(ctx context.Context, studioID int64) (map[ProjectStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM projects WHERE studio_id = $1 GROUP BY status`,
		studioID,
	)
	if err != nil {
		return nil, fmt.Errorf("counting projects: %w", err)
	}
	defer rows.Close()

	counts := make(map[ProjectStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning project count: %w", err)
		}
		counts[ProjectStatus(status)] = n
	}
	return counts, rows.Err()
}
