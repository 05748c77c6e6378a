// Package projects manages design projects, their milestones, and tasks.
package projects

import (
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist
var ErrNotFound = errors.New("not found")

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	StatusDraft     ProjectStatus = "draft"
	StatusActive    ProjectStatus = "active"
	StatusOnHold    ProjectStatus = "on_hold"
	StatusCompleted ProjectStatus = "completed"
	StatusArchived  ProjectStatus = "archived"
)

// ValidStatus reports whether s is a known project status
func ValidStatus(s ProjectStatus) bool {
	switch s {
	case StatusDraft, StatusActive, StatusOnHold, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Project is a design engagement between a studio and a client
type Project struct {
	ID          int64         `json:"id"`
	StudioID    int64         `json:"studio_id"`
	ClientID    int64         `json:"client_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Milestone is a dated checkpoint within a project
type Milestone struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	Title       string     `json:"title"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskStatus is the state of a task
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is a unit of work within a project
type Task struct {
	ID          int64      `json:"id"`
	ProjectID   int64      `json:"project_id"`
	MilestoneID *int64     `json:"milestone_id,omitempty"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
