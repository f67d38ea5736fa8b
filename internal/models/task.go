package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

type Task struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Status      string         `json:"status" gorm:"not null;default:'todo'"`
	Priority    string         `json:"priority" gorm:"not null;default:'medium'"`
	ProjectID   uuid.UUID      `json:"project_id" gorm:"type:uuid;not null;index"`
	Project     *Project       `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	AssignedTo  *uuid.UUID     `json:"assigned_to" gorm:"type:uuid;index"`
	Assignee    *User          `json:"assignee,omitempty" gorm:"foreignKey:AssignedTo"`
	CreatedBy   uuid.UUID      `json:"created_by" gorm:"type:uuid;not null"`
	Creator     *User          `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	DueDate     *Date          `json:"due_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
