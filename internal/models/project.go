package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	ProjectStatusDraft    = "draft"
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

type Project struct {
	ID          uuid.UUID      `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Status      string         `json:"status" gorm:"not null;default:'draft'"`
	Priority    string         `json:"priority" gorm:"not null;default:'medium'"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Owner       *User          `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Team        []User         `json:"team,omitempty" gorm:"many2many:project_members"`
	StartDate   *Date          `json:"start_date"`
	EndDate     *Date          `json:"end_date"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}
