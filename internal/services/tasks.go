package services

import (
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/models"
)

// TaskFilter narrows the task list the way the board filters do.
type TaskFilter struct {
	ProjectID  *uuid.UUID
	AssignedTo *uuid.UUID
	Status     string
	Page       int
	PerPage    int
}

// TaskUpdate carries a partial update; nil fields are left untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssignedTo  *uuid.UUID
	DueDate     *models.Date
}

type TaskService interface {
	CreateTask(db *gorm.DB, task *models.Task) error
	GetTaskByID(db *gorm.DB, id uuid.UUID) (*models.Task, error)
	GetTasksPaginated(db *gorm.DB, filter TaskFilter) ([]models.Task, PageMeta, error)
	UpdateTask(db *gorm.DB, task *models.Task, update TaskUpdate) error
	DeleteTask(db *gorm.DB, id uuid.UUID) error
}

type TaskServiceImpl struct{}

func NewTaskService() *TaskServiceImpl {
	return &TaskServiceImpl{}
}

func (s *TaskServiceImpl) CreateTask(db *gorm.DB, task *models.Task) error {
	if err := db.Create(task).Error; err != nil {
		return err
	}
	return db.Preload("Project").Preload("Assignee").Preload("Creator").
		First(task, "id = ?", task.ID).Error
}

func (s *TaskServiceImpl) GetTaskByID(db *gorm.DB, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := db.Preload("Project").Preload("Assignee").Preload("Creator").
		Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *TaskServiceImpl) GetTasksPaginated(db *gorm.DB, filter TaskFilter) ([]models.Task, PageMeta, error) {
	page, perPage := clampPage(filter.Page, filter.PerPage, 20)

	q := db.Model(&models.Task{})
	if filter.ProjectID != nil {
		q = q.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.AssignedTo != nil {
		q = q.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PageMeta{}, err
	}

	var tasks []models.Task
	err := q.Preload("Project").Preload("Assignee").Preload("Creator").
		Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&tasks).Error
	if err != nil {
		return nil, PageMeta{}, err
	}
	return tasks, buildMeta(page, perPage, total), nil
}

func (s *TaskServiceImpl) UpdateTask(db *gorm.DB, task *models.Task, update TaskUpdate) error {
	changes := map[string]interface{}{}
	if update.Title != nil {
		changes["title"] = *update.Title
	}
	if update.Description != nil {
		changes["description"] = *update.Description
	}
	if update.Status != nil {
		changes["status"] = *update.Status
	}
	if update.Priority != nil {
		changes["priority"] = *update.Priority
	}
	if update.AssignedTo != nil {
		changes["assigned_to"] = *update.AssignedTo
	}
	if update.DueDate != nil {
		changes["due_date"] = *update.DueDate
	}
	if len(changes) == 0 {
		return nil
	}
	if err := db.Model(task).Updates(changes).Error; err != nil {
		return err
	}
	return db.Preload("Project").Preload("Assignee").Preload("Creator").
		First(task, "id = ?", task.ID).Error
}

func (s *TaskServiceImpl) DeleteTask(db *gorm.DB, id uuid.UUID) error {
	return db.Delete(&models.Task{}, "id = ?", id).Error
}
