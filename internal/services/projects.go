package services

import (
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/models"
)

type ProjectFilter struct {
	Search  string
	Page    int
	PerPage int
}

type ProjectUpdate struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	OwnerID     *uuid.UUID
	StartDate   *models.Date
	EndDate     *models.Date
	Team        *[]uuid.UUID
}

type ProjectService interface {
	CreateProject(db *gorm.DB, project *models.Project, team []uuid.UUID) error
	GetProjectByID(db *gorm.DB, id uuid.UUID) (*models.Project, error)
	GetProjectsPaginated(db *gorm.DB, filter ProjectFilter) ([]models.Project, PageMeta, error)
	UpdateProject(db *gorm.DB, project *models.Project, update ProjectUpdate) error
	DeleteProject(db *gorm.DB, id uuid.UUID) error
}

type ProjectServiceImpl struct{}

func NewProjectService() *ProjectServiceImpl {
	return &ProjectServiceImpl{}
}

func (s *ProjectServiceImpl) CreateProject(db *gorm.DB, project *models.Project, team []uuid.UUID) error {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return err
		}
		return syncTeam(tx, project, team)
	})
	if err != nil {
		return err
	}
	return db.Preload("Owner").Preload("Team").First(project, "id = ?", project.ID).Error
}

func (s *ProjectServiceImpl) GetProjectByID(db *gorm.DB, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := db.Preload("Owner").Preload("Team").Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (s *ProjectServiceImpl) GetProjectsPaginated(db *gorm.DB, filter ProjectFilter) ([]models.Project, PageMeta, error) {
	page, perPage := clampPage(filter.Page, filter.PerPage, 20)

	q := db.Model(&models.Project{})
	if filter.Search != "" {
		q = q.Where("title LIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PageMeta{}, err
	}

	var projects []models.Project
	err := q.Preload("Owner").Preload("Team").
		Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&projects).Error
	if err != nil {
		return nil, PageMeta{}, err
	}
	return projects, buildMeta(page, perPage, total), nil
}

func (s *ProjectServiceImpl) UpdateProject(db *gorm.DB, project *models.Project, update ProjectUpdate) error {
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
	if update.OwnerID != nil {
		changes["owner_id"] = *update.OwnerID
	}
	if update.StartDate != nil {
		changes["start_date"] = *update.StartDate
	}
	if update.EndDate != nil {
		changes["end_date"] = *update.EndDate
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if len(changes) > 0 {
			if err := tx.Model(project).Updates(changes).Error; err != nil {
				return err
			}
		}
		if update.Team != nil {
			if err := syncTeam(tx, project, *update.Team); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return db.Preload("Owner").Preload("Team").First(project, "id = ?", project.ID).Error
}

func (s *ProjectServiceImpl) DeleteProject(db *gorm.DB, id uuid.UUID) error {
	return db.Delete(&models.Project{}, "id = ?", id).Error
}

func syncTeam(tx *gorm.DB, project *models.Project, team []uuid.UUID) error {
	if team == nil {
		return nil
	}
	var members []models.User
	if len(team) > 0 {
		if err := tx.Where("id IN ?", team).Find(&members).Error; err != nil {
			return err
		}
	}
	return tx.Model(project).Association("Team").Replace(members)
}
