package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/models"
	"github.com/devmorchid/secureboard/internal/policy"
	"github.com/devmorchid/secureboard/internal/services"
)

type ProjectHandler struct {
	db       *gorm.DB
	projects services.ProjectService
}

func NewProjectHandler(db *gorm.DB, projects services.ProjectService) *ProjectHandler {
	return &ProjectHandler{db: db, projects: projects}
}

func (h *ProjectHandler) Index(c *gin.Context) {
	if !policy.CanViewAnyProjects(middleware.CurrentUser(c)) {
		respondForbidden(c)
		return
	}

	filter := services.ProjectFilter{
		Search:  c.Query("search"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	}
	projects, meta, err := h.projects.GetProjectsPaginated(h.db, filter)
	if err != nil {
		respondServiceError(c, err, "projects")
		return
	}
	respondCollection(c, projects, meta)
}

func (h *ProjectHandler) Show(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	project, err := h.projects.GetProjectByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "project")
		return
	}
	if !policy.CanViewProject(middleware.CurrentUser(c), project) {
		respondForbidden(c)
		return
	}
	c.JSON(http.StatusOK, project)
}

type createProjectRequest struct {
	Title       string       `json:"title" binding:"required,max=255"`
	Description string       `json:"description" binding:"omitempty,max=65535"`
	Status      string       `json:"status" binding:"omitempty,oneof=draft active archived"`
	Priority    string       `json:"priority" binding:"omitempty,oneof=low medium high"`
	StartDate   *models.Date `json:"start_date"`
	EndDate     *models.Date `json:"end_date"`
	Team        []uuid.UUID  `json:"team"`
}

func (h *ProjectHandler) Create(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if !policy.CanCreateProject(actor) {
		respondForbidden(c)
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Time.Before(req.StartDate.Time) {
		respondFieldError(c, "end_date", "must be a date after or equal to start_date")
		return
	}

	project := models.Project{
		ID:          uuid.Must(uuid.NewV4()),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		OwnerID:     actor.ID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	if project.Priority == "" {
		project.Priority = models.PriorityMedium
	}

	if err := h.projects.CreateProject(h.db, &project, req.Team); err != nil {
		respondServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

type updateProjectRequest struct {
	Title       *string      `json:"title" binding:"omitempty,max=255"`
	Description *string      `json:"description" binding:"omitempty,max=65535"`
	Status      *string      `json:"status" binding:"omitempty,oneof=draft active archived"`
	Priority    *string      `json:"priority" binding:"omitempty,oneof=low medium high"`
	OwnerID     *uuid.UUID   `json:"owner_id"`
	StartDate   *models.Date `json:"start_date"`
	EndDate     *models.Date `json:"end_date"`
	Team        *[]uuid.UUID `json:"team"`
}

func (h *ProjectHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	project, err := h.projects.GetProjectByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "project")
		return
	}
	if !policy.CanUpdateProject(middleware.CurrentUser(c), project) {
		respondForbidden(c)
		return
	}

	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	update := services.ProjectUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		OwnerID:     req.OwnerID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Team:        req.Team,
	}
	if err := h.projects.UpdateProject(h.db, project, update); err != nil {
		respondServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	project, err := h.projects.GetProjectByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "project")
		return
	}
	if !policy.CanDeleteProject(middleware.CurrentUser(c), project) {
		respondForbidden(c)
		return
	}
	if err := h.projects.DeleteProject(h.db, project.ID); err != nil {
		respondServiceError(c, err, "project")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}
