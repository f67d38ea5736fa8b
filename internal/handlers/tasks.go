package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/logging"
	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/models"
	"github.com/devmorchid/secureboard/internal/policy"
	"github.com/devmorchid/secureboard/internal/services"
	"github.com/devmorchid/secureboard/internal/worker"
)

type TaskHandler struct {
	db    *gorm.DB
	tasks services.TaskService
	queue *worker.JobQueue
}

func NewTaskHandler(db *gorm.DB, tasks services.TaskService, queue *worker.JobQueue) *TaskHandler {
	return &TaskHandler{db: db, tasks: tasks, queue: queue}
}

// notifyAssignment enqueues a task_assigned job; queueing is best
// effort and never fails the request.
func (h *TaskHandler) notifyAssignment(task *models.Task) {
	if h.queue == nil || task.AssignedTo == nil {
		return
	}
	err := h.queue.Enqueue(worker.QueueDefault, worker.JobTypeTaskAssigned, map[string]interface{}{
		"task_id": task.ID.String(),
	})
	if err != nil {
		logging.WithComponent("tasks").WithError(err).Warn("could not enqueue assignment notification")
	}
}

func (h *TaskHandler) Index(c *gin.Context) {
	if !policy.CanViewAnyTasks(middleware.CurrentUser(c)) {
		respondForbidden(c)
		return
	}

	filter := services.TaskFilter{
		Status:  c.Query("status"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	}
	if raw := c.Query("project_id"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondFieldError(c, "project_id", "is invalid")
			return
		}
		filter.ProjectID = &id
	}
	if raw := c.Query("assigned_to"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			respondFieldError(c, "assigned_to", "is invalid")
			return
		}
		filter.AssignedTo = &id
	}

	tasks, meta, err := h.tasks.GetTasksPaginated(h.db, filter)
	if err != nil {
		respondServiceError(c, err, "tasks")
		return
	}
	respondCollection(c, tasks, meta)
}

func (h *TaskHandler) Show(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetTaskByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "task")
		return
	}
	if !policy.CanViewTask(middleware.CurrentUser(c), task) {
		respondForbidden(c)
		return
	}
	c.JSON(http.StatusOK, task)
}

type createTaskRequest struct {
	Title       string       `json:"title" binding:"required,max=255"`
	Description string       `json:"description" binding:"omitempty,max=65535"`
	Status      string       `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    string       `json:"priority" binding:"omitempty,oneof=low medium high"`
	ProjectID   uuid.UUID    `json:"project_id" binding:"required"`
	AssignedTo  *uuid.UUID   `json:"assigned_to"`
	DueDate     *models.Date `json:"due_date"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if !policy.CanCreateTask(actor) {
		respondForbidden(c)
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	task := models.Task{
		ID:          uuid.Must(uuid.NewV4()),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ProjectID:   req.ProjectID,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   actor.ID,
		DueDate:     req.DueDate,
	}
	if task.Status == "" {
		task.Status = models.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	if err := h.tasks.CreateTask(h.db, &task); err != nil {
		respondServiceError(c, err, "task")
		return
	}
	h.notifyAssignment(&task)
	c.JSON(http.StatusCreated, task)
}

type updateTaskRequest struct {
	Title       *string      `json:"title" binding:"omitempty,max=255"`
	Description *string      `json:"description" binding:"omitempty,max=65535"`
	Status      *string      `json:"status" binding:"omitempty,oneof=todo in_progress done"`
	Priority    *string      `json:"priority" binding:"omitempty,oneof=low medium high"`
	AssignedTo  *uuid.UUID   `json:"assigned_to"`
	DueDate     *models.Date `json:"due_date"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetTaskByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "task")
		return
	}
	if !policy.CanUpdateTask(middleware.CurrentUser(c), task) {
		respondForbidden(c)
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	update := services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate,
	}
	if err := h.tasks.UpdateTask(h.db, task, update); err != nil {
		respondServiceError(c, err, "task")
		return
	}
	if req.AssignedTo != nil {
		h.notifyAssignment(task)
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	task, err := h.tasks.GetTaskByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "task")
		return
	}
	if !policy.CanDeleteTask(middleware.CurrentUser(c), task) {
		respondForbidden(c)
		return
	}
	if err := h.tasks.DeleteTask(h.db, task.ID); err != nil {
		respondServiceError(c, err, "task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}
