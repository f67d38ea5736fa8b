package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/cache"
	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/policy"
	"github.com/devmorchid/secureboard/internal/services"
)

type UserHandler struct {
	db    *gorm.DB
	users services.UserService
	cache *cache.UserCache
}

func NewUserHandler(db *gorm.DB, users services.UserService, userCache *cache.UserCache) *UserHandler {
	return &UserHandler{db: db, users: users, cache: userCache}
}

func (h *UserHandler) Index(c *gin.Context) {
	actor := middleware.CurrentUser(c)
	if !policy.CanViewAnyUsers(actor) {
		respondForbidden(c)
		return
	}

	filter := services.UserFilter{
		Search:  c.Query("search"),
		Page:    queryInt(c, "page"),
		PerPage: queryInt(c, "per_page"),
	}
	users, meta, err := h.users.GetUsersPaginated(h.db, filter)
	if err != nil {
		respondServiceError(c, err, "users")
		return
	}
	respondCollection(c, users, meta)
}

func (h *UserHandler) Show(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}
	if !policy.CanViewUser(middleware.CurrentUser(c), user) {
		respondForbidden(c)
		return
	}
	c.JSON(http.StatusOK, user)
}

type createUserRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin manager user"`
}

func (h *UserHandler) Create(c *gin.Context) {
	if !policy.CanCreateUser(middleware.CurrentUser(c)) {
		respondForbidden(c)
		return
	}

	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := h.users.CreateUser(h.db, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}
	c.JSON(http.StatusCreated, user)
}

type updateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin manager user"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=2048"`
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}

	actor := middleware.CurrentUser(c)
	if !policy.CanUpdateUser(actor, user) {
		respondForbidden(c)
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	// only admins may change roles
	if req.Role != nil && !policy.CanCreateUser(actor) {
		respondForbidden(c)
		return
	}

	update := services.UserUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Avatar:   req.Avatar,
	}
	if err := h.users.UpdateUser(h.db, user, update); err != nil {
		respondServiceError(c, err, "user")
		return
	}
	// drop the cached copy so the next request sees the new role/email
	h.cache.Invalidate(user.ID)
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c)
	if !ok {
		return
	}
	user, err := h.users.GetUserByID(h.db, id)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}
	if !policy.CanDeleteUser(middleware.CurrentUser(c), user) {
		respondForbidden(c)
		return
	}
	if err := h.users.DeleteUser(h.db, user.ID); err != nil {
		respondServiceError(c, err, "user")
		return
	}
	h.cache.Invalidate(user.ID)
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// pathUUID parses the :id route parameter, answering 404 on garbage so
// malformed ids are indistinguishable from missing rows.
func pathUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		respondNotFound(c, "resource")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return v
}
