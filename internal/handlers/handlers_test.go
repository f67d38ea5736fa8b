package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devmorchid/secureboard/internal/cache"
	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/models"
	"github.com/devmorchid/secureboard/internal/services"
)

func setupHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Project{}, &models.Task{}, &models.Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     name,
		Email:    name + "@example.test",
		Password: string(hashed),
		Role:     string(role),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

// actAs injects the user directly into the request context, standing in
// for the session middleware so handler tests stay focused on policy
// and shape.
func actAs(user *models.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			c.Set(middleware.ContextUser, user)
		}
		c.Next()
	}
}

type testEnv struct {
	db     *gorm.DB
	router func(actor *models.User) *gin.Engine
}

func setupHandlers(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupHandlerDB(t)

	userCache := cache.NewUserCache(time.Minute)
	t.Cleanup(userCache.Close)

	uh := NewUserHandler(db, services.NewUserService(), userCache)
	ph := NewProjectHandler(db, services.NewProjectService())
	th := NewTaskHandler(db, services.NewTaskService(), nil)

	return &testEnv{
		db: db,
		router: func(actor *models.User) *gin.Engine {
			r := gin.New()
			api := r.Group("/api", actAs(actor))
			api.GET("/users", uh.Index)
			api.GET("/users/:id", uh.Show)
			api.POST("/users", uh.Create)
			api.PUT("/users/:id", uh.Update)
			api.DELETE("/users/:id", uh.Delete)
			api.GET("/projects", ph.Index)
			api.GET("/projects/:id", ph.Show)
			api.POST("/projects", ph.Create)
			api.PUT("/projects/:id", ph.Update)
			api.DELETE("/projects/:id", ph.Delete)
			api.GET("/tasks", th.Index)
			api.GET("/tasks/:id", th.Show)
			api.POST("/tasks", th.Create)
			api.PUT("/tasks/:id", th.Update)
			api.DELETE("/tasks/:id", th.Delete)
			return r
		},
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}
