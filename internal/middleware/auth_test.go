package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/devmorchid/secureboard/internal/cache"
	"github.com/devmorchid/secureboard/internal/models"
	"github.com/devmorchid/secureboard/internal/session"
)

const testCookie = "secureboard_session"

func setupAuth(t *testing.T) (*Auth, *session.Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Token{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr := setupMiniredis(t)
	client := redis.NewClient(&redis.Options{Addr: mr})
	sessions := session.NewStore(client, time.Hour)

	users := cache.NewUserCache(time.Minute)
	t.Cleanup(users.Close)

	return NewAuth(db, sessions, users, "test-secret", testCookie), sessions, db
}

func setupMiniredis(t *testing.T) string {
	t.Helper()
	_, mr := setupTestRedis(t)
	t.Cleanup(mr.Close)
	return mr.Addr()
}

func seedUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Test User",
		Email:    uuid.Must(uuid.NewV4()).String() + "@example.com",
		Password: "irrelevant",
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func authedRouter(a *Auth) *gin.Engine {
	router := setupTestGin()
	router.Use(a.LoadSession())
	protected := router.Group("", a.RequireAuth(), a.VerifyCSRF())
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, CurrentUser(c))
	})
	protected.POST("/mutate", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestRequireAuth_NoSession(t *testing.T) {
	a, _, _ := setupAuth(t)
	router := authedRouter(a)

	req, _ := http.NewRequest("GET", "/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionCookieAuth(t *testing.T) {
	a, sessions, db := setupAuth(t)
	router := authedRouter(a)
	user := seedUser(t, db, "user")

	guest, _ := sessions.Create(context.Background())
	sess, _ := sessions.Login(context.Background(), guest, user.ID)

	req, _ := http.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: sess.ID})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestCSRF(t *testing.T) {
	a, sessions, db := setupAuth(t)
	router := authedRouter(a)
	user := seedUser(t, db, "user")

	guest, _ := sessions.Create(context.Background())
	sess, _ := sessions.Login(context.Background(), guest, user.ID)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"get needs no token", "GET", "/me", "", http.StatusOK},
		{"post without token", "POST", "/mutate", "", 419},
		{"post with wrong token", "POST", "/mutate", "wrong", 419},
		{"post with valid token", "POST", "/mutate", sess.CSRFToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, tt.path, nil)
			req.AddCookie(&http.Cookie{Name: testCookie, Value: sess.ID})
			if tt.token != "" {
				req.Header.Set(CSRFHeader, tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestBearerTokenSkipsCSRF(t *testing.T) {
	a, _, db := setupAuth(t)
	router := authedRouter(a)
	user := seedUser(t, db, "user")

	jti := uuid.Must(uuid.NewV4())
	token := signTestJWT(t, "test-secret", user.ID, jti)
	db.Create(&models.Token{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	req, _ := http.NewRequest("POST", "/mutate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestBearerTokenExpiredRecord(t *testing.T) {
	a, _, db := setupAuth(t)
	router := authedRouter(a)
	user := seedUser(t, db, "user")

	jti := uuid.Must(uuid.NewV4())
	token := signTestJWT(t, "test-secret", user.ID, jti)
	db.Create(&models.Token{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	req, _ := http.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
