package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/cache"
	"github.com/devmorchid/secureboard/internal/logging"
	"github.com/devmorchid/secureboard/internal/models"
	"github.com/devmorchid/secureboard/internal/session"
	"github.com/devmorchid/secureboard/internal/utils"
)

const (
	ContextUser    = "user"
	ContextSession = "session"
	ContextAuthVia = "auth_via"

	AuthViaSession = "session"
	AuthViaToken   = "token"

	CSRFHeader = "X-XSRF-TOKEN"
)

// Auth resolves the acting user from either the session cookie (SPA
// flow) or a bearer token (programmatic API flow) and enforces CSRF on
// the cookie path.
type Auth struct {
	db         *gorm.DB
	sessions   *session.Store
	users      *cache.UserCache
	jwtSecret  string
	cookieName string
}

func NewAuth(db *gorm.DB, sessions *session.Store, users *cache.UserCache, jwtSecret, cookieName string) *Auth {
	return &Auth{
		db:         db,
		sessions:   sessions,
		users:      users,
		jwtSecret:  jwtSecret,
		cookieName: cookieName,
	}
}

// LoadSession attaches the session and, when possible, the acting user
// to the request context. It never rejects: route groups decide with
// RequireAuth.
func (a *Auth) LoadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, err := c.Cookie(a.cookieName); err == nil && id != "" {
			sess, err := a.sessions.Get(c.Request.Context(), id)
			if err == nil {
				c.Set(ContextSession, sess)
				if sess.Authenticated() {
					if user := a.lookupUser(sess.UserID); user != nil {
						c.Set(ContextUser, user)
						c.Set(ContextAuthVia, AuthViaSession)
					}
				}
				// sliding expiration
				_ = a.sessions.Touch(c.Request.Context(), sess.ID)
			} else if err != session.ErrNotFound {
				logging.WithComponent("auth").WithError(err).Warn("session lookup failed")
			}
		}

		if _, ok := c.Get(ContextUser); !ok {
			a.tryBearer(c)
		}

		c.Next()
	}
}

func (a *Auth) tryBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return
	}
	claims, err := utils.ParseJWT(strings.TrimPrefix(header, "Bearer "), a.jwtSecret)
	if err != nil {
		return
	}
	jtiStr, _ := claims["jti"].(string)
	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return
	}

	var token models.Token
	if err := a.db.Where("jti = ? AND expires_at > ?", jti, time.Now()).First(&token).Error; err != nil {
		return
	}
	if user := a.lookupUser(token.UserID); user != nil {
		c.Set(ContextUser, user)
		c.Set(ContextAuthVia, AuthViaToken)
	}
}

func (a *Auth) lookupUser(id uuid.UUID) *models.User {
	if user, ok := a.users.Get(id); ok {
		return user
	}
	var user models.User
	if err := a.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil
	}
	a.users.Set(&user)
	return &user
}

// RequireAuth gates the authenticated route group.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ContextUser); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}
		c.Next()
	}
}

// VerifyCSRF rejects state-changing cookie-session requests whose
// X-XSRF-TOKEN header does not match the token issued for the session.
// Bearer-token requests are exempt: they carry no ambient credential a
// cross-site page could ride on.
func (a *Auth) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if via, _ := c.Get(ContextAuthVia); via == AuthViaToken {
			c.Next()
			return
		}

		sess := CurrentSession(c)
		header := c.GetHeader(CSRFHeader)
		if decoded, err := url.QueryUnescape(header); err == nil {
			header = decoded
		}
		if sess == nil || header == "" || header != sess.CSRFToken {
			c.AbortWithStatusJSON(419, gin.H{"message": "CSRF token mismatch."})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ContextUser); ok {
		return v.(*models.User)
	}
	return nil
}

func CurrentSession(c *gin.Context) *session.Session {
	if v, ok := c.Get(ContextSession); ok {
		return v.(*session.Session)
	}
	return nil
}
