package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/config"
	"github.com/devmorchid/secureboard/internal/logging"
	"github.com/devmorchid/secureboard/internal/middleware"
	"github.com/devmorchid/secureboard/internal/services"
	"github.com/devmorchid/secureboard/internal/session"
)

type AuthHandler struct {
	db       *gorm.DB
	sessions *session.Store
	auth     services.AuthService
	register services.RegisterService
	cookies  config.SessionConfig
}

func NewAuthHandler(db *gorm.DB, sessions *session.Store, auth services.AuthService, register services.RegisterService, cookies config.SessionConfig) *AuthHandler {
	return &AuthHandler{
		db:       db,
		sessions: sessions,
		auth:     auth,
		register: register,
		cookies:  cookies,
	}
}

func (h *AuthHandler) setSessionCookies(c *gin.Context, sess *session.Session) {
	maxAge := int(h.cookies.Lifetime.Seconds())
	c.SetCookie(h.cookies.CookieName, sess.ID, maxAge, "/", h.cookies.Domain, h.cookies.Secure, true)
	// the CSRF cookie is deliberately readable: the client mirrors it
	// into the X-XSRF-TOKEN header
	c.SetCookie(h.cookies.CSRFCookie, url.QueryEscape(sess.CSRFToken), maxAge, "/", h.cookies.Domain, h.cookies.Secure, false)
}

func (h *AuthHandler) clearSessionCookies(c *gin.Context) {
	c.SetCookie(h.cookies.CookieName, "", -1, "/", h.cookies.Domain, h.cookies.Secure, true)
	c.SetCookie(h.cookies.CSRFCookie, "", -1, "/", h.cookies.Domain, h.cookies.Secure, false)
}

// CSRFCookie bootstraps the handshake: it guarantees a session exists
// and mirrors its CSRF token into a readable cookie. 204, no body.
func (h *AuthHandler) CSRFCookie(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		created, err := h.sessions.Create(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "could not start session"})
			return
		}
		sess = created
	}
	h.setSessionCookies(c, sess)
	c.Status(http.StatusNoContent)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := h.auth.LoginUser(h.db, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondFieldError(c, "email", "These credentials do not match our records.")
			return
		}
		respondServiceError(c, err, "user")
		return
	}

	sess := middleware.CurrentSession(c)
	if sess == nil {
		if sess, err = h.sessions.Create(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "could not start session"})
			return
		}
	}
	authed, err := h.sessions.Login(c.Request.Context(), sess, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not start session"})
		return
	}
	h.setSessionCookies(c, authed)

	logging.WithComponent("auth").WithField("user_id", user.ID).Info("user logged in")
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := middleware.CurrentSession(c); sess != nil {
		_ = h.sessions.Destroy(c.Request.Context(), sess.ID)
	}
	h.clearSessionCookies(c)
	c.Status(http.StatusNoContent)
}

type registerRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := h.register.RegisterUser(h.db, req.Name, req.Email, req.Password)
	if err != nil {
		respondServiceError(c, err, "user")
		return
	}

	// register doubles as login
	sess := middleware.CurrentSession(c)
	if sess == nil {
		if sess, err = h.sessions.Create(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "could not start session"})
			return
		}
	}
	authed, err := h.sessions.Login(c.Request.Context(), sess, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "could not start session"})
		return
	}
	h.setSessionCookies(c, authed)

	logging.WithComponent("auth").WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

type tokenRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	DeviceName string `json:"device_name" binding:"required,max=255"`
}

// Token exchanges credentials for a bearer JWT. This is the non-cookie
// path for CLI and service callers; the SPA never uses it.
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	user, err := h.auth.LoginUser(h.db, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			respondFieldError(c, "email", "These credentials do not match our records.")
			return
		}
		respondServiceError(c, err, "user")
		return
	}

	signed, record, err := h.auth.IssueToken(h.db, user, req.DeviceName)
	if err != nil {
		respondServiceError(c, err, "token")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"token":      signed,
		"expires_at": record.ExpiresAt,
	})
}
