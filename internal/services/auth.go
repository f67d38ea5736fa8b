package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	IssueToken(db *gorm.DB, user *models.User, name string) (string, *models.Token, error)
	RevokeToken(db *gorm.DB, tokenString string) error
}

type AuthServiceImpl struct {
	secret   string
	lifetime time.Duration
}

func NewAuthService(secret string, lifetime time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{secret: secret, lifetime: lifetime}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// IssueToken signs a bearer JWT for API clients that cannot hold a
// session cookie, and records its JTI so it can be revoked.
func (s *AuthServiceImpl) IssueToken(db *gorm.DB, user *models.User, name string) (string, *models.Token, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return "", nil, fmt.Errorf("generate jti: %w", err)
	}

	now := time.Now()
	expiry := now.Add(s.lifetime)
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"jti":     jti.String(),
		"iat":     now.Unix(),
		"exp":     expiry.Unix(),
		"iss":     "secureboard",
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	record := models.Token{
		ID:        uuid.Must(uuid.NewV4()),
		UserID:    user.ID,
		JTI:       jti,
		Name:      name,
		ExpiresAt: expiry,
	}
	if err := db.Create(&record).Error; err != nil {
		return "", nil, fmt.Errorf("store token record: %w", err)
	}

	return signed, &record, nil
}

func (s *AuthServiceImpl) RevokeToken(db *gorm.DB, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return errors.New("invalid token claims")
	}
	jtiStr, ok := claims["jti"].(string)
	if !ok {
		return errors.New("missing jti in token")
	}
	jti, err := uuid.FromString(jtiStr)
	if err != nil {
		return fmt.Errorf("invalid jti format: %w", err)
	}

	return db.Where("jti = ?", jti).Delete(&models.Token{}).Error
}
