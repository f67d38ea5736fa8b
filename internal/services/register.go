package services

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/devmorchid/secureboard/internal/models"
)

var ErrEmailTaken = errors.New("email already exists")

type RegisterService interface {
	RegisterUser(db *gorm.DB, name, email, password string) (*models.User, error)
}

type RegisterServiceImpl struct{}

func NewRegisterService() *RegisterServiceImpl {
	return &RegisterServiceImpl{}
}

// RegisterUser creates a self-service account. The first user on an
// empty instance becomes the admin; everyone after that starts as a
// plain user.
func (s *RegisterServiceImpl) RegisterUser(db *gorm.DB, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing models.User
	if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	role := string(models.RoleUser)
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		role = string(models.RoleAdmin)
	}

	user := models.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
