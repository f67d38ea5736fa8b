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

type UserFilter struct {
	Search  string
	Page    int
	PerPage int
}

type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
	Avatar   *string
}

type UserService interface {
	CreateUser(db *gorm.DB, name, email, password, role string) (*models.User, error)
	GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error)
	GetUsersPaginated(db *gorm.DB, filter UserFilter) ([]models.User, PageMeta, error)
	UpdateUser(db *gorm.DB, user *models.User, update UserUpdate) error
	DeleteUser(db *gorm.DB, id uuid.UUID) error
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) CreateUser(db *gorm.DB, name, email, password, role string) (*models.User, error) {
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

	user := models.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      name,
		Email:     email,
		Password:  string(hashed),
		Role:      string(models.ParseRole(role)),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) GetUserByID(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserServiceImpl) GetUsersPaginated(db *gorm.DB, filter UserFilter) ([]models.User, PageMeta, error) {
	page, perPage := clampPage(filter.Page, filter.PerPage, 25)

	q := db.Model(&models.User{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, PageMeta{}, err
	}

	var users []models.User
	err := q.Order("created_at DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&users).Error
	if err != nil {
		return nil, PageMeta{}, err
	}
	return users, buildMeta(page, perPage, total), nil
}

func (s *UserServiceImpl) UpdateUser(db *gorm.DB, user *models.User, update UserUpdate) error {
	changes := map[string]interface{}{}
	if update.Name != nil {
		changes["name"] = *update.Name
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		var existing models.User
		err := db.Where("email = ? AND id <> ?", email, user.ID).First(&existing).Error
		if err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		changes["email"] = email
	}
	if update.Password != nil && *update.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		changes["password"] = string(hashed)
	}
	if update.Role != nil {
		changes["role"] = string(models.ParseRole(*update.Role))
	}
	if update.Avatar != nil {
		changes["avatar"] = *update.Avatar
	}
	if len(changes) == 0 {
		return nil
	}
	if err := db.Model(user).Updates(changes).Error; err != nil {
		return err
	}
	return db.First(user, "id = ?", user.ID).Error
}

func (s *UserServiceImpl) DeleteUser(db *gorm.DB, id uuid.UUID) error {
	return db.Delete(&models.User{}, "id = ?", id).Error
}
