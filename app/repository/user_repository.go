package repository

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/FeeBook/app/models"
)

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail matches case-insensitively; emails are stored lower-cased.
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByAPIKeyHash resolves an active, unrevoked key hash to its owner.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	var settings models.UserSettings
	if err := r.db.Where("api_key_hash = ? AND api_key_revoked_at IS NULL", hash).First(&settings).Error; err != nil {
		return nil, nil, err
	}
	user, err := r.GetByID(settings.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, &settings, nil
}

// GetSettings returns the user's settings, creating defaults on first access.
func (r *userRepository) GetSettings(userID uint) (*models.UserSettings, error) {
	return models.GetOrCreateUserSettings(r.db, userID)
}

func (r *userRepository) SaveSettings(settings *models.UserSettings) error {
	return r.db.Save(settings).Error
}

func (r *userRepository) TouchAPIKey(settingsID uint, at time.Time) error {
	return r.stamp(&models.UserSettings{}, settingsID, "api_key_last_used_at", at)
}

func (r *userRepository) UpdateLastLogin(id uint, at time.Time) error {
	return r.stamp(&models.User{}, id, "last_login_at", at)
}

func (r *userRepository) stamp(model interface{}, id uint, column string, at time.Time) error {
	return r.db.Model(model).Where("id = ?", id).Update(column, at).Error
}

// Update saves role, status and profile changes made in the back office.
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// List pages through accounts, newest first. A non-empty query filters by
// name or email.
func (r *userRepository) List(query string, offset, limit int) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})
	if query = strings.TrimSpace(query); query != "" {
		like := "%" + query + "%"
		q = q.Where("name LIKE ? OR email LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}
