// Package gorm provides database-backed implementations of the secretsite
// store interfaces. Open the *gorm.DB with TranslateError enabled so unique
// constraint violations surface as gorm.ErrDuplicatedKey across drivers.
package gorm

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	oa "github.com/mhalligan/secretsite"
)

// AutoMigrate runs database migrations for all secretsite tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AuthTokenModel{},
	)
}

// UserStore implements oa.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateLocalUser(username, passwordHash string) (*oa.User, error) {
	model := &UserModel{
		ID:           uuid.NewString(),
		Username:     &username,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(model).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, oa.ErrDuplicateUsername
		}
		return nil, storeError(err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserByUsername(username string) (*oa.User, error) {
	var model UserModel
	if err := s.db.First(&model, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oa.ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserById(id string) (*oa.User, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oa.ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return model.ToUser(), nil
}

// FindOrCreateByGoogleID resolves the user owning the given provider subject,
// inserting one when absent. The insert rides on the unique google_id index
// with ON CONFLICT DO NOTHING, then re-reads: two concurrent first logins with
// the same subject end up with exactly one record.
func (s *UserStore) FindOrCreateByGoogleID(googleID, name, picture string) (*oa.User, error) {
	if googleID == "" {
		return nil, fmt.Errorf("google id is required")
	}

	model := &UserModel{
		ID:       uuid.NewString(),
		GoogleID: &googleID,
		Name:     name,
		Picture:  picture,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "google_id"}},
		DoNothing: true,
	}).Create(model).Error
	if err != nil && !isDuplicateKey(err) {
		return nil, storeError(err)
	}

	// Read back whichever row won: ours or a concurrent creator's.
	var out UserModel
	if err := s.db.First(&out, "google_id = ?", googleID).Error; err != nil {
		return nil, storeError(err)
	}
	return out.ToUser(), nil
}

func (s *UserStore) UpdatePassword(username, passwordHash string) error {
	result := s.db.Model(&UserModel{}).
		Where("username = ?", username).
		Update("password_hash", passwordHash)
	if result.Error != nil {
		return storeError(result.Error)
	}
	if result.RowsAffected == 0 {
		return oa.ErrUserNotFound
	}
	return nil
}

// TokenStore implements oa.TokenStore using GORM
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) CreateToken(userID, username string, tokenType oa.TokenType, expiryDuration time.Duration) (*oa.AuthToken, error) {
	token, err := oa.GenerateSecureToken()
	if err != nil {
		return nil, err
	}

	// A fresh request supersedes any outstanding token of the same type.
	if userID != "" {
		if err := s.DeleteUserTokens(userID, tokenType); err != nil {
			return nil, err
		}
	}

	model := &AuthTokenModel{
		Token:     token,
		Type:      tokenType,
		UserID:    userID,
		Username:  username,
		ExpiresAt: time.Now().Add(expiryDuration),
	}
	if err := s.db.Create(model).Error; err != nil {
		return nil, storeError(err)
	}
	return model.ToAuthToken(), nil
}

func (s *TokenStore) GetToken(token string) (*oa.AuthToken, error) {
	var model AuthTokenModel
	if err := s.db.First(&model, "token = ?", token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("token not found")
		}
		return nil, storeError(err)
	}

	authToken := model.ToAuthToken()
	if authToken.IsExpired() {
		_ = s.DeleteToken(token)
		return nil, fmt.Errorf("token expired")
	}
	return authToken, nil
}

func (s *TokenStore) DeleteToken(token string) error {
	return s.db.Delete(&AuthTokenModel{}, "token = ?", token).Error
}

func (s *TokenStore) DeleteUserTokens(userID string, tokenType oa.TokenType) error {
	return s.db.Delete(&AuthTokenModel{}, "user_id = ? AND type = ?", userID, tokenType).Error
}

// isDuplicateKey detects unique constraint violations. TranslateError handles
// the common drivers; the string checks cover those that don't translate.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// storeError wraps unexpected database failures so handlers can distinguish
// connectivity problems from expected conditions.
func storeError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return oa.ErrUserNotFound
	}
	return fmt.Errorf("%w: %v", oa.ErrStoreUnavailable, err)
}
