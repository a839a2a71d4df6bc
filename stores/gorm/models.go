package gorm

import (
	"time"

	oa "github.com/mhalligan/secretsite"
)

// UserModel is the GORM model for users. Username and GoogleID each carry a
// unique index: the former backs duplicate-registration detection, the latter
// makes find-or-create race-free. Both are nullable so accounts holding only
// one of the two don't collide on the other's index.
type UserModel struct {
	ID           string  `gorm:"primaryKey;size:64"`
	Username     *string `gorm:"uniqueIndex;size:255"`
	PasswordHash string  `gorm:"size:128"`
	GoogleID     *string `gorm:"uniqueIndex;size:128"`
	Name         string  `gorm:"size:255"`
	Picture      string  `gorm:"size:512"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *oa.User {
	user := &oa.User{
		ID:           m.ID,
		PasswordHash: m.PasswordHash,
		Name:         m.Name,
		Picture:      m.Picture,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.Username != nil {
		user.Username = *m.Username
	}
	if m.GoogleID != nil {
		user.GoogleID = *m.GoogleID
	}
	return user
}

// AuthTokenModel is the GORM model for password reset tokens
type AuthTokenModel struct {
	Token     string       `gorm:"primaryKey;size:128"`
	Type      oa.TokenType `gorm:"size:32;index"`
	UserID    string       `gorm:"size:64;index"`
	Username  string       `gorm:"size:255"`
	CreatedAt time.Time    `gorm:"autoCreateTime"`
	ExpiresAt time.Time    `gorm:"index"`
}

func (AuthTokenModel) TableName() string {
	return "auth_tokens"
}

func (m *AuthTokenModel) ToAuthToken() *oa.AuthToken {
	return &oa.AuthToken{
		Token:     m.Token,
		Type:      m.Type,
		UserID:    m.UserID,
		Username:  m.Username,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
	}
}
