package domain

import (
	"time"

	"gorm.io/gorm"

	"github.com/Shen-Yukang/Musea-realTime-progressTracker/pkg/database"
)

// ShareType controls how viewers gain access to a live share.
type ShareType string

const (
	ShareTypePublic   ShareType = "public"
	ShareTypePrivate  ShareType = "private"
	ShareTypePassword ShareType = "password"
)

// Share is the metadata of one sharing session, as returned by the
// share lookup. The live subsystem never mutates it except for the
// view counter.
type Share struct {
	ID            string
	OwnerID       string
	OwnerUsername string
	ShareToken    string
	Title         string
	Description   string
	ShareType     ShareType
	PasswordHash  string
	Settings      map[string]interface{}
	IsActive      bool
	ExpiresAt     *time.Time
	ViewCount     int
	CreatedAt     time.Time
}

// Expired reports whether the share's expiry, if any, has passed.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

// RequiresPassword reports whether joining needs a password check.
func (s *Share) RequiresPassword() bool {
	return s.ShareType == ShareTypePassword
}

// ShareModel is the GORM model for the shares table.
type ShareModel struct {
	ID            string           `gorm:"type:varchar(36);primaryKey"`
	OwnerID       string           `gorm:"column:user_id;type:varchar(36);index;not null"`
	OwnerUsername string           `gorm:"type:varchar(50);not null"`
	ShareToken    string           `gorm:"type:varchar(64);uniqueIndex;not null"`
	Title         string           `gorm:"type:varchar(200);not null"`
	Description   string           `gorm:"type:text"`
	ShareType     string           `gorm:"type:varchar(20);not null;default:'private'"`
	PasswordHash  string           `gorm:"type:varchar(100)"`
	Settings      database.JSONMap `gorm:"type:text"`
	IsActive      bool             `gorm:"index;not null;default:true"`
	ExpiresAt     *time.Time
	ViewCount     int            `gorm:"default:0"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for ShareModel.
func (ShareModel) TableName() string {
	return "shares"
}

// ToDomain converts ShareModel to a domain Share.
func (m *ShareModel) ToDomain() *Share {
	return &Share{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		OwnerUsername: m.OwnerUsername,
		ShareToken:    m.ShareToken,
		Title:         m.Title,
		Description:   m.Description,
		ShareType:     ShareType(m.ShareType),
		PasswordHash:  m.PasswordHash,
		Settings:      map[string]interface{}(m.Settings),
		IsActive:      m.IsActive,
		ExpiresAt:     m.ExpiresAt,
		ViewCount:     m.ViewCount,
		CreatedAt:     m.CreatedAt,
	}
}

// ShareToModel converts a domain Share to its GORM model.
func ShareToModel(s *Share) *ShareModel {
	return &ShareModel{
		ID:            s.ID,
		OwnerID:       s.OwnerID,
		OwnerUsername: s.OwnerUsername,
		ShareToken:    s.ShareToken,
		Title:         s.Title,
		Description:   s.Description,
		ShareType:     string(s.ShareType),
		PasswordHash:  s.PasswordHash,
		Settings:      database.JSONMap(s.Settings),
		IsActive:      s.IsActive,
		ExpiresAt:     s.ExpiresAt,
		ViewCount:     s.ViewCount,
		CreatedAt:     s.CreatedAt,
	}
}
