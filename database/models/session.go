package models

import (
	"time"
)

// Session 一个已签发 token 的存活状态
// AccessToken 按配置存明文或单向摘要，两者不会同时存在。
// 会话有效当且仅当 is_active 为真、revoked_at 为空且未到 expires_at。
type Session struct {
	ID             string `gorm:"primaryKey;size:36"`
	DeviceID       string `gorm:"size:36;not null;index"`
	Device         Device `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE"`
	AccessToken    string `gorm:"not null;index"`
	IsActive       bool   `gorm:"not null;default:true"`
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
	IP             *string `gorm:"size:45"`
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
