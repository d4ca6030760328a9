package models

import (
	"time"
)

// Device 一个所有者身份与设备指纹的绑定记录
// (owner_type, owner_id, fingerprint) 上的唯一索引保证同一指纹只有一行，
// 并发创建竞争依赖该约束在存储层裁决。
type Device struct {
	ID          string  `gorm:"primaryKey;size:36"`
	OwnerType   string  `gorm:"size:100;not null;uniqueIndex:idx_owner_fingerprint,priority:1;index:idx_owner,priority:1"`
	OwnerID     uint    `gorm:"not null;uniqueIndex:idx_owner_fingerprint,priority:2;index:idx_owner,priority:2"`
	Fingerprint *string `gorm:"size:100;uniqueIndex:idx_owner_fingerprint,priority:3"`
	DeviceType  *string `gorm:"size:20"`
	AppVersion  *string `gorm:"size:20"`
	OSVersion   *string `gorm:"size:30"`
	IP          *string `gorm:"size:45"`
	UserAgent   *string `gorm:"size:255"`
	IsTrusted   bool    `gorm:"not null;default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
