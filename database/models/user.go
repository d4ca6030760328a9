package models

import (
	"time"

	"gorm.io/gorm"
)

// OwnerTypeUser 内置身份模型的多态类型标签
const OwnerTypeUser = "user"

type User struct {
	gorm.Model
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string `gorm:"unique"`
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnerType 返回用户在会话所有者上的多态类型标签
func (u *User) OwnerType() string {
	return OwnerTypeUser
}
