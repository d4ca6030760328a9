package repositories

import (
	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/repo/accounts"
	"github.com/anoixa/cerberus/database/repo/devices"
	"github.com/anoixa/cerberus/database/repo/sessions"
)

// Repositories 集中管理所有数据库仓库
type Repositories struct {
	Accounts *accounts.Repository
	Devices  *devices.Repository
	Sessions *sessions.Repository
}

// NewRepositories 创建所有仓库实例
func NewRepositories(provider database.Provider) *Repositories {
	return &Repositories{
		Accounts: accounts.NewRepository(provider),
		Devices:  devices.NewRepository(provider),
		Sessions: sessions.NewRepository(provider),
	}
}
