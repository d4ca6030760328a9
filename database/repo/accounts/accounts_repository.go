package accounts

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/models"
	"github.com/anoixa/cerberus/utils"
	cryptopackage "github.com/anoixa/cerberus/utils/crypto"
	"gorm.io/gorm"
)

// ErrUserNotFound 用户不存在错误
var ErrUserNotFound = errors.New("user not found")

// ErrUnknownOwnerType 配置的多态类型标签无法解析为身份模型
// 属于部署配置错误而非客户端错误。
var ErrUnknownOwnerType = errors.New("unknown owner type")

// Repository 账户仓库 - 会话所有者的身份提供者
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的账户仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// CreateDefaultAdminUser 创建默认管理员用户
func (r *Repository) CreateDefaultAdminUser() {
	var count int64

	if err := r.db.DB().Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		log.Fatalf("Failed to check admin user existence: %v", err)
	}

	if count > 0 {
		log.Println("Admin user already exists, skipping creation")
		return
	}

	randomPassword, err := utils.GenerateRandomToken(16)
	if err != nil {
		log.Fatalf("Failed to generate random password: %v", err)
	}
	if len(randomPassword) > 16 {
		randomPassword = randomPassword[:16]
	}

	hashedPassword, err := cryptopackage.GenerateFromPassword(randomPassword)
	if err != nil {
		log.Fatalf("Failed to hash default password: %v", err)
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		user := &models.User{
			Username: "admin",
			Password: hashedPassword,
		}

		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		log.Println("========================================")
		log.Println("Default admin user created")
		log.Printf("   Username: admin")
		log.Printf("   Password: %s", randomPassword)
		log.Println("========================================")

		return nil
	})

	if err != nil {
		log.Fatalf("Failed to create default admin user: %v", err)
	}
}

// GetUserByUsername 通过用户名获取用户
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.DB().Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID 通过ID获取用户
func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.DB().Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// ResolveOwner 将多态引用 (owner_type, owner_id) 解析回身份模型
// 未知类型标签返回 ErrUnknownOwnerType；不存在的主键返回 (nil, nil)。
func (r *Repository) ResolveOwner(ownerType string, ownerID uint) (*models.User, error) {
	if ownerType != models.OwnerTypeUser {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOwnerType, ownerType)
	}
	return r.GetUserByID(ownerID)
}

// CreateUser 创建用户
func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: &contextProvider{Provider: r.db, ctx: ctx}}
}

// contextProvider 包装 Provider 添加上下文
type contextProvider struct {
	database.Provider
	ctx context.Context
}

func (c *contextProvider) DB() *gorm.DB {
	return c.Provider.WithContext(c.ctx)
}

func (c *contextProvider) Transaction(fn database.TxFunc) error {
	return c.Provider.TransactionWithContext(c.ctx, fn)
}
