package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attributes 创建设备时的描述性属性
// 为 nil 的字段表示对应的跟踪开关关闭，持久化为空。
type Attributes struct {
	DeviceType *string
	AppVersion *string
	OSVersion  *string
	IP         *string
	UserAgent  *string
}

// Repository 设备仓库 - 按 (所有者, 指纹) 解析或创建设备记录
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的设备仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// ResolveOrCreate 查找或创建 (owner, fingerprint) 对应的设备
// 并发创建同一设备时依赖唯一约束裁决：插入失败后重新读取，
// 返回竞争获胜方的行而不是报错或产生重复设备。
// created 为 true 表示本次调用插入了新行。
func (r *Repository) ResolveOrCreate(ownerType string, ownerID uint, fingerprint *string, attrs Attributes) (device *models.Device, created bool, err error) {
	device, err = r.find(ownerType, ownerID, fingerprint)
	if err != nil {
		return nil, false, err
	}
	if device != nil {
		return device, false, nil
	}

	candidate := &models.Device{
		ID:          uuid.New().String(),
		OwnerType:   ownerType,
		OwnerID:     ownerID,
		Fingerprint: fingerprint,
		DeviceType:  attrs.DeviceType,
		AppVersion:  attrs.AppVersion,
		OSVersion:   attrs.OSVersion,
		IP:          attrs.IP,
		UserAgent:   attrs.UserAgent,
		IsTrusted:   false,
	}

	if createErr := r.db.DB().Create(candidate).Error; createErr != nil {
		// 可能是并发插入触发的唯一约束冲突，重读确认
		device, err = r.find(ownerType, ownerID, fingerprint)
		if err != nil {
			return nil, false, err
		}
		if device != nil {
			return device, false, nil
		}
		return nil, false, fmt.Errorf("failed to create device: %w", createErr)
	}

	return candidate, true, nil
}

// find 按 (owner_type, owner_id, fingerprint) 精确匹配设备
func (r *Repository) find(ownerType string, ownerID uint, fingerprint *string) (*models.Device, error) {
	query := r.db.DB().Where("owner_type = ? AND owner_id = ?", ownerType, ownerID)
	if fingerprint != nil {
		query = query.Where("fingerprint = ?", *fingerprint)
	} else {
		query = query.Where("fingerprint IS NULL")
	}

	var device models.Device
	err := query.First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// UpdateAttributes 更新已有设备的描述性属性
// 仅在 track_update_existing 开启时由上层调用，指纹不可变。
func (r *Repository) UpdateAttributes(deviceID string, attrs Attributes) error {
	updates := map[string]interface{}{}
	if attrs.DeviceType != nil {
		updates["device_type"] = *attrs.DeviceType
	}
	if attrs.AppVersion != nil {
		updates["app_version"] = *attrs.AppVersion
	}
	if attrs.OSVersion != nil {
		updates["os_version"] = *attrs.OSVersion
	}
	if attrs.IP != nil {
		updates["ip"] = *attrs.IP
	}
	if attrs.UserAgent != nil {
		updates["user_agent"] = *attrs.UserAgent
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.DB().Model(&models.Device{}).Where("id = ?", deviceID).Updates(updates).Error
}

// FindByID 通过ID获取设备
func (r *Repository) FindByID(deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.DB().Where("id = ?", deviceID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

// CountByOwner 统计所有者的设备数量
func (r *Repository) CountByOwner(ownerType string, ownerID uint) (int64, error) {
	var count int64
	err := r.db.DB().Model(&models.Device{}).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Count(&count).Error
	return count, err
}

// DeleteByID 删除设备，关联会话由外键级联删除
func (r *Repository) DeleteByID(deviceID string) error {
	return r.db.DB().Where("id = ?", deviceID).Delete(&models.Device{}).Error
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
