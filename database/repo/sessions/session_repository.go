package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/models"
	"gorm.io/gorm"
)

// SessionWithDevice 会话行与其设备上下文的连接结果
type SessionWithDevice struct {
	ID             string
	DeviceID       string
	AccessToken    string
	IsActive       bool
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
	IP             *string
	LastActivityAt *time.Time
	CreatedAt      time.Time

	DeviceFingerprint *string
	DeviceType        *string
	AppVersion        *string
	OSVersion         *string
	DeviceUserAgent   *string
	OwnerType         string
	OwnerID           uint
}

// joinColumns 连接查询的统一投影
const joinColumns = "sessions.id, sessions.device_id, sessions.access_token, sessions.is_active, " +
	"sessions.expires_at, sessions.revoked_at, sessions.ip, sessions.last_activity_at, sessions.created_at, " +
	"devices.fingerprint AS device_fingerprint, devices.device_type, devices.app_version, " +
	"devices.os_version, devices.user_agent AS device_user_agent, devices.owner_type, devices.owner_id"

// Repository 会话仓库 - 封装所有会话行的数据库操作
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的会话仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// Create 插入新的会话行
func (r *Repository) Create(session *models.Session) error {
	return r.db.DB().Create(session).Error
}

// activeJoin 限定 active 且未撤销的连接查询
func (r *Repository) activeJoin() *gorm.DB {
	return r.db.DB().Model(&models.Session{}).
		Select(joinColumns).
		Joins("JOIN devices ON devices.id = sessions.device_id").
		Where("sessions.is_active = ? AND sessions.revoked_at IS NULL", true)
}

// FindActiveByToken 按存储的 access_token 精确匹配活跃会话
// 仅在明文存储模式下有索引意义；哈希模式走批量扫描。
func (r *Repository) FindActiveByToken(token string) (*SessionWithDevice, error) {
	var row SessionWithDevice
	err := r.activeJoin().Where("sessions.access_token = ?", token).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

// FindActiveByID 按会话ID获取活跃会话
func (r *Repository) FindActiveByID(id string) (*SessionWithDevice, error) {
	var row SessionWithDevice
	err := r.activeJoin().Where("sessions.id = ?", id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, nil
	}
	return &row, nil
}

// ScanCursor 键集分页游标，指向上一批的最后一行
type ScanCursor struct {
	CreatedAt time.Time
	ID        string
}

// ListActiveBatch 分批枚举活跃会话，供哈希模式的校验扫描使用
// 按 (created_at, id) 倒序做键集分页：并发删除已扫过的行不会让
// 未扫描的行向前移位，不存在 OFFSET 分页的漏扫问题。cursor 为 nil
// 时从最新一行开始，最近创建的会话最可能被使用。
func (r *Repository) ListActiveBatch(cursor *ScanCursor, limit int) ([]SessionWithDevice, error) {
	query := r.activeJoin().
		Order("sessions.created_at DESC, sessions.id DESC").
		Limit(limit)
	if cursor != nil {
		query = query.Where(
			"sessions.created_at < ? OR (sessions.created_at = ? AND sessions.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []SessionWithDevice
	err := query.Scan(&rows).Error
	return rows, err
}

// ListActiveForOwner 获取所有者全部设备上的活跃会话
func (r *Repository) ListActiveForOwner(ownerType string, ownerID uint) ([]SessionWithDevice, error) {
	var rows []SessionWithDevice
	err := r.activeJoin().
		Where("devices.owner_type = ? AND devices.owner_id = ?", ownerType, ownerID).
		Order("sessions.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// UpdateActivity 按存储值精确匹配更新活动时间与IP
// 调用方已完成会话解析与认证，这里直接操作存储表示，不再做哈希校验。
func (r *Repository) UpdateActivity(storedToken, ip string) error {
	return r.db.DB().Model(&models.Session{}).
		Where("access_token = ?", storedToken).
		Updates(map[string]interface{}{
			"last_activity_at": time.Now(),
			"ip":               ip,
		}).Error
}

// SoftRevoke 软撤销：标记失效并记录撤销时间，保留审计行
func (r *Repository) SoftRevoke(id string) error {
	return r.db.DB().Model(&models.Session{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"revoked_at": time.Now(),
		}).Error
}

// HardDelete 硬撤销：直接删除会话行
func (r *Repository) HardDelete(id string) error {
	return r.db.DB().Where("id = ?", id).Delete(&models.Session{}).Error
}

// GetByID 获取会话行（不限制活跃状态）
func (r *Repository) GetByID(id string) (*models.Session, error) {
	var session models.Session
	err := r.db.DB().Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Prune 批量删除已过期或已撤销的会话
// 单条批量 DELETE，全部成功或全部失败，返回删除行数。
func (r *Repository) Prune() (int64, error) {
	result := r.db.DB().
		Where("expires_at < ? OR revoked_at IS NOT NULL", time.Now()).
		Delete(&models.Session{})
	return result.RowsAffected, result.Error
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
