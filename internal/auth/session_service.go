package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anoixa/cerberus/cache"
	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/database/models"
	"github.com/anoixa/cerberus/database/repo/devices"
	"github.com/anoixa/cerberus/database/repo/sessions"
	cryptopackage "github.com/anoixa/cerberus/utils/crypto"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// tokenCacheKeyPrefix token 查找加速缓存的键前缀
const tokenCacheKeyPrefix = "cerberus:token:"

// RequestContext 一次请求中与设备相关的输入
type RequestContext struct {
	Fingerprint string
	DeviceType  string
	AppVersion  string
	OSVersion   string
	IP          string
	UserAgent   string
}

// SessionService 会话存储 - token 签发、解析、撤销与活动跟踪
//
// 哈希存储模式下不存在可索引的查找路径：解析 token 必须枚举所有
// 活跃且未撤销的会话并逐一调用哈希校验，复杂度 O(活跃会话数)。
// 这是有意的安全/性能取舍：即使存储被攻破也无法还原 token。
// 可选的缓存只保存 token 摘要到会话ID 的映射用于缩小候选集，
// 不降低存储哈希的抗碰撞/抗猜测强度。
type SessionService struct {
	cfg      *config.Config
	codec    *TokenCodec
	hasher   cryptopackage.Hasher // 哈希存储关闭时为 nil
	sessions *sessions.Repository
	devices  *devices.Repository
	cache    cache.Provider // 可为 nil
}

// NewSessionService 创建会话服务
func NewSessionService(
	cfg *config.Config,
	codec *TokenCodec,
	hasher cryptopackage.Hasher,
	sessionsRepo *sessions.Repository,
	devicesRepo *devices.Repository,
	cacheProvider cache.Provider,
) *SessionService {
	return &SessionService{
		cfg:      cfg,
		codec:    codec,
		hasher:   hasher,
		sessions: sessionsRepo,
		devices:  devicesRepo,
		cache:    cacheProvider,
	}
}

// HashEnabled 返回 token 是否以单向摘要存储
func (s *SessionService) HashEnabled() bool {
	return s.hasher != nil
}

// validateTracked 校验配置要求跟踪的属性是否齐全
func (s *SessionService) validateTracked(rc *RequestContext) error {
	if s.cfg.TrackDeviceType && rc.DeviceType == "" {
		return NewMissingAttributeError("device type")
	}
	if s.cfg.TrackAppVersion && rc.AppVersion == "" {
		return NewMissingAttributeError("app version")
	}
	if s.cfg.TrackOSVersion && rc.OSVersion == "" {
		return NewMissingAttributeError("OS version")
	}
	if s.cfg.TrackIP && rc.IP == "" {
		return NewMissingAttributeError("IP address")
	}
	if s.cfg.TrackUserAgent && rc.UserAgent == "" {
		return NewMissingAttributeError("User-Agent header")
	}
	if s.cfg.TrackDeviceFingerprint && rc.Fingerprint == "" {
		return NewMissingAttributeError("device fingerprint")
	}
	return nil
}

// trackedPtr 跟踪开关开启且值非空时返回指针，否则为空
func trackedPtr(enabled bool, value string) *string {
	if !enabled || value == "" {
		return nil
	}
	return &value
}

// CreateSession 为所有者创建新会话并返回明文 token
// 明文 token 只在这里返回一次；哈希存储开启后无法再次取回。
func (s *SessionService) CreateSession(ctx context.Context, ownerType string, ownerID uint, rc *RequestContext) (string, error) {
	if err := s.validateTracked(rc); err != nil {
		return "", err
	}

	attrs := devices.Attributes{
		DeviceType: trackedPtr(s.cfg.TrackDeviceType, rc.DeviceType),
		AppVersion: trackedPtr(s.cfg.TrackAppVersion, rc.AppVersion),
		OSVersion:  trackedPtr(s.cfg.TrackOSVersion, rc.OSVersion),
		IP:         trackedPtr(s.cfg.TrackIP, rc.IP),
		UserAgent:  trackedPtr(s.cfg.TrackUserAgent, rc.UserAgent),
	}
	fingerprint := trackedPtr(s.cfg.TrackDeviceFingerprint, rc.Fingerprint)

	device, created, err := s.devices.WithContext(ctx).ResolveOrCreate(ownerType, ownerID, fingerprint, attrs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve device: %w", err)
	}

	// 默认保持设备记录稳定；开启 track_update_existing 后
	// 同一指纹的重复登录会刷新描述性属性。
	if !created && s.cfg.TrackUpdateExisting {
		if err := s.devices.WithContext(ctx).UpdateAttributes(device.ID, attrs); err != nil {
			return "", fmt.Errorf("failed to update device attributes: %w", err)
		}
	}

	now := time.Now()
	payload, err := s.codec.NewPayload(rc.Fingerprint, now.Unix())
	if err != nil {
		return "", err
	}

	accessToken, err := s.codec.Generate(payload)
	if err != nil {
		return "", err
	}

	tokenToStore := accessToken
	if s.hasher != nil {
		tokenToStore, err = s.hasher.Hash(accessToken)
		if err != nil {
			return "", fmt.Errorf("failed to hash access token: %w", err)
		}
	}

	expiresAt := now.Add(s.cfg.SessionLifetime())
	session := &models.Session{
		ID:             uuid.New().String(),
		DeviceID:       device.ID,
		AccessToken:    tokenToStore,
		IsActive:       true,
		ExpiresAt:      &expiresAt,
		IP:             trackedPtr(true, rc.IP),
		LastActivityAt: &now,
	}

	if err := s.sessions.WithContext(ctx).Create(session); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	return accessToken, nil
}

// FindSessionByToken 通过 token 解析活跃会话，未命中返回 (nil, nil)
func (s *SessionService) FindSessionByToken(ctx context.Context, token string) (*sessions.SessionWithDevice, error) {
	if s.hasher == nil {
		return s.sessions.WithContext(ctx).FindActiveByToken(token)
	}
	return s.scanForToken(ctx, token)
}

// scanForToken 哈希模式下的校验扫描
// 先尝试缓存加速，然后分批枚举活跃会话并发校验摘要。
// 命中即返回，不会在前缀匹配上短路：每个摘要都走完整 Verify。
func (s *SessionService) scanForToken(ctx context.Context, token string) (*sessions.SessionWithDevice, error) {
	if row, ok := s.lookupCached(ctx, token); ok {
		return row, nil
	}

	repo := s.sessions.WithContext(ctx)
	batchSize := s.cfg.ScanBatchSize

	var cursor *sessions.ScanCursor
	for {
		batch, err := repo.ListActiveBatch(cursor, batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return nil, nil
		}

		if row := s.verifyBatch(ctx, token, batch); row != nil {
			s.storeCached(ctx, token, row.ID)
			return row, nil
		}

		if len(batch) < batchSize {
			return nil, nil
		}

		last := batch[len(batch)-1]
		cursor = &sessions.ScanCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

// errScanHit 标记批内已命中，借 errgroup 的取消让剩余校验提前退出
var errScanHit = errors.New("scan hit")

// verifyBatch 对一批候选会话做受限并发的摘要校验
// 命中的 goroutine 返回 errScanHit 取消组上下文，尚未开始的校验
// 观察到取消后直接跳过，省掉无谓的哈希计算。
func (s *SessionService) verifyBatch(ctx context.Context, token string, batch []sessions.SessionWithDevice) *sessions.SessionWithDevice {
	var (
		mu    sync.Mutex
		found *sessions.SessionWithDevice
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScanConcurrency)

	for i := range batch {
		row := &batch[i]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			if s.hasher.Verify(token, row.AccessToken) {
				mu.Lock()
				if found == nil {
					found = row
				}
				mu.Unlock()
				return errScanHit
			}
			return nil
		})
	}

	// errScanHit 只用于取消，不向调用方传播
	_ = g.Wait()
	return found
}

// lookupCached 缓存加速路径
// 缓存只保存 token 摘要到会话ID 的映射；命中后仍重新读取行并
// 重新校验哈希与有效性标志，缓存本身不作为信任来源。
func (s *SessionService) lookupCached(ctx context.Context, token string) (*sessions.SessionWithDevice, bool) {
	if s.cache == nil {
		return nil, false
	}

	var sessionID string
	if err := s.cache.Get(ctx, cacheKeyForToken(token), &sessionID); err != nil || sessionID == "" {
		return nil, false
	}

	row, err := s.sessions.WithContext(ctx).FindActiveByID(sessionID)
	if err != nil || row == nil {
		// 行已撤销或删除，条目失效
		_ = s.cache.Delete(ctx, cacheKeyForToken(token))
		return nil, false
	}

	if !s.hasher.Verify(token, row.AccessToken) {
		_ = s.cache.Delete(ctx, cacheKeyForToken(token))
		return nil, false
	}

	return row, true
}

// storeCached 写入缓存加速条目
func (s *SessionService) storeCached(ctx context.Context, token, sessionID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, cacheKeyForToken(token), sessionID, s.cfg.TokenCacheTTL())
}

// cacheKeyForToken 由明文 token 派生非机密缓存键
// 使用快速摘要而不是存储哈希，键本身不可逆推出 token。
func cacheKeyForToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenCacheKeyPrefix + hex.EncodeToString(sum[:])
}

// IsExpired 会话到期判定：expires_at 已设置且不晚于当前时间
// 过期会话即使 is_active 仍为真也绝不视为有效。
func (s *SessionService) IsExpired(session *sessions.SessionWithDevice) bool {
	return session.ExpiresAt != nil && !session.ExpiresAt.After(time.Now())
}

// RevokeSession 按 token 撤销会话
// 与查找使用相同的匹配规则（哈希模式重新扫描）。两种存储模式都
// 遵循配置的撤销策略：soft 保留审计行，hard 删除。找不到匹配会话
// 时静默成功，重复撤销是幂等的。
func (s *SessionService) RevokeSession(ctx context.Context, token string) error {
	row, err := s.FindSessionByToken(ctx, token)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}

	if err := s.RevokeSessionByID(ctx, row.ID); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, cacheKeyForToken(token))
	}
	return nil
}

// RevokeSessionByID 按会话ID应用配置的撤销策略
func (s *SessionService) RevokeSessionByID(ctx context.Context, sessionID string) error {
	repo := s.sessions.WithContext(ctx)
	if s.cfg.Revocation == config.RevocationHard {
		return repo.HardDelete(sessionID)
	}
	return repo.SoftRevoke(sessionID)
}

// UpdateSessionActivity 推进会话的活动时间并记录最近IP
// storedToken 是会话行中存储的表示（明文或摘要），调用方在解析
// 阶段已经拿到，这里按精确相等更新，不再做第二次扫描。
func (s *SessionService) UpdateSessionActivity(ctx context.Context, storedToken, ip string) error {
	return s.sessions.WithContext(ctx).UpdateActivity(storedToken, ip)
}

// GetActiveSessionByID 通过会话ID获取有效会话，未命中返回 (nil, nil)
func (s *SessionService) GetActiveSessionByID(ctx context.Context, sessionID string) (*sessions.SessionWithDevice, error) {
	return s.sessions.WithContext(ctx).FindActiveByID(sessionID)
}

// GetActiveSessionsForUser 获取所有者全部设备上的有效会话
func (s *SessionService) GetActiveSessionsForUser(ctx context.Context, ownerType string, ownerID uint) ([]sessions.SessionWithDevice, error) {
	return s.sessions.WithContext(ctx).ListActiveForOwner(ownerType, ownerID)
}

// FindDeviceByID 通过ID获取设备
func (s *SessionService) FindDeviceByID(ctx context.Context, deviceID string) (*models.Device, error) {
	return s.devices.WithContext(ctx).FindByID(deviceID)
}

// IsFingerprintMatch 比较请求指纹与会话的设备指纹
func (s *SessionService) IsFingerprintMatch(session *sessions.SessionWithDevice, fingerprint string) bool {
	return session.DeviceFingerprint != nil && *session.DeviceFingerprint == fingerprint
}

// TokenBelongsToOwner 判断会话是否属于给定所有者
func (s *SessionService) TokenBelongsToOwner(session *sessions.SessionWithDevice, ownerType string, ownerID uint) bool {
	return session != nil && session.OwnerType == ownerType && session.OwnerID == ownerID
}
