package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/anoixa/cerberus/api/common"
	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/database/models"
	"github.com/anoixa/cerberus/database/repo/accounts"
	"github.com/anoixa/cerberus/database/repo/sessions"
	"github.com/anoixa/cerberus/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	// ContextPrincipalKey 已认证用户在 gin 上下文中的键
	ContextPrincipalKey = "auth_principal"
	// ContextSessionKey 已解析会话在 gin 上下文中的键
	ContextSessionKey = "auth_session"
	// ContextBearerKey 本次请求携带的明文 token
	ContextBearerKey = "auth_bearer"
)

// AuthGuard 请求认证守卫
// 每个请求独立执行：提取 bearer 凭据 → 解析会话 → 过期与指纹校验 →
// 解析身份 → 记录活动。任何一步失败都产生同样的未认证响应，
// 不暴露具体失败环节。解析结果缓存在请求上下文中，同一请求内的
// 重复取用不会再次触发昂贵的匹配扫描。
type AuthGuard struct {
	cfg      *config.Config
	sessions *auth.SessionService
	accounts *accounts.Repository
}

// NewAuthGuard 创建认证守卫
func NewAuthGuard(cfg *config.Config, sessionService *auth.SessionService, accountsRepo *accounts.Repository) *AuthGuard {
	return &AuthGuard{
		cfg:      cfg,
		sessions: sessionService,
		accounts: accountsRepo,
	}
}

// Middleware 返回 gin 中间件
func (g *AuthGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 同一请求内已经解析过，直接放行
		if _, exists := c.Get(ContextPrincipalKey); exists {
			c.Next()
			return
		}

		token := extractBearerToken(c)
		if token == "" {
			common.RespondUnauthenticated(c)
			c.Abort()
			return
		}

		ctx := c.Request.Context()

		session, err := g.sessions.FindSessionByToken(ctx, token)
		if err != nil {
			log.Printf("[AuthGuard] session lookup failed: %v", err)
			common.RespondError(c, http.StatusInternalServerError, "Internal server error")
			c.Abort()
			return
		}
		if session == nil {
			common.RespondUnauthenticated(c)
			c.Abort()
			return
		}

		// 过期会话即使仍标记 active 也不放行，且不抛错给调用方
		if g.sessions.IsExpired(session) {
			common.RespondUnauthenticated(c)
			c.Abort()
			return
		}

		if g.cfg.TrackDeviceFingerprint {
			fingerprint := c.GetHeader(g.cfg.HeaderDeviceFingerprint)
			if !g.sessions.IsFingerprintMatch(session, fingerprint) {
				common.RespondUnauthenticated(c)
				c.Abort()
				return
			}
		}

		user, err := g.accounts.WithContext(ctx).ResolveOwner(session.OwnerType, session.OwnerID)
		if err != nil {
			if errors.Is(err, accounts.ErrUnknownOwnerType) {
				// 部署配置错误，不归入统一的未认证结果
				log.Printf("[AuthGuard] %v", err)
				common.RespondError(c, http.StatusInternalServerError, "Identity model misconfigured")
				c.Abort()
				return
			}
			log.Printf("[AuthGuard] identity lookup failed: %v", err)
			common.RespondError(c, http.StatusInternalServerError, "Internal server error")
			c.Abort()
			return
		}
		if user == nil {
			common.RespondUnauthenticated(c)
			c.Abort()
			return
		}

		// 每个成功认证的请求推进 last_activity_at；更新失败不阻断请求
		if err := g.sessions.UpdateSessionActivity(ctx, session.AccessToken, ClientIP(c)); err != nil {
			log.Printf("[AuthGuard] failed to update session activity: %v", err)
		}

		c.Set(ContextPrincipalKey, user)
		c.Set(ContextSessionKey, session)
		c.Set(ContextBearerKey, token)

		c.Next()
	}
}

// extractBearerToken 从 Authorization 头提取 bearer 凭据
// 凭据是不透明字符串，这里不解析也不解码。
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// CurrentUser 返回请求上下文中缓存的已认证用户
func CurrentUser(c *gin.Context) *models.User {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// CurrentSession 返回请求上下文中缓存的已解析会话
func CurrentSession(c *gin.Context) *sessions.SessionWithDevice {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, ok := value.(*sessions.SessionWithDevice)
	if !ok {
		return nil
	}
	return session
}

// CurrentBearer 返回本次请求携带的明文 token
func CurrentBearer(c *gin.Context) string {
	value, exists := c.Get(ContextBearerKey)
	if !exists {
		return ""
	}
	token, _ := value.(string)
	return token
}
