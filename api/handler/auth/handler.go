package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/anoixa/cerberus/api/common"
	"github.com/anoixa/cerberus/api/middleware"
	"github.com/anoixa/cerberus/config"
	authservice "github.com/anoixa/cerberus/internal/auth"
	"github.com/anoixa/cerberus/utils"
	"github.com/gin-gonic/gin"
)

// Handler 认证处理器
type Handler struct {
	cfg            *config.Config
	loginService   *authservice.LoginService
	sessionService *authservice.SessionService
}

// NewHandler 创建认证处理器
func NewHandler(cfg *config.Config, loginService *authservice.LoginService, sessionService *authservice.SessionService) *Handler {
	return &Handler{
		cfg:            cfg,
		loginService:   loginService,
		sessionService: sessionService,
	}
}

type userAuthRequestBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type sessionItem struct {
	ID             string  `json:"id"`
	DeviceID       string  `json:"device_id"`
	Fingerprint    *string `json:"fingerprint,omitempty"`
	DeviceType     *string `json:"device_type,omitempty"`
	AppVersion     *string `json:"app_version,omitempty"`
	OSVersion      *string `json:"os_version,omitempty"`
	IP             *string `json:"ip,omitempty"`
	LastActivityAt *int64  `json:"last_activity_at,omitempty"`
	ExpiresAt      *int64  `json:"expires_at,omitempty"`
	CreatedAt      int64   `json:"created_at"`
	Current        bool    `json:"current"`
}

// requestContext 从请求头收集设备相关输入
// 头名称可配置，默认对齐移动端常用的 X-Device-* 约定。
func (h *Handler) requestContext(c *gin.Context) *authservice.RequestContext {
	return &authservice.RequestContext{
		Fingerprint: c.GetHeader(h.cfg.HeaderDeviceFingerprint),
		DeviceType:  c.GetHeader(h.cfg.HeaderDeviceType),
		AppVersion:  c.GetHeader(h.cfg.HeaderAppVersion),
		OSVersion:   c.GetHeader(h.cfg.HeaderOSVersion),
		IP:          middleware.ClientIP(c),
		UserAgent:   c.Request.UserAgent(),
	}
}

// LoginHandlerFunc user login
func (h *Handler) LoginHandlerFunc(c *gin.Context) {
	var req userAuthRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	rc := h.requestContext(c)

	_, token, err := h.loginService.Login(c.Request.Context(), req.Username, req.Password, rc)
	if err != nil {
		var missing *authservice.MissingAttributeError
		switch {
		case errors.Is(err, authservice.ErrInvalidCredentials):
			log.Printf("[Auth] failed login attempt for user %s", utils.SanitizeLogUsername(req.Username))
			common.RespondError(c, http.StatusUnauthorized, "Invalid credentials")
		case errors.As(err, &missing):
			common.RespondError(c, http.StatusBadRequest, missing.Error())
		default:
			log.Printf("[Auth] login failed: %v", err)
			common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	common.RespondSuccessMessage(c, "Login successful", loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Add(h.cfg.SessionLifetime()).Unix(),
	})
}

// LogoutHandlerFunc user logout
// 撤销本次请求携带的 token 对应的会话，重复调用是幂等的。
func (h *Handler) LogoutHandlerFunc(c *gin.Context) {
	token := middleware.CurrentBearer(c)
	if token == "" {
		common.RespondUnauthenticated(c)
		return
	}

	if err := h.sessionService.RevokeSession(c.Request.Context(), token); err != nil {
		log.Printf("[Auth] logout failed: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	common.RespondSuccessMessage(c, "Logout successful", nil)
}

// MeHandlerFunc 返回当前认证主体
func (h *Handler) MeHandlerFunc(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondUnauthenticated(c)
		return
	}

	common.RespondSuccess(c, gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

// SessionsHandlerFunc 列出当前用户全部设备上的有效会话
func (h *Handler) SessionsHandlerFunc(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondUnauthenticated(c)
		return
	}

	rows, err := h.sessionService.GetActiveSessionsForUser(c.Request.Context(), user.OwnerType(), user.ID)
	if err != nil {
		log.Printf("[Auth] failed to list sessions: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	current := middleware.CurrentSession(c)

	items := make([]sessionItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		item := sessionItem{
			ID:          row.ID,
			DeviceID:    row.DeviceID,
			Fingerprint: row.DeviceFingerprint,
			DeviceType:  row.DeviceType,
			AppVersion:  row.AppVersion,
			OSVersion:   row.OSVersion,
			IP:          row.IP,
			CreatedAt:   row.CreatedAt.Unix(),
			Current:     current != nil && current.ID == row.ID,
		}
		if row.LastActivityAt != nil {
			ts := row.LastActivityAt.Unix()
			item.LastActivityAt = &ts
		}
		if row.ExpiresAt != nil {
			ts := row.ExpiresAt.Unix()
			item.ExpiresAt = &ts
		}
		items = append(items, item)
	}

	common.RespondSuccess(c, gin.H{"sessions": items})
}

// RevokeSessionHandlerFunc 撤销指定会话
// 只能撤销属于当前用户的会话，跨用户的会话ID按未找到处理。
func (h *Handler) RevokeSessionHandlerFunc(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondUnauthenticated(c)
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		common.RespondError(c, http.StatusBadRequest, "Session ID is required")
		return
	}

	ctx := c.Request.Context()

	row, err := h.sessionService.GetActiveSessionByID(ctx, sessionID)
	if err != nil {
		log.Printf("[Auth] failed to load session %s: %v", sessionID, err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if row == nil || !h.sessionService.TokenBelongsToOwner(row, user.OwnerType(), user.ID) {
		common.RespondError(c, http.StatusNotFound, "Session not found")
		return
	}

	if err := h.sessionService.RevokeSessionByID(ctx, row.ID); err != nil {
		log.Printf("[Auth] failed to revoke session %s: %v", sessionID, err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	common.RespondSuccessMessage(c, "Session revoked", nil)
}

// RevokeOtherSessionsHandlerFunc 撤销除当前会话外的全部会话
func (h *Handler) RevokeOtherSessionsHandlerFunc(c *gin.Context) {
	h.revokeSessions(c, true)
}

// RevokeAllSessionsHandlerFunc 撤销当前用户的全部会话
func (h *Handler) RevokeAllSessionsHandlerFunc(c *gin.Context) {
	h.revokeSessions(c, false)
}

func (h *Handler) revokeSessions(c *gin.Context, keepCurrent bool) {
	user := middleware.CurrentUser(c)
	if user == nil {
		common.RespondUnauthenticated(c)
		return
	}

	ctx := c.Request.Context()

	rows, err := h.sessionService.GetActiveSessionsForUser(ctx, user.OwnerType(), user.ID)
	if err != nil {
		log.Printf("[Auth] failed to list sessions: %v", err)
		common.RespondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	current := middleware.CurrentSession(c)

	var revoked int
	for i := range rows {
		row := &rows[i]
		if keepCurrent && current != nil && current.ID == row.ID {
			continue
		}
		if err := h.sessionService.RevokeSessionByID(ctx, row.ID); err != nil {
			log.Printf("[Auth] failed to revoke session %s: %v", row.ID, err)
			common.RespondError(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		revoked++
	}

	common.RespondSuccessMessage(c, "Sessions revoked", gin.H{"revoked": revoked})
}
