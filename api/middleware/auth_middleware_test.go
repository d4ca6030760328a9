package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/models"
	"github.com/anoixa/cerberus/database/repo/accounts"
	"github.com/anoixa/cerberus/database/repo/devices"
	"github.com/anoixa/cerberus/database/repo/sessions"
	"github.com/anoixa/cerberus/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// testProvider 测试数据库提供者
type testProvider struct {
	db *gorm.DB
}

func (p *testProvider) DB() *gorm.DB {
	return p.db
}

func (p *testProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

func (p *testProvider) Transaction(fn database.TxFunc) error {
	return p.db.Transaction(fn)
}

func (p *testProvider) TransactionWithContext(ctx context.Context, fn database.TxFunc) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

func (p *testProvider) AutoMigrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

func (p *testProvider) SQLDB() (*sql.DB, error) {
	return p.db.DB()
}

func (p *testProvider) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (p *testProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *testProvider) Name() string {
	return "sqlite"
}

func guardConfig() *config.Config {
	return &config.Config{
		TokenPrefix:             "cerberus",
		TokenEncoding:           config.EncodingBase64URL,
		TokenRounds:             16,
		LifetimeExpiresIn:       60,
		HeaderDeviceType:        "X-Device-Type",
		HeaderAppVersion:        "X-App-Version",
		HeaderOSVersion:         "X-OS-Version",
		HeaderDeviceFingerprint: "X-Device-Fingerprint",
		TrackIP:                 true,
		TrackUserAgent:          true,
		TrackAppVersion:         true,
		TrackOSVersion:          true,
		TrackDeviceType:         true,
		TrackDeviceFingerprint:  true,
		Revocation:              config.RevocationSoft,
		ScanBatchSize:           200,
		ScanConcurrency:         4,
	}
}

type guardFixture struct {
	cfg     *config.Config
	router  *gin.Engine
	service *auth.SessionService
	user    *models.User
}

// setupGuard 构建挂在内存数据库上的完整认证守卫
func setupGuard(t *testing.T, cfg *config.Config) *guardFixture {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Device{}, &models.Session{}))

	provider := &testProvider{db: db}
	accountsRepo := accounts.NewRepository(provider)
	devicesRepo := devices.NewRepository(provider)
	sessionsRepo := sessions.NewRepository(provider)

	user := &models.User{Username: "alice", Password: "unused"}
	require.NoError(t, accountsRepo.CreateUser(user))

	codec := auth.NewTokenCodec(cfg)
	service := auth.NewSessionService(cfg, codec, nil, sessionsRepo, devicesRepo, nil)

	guard := NewAuthGuard(cfg, service, accountsRepo)

	router := gin.New()
	router.GET("/protected", guard.Middleware(), func(c *gin.Context) {
		current := CurrentUser(c)
		require.NotNil(t, current)
		c.JSON(http.StatusOK, gin.H{"username": current.Username})
	})

	return &guardFixture{cfg: cfg, router: router, service: service, user: user}
}

// issueToken 为固定设备上下文签发一个 token
func (f *guardFixture) issueToken(t *testing.T, fingerprint string) string {
	token, err := f.service.CreateSession(context.Background(), models.OwnerTypeUser, f.user.ID, &auth.RequestContext{
		Fingerprint: fingerprint,
		DeviceType:  "mobile",
		AppVersion:  "1.2.3",
		OSVersion:   "Android 15",
		IP:          "203.0.113.1",
		UserAgent:   "TestClient/1.0",
	})
	require.NoError(t, err)
	return token
}

func (f *guardFixture) request(t *testing.T, token, fingerprint string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if fingerprint != "" {
		req.Header.Set(f.cfg.HeaderDeviceFingerprint, fingerprint)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthGuard_ValidToken(t *testing.T) {
	f := setupGuard(t, guardConfig())
	token := f.issueToken(t, "dev-123")

	w := f.request(t, token, "dev-123")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestAuthGuard_MissingBearer(t *testing.T) {
	f := setupGuard(t, guardConfig())

	w := f.request(t, "", "dev-123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_MalformedAuthorizationHeader(t *testing.T) {
	f := setupGuard(t, guardConfig())
	token := f.issueToken(t, "dev-123")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token "+token)
	req.Header.Set(f.cfg.HeaderDeviceFingerprint, "dev-123")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_UnknownToken(t *testing.T) {
	f := setupGuard(t, guardConfig())

	w := f.request(t, "cerberus-unknown-token", "dev-123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_FingerprintMismatch(t *testing.T) {
	f := setupGuard(t, guardConfig())
	token := f.issueToken(t, "dev-123")

	// 同一 token 换了指纹立即失效
	w := f.request(t, token, "dev-999")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_FingerprintTrackingDisabled(t *testing.T) {
	cfg := guardConfig()
	cfg.TrackDeviceFingerprint = false
	f := setupGuard(t, cfg)
	token := f.issueToken(t, "")

	// 指纹跟踪关闭时不校验指纹头
	w := f.request(t, token, "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGuard_ExpiredSession(t *testing.T) {
	cfg := guardConfig()
	cfg.LifetimeExpiresIn = -1
	f := setupGuard(t, cfg)
	token := f.issueToken(t, "dev-123")

	w := f.request(t, token, "dev-123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_RevokedSession(t *testing.T) {
	f := setupGuard(t, guardConfig())
	token := f.issueToken(t, "dev-123")

	require.NoError(t, f.service.RevokeSession(context.Background(), token))

	w := f.request(t, token, "dev-123")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Unauthenticated.")
}

func TestAuthGuard_UpdatesActivity(t *testing.T) {
	f := setupGuard(t, guardConfig())
	token := f.issueToken(t, "dev-123")

	row, err := f.service.FindSessionByToken(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, row)
	before := *row.LastActivityAt

	w := f.request(t, token, "dev-123")
	require.Equal(t, http.StatusOK, w.Code)

	after, err := f.service.FindSessionByToken(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.False(t, after.LastActivityAt.Before(before))
}
