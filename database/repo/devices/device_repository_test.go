package devices

import (
	"context"
	"database/sql"
	"testing"

	"github.com/anoixa/cerberus/database"
	"github.com/anoixa/cerberus/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	// 每个测试独立的内存数据库，避免用例间互相污染
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.User{}, &models.Device{}, &models.Session{})
	require.NoError(t, err)

	return db
}

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

func strPtr(s string) *string {
	return &s
}

func TestResolveOrCreate_CreatesNewDevice(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	device, created, err := repo.ResolveOrCreate("user", 1, strPtr("fp-create"), Attributes{
		DeviceType: strPtr("mobile"),
		AppVersion: strPtr("1.2.3"),
	})
	require.NoError(t, err)

	assert.True(t, created)
	assert.NotEmpty(t, device.ID)
	assert.Equal(t, "user", device.OwnerType)
	assert.Equal(t, uint(1), device.OwnerID)
	require.NotNil(t, device.Fingerprint)
	assert.Equal(t, "fp-create", *device.Fingerprint)
	require.NotNil(t, device.DeviceType)
	assert.Equal(t, "mobile", *device.DeviceType)
	assert.False(t, device.IsTrusted)
}

func TestResolveOrCreate_ReturnsExistingDevice(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	first, created, err := repo.ResolveOrCreate("user", 2, strPtr("fp-existing"), Attributes{})
	require.NoError(t, err)
	assert.True(t, created)

	// 同一 (所有者, 指纹) 不产生第二行
	second, created, err := repo.ResolveOrCreate("user", 2, strPtr("fp-existing"), Attributes{
		DeviceType: strPtr("tablet"),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	count, err := repo.CountByOwner("user", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestResolveOrCreate_DistinctFingerprints(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	first, _, err := repo.ResolveOrCreate("user", 3, strPtr("fp-a"), Attributes{})
	require.NoError(t, err)

	second, _, err := repo.ResolveOrCreate("user", 3, strPtr("fp-b"), Attributes{})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)

	count, err := repo.CountByOwner("user", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestResolveOrCreate_NilFingerprint(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	// 指纹跟踪关闭时设备以 NULL 指纹落库
	device, created, err := repo.ResolveOrCreate("user", 4, nil, Attributes{
		UserAgent: strPtr("TestClient/1.0"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Nil(t, device.Fingerprint)

	again, created, err := repo.ResolveOrCreate("user", 4, nil, Attributes{})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, device.ID, again.ID)
}

func TestUpdateAttributes(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	device, _, err := repo.ResolveOrCreate("user", 5, strPtr("fp-update"), Attributes{
		DeviceType: strPtr("mobile"),
		AppVersion: strPtr("1.0.0"),
	})
	require.NoError(t, err)

	err = repo.UpdateAttributes(device.ID, Attributes{
		AppVersion: strPtr("2.0.0"),
		OSVersion:  strPtr("Android 15"),
	})
	require.NoError(t, err)

	updated, err := repo.FindByID(device.ID)
	require.NoError(t, err)
	require.NotNil(t, updated)

	// 未提供的字段保持不变
	assert.Equal(t, "mobile", *updated.DeviceType)
	assert.Equal(t, "2.0.0", *updated.AppVersion)
	assert.Equal(t, "Android 15", *updated.OSVersion)
	assert.Equal(t, "fp-update", *updated.Fingerprint)
}

func TestUpdateAttributes_Empty(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	device, _, err := repo.ResolveOrCreate("user", 6, strPtr("fp-noop"), Attributes{})
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateAttributes(device.ID, Attributes{}))
}

func TestFindByID_NotFound(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	device, err := repo.FindByID("nonexistent")
	require.NoError(t, err)
	assert.Nil(t, device)
}

func TestDeleteByID(t *testing.T) {
	repo := NewRepository(&testProvider{db: setupTestDB(t)})

	device, _, err := repo.ResolveOrCreate("user", 7, strPtr("fp-delete"), Attributes{})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByID(device.ID))

	gone, err := repo.FindByID(device.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
