package cryptopackage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewHasher_Drivers 测试驱动工厂
func TestNewHasher_Drivers(t *testing.T) {
	for _, driver := range []string{DriverArgon2id, DriverBcrypt} {
		hasher, err := NewHasher(driver)
		require.NoError(t, err)
		assert.Equal(t, driver, hasher.Name())
	}

	// 空驱动回退到 argon2id
	hasher, err := NewHasher("")
	require.NoError(t, err)
	assert.Equal(t, DriverArgon2id, hasher.Name())

	_, err = NewHasher("md5")
	assert.Error(t, err)
}

// TestHasher_RoundTrip 测试各驱动哈希与校验
func TestHasher_RoundTrip(t *testing.T) {
	for _, driver := range []string{DriverArgon2id, DriverBcrypt} {
		t.Run(driver, func(t *testing.T) {
			hasher, err := NewHasher(driver)
			require.NoError(t, err)

			digest, err := hasher.Hash("cerberus-token-value")
			require.NoError(t, err)
			assert.NotEqual(t, "cerberus-token-value", digest)

			assert.True(t, hasher.Verify("cerberus-token-value", digest))
			assert.False(t, hasher.Verify("wrong-token-value", digest))
		})
	}
}

// TestHasher_DigestNotReversible 测试摘要不等于明文且每次不同
func TestHasher_DigestNotReversible(t *testing.T) {
	hasher, err := NewHasher(DriverArgon2id)
	require.NoError(t, err)

	d1, err := hasher.Hash("same-input")
	require.NoError(t, err)
	d2, err := hasher.Hash("same-input")
	require.NoError(t, err)

	// 盐值不同，摘要不同
	assert.NotEqual(t, d1, d2)
	assert.True(t, hasher.Verify("same-input", d1))
	assert.True(t, hasher.Verify("same-input", d2))
}

// TestHasher_InvalidDigest 测试损坏摘要不会 panic
func TestHasher_InvalidDigest(t *testing.T) {
	for _, driver := range []string{DriverArgon2id, DriverBcrypt} {
		hasher, err := NewHasher(driver)
		require.NoError(t, err)
		assert.False(t, hasher.Verify("secret", "not-a-digest"))
	}
}

// TestBcryptHasher_LongInput 测试超过 bcrypt 72 字节上限的输入
func TestBcryptHasher_LongInput(t *testing.T) {
	hasher := &BcryptHasher{}

	long := strings.Repeat("a", 150)

	digest, err := hasher.Hash(long)
	require.NoError(t, err)
	assert.True(t, hasher.Verify(long, digest))
}

// TestBcryptHasher_LongInputTailMatters 前 72 字节相同的长输入不可互相通过校验
func TestBcryptHasher_LongInputTailMatters(t *testing.T) {
	hasher := &BcryptHasher{}

	base := strings.Repeat("a", 100)
	digest, err := hasher.Hash(base + "x")
	require.NoError(t, err)

	assert.True(t, hasher.Verify(base+"x", digest))
	assert.False(t, hasher.Verify(base+"y", digest))
}
