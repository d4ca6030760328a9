package cryptopackage

import (
	"fmt"
)

// 支持的哈希驱动
const (
	DriverArgon2id = "argon2id"
	DriverBcrypt   = "bcrypt"
)

// Hasher 单向哈希提供者接口
// Hash 生成不可逆摘要，Verify 以常数时间比较候选值与摘要。
type Hasher interface {
	// Hash 生成摘要
	Hash(secret string) (string, error)

	// Verify 校验候选值是否匹配摘要
	Verify(secret, digest string) bool

	// Name 返回驱动名称
	Name() string
}

// NewHasher 根据驱动名称创建哈希提供者
func NewHasher(driver string) (Hasher, error) {
	switch driver {
	case DriverArgon2id, "":
		return &Argon2Hasher{}, nil
	case DriverBcrypt:
		return &BcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash driver: %s", driver)
	}
}

// Argon2Hasher Argon2id 哈希驱动
type Argon2Hasher struct{}

// Hash 生成 Argon2id 摘要
func (h *Argon2Hasher) Hash(secret string) (string, error) {
	return GenerateFromPassword(secret)
}

// Verify 校验 Argon2id 摘要
func (h *Argon2Hasher) Verify(secret, digest string) bool {
	ok, err := ComparePasswordAndHash(secret, digest)
	if err != nil {
		return false
	}
	return ok
}

// Name 返回驱动名称
func (h *Argon2Hasher) Name() string {
	return DriverArgon2id
}
