package auth

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/anoixa/cerberus/config"
	"github.com/anoixa/cerberus/utils"
	"github.com/google/uuid"
)

// TokenPayload 编码进 token 的载荷
// 唯一性与不可猜测性完全依赖 rnd 中的密码学随机值，codec 本身不做哈希。
type TokenPayload struct {
	UID         string `json:"uid"`
	Fingerprint string `json:"fp"`
	IssuedAt    int64  `json:"ts"`
	Nonce       string `json:"rnd"`
}

// TokenCodec 不透明 token 的构造与编码
// 前缀仅用于路由和日志识别，不携带任何安全含义。
type TokenCodec struct {
	prefix   string
	encoding string
	rounds   int
}

// NewTokenCodec 从配置创建 codec
// 未知编码方案已在配置归一化时回退到 base64url。
func NewTokenCodec(cfg *config.Config) *TokenCodec {
	return &TokenCodec{
		prefix:   cfg.TokenPrefix,
		encoding: cfg.TokenEncoding,
		rounds:   cfg.TokenRounds,
	}
}

// NewPayload 构造一个新的随机载荷
func (c *TokenCodec) NewPayload(fingerprint string, issuedAt int64) (*TokenPayload, error) {
	nonce, err := utils.RandomHex(c.rounds)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token nonce: %w", err)
	}

	return &TokenPayload{
		UID:         uuid.New().String(),
		Fingerprint: fingerprint,
		IssuedAt:    issuedAt,
		Nonce:       nonce,
	}, nil
}

// Generate 序列化载荷并按配置的方案编码，前缀拼接在编码结果之前
func (c *TokenCodec) Generate(payload *TokenPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token payload: %w", err)
	}

	var encoded string
	switch c.encoding {
	case config.EncodingBase64:
		encoded = base64.StdEncoding.EncodeToString(data)
	case config.EncodingHex:
		encoded = hex.EncodeToString(data)
	default:
		// base64url（去填充），同时是未知方案的回退值
		encoded = base64.RawURLEncoding.EncodeToString(data)
	}

	return c.prefix + encoded, nil
}

// Prefix 返回配置的 token 前缀
func (c *TokenCodec) Prefix() string {
	return c.prefix
}
