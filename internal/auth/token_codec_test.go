package auth

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/cerberus/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecConfig(encoding string) *config.Config {
	return &config.Config{
		TokenPrefix:   "cerberus",
		TokenEncoding: encoding,
		TokenRounds:   16,
	}
}

func TestTokenCodec_GenerateBase64URL(t *testing.T) {
	codec := NewTokenCodec(codecConfig(config.EncodingBase64URL))

	payload, err := codec.NewPayload("dev-123", time.Now().Unix())
	require.NoError(t, err)

	token, err := codec.Generate(payload)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, "cerberus"))

	// 去掉前缀后应当是合法的去填充 base64url
	encoded := strings.TrimPrefix(token, "cerberus")
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var decoded TokenPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.UID, decoded.UID)
	assert.Equal(t, "dev-123", decoded.Fingerprint)
	assert.Equal(t, payload.IssuedAt, decoded.IssuedAt)
	assert.Equal(t, payload.Nonce, decoded.Nonce)
}

func TestTokenCodec_GenerateBase64(t *testing.T) {
	codec := NewTokenCodec(codecConfig(config.EncodingBase64))

	payload, err := codec.NewPayload("dev-123", time.Now().Unix())
	require.NoError(t, err)

	token, err := codec.Generate(payload)
	require.NoError(t, err)

	encoded := strings.TrimPrefix(token, "cerberus")
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var decoded TokenPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.UID, decoded.UID)
}

func TestTokenCodec_GenerateHex(t *testing.T) {
	codec := NewTokenCodec(codecConfig(config.EncodingHex))

	payload, err := codec.NewPayload("", time.Now().Unix())
	require.NoError(t, err)

	token, err := codec.Generate(payload)
	require.NoError(t, err)

	encoded := strings.TrimPrefix(token, "cerberus")
	data, err := hex.DecodeString(encoded)
	require.NoError(t, err)

	var decoded TokenPayload
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.Nonce, decoded.Nonce)
}

func TestTokenCodec_NonceLength(t *testing.T) {
	cfg := codecConfig(config.EncodingBase64URL)
	cfg.TokenRounds = 32
	codec := NewTokenCodec(cfg)

	payload, err := codec.NewPayload("", time.Now().Unix())
	require.NoError(t, err)

	// rounds 是随机字节数，hex 编码后长度翻倍
	assert.Len(t, payload.Nonce, 64)
}

func TestTokenCodec_Uniqueness(t *testing.T) {
	codec := NewTokenCodec(codecConfig(config.EncodingBase64URL))

	seen := make(map[string]bool)
	issuedAt := time.Now().Unix()

	for i := 0; i < 1000; i++ {
		payload, err := codec.NewPayload("dev-123", issuedAt)
		require.NoError(t, err)

		token, err := codec.Generate(payload)
		require.NoError(t, err)

		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestTokenCodec_EmptyPrefix(t *testing.T) {
	cfg := codecConfig(config.EncodingBase64URL)
	cfg.TokenPrefix = ""
	codec := NewTokenCodec(cfg)

	payload, err := codec.NewPayload("", time.Now().Unix())
	require.NoError(t, err)

	token, err := codec.Generate(payload)
	require.NoError(t, err)

	_, err = base64.RawURLEncoding.DecodeString(token)
	assert.NoError(t, err)
}
