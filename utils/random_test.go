package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerateRandomToken_Success 测试随机Token生成
func TestGenerateRandomToken_Success(t *testing.T) {
	token, err := GenerateRandomToken(32)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

// TestGenerateRandomToken_Uniqueness 测试Token唯一性
func TestGenerateRandomToken_Uniqueness(t *testing.T) {
	const numTokens = 100
	tokens := make(map[string]bool)

	for i := 0; i < numTokens; i++ {
		token, err := GenerateRandomToken(32)
		require.NoError(t, err)

		if tokens[token] {
			t.Errorf("Duplicate token generated: %s", token)
		}
		tokens[token] = true
	}

	assert.Equal(t, numTokens, len(tokens), "All tokens should be unique")
}

// TestGenerateRandomToken_Concurrent 测试并发安全
func TestGenerateRandomToken_Concurrent(t *testing.T) {
	const numGoroutines = 50
	const tokensPerGoroutine = 20

	var wg sync.WaitGroup
	tokens := make(chan string, numGoroutines*tokensPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < tokensPerGoroutine; j++ {
				token, err := GenerateRandomToken(32)
				if err != nil {
					t.Errorf("Failed to generate token: %v", err)
					return
				}
				tokens <- token
			}
		}()
	}

	wg.Wait()
	close(tokens)

	tokenMap := make(map[string]bool)
	for token := range tokens {
		if tokenMap[token] {
			t.Errorf("Duplicate token in concurrent generation: %s", token)
		}
		tokenMap[token] = true
	}

	assert.Equal(t, numGoroutines*tokensPerGoroutine, len(tokenMap))
}

// TestRandomHex_Format 测试十六进制编码格式
func TestRandomHex_Format(t *testing.T) {
	out, err := RandomHex(16)
	require.NoError(t, err)

	// 16 字节 -> 32 个十六进制字符
	assert.Len(t, out, 32)
	assert.Regexp(t, "^[0-9a-f]+$", out)
}

// TestRandomHex_Uniqueness 测试随机性
func TestRandomHex_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		out, err := RandomHex(16)
		require.NoError(t, err)
		assert.False(t, seen[out], "duplicate random value")
		seen[out] = true
	}
}

// BenchmarkGenerateRandomToken 基准测试
func BenchmarkGenerateRandomToken(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, err := GenerateRandomToken(64)
		if err != nil {
			b.Fatal(err)
		}
	}
}
