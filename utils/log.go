package utils

import (
	"strings"
	"unicode"
)

// SanitizeLogMessage 过滤日志内容中的控制字符，防止日志注入
// 保留换行和制表符以及所有可打印字符，其余丢弃。
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		switch {
		case r == '\n' || r == '\t':
			sb.WriteRune(r)
		case unicode.IsPrint(r) || unicode.IsGraphic(r):
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// SanitizeLogUsername 截断过长的用户名后再做日志清洗
func SanitizeLogUsername(username string) string {
	if len(username) > 50 {
		username = username[:50] + "..."
	}
	return SanitizeLogMessage(username)
}
