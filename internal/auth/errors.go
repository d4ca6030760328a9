package auth

import (
	"fmt"
)

// MissingAttributeError 配置要求跟踪的设备属性在请求中缺失
// 属于客户端错误，在边界映射为 400，不作为系统故障记录。
type MissingAttributeError struct {
	Field string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing %s", e.Field)
}

// NewMissingAttributeError 创建缺失属性错误
func NewMissingAttributeError(field string) *MissingAttributeError {
	return &MissingAttributeError{Field: field}
}
