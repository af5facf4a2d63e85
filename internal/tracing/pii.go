package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500
	// MaxKeyLength Redis键、对象键最大长度
	MaxKeyLength = 100
)

// piiKeywords 属性名包含这些关键字时对值做掩码
var piiKeywords = []string{
	"email", "phone", "password", "address", "name", "姓名", "secret", "token", "api_key",
}

// SafeAttributeValue 敏感字段返回掩码后的值，其余字段按 maxLength 截断
func SafeAttributeValue(name, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	for _, kw := range piiKeywords {
		if strings.Contains(lowerName, kw) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
//
//	"张三" -> "张*", "王小明" -> "王*明", "13812345678" -> "13*******78"
func MaskPII(value string) string {
	runes := []rune(value)
	switch n := len(runes); {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[:1]) + "*"
	case n <= 4:
		return string(runes[:1]) + strings.Repeat("*", n-2) + string(runes[n-1:])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 截断字符串，保留首尾并以 "..." 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

// SafeSQL 安全处理SQL语句
func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

// SafeKey 安全处理存储键
func SafeKey(key string) string {
	return TruncateString(key, MaxKeyLength)
}
