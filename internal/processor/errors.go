package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrReadFailed    = errors.New("读取文档失败")
	ErrExtractFailed = errors.New("提取文档文本失败")
	ErrStoreFailed   = errors.New("保存候选人记录失败")
	ErrDecodeFailed  = errors.New("解析候选人记录失败")
)

// DocumentError 包含详细错误信息的自定义错误
type DocumentError struct {
	Source  string // 文档 URI 或记录键
	Op      string
	BaseErr error
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (操作:%s, 来源:%s): %v", e.BaseErr, e.Op, e.Source, e.Cause)
	}
	return fmt.Sprintf("%s (操作:%s, 来源:%s)", e.BaseErr, e.Op, e.Source)
}

// Unwrap exposes both the category and the underlying cause to errors.Is/As.
func (e *DocumentError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// 错误构造函数
func NewReadError(source string, cause error) error {
	return &DocumentError{Source: source, Op: "read", BaseErr: ErrReadFailed, Cause: cause}
}

func NewExtractError(source string, cause error) error {
	return &DocumentError{Source: source, Op: "extract", BaseErr: ErrExtractFailed, Cause: cause}
}

func NewStoreError(source string, cause error) error {
	return &DocumentError{Source: source, Op: "store", BaseErr: ErrStoreFailed, Cause: cause}
}

func NewDecodeError(source string, cause error) error {
	return &DocumentError{Source: source, Op: "decode", BaseErr: ErrDecodeFailed, Cause: cause}
}
