package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// RecordExt 持久化记录的文件扩展名
const RecordExt = ".json"

var (
	// ErrRecordNotFound is returned by Get when no record is stored under the key.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidKey is returned for keys that are empty, nested or lack RecordExt.
	ErrInvalidKey = errors.New("invalid record key")
)

// RecordStore 结构化记录存储接口
// Keys are flat "<id>.json" names; List returns them in the backend's
// enumeration order, which is lexical for every implementation here.
type RecordStore interface {
	// Put 写入记录，已存在时覆盖
	Put(ctx context.Context, key string, data []byte) error
	// Get 读取记录，不存在时返回 ErrRecordNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	// List 列出全部记录键
	List(ctx context.Context) ([]string, error)
}

// RecordKey 由清洗后的标识生成记录键
func RecordKey(id string) string {
	return id + RecordExt
}

// ValidateKey checks that key is usable by every backend.
func ValidateKey(key string) error {
	if key == "" || key == RecordExt || !strings.HasSuffix(key, RecordExt) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if key == "."+RecordExt || strings.HasPrefix(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range key {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
