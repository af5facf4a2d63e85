package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// 确保FSRecordStore实现了RecordStore接口
var _ RecordStore = (*FSRecordStore)(nil)

// FSRecordStore 以目录保存记录，每个候选人一个 JSON 文件
type FSRecordStore struct {
	dir string
}

// NewFSRecordStore 创建目录存储，目录不存在时自动创建
func NewFSRecordStore(dir string) (*FSRecordStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("记录目录不能为空")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建记录目录失败: %w", err)
	}
	return &FSRecordStore{dir: dir}, nil
}

// Dir 返回存储目录
func (s *FSRecordStore) Dir() string {
	return s.dir
}

// Put writes via a temp file and rename so readers never see partial JSON.
func (s *FSRecordStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入记录 %s 失败: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入记录 %s 失败: %w", key, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, key)); err != nil {
		return fmt.Errorf("保存记录 %s 失败: %w", key, err)
	}
	return nil
}

// Get 读取记录
func (s *FSRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return nil, fmt.Errorf("读取记录 %s 失败: %w", key, err)
	}
	return data, nil
}

// List returns regular *.json files in lexical order. Hidden temp files are skipped.
func (s *FSRecordStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("读取记录目录失败: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if ValidateKey(name) != nil {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}
