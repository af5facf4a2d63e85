package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultGlob selects the documents picked up from an input directory.
const DefaultGlob = "*.pdf"

// Source is one input document.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads a document from the local filesystem.
type FileSource struct {
	Path string
}

// Name 返回文件名，不含目录
func (f FileSource) Name() string { return filepath.Base(f.Path) }

func (f FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Path)
}

// BytesSource wraps in-memory content, e.g. an uploaded file.
type BytesSource struct {
	Filename string
	Data     []byte
}

func (b BytesSource) Name() string { return b.Filename }

func (b BytesSource) Read(ctx context.Context) ([]byte, error) { return b.Data, ctx.Err() }

// DirectorySources lists regular files in dir matching glob, in lexical order.
// Subdirectories are not descended into.
func DirectorySources(dir, glob string) ([]Source, error) {
	if glob == "" {
		glob = DefaultGlob
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("输入目录不可用: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("输入路径不是目录: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("无效的文件匹配模式 %q: %w", glob, err)
	}
	sort.Strings(matches)

	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		sources = append(sources, FileSource{Path: m})
	}
	return sources, nil
}
