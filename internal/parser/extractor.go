// Package parser turns uploaded documents into plain text.
package parser

import (
	"context"
	"errors"
)

// ErrUnsupportedFormat is returned for documents no extractor accepts.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// TextExtractor 文档文本提取器接口
// uri 仅用于日志和后端提示，data 是文档的完整内容。
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// ExtractorFunc adapts a function to TextExtractor.
type ExtractorFunc func(ctx context.Context, data []byte, uri string) (string, error)

// ExtractText implements TextExtractor.
func (f ExtractorFunc) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	return f(ctx, data, uri)
}

var _ TextExtractor = ExtractorFunc(nil)
