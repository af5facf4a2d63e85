package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"resume-ats/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

const defaultEinoTimeout = 30 * time.Second

// EinoExtractor 使用 Eino PDF Parser 提取文本。
// 该解析器只在文本块边界换行，同一文本块内的多行会合并为一行，
// 依赖行结构的字段提取在此后端上召回率较低；需要逐行文本时使用 local 或 tika。
type EinoExtractor struct {
	parser  *pdf.PDFParser
	timeout time.Duration
}

// EinoOption configures an EinoExtractor.
type EinoOption func(*EinoExtractor)

// WithEinoTimeout bounds a single Parse call.
func WithEinoTimeout(d time.Duration) EinoOption {
	return func(e *EinoExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

var _ TextExtractor = (*EinoExtractor)(nil)

// NewEinoExtractor 初始化 Eino PDF 文本提取器，不按页分割
func NewEinoExtractor(ctx context.Context, options ...EinoOption) (*EinoExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}
	e := &EinoExtractor{parser: p, timeout: defaultEinoTimeout}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractText implements TextExtractor.
func (e *EinoExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data), einoParser.WithURI(uri))
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.TrimSpace(strings.Join(parts, "\n"))

	logger.Debug().
		Str("uri", uri).
		Int("documents", len(docs)).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Eino PDF提取完成")
	return text, nil
}
