package parser

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"resume-ats/internal/logger"

	"github.com/ledongthuc/pdf"
)

// LocalPDFExtractor 基于 ledongthuc/pdf 的本地PDF文本提取，不依赖外部服务
type LocalPDFExtractor struct{}

// NewLocalPDFExtractor returns the in-process PDF backend.
func NewLocalPDFExtractor() *LocalPDFExtractor {
	return &LocalPDFExtractor{}
}

var _ TextExtractor = (*LocalPDFExtractor)(nil)

// ExtractText rebuilds the visual lines of every page from glyph positions
// and joins pages with a newline. Pages that fail to decode are skipped.
func (e *LocalPDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	startTime := time.Now()

	// ledongthuc/pdf panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse PDF %s: malformed document: %v", uri, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open PDF %s: %w", uri, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText := layoutLines(page.Content().Text)
		if pageText == "" {
			logger.Debug().Str("uri", uri).Int("page", i).Msg("PDF页没有可提取的文本")
			continue
		}
		pages = append(pages, pageText)
	}

	text = strings.TrimSpace(strings.Join(pages, "\n"))
	logger.Debug().
		Str("uri", uri).
		Int("pages", r.NumPage()).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("本地PDF文本提取完成")
	return text, nil
}

// layoutLines groups glyphs in content-stream order into lines. A glyph whose
// baseline differs from the previous one by more than a fraction of the font
// size starts a new line; a horizontal gap wider than a quarter em between
// two non-space glyphs becomes a single space. Blank lines are dropped.
func layoutLines(glyphs []pdf.Text) string {
	var (
		lines []string
		cur   strings.Builder
		prev  *pdf.Text
	)
	flush := func() {
		if line := strings.TrimSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	for i := range glyphs {
		g := &glyphs[i]
		if prev != nil {
			size := math.Max(g.FontSize, prev.FontSize)
			if math.Abs(g.Y-prev.Y) > math.Max(1, 0.3*size) {
				flush()
			} else if prev.W > 0 && g.X-(prev.X+prev.W) > 0.25*size &&
				g.S != " " && prev.S != " " {
				cur.WriteByte(' ')
			}
		}
		cur.WriteString(g.S)
		prev = g
	}
	flush()
	return strings.Join(lines, "\n")
}
