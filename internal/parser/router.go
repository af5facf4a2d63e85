package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor accepts UTF-8 text documents as-is.
type PlainTextExtractor struct{}

var _ TextExtractor = PlainTextExtractor{}

// ExtractText implements TextExtractor.
func (PlainTextExtractor) ExtractText(_ context.Context, data []byte, uri string) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: text is not valid UTF-8", uri)
	}
	return strings.TrimSpace(string(data)), nil
}

// Router 按文件扩展名分派到对应的提取器
type Router struct {
	byExt map[string]TextExtractor
}

var _ TextExtractor = (*Router)(nil)

// NewRouter routes ".pdf" to pdfBackend and ".txt" to PlainTextExtractor.
func NewRouter(pdfBackend TextExtractor) *Router {
	r := &Router{byExt: map[string]TextExtractor{
		".txt": PlainTextExtractor{},
	}}
	if pdfBackend != nil {
		r.byExt[".pdf"] = pdfBackend
	}
	return r
}

// Register adds or replaces the extractor for ext (".docx", ...).
func (r *Router) Register(ext string, e TextExtractor) {
	r.byExt[normalizeExt(ext)] = e
}

// Supports reports whether uri has a routable extension.
func (r *Router) Supports(uri string) bool {
	_, ok := r.byExt[normalizeExt(filepath.Ext(uri))]
	return ok
}

// Extensions returns the routable extensions, sorted.
func (r *Router) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// ExtractText implements TextExtractor.
func (r *Router) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	ext := normalizeExt(filepath.Ext(uri))
	e, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return e.ExtractText(ctx, data, uri)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
