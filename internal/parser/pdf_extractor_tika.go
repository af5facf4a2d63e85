package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-ats/internal/logger"
)

const defaultTikaTimeout = 60 * time.Second

// TikaExtractor 基于Apache Tika服务的文本提取器
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	Client    *http.Client

	// 是否提取链接注释文本
	extractAnnotations bool
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithAnnotations toggles PDF link annotation text.
func WithAnnotations(extract bool) TikaOption {
	return func(e *TikaExtractor) {
		e.extractAnnotations = extract
	}
}

// WithTimeout 配置HTTP客户端超时时间
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) TikaOption {
	return func(e *TikaExtractor) {
		if c != nil {
			e.Client = c
		}
	}
}

var _ TextExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建一个新的Tika文本提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	e := &TikaExtractor{
		ServerURL:          strings.TrimRight(serverURL, "/"),
		Client:             &http.Client{Timeout: defaultTikaTimeout},
		extractAnnotations: true,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExtractText sends the document to PUT /tika and returns the plain text.
func (e *TikaExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	startTime := time.Now()
	req, err := e.newRequest(ctx, "/tika", "text/plain", data, uri)
	if err != nil {
		return "", err
	}
	if !e.extractAnnotations {
		req.Header.Set("X-Tika-PDFExtractAnnotationText", "false")
	}

	body, err := e.do(req)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(body))

	logger.Debug().
		Str("uri", uri).
		Int("text_length", len(text)).
		Dur("duration", time.Since(startTime)).
		Msg("Tika文本提取完成")
	return text, nil
}

// Metadata returns the document metadata reported by PUT /meta.
func (e *TikaExtractor) Metadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	req, err := e.newRequest(ctx, "/meta", "application/json", data, uri)
	if err != nil {
		return nil, err
	}
	body, err := e.do(req)
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("解析元数据JSON失败: %w", err)
	}
	return metadata, nil
}

func (e *TikaExtractor) newRequest(ctx context.Context, path, accept string, data []byte, uri string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", accept)
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}
	return req, nil
}

func (e *TikaExtractor) do(req *http.Request) ([]byte, error) {
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return body, nil
}
