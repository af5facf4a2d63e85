package processor

import (
	"context"
	"fmt"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/extractor"
	"resume-ats/internal/parser"
	"resume-ats/internal/patterns"
	"resume-ats/internal/storage"
	"resume-ats/internal/types"

	"github.com/rs/zerolog"
)

// BuildFieldExtractor 按配置的词表构建字段提取器，并启用 prose 人名识别
func BuildFieldExtractor(cfg *config.Config) (*extractor.FieldExtractor, error) {
	lib, err := patterns.New(cfg.Patterns)
	if err != nil {
		return nil, fmt.Errorf("构建词表失败: %w", err)
	}
	return extractor.New(lib, extractor.WithRecognizer(extractor.NewProseRecognizer())), nil
}

// NewFromConfig 组装服务端与命令行共用的文档处理器，同时返回文本提取路由以便判断文件类型
func NewFromConfig(ctx context.Context, cfg *config.Config, store storage.RecordStore, logger zerolog.Logger) (*DocumentProcessor, *parser.Router, error) {
	textExtractor, err := BuildTextExtractor(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	fields, err := BuildFieldExtractor(cfg)
	if err != nil {
		return nil, nil, err
	}
	codec, err := types.NewCodec()
	if err != nil {
		return nil, nil, fmt.Errorf("加载记录 schema 失败: %w", err)
	}

	proc, err := NewDocumentProcessor(&Components{
		TextExtractor: textExtractor,
		Fields:        fields,
		Store:         store,
		Codec:         codec,
	}, &Settings{
		Logger:         logger,
		ExtractTimeout: config.GetDuration(cfg.Extractor.Timeout, 60*time.Second),
	})
	if err != nil {
		return nil, nil, err
	}
	return proc, textExtractor, nil
}
