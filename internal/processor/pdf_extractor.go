package processor

import (
	"context"
	"fmt"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/parser"

	"github.com/rs/zerolog"
)

// BuildTextExtractor 统一构建文本提取器的逻辑
// 根据 extractor.backend 选择 PDF 后端，.txt 始终按纯文本处理
func BuildTextExtractor(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*parser.Router, error) {
	var backend parser.TextExtractor
	switch cfg.Extractor.Backend {
	case config.ExtractorBackendTika:
		logger.Info().Str("server", cfg.Tika.ServerURL).Msg("使用Tika作为PDF解析器")
		opts := []parser.TikaOption{parser.WithAnnotations(!cfg.Tika.DisableAnnotations)}
		if cfg.Tika.Timeout > 0 {
			opts = append(opts, parser.WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
		}
		backend = parser.NewTikaExtractor(cfg.Tika.ServerURL, opts...)
	case config.ExtractorBackendEino:
		logger.Warn().Msg("使用Eino作为PDF解析器，文本块内的换行不会保留")
		e, err := parser.NewEinoExtractor(ctx,
			parser.WithEinoTimeout(config.GetDuration(cfg.Extractor.Timeout, 30*time.Second)))
		if err != nil {
			return nil, fmt.Errorf("初始化Eino PDF解析器失败: %w", err)
		}
		backend = e
	case config.ExtractorBackendPDF, "":
		logger.Info().Msg("使用本地PDF解析器")
		backend = parser.NewLocalPDFExtractor()
	default:
		return nil, fmt.Errorf("未知的文本提取后端: %q", cfg.Extractor.Backend)
	}
	return parser.NewRouter(backend), nil
}
