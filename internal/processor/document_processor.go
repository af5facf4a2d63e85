package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-ats/internal/extractor"
	"resume-ats/internal/parser"
	"resume-ats/internal/sanitize"
	"resume-ats/internal/storage"
	"resume-ats/internal/tracing"
	"resume-ats/internal/types"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var processorTracer = otel.Tracer("resume-ats/processor")

// Components 聚合所有功能组件依赖，便于集中管理和测试替换
type Components struct {
	TextExtractor parser.TextExtractor      // 文档文本提取
	Fields        *extractor.FieldExtractor // 字段提取，nil 时使用默认词表
	Store         storage.RecordStore       // 记录存储
	Codec         *types.Codec              // 记录编解码，nil 时使用内置 schema
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	Logger         zerolog.Logger
	ExtractTimeout time.Duration // 单个文档文本提取超时，0 表示不限制
}

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// WithLogger 设置日志记录器
func WithLogger(logger zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		s.Logger = logger
	}
}

// WithExtractTimeout 设置单个文档文本提取超时
func WithExtractTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		s.ExtractTimeout = d
	}
}

// Document 待处理的一份简历
type Document struct {
	URI  string // 文件名或对象路径，用于选择解析器与日志
	Data []byte

	// 上传时附带的身份提示，非空时覆盖提取值
	NameHint, PhoneHint, EmailHint string
}

// Outcome 单个文档的处理结果
type Outcome struct {
	Key       string
	Record    types.CandidateRecord
	Overwrote bool // 同键记录已存在并被覆盖
}

// DocumentProcessor 串联文本提取、字段提取、标识清洗与持久化
type DocumentProcessor struct {
	comp Components
	set  Settings
}

// NewDocumentProcessor 创建文档处理器，使用明确分离的组件和设置
func NewDocumentProcessor(comp *Components, set *Settings, opts ...SettingOpt) (*DocumentProcessor, error) {
	if comp == nil || comp.TextExtractor == nil {
		return nil, errors.New("文本提取器不能为空")
	}
	if comp.Store == nil {
		return nil, errors.New("记录存储不能为空")
	}
	c := *comp
	if c.Fields == nil {
		c.Fields = extractor.New(nil)
	}
	if c.Codec == nil {
		codec, err := types.NewCodec()
		if err != nil {
			return nil, err
		}
		c.Codec = codec
	}

	s := Settings{Logger: zerolog.Nop()}
	if set != nil {
		s = *set
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.Logger = s.Logger.With().Str("component", "processor").Logger()
	return &DocumentProcessor{comp: c, set: s}, nil
}

// Store 返回记录存储
func (p *DocumentProcessor) Store() storage.RecordStore { return p.comp.Store }

// Extract 提取文本与字段，不持久化
func (p *DocumentProcessor) Extract(ctx context.Context, doc Document) (types.CandidateRecord, error) {
	extractCtx := ctx
	if p.set.ExtractTimeout > 0 {
		var cancel context.CancelFunc
		extractCtx, cancel = context.WithTimeout(ctx, p.set.ExtractTimeout)
		defer cancel()
	}

	text, err := p.comp.TextExtractor.ExtractText(extractCtx, doc.Data, doc.URI)
	if err != nil {
		return types.CandidateRecord{}, NewExtractError(doc.URI, err)
	}
	if text == "" {
		p.set.Logger.Warn().Str("uri", doc.URI).Msg("文档未提取到文本")
	}
	rec := p.comp.Fields.Extract(ctx, text,
		extractor.WithIdentityHints(doc.NameHint, doc.PhoneHint, doc.EmailHint))
	return rec.Normalize(), nil
}

// Process extracts doc and persists it under its sanitized identifier.
// An existing record with the same key is overwritten and a warning logged.
func (p *DocumentProcessor) Process(ctx context.Context, doc Document) (Outcome, error) {
	ctx, span := processorTracer.Start(ctx, "DocumentProcessor.Process",
		trace.WithAttributes(
			attribute.String("document.uri", tracing.SafeAttributeValue("document.uri", doc.URI, tracing.DefaultMaxLength)),
			attribute.Int("document.size", len(doc.Data)),
		))
	defer span.End()

	rec, err := p.Extract(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeParse)
		return Outcome{}, err
	}

	key := storage.RecordKey(sanitize.Sanitize(rec.Name, rec.Phone, rec.Email))
	span.SetAttributes(
		attribute.String("record.key", tracing.SafeKey(key)),
		attribute.String("candidate.name", tracing.SafeAttributeValue("candidate.name", rec.Name, tracing.DefaultMaxLength)),
	)

	data, err := p.comp.Codec.Encode(rec)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeInternal)
		return Outcome{}, NewStoreError(doc.URI, err)
	}

	out := Outcome{Key: key, Record: rec}
	if _, err := p.comp.Store.Get(ctx, key); err == nil {
		out.Overwrote = true
		p.set.Logger.Warn().
			Str("key", key).
			Str("uri", doc.URI).
			Str("name", tracing.MaskPII(rec.Name)).
			Msg("记录已存在，将被覆盖")
	} else if !errors.Is(err, storage.ErrRecordNotFound) {
		p.set.Logger.Debug().Err(err).Str("key", key).Msg("覆盖检查失败，继续写入")
	}

	if err := p.comp.Store.Put(ctx, key, data); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		return Outcome{}, NewStoreError(doc.URI, err)
	}

	p.set.Logger.Info().Str("uri", doc.URI).Str("key", key).Msg("候选人记录已保存")
	return out, nil
}

// Load 读取并校验一条记录
func (p *DocumentProcessor) Load(ctx context.Context, key string) (types.CandidateRecord, error) {
	data, err := p.comp.Store.Get(ctx, key)
	if err != nil {
		return types.CandidateRecord{}, fmt.Errorf("读取记录 %s: %w", key, err)
	}
	rec, err := p.comp.Codec.Decode(data)
	if err != nil {
		return types.CandidateRecord{}, NewDecodeError(key, err)
	}
	return rec, nil
}

// Keys 列出全部记录键
func (p *DocumentProcessor) Keys(ctx context.Context) ([]string, error) {
	return p.comp.Store.List(ctx)
}
