package processor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"resume-ats/internal/storage"
	"resume-ats/internal/storage/models"

	"github.com/rs/zerolog"
)

// StatusTracker 提交状态记录，MySQL 后端时可用
type StatusTracker interface {
	UpdateSubmissionStatus(ctx context.Context, submissionUUID, status, recordKey, errMsg string) error
}

// OriginalFetcher 下载异步上传的原始文件
type OriginalFetcher interface {
	GetOriginal(ctx context.Context, objectKey string) ([]byte, error)
}

// UploadConsumer 处理 DocumentUploadMessage
type UploadConsumer struct {
	proc    *DocumentProcessor
	fetcher OriginalFetcher
	dedup   storage.DedupIndex // 可为 nil
	tracker StatusTracker      // 可为 nil
	timeout time.Duration
	logger  zerolog.Logger
}

// ConsumerOpt 消费者选项
type ConsumerOpt func(*UploadConsumer)

// WithDedup 处理成功后将 MD5 映射到记录键，永久失败时释放
func WithDedup(d storage.DedupIndex) ConsumerOpt {
	return func(c *UploadConsumer) { c.dedup = d }
}

// WithStatusTracker 记录提交状态
func WithStatusTracker(t StatusTracker) ConsumerOpt {
	return func(c *UploadConsumer) { c.tracker = t }
}

// WithMessageTimeout 单条消息处理超时
func WithMessageTimeout(d time.Duration) ConsumerOpt {
	return func(c *UploadConsumer) { c.timeout = d }
}

// NewUploadConsumer 创建上传消息消费者
func NewUploadConsumer(proc *DocumentProcessor, fetcher OriginalFetcher, logger zerolog.Logger, opts ...ConsumerOpt) *UploadConsumer {
	c := &UploadConsumer{
		proc:    proc,
		fetcher: fetcher,
		timeout: 2 * time.Minute,
		logger:  logger.With().Str("component", "upload_consumer").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleMessage 返回 true 表示确认消息，false 表示重新入队。
// 格式错误与不可重试的失败会被确认并记录为 FAILED，只有暂时性错误才重新入队。
func (c *UploadConsumer) HandleMessage(body []byte) bool {
	var msg storage.DocumentUploadMessage
	if err := json.Unmarshal(body, &msg); err != nil || !msg.Valid() {
		c.logger.Error().Err(err).Int("size", len(body)).Msg("丢弃格式错误的上传消息")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	log := c.logger.With().Str("submission_uuid", msg.SubmissionUUID).Logger()

	data, err := c.fetcher.GetOriginal(ctx, msg.OriginalFilePathOSS)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			log.Error().Err(err).Str("object", msg.OriginalFilePathOSS).Msg("原始文件不存在")
			c.fail(ctx, msg, err)
			return true
		}
		log.Warn().Err(err).Msg("下载原始文件失败，稍后重试")
		return false
	}

	out, err := c.proc.Process(ctx, Document{
		URI:       msg.OriginalFilename,
		Data:      data,
		NameHint:  msg.NameHint,
		PhoneHint: msg.PhoneHint,
		EmailHint: msg.EmailHint,
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrStoreFailed):
		log.Warn().Err(err).Msg("保存记录失败，稍后重试")
		return false
	default:
		log.Error().Err(err).Msg("处理上传文档失败")
		c.fail(ctx, msg, err)
		return true
	}

	if c.dedup != nil && msg.RawFileMD5 != "" {
		if err := c.dedup.Resolve(ctx, msg.RawFileMD5, out.Key); err != nil {
			log.Warn().Err(err).Msg("更新去重映射失败")
		}
	}
	c.track(ctx, msg.SubmissionUUID, models.StatusProcessed, out.Key, "")
	log.Info().Str("key", out.Key).Msg("异步上传处理完成")
	return true
}

func (c *UploadConsumer) fail(ctx context.Context, msg storage.DocumentUploadMessage, cause error) {
	if c.dedup != nil && msg.RawFileMD5 != "" {
		if err := c.dedup.Release(ctx, msg.RawFileMD5); err != nil {
			c.logger.Warn().Err(err).Str("submission_uuid", msg.SubmissionUUID).Msg("回滚去重记录失败")
		}
	}
	c.track(ctx, msg.SubmissionUUID, models.StatusFailed, "", cause.Error())
}

func (c *UploadConsumer) track(ctx context.Context, submissionUUID, status, recordKey, errMsg string) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.UpdateSubmissionStatus(ctx, submissionUUID, status, recordKey, errMsg); err != nil {
		c.logger.Warn().Err(err).Str("submission_uuid", submissionUUID).Str("status", status).Msg("更新提交状态失败")
	}
}
