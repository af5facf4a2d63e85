// Package outbox 将发件箱表中待发布的上传消息投递到消息队列
package outbox

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"resume-ats/internal/storage"
	"resume-ats/internal/storage/models"
	"resume-ats/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	// MaxRetryCount 达到该次数后消息标记为 FAILED，不再投递
	MaxRetryCount = 5
)

// Publisher 消息发布器，*storage.RabbitMQ 满足该接口
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte, persistent bool) error
}

// DedupReleaser 释放上传时占用的 MD5 去重记录，storage.DedupIndex 满足该接口
type DedupReleaser interface {
	Release(ctx context.Context, md5Hex string) error
}

// StatusTracker 更新提交状态，*storage.MySQL 满足该接口
type StatusTracker interface {
	UpdateSubmissionStatus(ctx context.Context, submissionUUID, status, recordKey, errMsg string) error
}

// MessageRelay 轮询 outbox_messages 表并发布待投递消息
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	dedup           DedupReleaser // 可为 nil
	tracker         StatusTracker // 可为 nil
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	tracer          trace.Tracer

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// RelayOpt 中继配置项
type RelayOpt func(*MessageRelay)

// WithPollingInterval 设置轮询间隔
func WithPollingInterval(d time.Duration) RelayOpt {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 设置每次轮询处理的最大消息数
func WithBatchSize(n int) RelayOpt {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithDedup 消息投递失败次数耗尽后释放其 MD5 去重记录
func WithDedup(d DedupReleaser) RelayOpt {
	return func(r *MessageRelay) { r.dedup = d }
}

// WithStatusTracker 消息投递失败次数耗尽后将提交标记为 FAILED
func WithStatusTracker(t StatusTracker) RelayOpt {
	return func(r *MessageRelay) { r.tracker = t }
}

// NewMessageRelay 创建消息中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, logger zerolog.Logger, opts ...RelayOpt) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger.With().Str("component", "outbox_relay").Logger(),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		tracer:          otel.Tracer("resume-ats/outbox"),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Int("batch_size", r.batchSize).Msg("发件箱中继启动")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("发件箱中继已停止")
				return
			case <-ticker.C:
				if _, err := r.ProcessPending(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("处理发件箱消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束，可重复调用
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// ProcessPending 锁定一批 PENDING 消息并逐条发布，返回本批处理的条数。
// SKIP LOCKED 让多个实例可以并行轮询同一张表。
func (r *MessageRelay) ProcessPending(ctx context.Context) (int, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}
	defer tx.Rollback()

	var messages []models.OutboxMessage
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", models.OutboxPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return 0, err
	}
	// 空轮询不创建 span
	if len(messages) == 0 {
		return 0, tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))))
	defer span.End()

	sent := 0
	var lastPubErr error
	var exhausted []models.OutboxMessage
	for i := range messages {
		msg := &messages[i]
		pubErr := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload), true)
		MarkResult(msg, pubErr, time.Now())
		if pubErr != nil {
			lastPubErr = pubErr
			if msg.Status == models.OutboxFailed {
				exhausted = append(exhausted, *msg)
			}
			r.logger.Warn().Err(pubErr).
				Uint64("id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retry_count", msg.RetryCount).
				Str("status", msg.Status).
				Msg("发布发件箱消息失败")
		} else {
			sent++
		}

		// 更新失败时整批回滚，下次轮询重新拾取
		if err := tx.Save(msg).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB, attribute.Int64("outbox.id", int64(msg.ID)))
			return 0, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return 0, err
	}
	// FAILED 已提交后再回收，回收失败不影响中继
	for _, msg := range exhausted {
		r.HandleExhausted(ctx, msg)
	}

	span.SetAttributes(attribute.Int("outbox.sent", sent))
	if lastPubErr != nil {
		tracing.RecordError(span, lastPubErr, tracing.ErrorTypeRabbitMQ,
			attribute.Int("outbox.failed", len(messages)-sent))
	}
	r.logger.Debug().Int("fetched", len(messages)).Int("sent", sent).Msg("发件箱批次处理完成")
	return len(messages), nil
}

// HandleExhausted 处理不再投递的消息：释放上传占用的去重记录，
// 并把对应提交标记为 FAILED，使同一文件可以重新上传。
func (r *MessageRelay) HandleExhausted(ctx context.Context, msg models.OutboxMessage) {
	log := r.logger.With().Uint64("id", msg.ID).Str("aggregate_id", msg.AggregateID).Logger()

	var upload storage.DocumentUploadMessage
	if err := json.Unmarshal(msg.Payload, &upload); err != nil {
		log.Error().Err(err).Msg("无法解析失败的发件箱消息")
	}
	submissionUUID := upload.SubmissionUUID
	if submissionUUID == "" {
		submissionUUID = msg.AggregateID
	}

	if r.dedup != nil && upload.RawFileMD5 != "" {
		if err := r.dedup.Release(ctx, upload.RawFileMD5); err != nil {
			log.Warn().Err(err).Msg("释放去重记录失败")
		}
	}
	if r.tracker != nil && submissionUUID != "" {
		errMsg := "消息投递失败: " + msg.ErrorMessage
		if err := r.tracker.UpdateSubmissionStatus(ctx, submissionUUID, models.StatusFailed, "", errMsg); err != nil {
			log.Warn().Err(err).Str("submission_uuid", submissionUUID).Msg("更新提交状态失败")
		}
	}
	log.Error().Str("submission_uuid", submissionUUID).Str("error", msg.ErrorMessage).Msg("发件箱消息重试耗尽")
}

// MarkResult 根据发布结果更新消息状态
func MarkResult(msg *models.OutboxMessage, publishErr error, now time.Time) {
	if publishErr != nil {
		msg.RetryCount++
		msg.ErrorMessage = tracing.TruncateString(publishErr.Error(), 1000)
		if msg.RetryCount >= MaxRetryCount {
			msg.Status = models.OutboxFailed
		}
		return
	}
	msg.Status = models.OutboxSent
	msg.ProcessedAt = &now
	msg.ErrorMessage = ""
}
