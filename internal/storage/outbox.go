package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"resume-ats/internal/config"
	"resume-ats/internal/storage/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UploadOutbox 在同一事务中写入提交记录与待发布的上传消息
type UploadOutbox struct {
	m        *MySQL
	exchange string
	routing  string
}

// NewUploadOutbox 创建发件箱写入器，消息目标取自 RabbitMQ 配置
func NewUploadOutbox(m *MySQL, cfg *config.RabbitMQConfig) *UploadOutbox {
	return &UploadOutbox{m: m, exchange: cfg.UploadExchange, routing: cfg.UploadRoutingKey}
}

// NewOutboxMessage 将上传消息编码为发件箱行
func NewOutboxMessage(exchange, routingKey string, msg DocumentUploadMessage) (*models.OutboxMessage, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("序列化上传消息失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      msg.SubmissionUUID,
		TargetExchange:   exchange,
		TargetRoutingKey: routingKey,
		Payload:          datatypes.JSON(payload),
		Status:           models.OutboxPending,
	}, nil
}

// EnqueueUpload 事务写入 sub 与对应的发件箱消息，任一失败则都不写入
func (o *UploadOutbox) EnqueueUpload(ctx context.Context, sub *models.Submission, msg DocumentUploadMessage) error {
	row, err := NewOutboxMessage(o.exchange, o.routing, msg)
	if err != nil {
		return err
	}
	if sub.ProcessingStatus == "" {
		sub.ProcessingStatus = models.StatusPending
	}
	err = o.m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_uuid"}},
			DoNothing: true,
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("写入提交记录失败: %w", err)
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("写入发件箱消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("提交 %s 入队失败: %w", sub.SubmissionUUID, err)
	}
	return nil
}
