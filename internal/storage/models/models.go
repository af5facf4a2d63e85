package models

import (
	"time"

	"gorm.io/datatypes"
)

// 提交处理状态
const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
	StatusDuplicate = "DUPLICATE"
)

// CandidateRecordRow 结构化候选人记录表，Payload 为编码后的记录 JSON
type CandidateRecordRow struct {
	RecordKey string         `gorm:"type:varchar(255);primaryKey"`
	Name      string         `gorm:"type:varchar(255);index:idx_cr_name"`
	Payload   datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (CandidateRecordRow) TableName() string {
	return "candidate_records"
}

// Submission 简历提交表，记录上传与异步处理状态
type Submission struct {
	SubmissionUUID      string    `gorm:"type:char(36);primaryKey"`
	SubmissionTimestamp time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_sub_timestamp"`
	OriginalFilename    string    `gorm:"type:varchar(255)"`
	OriginalFilePathOSS string    `gorm:"type:varchar(1024)"`
	RawFileMD5          string    `gorm:"type:char(32);index:idx_sub_raw_file_md5"`
	RecordKey           string    `gorm:"type:varchar(255);index:idx_sub_record_key"`
	ProcessingStatus    string    `gorm:"type:varchar(50);default:'PENDING';index:idx_sub_processing_status"`
	ErrorMessage        string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt           time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Submission) TableName() string {
	return "resume_submissions"
}

// 发件箱消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// OutboxMessage 待投递到消息队列的消息，与业务数据在同一事务中写入
type OutboxMessage struct {
	ID               uint64         `gorm:"primaryKey;autoIncrement"`
	AggregateID      string         `gorm:"type:char(36);not null;index"`
	TargetExchange   string         `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string         `gorm:"type:varchar(255);not null"`
	Payload          datatypes.JSON `gorm:"type:json;not null"`
	Status           string         `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int            `gorm:"default:0"`
	ErrorMessage     string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time     `gorm:"type:datetime(6);null"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
