package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/storage/models"
	"resume-ats/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("resume-ats/storage/mysql")

// gormSpanKey 在 Statement.Context 中保存当前 span
type gormSpanKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer trace.Tracer
	dbName string
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{tracer: mysqlTracer, dbName: dbName}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	return cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after())
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		attrs := []attribute.KeyValue{
			semconv.DBSystemMySQL,
			attribute.String("db.name", p.dbName),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", tableName),
		}
		if stmt := db.Statement.SQL.String(); stmt != "" {
			attrs = append(attrs, attribute.String("db.statement", tracing.SafeSQL(stmt)))
		}

		newCtx, span := p.tracer.Start(ctx, operation+" "+tableName,
			trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db     *gorm.DB
	cfg    *config.MySQLConfig
	logger zerolog.Logger
}

// buildDSN 构建带超时设置的DSN
func buildDSN(cfg *config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)
}

// NewMySQL 创建MySQL客户端，注册追踪插件并迁移表结构
func NewMySQL(cfg *config.MySQLConfig, zl zerolog.Logger) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}
	zl = zl.With().Str("component", "mysql").Logger()

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger: logger.New(log.New(zl, "", 0), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(buildDSN(cfg)), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg, logger: zl}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	zl.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("成功连接到MySQL并迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用静默日志迁移表结构
func (m *MySQL) autoMigrateSchema() error {
	silentDB := m.db.Session(&gorm.Session{Logger: m.db.Logger.LogMode(logger.Silent)})
	if err := silentDB.AutoMigrate(&models.CandidateRecordRow{}, &models.Submission{}, &models.OutboxMessage{}); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// CreateSubmission 写入一条提交记录，主键冲突时保持幂等
func (m *MySQL) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ProcessingStatus == "" {
		sub.ProcessingStatus = models.StatusPending
	}
	return m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_uuid"}},
		DoNothing: true,
	}).Create(sub).Error
}

// UpdateSubmissionStatus 更新提交状态，recordKey 与 errMsg 为空时不覆盖
func (m *MySQL) UpdateSubmissionStatus(ctx context.Context, submissionUUID, status, recordKey, errMsg string) error {
	updates := map[string]interface{}{"processing_status": status}
	if recordKey != "" {
		updates["record_key"] = recordKey
	}
	if errMsg != "" {
		updates["error_message"] = tracing.TruncateString(errMsg, 1000)
	}
	res := m.db.WithContext(ctx).Model(&models.Submission{}).
		Where("submission_uuid = ?", submissionUUID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新提交 %s 状态失败: %w", submissionUUID, res.Error)
	}
	return nil
}

// GetSubmission 查询提交记录
func (m *MySQL) GetSubmission(ctx context.Context, submissionUUID string) (*models.Submission, error) {
	var sub models.Submission
	if err := m.db.WithContext(ctx).First(&sub, "submission_uuid = ?", submissionUUID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// 确保MySQLRecordStore实现了RecordStore接口
var _ RecordStore = (*MySQLRecordStore)(nil)

// MySQLRecordStore 将结构化记录保存在 candidate_records 表
type MySQLRecordStore struct {
	m *MySQL
}

// NewMySQLRecordStore 基于已初始化的MySQL客户端创建记录存储
func NewMySQLRecordStore(m *MySQL) *MySQLRecordStore {
	return &MySQLRecordStore{m: m}
}

// Put upserts the row keyed by key.
func (s *MySQLRecordStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	var head struct {
		Name string `json:"name"`
	}
	_ = json.Unmarshal(data, &head)

	row := models.CandidateRecordRow{
		RecordKey: key,
		Name:      head.Name,
		Payload:   datatypes.JSON(data),
	}
	err := s.m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("保存记录 %s 失败: %w", key, err)
	}
	return nil
}

// Get 读取记录
func (s *MySQLRecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	var row models.CandidateRecordRow
	err := s.m.db.WithContext(ctx).First(&row, "record_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, key)
		}
		return nil, fmt.Errorf("读取记录 %s 失败: %w", key, err)
	}
	return []byte(row.Payload), nil
}

// List returns keys in byte-wise lexical order regardless of column collation.
func (s *MySQLRecordStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.m.db.WithContext(ctx).Model(&models.CandidateRecordRow{}).
		Order("record_key").Pluck("record_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("列出记录失败: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
