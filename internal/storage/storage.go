package storage

import (
	"context"
	"fmt"
	"strings"

	"resume-ats/internal/config"

	"github.com/rs/zerolog"
)

// Storage 存储管理器，聚合所有存储相关依赖。未启用的组件为 nil。
type Storage struct {
	// 对象存储：原始简历与 minio 记录后端
	MinIO *MinIO

	// 消息队列：异步上传
	RabbitMQ *RabbitMQ

	// 关系型数据库：mysql 记录后端与提交状态
	MySQL *MySQL

	// 键值存储：上传去重
	Redis *Redis

	logger zerolog.Logger
}

// NewStorage 按配置初始化存储组件。记录后端依赖的组件初始化失败时返回错误，
// 其余可选组件失败只记录警告并保持为 nil。
func NewStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	storage := &Storage{logger: logger.With().Str("component", "storage").Logger()}
	log := storage.logger

	var initErrors []string
	var err error

	asyncEnabled := cfg.RabbitMQ.URL != ""

	// MinIO：minio 记录后端或异步上传需要
	if cfg.Store.Backend == config.StoreBackendMinIO || asyncEnabled {
		storage.MinIO, err = NewMinIO(&cfg.MinIO, logger)
		if err != nil {
			if cfg.Store.Backend == config.StoreBackendMinIO {
				storage.Close()
				return nil, fmt.Errorf("初始化MinIO失败: %w", err)
			}
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		}
	}

	// MySQL：mysql 记录后端需要
	if cfg.Store.Backend == config.StoreBackendMySQL {
		storage.MySQL, err = NewMySQL(&cfg.MySQL, logger)
		if err != nil {
			storage.Close()
			return nil, fmt.Errorf("初始化MySQL失败: %w", err)
		}
	}

	// Redis（如果配置了）
	if cfg.Redis.Address != "" {
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Debug().Msg("Redis未配置, 跳过初始化")
	}

	// RabbitMQ（如果配置了），没有 MinIO 时异步上传无法工作
	if asyncEnabled && storage.MinIO != nil {
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if err := storage.RabbitMQ.SetupUploadTopology(); err != nil {
			storage.RabbitMQ.Close()
			storage.RabbitMQ = nil
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		}
	}

	if len(initErrors) > 0 {
		log.Warn().Str("errors", strings.Join(initErrors, "; ")).Msg("以下可选存储组件初始化失败")
	}
	return storage, nil
}

// AsyncEnabled reports whether uploads can be queued.
func (s *Storage) AsyncEnabled() bool {
	return s != nil && s.MinIO != nil && s.RabbitMQ != nil
}

// NewRecordStore 根据 store.backend 创建记录存储
func NewRecordStore(cfg *config.Config, s *Storage) (RecordStore, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendFS, "":
		return NewFSRecordStore(cfg.Store.Dir)
	case config.StoreBackendMinIO:
		if s == nil || s.MinIO == nil {
			return nil, fmt.Errorf("minio 记录后端未初始化")
		}
		return NewMinIORecordStore(s.MinIO), nil
	case config.StoreBackendMySQL:
		if s == nil || s.MySQL == nil {
			return nil, fmt.Errorf("mysql 记录后端未初始化")
		}
		return NewMySQLRecordStore(s.MySQL), nil
	default:
		return nil, fmt.Errorf("未知的存储后端: %q", cfg.Store.Backend)
	}
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s == nil {
		return
	}
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("关闭Redis连接失败")
		}
	}
	// MinIO 客户端无需显式关闭
}
