package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"resume-ats/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
	"github.com/rs/zerolog"
)

// OriginalStorage 原始简历文件存储接口
type OriginalStorage interface {
	// UploadOriginal 流式上传原始文件，同时计算MD5，返回对象键与MD5
	UploadOriginal(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, string, error)
	// GetOriginal 下载原始文件
	GetOriginal(ctx context.Context, objectKey string) ([]byte, error)
	// DeleteOriginal 删除原始文件，用于发布失败时回滚
	DeleteOriginal(ctx context.Context, objectKey string) error
}

// 确保MinIO实现了OriginalStorage接口
var _ OriginalStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能：原始简历桶与结构化记录桶
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	recordsBucket  string
	logger         zerolog.Logger
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger = logger.With().Str("component", "minio").Logger()
	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("originals_bucket", cfg.OriginalsBucket).
		Str("records_bucket", cfg.RecordsBucket).
		Msg("初始化MinIO客户端")

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: cfg.OriginalsBucket,
		recordsBucket:  cfg.RecordsBucket,
		logger:         logger,
	}

	ctx := context.Background()
	for _, bucket := range []string{m.originalBucket, m.recordsBucket} {
		if err := m.ensureBucketExists(ctx, bucket, cfg.Location); err != nil {
			return nil, err
		}
	}

	if cfg.OriginalFileExpireDays > 0 {
		if err := m.setupBucketLifecycle(ctx, m.originalBucket, "expire-original-resumes", cfg.OriginalFileExpireDays); err != nil {
			// 生命周期规则失败不影响使用
			logger.Warn().Err(err).Str("bucket", m.originalBucket).Msg("设置生命周期规则失败")
		}
	}
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	if bucketName == "" {
		return fmt.Errorf("存储桶名称不能为空")
	}
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		m.logger.Debug().Str("bucket", bucketName).Msg("存储桶已存在")
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	return nil
}

// setupBucketLifecycle 为存储桶设置过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	cfg := lifecycle.NewConfiguration()
	cfg.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	if err := m.client.SetBucketLifecycle(ctx, bucketName, cfg); err != nil {
		return fmt.Errorf("设置存储桶 %s 生命周期失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Int("expire_days", expiryDays).Msg("生命周期规则已设置")
	return nil
}

// OriginalObjectKey 原始文件的对象键：resume/<uuid>/original<ext>
func OriginalObjectKey(submissionUUID, fileExt string) string {
	return path.Join("resume", submissionUUID, "original"+fileExt)
}

// UploadOriginal 流式上传原始简历并计算MD5
func (m *MinIO) UploadOriginal(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	objectKey := OriginalObjectKey(submissionUUID, fileExt)
	hasher := md5.New()
	tee := io.TeeReader(reader, hasher)

	_, err := m.client.PutObject(ctx, m.originalBucket, objectKey, tee, fileSize, minio.PutObjectOptions{
		ContentType: getContentType(fileExt),
	})
	if err != nil {
		return "", "", fmt.Errorf("上传原始文件 %s 失败: %w", objectKey, err)
	}
	md5Hex := hex.EncodeToString(hasher.Sum(nil))
	m.logger.Debug().Str("object", objectKey).Str("md5", md5Hex).Msg("原始文件上传完成")
	return objectKey, md5Hex, nil
}

// GetOriginal 下载原始简历
func (m *MinIO) GetOriginal(ctx context.Context, objectKey string) ([]byte, error) {
	return m.getObject(ctx, m.originalBucket, objectKey)
}

// DeleteOriginal 删除原始简历
func (m *MinIO) DeleteOriginal(ctx context.Context, objectKey string) error {
	if err := m.client.RemoveObject(ctx, m.originalBucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除原始文件 %s 失败: %w", objectKey, err)
	}
	return nil
}

func (m *MinIO) getObject(ctx context.Context, bucket, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	defer obj.Close()

	// GetObject 是惰性的，Stat 才会暴露 NoSuchKey
	if _, err := obj.Stat(); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, objectKey)
		}
		return nil, fmt.Errorf("获取对象 %s/%s 信息失败: %w", bucket, objectKey, err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 失败: %w", bucket, objectKey, err)
	}
	return data, nil
}

// isNoSuchKey 判断 MinIO 错误是否为对象不存在
func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}

// getContentType 根据文件扩展名获取内容类型
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// 确保MinIORecordStore实现了RecordStore接口
var _ RecordStore = (*MinIORecordStore)(nil)

// MinIORecordStore 将结构化记录保存在记录桶中
type MinIORecordStore struct {
	m *MinIO
}

// NewMinIORecordStore 基于已初始化的MinIO客户端创建记录存储
func NewMinIORecordStore(m *MinIO) *MinIORecordStore {
	return &MinIORecordStore{m: m}
}

// Put 写入记录对象
func (s *MinIORecordStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.m.client.PutObject(ctx, s.m.recordsBucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: getContentType(RecordExt)})
	if err != nil {
		return fmt.Errorf("保存记录 %s 失败: %w", key, err)
	}
	return nil
}

// Get 读取记录对象
func (s *MinIORecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return s.m.getObject(ctx, s.m.recordsBucket, key)
}

// List enumerates top-level *.json objects in lexical key order.
func (s *MinIORecordStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	for obj := range s.m.client.ListObjects(ctx, s.m.recordsBucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出记录失败: %w", obj.Err)
		}
		if ValidateKey(obj.Key) != nil {
			continue
		}
		keys = append(keys, obj.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
