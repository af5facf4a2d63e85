package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/constants"
	"resume-ats/internal/tracing"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// 为Redis去重操作定义专用tracer
var redisTracer = otel.Tracer("resume-ats/storage/redis")

// DedupIndex 原始文件去重索引
// Claim reserves md5 for owner; when md5 is already known it returns the
// current owner and claimed=false. Resolve repoints md5 at the persisted
// record key, Release undoes a claim after a failed submission.
type DedupIndex interface {
	Claim(ctx context.Context, md5Hex, owner string) (existing string, claimed bool, err error)
	Resolve(ctx context.Context, md5Hex, recordKey string) error
	Release(ctx context.Context, md5Hex string) error
}

// 确保Redis实现了DedupIndex接口
var _ DedupIndex = (*Redis)(nil)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a Redis client, instruments it and checks the connection.
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		MaxRetries:   cfg.MaxRetries,
	})

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = constants.DefaultMD5ExpireDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (r *Redis) startSpan(ctx context.Context, name, op, key string) (context.Context, trace.Span) {
	return redisTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemRedis,
			attribute.Int("db.redis.database_index", r.config.DB),
			attribute.String("db.operation", op),
			attribute.String("db.redis.key", tracing.SafeKey(key)),
		))
}

// Claim 以 SETNX 原子地登记原始文件MD5。
// 键在 SETNX 与 GET 之间过期时重试一次，不会返回空的已有记录。
func (r *Redis) Claim(ctx context.Context, md5Hex, owner string) (string, bool, error) {
	mapKey := fmt.Sprintf(constants.KeyFileMD5ToRecord, md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.Claim", "SETNX", mapKey)
	defer span.End()

	ttl := r.GetMD5ExpireDuration()
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := r.Client.SetNX(ctx, mapKey, owner, ttl).Result()
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return "", false, fmt.Errorf("登记MD5失败: %w", err)
		}
		if ok {
			span.SetAttributes(attribute.Bool("dedup.duplicate", false))
			return "", true, nil
		}

		existing, err := r.Client.Get(ctx, mapKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			return "", false, fmt.Errorf("获取已存在的记录失败: %w", err)
		}
		span.SetAttributes(attribute.Bool("dedup.duplicate", true))
		return existing, false, nil
	}

	err := fmt.Errorf("MD5 %s 的登记状态持续变化", md5Hex)
	tracing.RecordError(span, err, tracing.ErrorTypeRedis)
	return "", false, err
}

// Resolve 将MD5映射更新为持久化后的记录键，并刷新过期时间
func (r *Redis) Resolve(ctx context.Context, md5Hex, recordKey string) error {
	mapKey := fmt.Sprintf(constants.KeyFileMD5ToRecord, md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.Resolve", "SET", mapKey)
	defer span.End()

	if err := r.Client.Set(ctx, mapKey, recordKey, r.GetMD5ExpireDuration()).Err(); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("更新MD5映射失败: %w", err)
	}
	return nil
}

// Release 删除MD5映射，用于失败回滚
func (r *Redis) Release(ctx context.Context, md5Hex string) error {
	mapKey := fmt.Sprintf(constants.KeyFileMD5ToRecord, md5Hex)
	ctx, span := r.startSpan(ctx, "Redis.Release", "DEL", mapKey)
	defer span.End()

	removed, err := r.Client.Del(ctx, mapKey).Result()
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeRedis)
		return fmt.Errorf("删除MD5映射失败: %w", err)
	}
	span.SetAttributes(attribute.Int64("removed_count", removed))
	return nil
}
