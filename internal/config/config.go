package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"resume-ats/internal/patterns"
	"resume-ats/internal/scoring"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 后端名称
const (
	StoreBackendFS    = "fs"
	StoreBackendMinIO = "minio"
	StoreBackendMySQL = "mysql"

	ExtractorBackendPDF  = "pdf"
	ExtractorBackendTika = "tika"
	ExtractorBackendEino = "eino"
)

// envPrefix 环境变量前缀
const envPrefix = "ATS_"

// Config 应用程序配置
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	Server    ServerConfig    `yaml:"server"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Tika      TikaConfig      `yaml:"tika"`
	Store     StoreConfig     `yaml:"store"`
	MinIO     MinIOConfig     `yaml:"minio"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`

	// 词表与评分覆盖，留空使用内置默认值
	Patterns patterns.Vocabulary `yaml:"patterns"`
	Scoring  scoring.Config      `yaml:"scoring"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address         string   `yaml:"address"` // 例如 ":8080"
	APIKeys         []string `yaml:"api_keys"`
	MaxUploadMB     int      `yaml:"max_upload_mb"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`

	// 每个客户端每分钟允许的上传次数，0 表示不限制
	UploadRatePerMinute int `yaml:"upload_rate_per_minute"`
	UploadBurst         int `yaml:"upload_burst"`
}

// ExtractorConfig 文本提取后端
type ExtractorConfig struct {
	Backend string `yaml:"backend"` // pdf, tika, eino
	Timeout string `yaml:"timeout"`
}

// TikaConfig Tika服务器配置结构
type TikaConfig struct {
	ServerURL          string `yaml:"server_url"`
	Timeout            int    `yaml:"timeout_seconds"`
	DisableAnnotations bool   `yaml:"disable_annotations"`
}

// StoreConfig 记录存储配置
type StoreConfig struct {
	Backend string `yaml:"backend"` // fs, minio, mysql
	Dir     string `yaml:"dir"`     // fs 后端的输出目录
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Location        string `yaml:"location"`
	OriginalsBucket string `yaml:"originalsBucket"` // 原始简历存储桶
	RecordsBucket   string `yaml:"recordsBucket"`   // 结构化记录存储桶
	// 原始文件过期天数
	OriginalFileExpireDays int `yaml:"original_file_expire_days"`
}

// MySQLConfig MySQL配置结构
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// 连接池设置
	MaxIdleConns           int `yaml:"max_idle_conns"`
	MaxOpenConns           int `yaml:"max_open_conns"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"`
	// 超时设置
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`
}

// RedisConfig holds configuration for Redis. An empty Address disables upload dedup.
type RedisConfig struct {
	Address             string `yaml:"address"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	PoolSize            int    `yaml:"pool_size"`
	MinIdleConns        int    `yaml:"min_idle_conns"`
	DialTimeoutSeconds  int    `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	// MD5记录过期时间(天)
	MD5RecordExpireDays int `yaml:"md5_record_expire_days"`
}

// RabbitMQConfig RabbitMQ配置结构，URL 为空时不启用异步上传
type RabbitMQConfig struct {
	URL              string `yaml:"url"`
	UploadExchange   string `yaml:"upload_exchange"`
	UploadRoutingKey string `yaml:"upload_routing_key"`
	UploadQueue      string `yaml:"upload_queue"`
	PrefetchCount    int    `yaml:"prefetch_count"`
	ConsumerWorkers  int    `yaml:"consumer_workers"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// PipelineConfig 批处理配置
type PipelineConfig struct {
	Concurrency int    `yaml:"concurrency"`
	InputDir    string `yaml:"input_dir"`
	InputGlob   string `yaml:"input_glob"`
}

// defaultSearchPaths 未指定路径时依次查找
var defaultSearchPaths = []string{
	"config.yaml",
	"internal/config/config.yaml",
}

// LoadConfig 从文件加载配置。顺序：.env、YAML、环境变量覆盖、默认值、校验。
// configPath 为空时在默认位置查找，均不存在则仅使用默认值。
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	config := &Config{}
	if configPath == "" {
		for _, p := range defaultSearchPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv 从环境变量覆盖配置（如果存在）
func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"STORE_BACKEND":     &c.Store.Backend,
		"STORE_DIR":         &c.Store.Dir,
		"EXTRACTOR_BACKEND": &c.Extractor.Backend,
		"SERVER_ADDRESS":    &c.Server.Address,
		"TIKA_SERVER_URL":   &c.Tika.ServerURL,
		"MINIO_ACCESS_KEY":  &c.MinIO.AccessKeyID,
		"MINIO_SECRET_KEY":  &c.MinIO.SecretAccessKey,
		"MYSQL_PASSWORD":    &c.MySQL.Password,
		"REDIS_PASSWORD":    &c.Redis.Password,
		"RABBITMQ_URL":      &c.RabbitMQ.URL,
	}
	for name, field := range overrides {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*field = v
		}
	}
	if v := os.Getenv(envPrefix + "API_KEYS"); v != "" {
		var keys []string
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
		c.Server.APIKeys = keys
	}
}

// applyDefaults 为未设置的字段填充默认值
func (c *Config) applyDefaults() {
	def := createDefaultConfig()

	setString := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}

	setString(&c.Logger.Level, def.Logger.Level)
	setString(&c.Logger.Format, def.Logger.Format)
	setString(&c.Logger.TimeFormat, def.Logger.TimeFormat)

	setString(&c.Server.Address, def.Server.Address)
	setInt(&c.Server.MaxUploadMB, def.Server.MaxUploadMB)
	setString(&c.Server.ShutdownTimeout, def.Server.ShutdownTimeout)

	setString(&c.Extractor.Backend, def.Extractor.Backend)
	setString(&c.Extractor.Timeout, def.Extractor.Timeout)

	setString(&c.Tika.ServerURL, def.Tika.ServerURL)
	setInt(&c.Tika.Timeout, def.Tika.Timeout)

	setString(&c.Store.Backend, def.Store.Backend)
	setString(&c.Store.Dir, def.Store.Dir)

	setString(&c.MinIO.Endpoint, def.MinIO.Endpoint)
	setString(&c.MinIO.OriginalsBucket, def.MinIO.OriginalsBucket)
	setString(&c.MinIO.RecordsBucket, def.MinIO.RecordsBucket)
	setInt(&c.MinIO.OriginalFileExpireDays, def.MinIO.OriginalFileExpireDays)

	setString(&c.MySQL.Host, def.MySQL.Host)
	setInt(&c.MySQL.Port, def.MySQL.Port)
	setString(&c.MySQL.Username, def.MySQL.Username)
	setString(&c.MySQL.Database, def.MySQL.Database)
	setInt(&c.MySQL.MaxIdleConns, def.MySQL.MaxIdleConns)
	setInt(&c.MySQL.MaxOpenConns, def.MySQL.MaxOpenConns)
	setInt(&c.MySQL.ConnMaxLifetimeMinutes, def.MySQL.ConnMaxLifetimeMinutes)
	setInt(&c.MySQL.ConnMaxIdleTimeMinutes, def.MySQL.ConnMaxIdleTimeMinutes)
	setInt(&c.MySQL.ConnectTimeoutSeconds, def.MySQL.ConnectTimeoutSeconds)
	setInt(&c.MySQL.ReadTimeoutSeconds, def.MySQL.ReadTimeoutSeconds)
	setInt(&c.MySQL.WriteTimeoutSeconds, def.MySQL.WriteTimeoutSeconds)

	setInt(&c.Redis.PoolSize, def.Redis.PoolSize)
	setInt(&c.Redis.MinIdleConns, def.Redis.MinIdleConns)
	setInt(&c.Redis.DialTimeoutSeconds, def.Redis.DialTimeoutSeconds)
	setInt(&c.Redis.ReadTimeoutSeconds, def.Redis.ReadTimeoutSeconds)
	setInt(&c.Redis.WriteTimeoutSeconds, def.Redis.WriteTimeoutSeconds)
	setInt(&c.Redis.MaxRetries, def.Redis.MaxRetries)
	setInt(&c.Redis.MD5RecordExpireDays, def.Redis.MD5RecordExpireDays)

	setString(&c.RabbitMQ.UploadExchange, def.RabbitMQ.UploadExchange)
	setString(&c.RabbitMQ.UploadRoutingKey, def.RabbitMQ.UploadRoutingKey)
	setString(&c.RabbitMQ.UploadQueue, def.RabbitMQ.UploadQueue)
	setInt(&c.RabbitMQ.PrefetchCount, def.RabbitMQ.PrefetchCount)
	setInt(&c.RabbitMQ.ConsumerWorkers, def.RabbitMQ.ConsumerWorkers)

	setString(&c.Tracing.Endpoint, def.Tracing.Endpoint)
	setString(&c.Tracing.ServiceName, def.Tracing.ServiceName)
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = def.Tracing.SampleRatio
	}

	setInt(&c.Pipeline.Concurrency, def.Pipeline.Concurrency)
	setString(&c.Pipeline.InputDir, def.Pipeline.InputDir)
	setString(&c.Pipeline.InputGlob, def.Pipeline.InputGlob)

	c.Scoring = c.Scoring.WithDefaults()
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendFS, StoreBackendMinIO, StoreBackendMySQL:
	default:
		return fmt.Errorf("未知的存储后端: %q", c.Store.Backend)
	}
	switch c.Extractor.Backend {
	case ExtractorBackendPDF, ExtractorBackendTika, ExtractorBackendEino:
	default:
		return fmt.Errorf("未知的文本提取后端: %q", c.Extractor.Backend)
	}
	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency 必须大于0, 当前为 %d", c.Pipeline.Concurrency)
	}
	if c.Server.UploadRatePerMinute < 0 {
		return fmt.Errorf("server.upload_rate_per_minute 不能为负数, 当前为 %d", c.Server.UploadRatePerMinute)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb 必须大于0, 当前为 %d", c.Server.MaxUploadMB)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio 必须在 [0,1] 之间, 当前为 %v", c.Tracing.SampleRatio)
	}
	if _, err := patterns.New(c.Patterns); err != nil {
		return fmt.Errorf("patterns 配置无效: %w", err)
	}
	if err := c.Scoring.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("scoring 配置无效: %w", err)
	}
	return nil
}

// MaxUploadBytes 上传大小上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// createDefaultConfig 创建一个默认配置
func createDefaultConfig() *Config {
	config := &Config{}

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	config.Server.Address = ":8080"
	config.Server.MaxUploadMB = 10
	config.Server.ShutdownTimeout = "10s"

	config.Extractor.Backend = ExtractorBackendPDF
	config.Extractor.Timeout = "30s"

	config.Tika.ServerURL = "http://localhost:9998"
	config.Tika.Timeout = 60

	config.Store.Backend = StoreBackendFS
	config.Store.Dir = "parsed_resumes"

	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.OriginalsBucket = "resume-originals"
	config.MinIO.RecordsBucket = "candidate-records"
	config.MinIO.OriginalFileExpireDays = 1095 // 默认3年过期

	config.MySQL.Host = "localhost"
	config.MySQL.Port = 3306
	config.MySQL.Username = "root"
	config.MySQL.Database = "resume_ats"
	config.MySQL.MaxIdleConns = 10
	config.MySQL.MaxOpenConns = 100
	config.MySQL.ConnMaxLifetimeMinutes = 60
	config.MySQL.ConnMaxIdleTimeMinutes = 30
	config.MySQL.ConnectTimeoutSeconds = 10
	config.MySQL.ReadTimeoutSeconds = 30
	config.MySQL.WriteTimeoutSeconds = 30

	config.Redis.Address = "" // 留空则不启用上传去重
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.MaxRetries = 3
	config.Redis.MD5RecordExpireDays = 365 // 默认1年过期

	config.RabbitMQ.UploadExchange = "resume.events.exchange"
	config.RabbitMQ.UploadRoutingKey = "resume.uploaded"
	config.RabbitMQ.UploadQueue = "q.resume_uploaded"
	config.RabbitMQ.PrefetchCount = 10
	config.RabbitMQ.ConsumerWorkers = 4

	config.Tracing.Endpoint = "localhost:4317"
	config.Tracing.ServiceName = "resume-ats"
	config.Tracing.SampleRatio = 1

	config.Pipeline.Concurrency = 4
	config.Pipeline.InputDir = "resumes"
	config.Pipeline.InputGlob = "*.pdf"

	config.Patterns = patterns.DefaultVocabulary()
	config.Scoring = scoring.DefaultConfig()
	return config
}

// CreateSampleConfig 创建一个示例配置文件，已存在时不覆盖
func CreateSampleConfig(filePath string) error {
	if _, err := os.Stat(filePath); err == nil {
		return fmt.Errorf("文件 '%s' 已存在，不会覆盖", filePath)
	}

	data, err := yaml.Marshal(createDefaultConfig())
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("写入示例配置文件 '%s' 失败: %w", filePath, err)
	}
	return nil
}

// GetDuration utility to parse duration strings from config
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
