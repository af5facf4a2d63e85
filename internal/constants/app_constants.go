package constants

import "time"

const (
	// DefaultMD5ExpireDays 去重记录默认保留天数
	DefaultMD5ExpireDays = 365

	// DefaultShutdownTimeout 服务优雅退出的默认等待时间
	DefaultShutdownTimeout = 10 * time.Second

	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey 请求ID在 RequestContext 中的键
	RequestIDKey = "request_id"
)
