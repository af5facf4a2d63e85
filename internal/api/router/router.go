package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"
	"strconv"
	"strings"

	"resume-ats/internal/api/handler"
	"resume-ats/internal/config"
	"resume-ats/internal/constants"
	"resume-ats/internal/ratelimit"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
)

var errInvalidAPIKey = errors.New("invalid api key")

// RequestID 透传或生成 X-Request-ID
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := strings.TrimSpace(string(ctx.GetHeader(constants.RequestIDHeader)))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.Set(constants.RequestIDKey, id)
		ctx.Response.Header.Set(constants.RequestIDHeader, id)
		ctx.Next(c)
	}
}

// AccessLog 记录请求与响应状态
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		hlog.CtxDebugf(c, "Request: %s %s request_id=%s", string(ctx.Method()), string(ctx.Path()), ctx.GetString(constants.RequestIDKey))
		ctx.Next(c)
		hlog.CtxInfof(c, "Response: %s %s status %d", string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode())
	}
}

// APIKeyAuth 校验 Authorization: Bearer <key>，健康检查不需要认证
func APIKeyAuth(keys []string) app.HandlerFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, a := range allowed {
				if subtle.ConstantTimeCompare(a, []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return strings.HasSuffix(string(ctx.Path()), "/health")
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "无效或缺失的API密钥"})
		}),
	)
}

// RateLimit 按客户端 IP 限流，超限返回 429 并设置 Retry-After
func RateLimit(l *ratelimit.ClientLimiter) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		client := ctx.ClientIP()
		if l.Allow(client) {
			ctx.Next(c)
			return
		}
		wait := l.RetryAfter(client)
		ctx.Response.Header.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		hlog.CtxWarnf(c, "上传限流: client=%s request_id=%s", client, ctx.GetString(constants.RequestIDKey))
		ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{
			"error":      "上传过于频繁，请稍后重试",
			"request_id": ctx.GetString(constants.RequestIDKey),
		})
	}
}

// RegisterRoutes 注册 API 路由。api_keys 非空时启用认证，upload_rate_per_minute 大于0时对上传限流
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, cfg config.ServerConfig) {
	h.Use(RequestID(), AccessLog())

	api := h.Group("/api/v1")
	if len(cfg.APIKeys) > 0 {
		api.Use(APIKeyAuth(cfg.APIKeys))
	}

	upload := []app.HandlerFunc{resumeHandler.Upload}
	if cfg.UploadRatePerMinute > 0 {
		limiter := ratelimit.NewClientLimiter(cfg.UploadRatePerMinute, cfg.UploadBurst)
		upload = append([]app.HandlerFunc{RateLimit(limiter)}, upload...)
	}
	api.POST("/resume/upload", upload...)
	api.GET("/candidates", resumeHandler.ListCandidates)
	api.GET("/candidates/:key", resumeHandler.GetCandidate)
	api.GET("/reports/leaderboard.xlsx", resumeHandler.ExportLeaderboard)
	api.GET("/submissions/:uuid", resumeHandler.GetSubmission)
	api.GET("/health", resumeHandler.Health)
}
