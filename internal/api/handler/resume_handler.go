package handler

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"resume-ats/internal/config"
	"resume-ats/internal/constants"
	"resume-ats/internal/logger"
	"resume-ats/internal/pipeline"
	"resume-ats/internal/processor"
	"resume-ats/internal/report"
	"resume-ats/internal/scoring"
	"resume-ats/internal/storage"
	"resume-ats/internal/storage/models"
	"resume-ats/internal/tracing"
	"resume-ats/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// xlsxContentType XLSX 下载的 MIME 类型
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UploadPublisher 发布异步上传消息
type UploadPublisher interface {
	PublishUpload(ctx context.Context, msg storage.DocumentUploadMessage) error
}

// SubmissionStore 提交记录的读写
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, submissionUUID string) (*models.Submission, error)
}

// UploadOutbox 在同一事务中写入提交记录与上传消息，由发件箱中继负责投递
type UploadOutbox interface {
	EnqueueUpload(ctx context.Context, sub *models.Submission, msg storage.DocumentUploadMessage) error
}

// ExtensionFilter 判断文件类型是否可被提取
type ExtensionFilter interface {
	Supports(uri string) bool
}

// Dependencies 处理器的可选依赖，未启用的为 nil
type Dependencies struct {
	Dedup       storage.DedupIndex
	Originals   storage.OriginalStorage
	Publisher   UploadPublisher
	Outbox      UploadOutbox
	Submissions SubmissionStore
	Extensions  ExtensionFilter
}

// DependenciesFromStorage 从存储聚合中组装依赖，只有 MinIO 与 RabbitMQ 同时可用时才开启异步上传。
// MySQL 同时可用时上传消息经发件箱投递。
func DependenciesFromStorage(cfg *config.Config, s *storage.Storage, ext ExtensionFilter) Dependencies {
	deps := Dependencies{Extensions: ext}
	if s == nil {
		return deps
	}
	if s.Redis != nil {
		deps.Dedup = s.Redis
	}
	if s.MySQL != nil {
		deps.Submissions = s.MySQL
	}
	if s.AsyncEnabled() {
		deps.Originals = s.MinIO
		deps.Publisher = s.RabbitMQ
		if s.MySQL != nil {
			deps.Outbox = storage.NewUploadOutbox(s.MySQL, &cfg.RabbitMQ)
		}
	}
	return deps
}

// ResumeHandler 简历上传、评分与导出接口
type ResumeHandler struct {
	cfg    *config.Config
	proc   *processor.DocumentProcessor
	pipe   *pipeline.Pipeline
	engine *scoring.Engine
	deps   Dependencies
}

// NewResumeHandler 创建一个新的简历处理器
func NewResumeHandler(cfg *config.Config, proc *processor.DocumentProcessor, pipe *pipeline.Pipeline, engine *scoring.Engine, deps Dependencies) *ResumeHandler {
	if engine == nil {
		engine = scoring.Default()
	}
	return &ResumeHandler{cfg: cfg, proc: proc, pipe: pipe, engine: engine, deps: deps}
}

// AsyncEnabled 是否支持异步上传
func (h *ResumeHandler) AsyncEnabled() bool {
	return h.deps.Originals != nil && (h.deps.Publisher != nil || h.deps.Outbox != nil)
}

// UploadResponse 上传响应。同步处理返回记录与评分明细，异步处理返回提交ID
type UploadResponse struct {
	SubmissionUUID string                 `json:"submission_uuid"`
	Status         string                 `json:"status"`
	Key            string                 `json:"key,omitempty"`
	Overwrote      bool                   `json:"overwrote,omitempty"`
	Record         *types.CandidateRecord `json:"record,omitempty"`
	Breakdown      *scoring.Breakdown     `json:"breakdown,omitempty"`
}

// CandidateResponse 单个候选人详情
type CandidateResponse struct {
	Key       string                `json:"key"`
	Record    types.CandidateRecord `json:"record"`
	Result    types.ScoreResult     `json:"result"`
	Breakdown scoring.Breakdown     `json:"breakdown"`
}

// SubmissionResponse 提交状态
type SubmissionResponse struct {
	SubmissionUUID   string    `json:"submission_uuid"`
	OriginalFilename string    `json:"original_filename"`
	Status           string    `json:"status"`
	RecordKey        string    `json:"record_key,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

func abort(c context.Context, ctx *app.RequestContext, code int, err error, msg string) {
	tracing.RecordHTTPError(trace.SpanFromContext(c), err, code)
	body := utils.H{"error": msg}
	if id := ctx.GetString(constants.RequestIDKey); id != "" {
		body["request_id"] = id
	}
	ctx.AbortWithStatusJSON(code, body)
}

// Upload 处理 POST /resume/upload
func (h *ResumeHandler) Upload(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		abort(c, ctx, consts.StatusBadRequest, err, "文件未找到")
		return
	}
	if limit := h.cfg.MaxUploadBytes(); limit > 0 && fileHeader.Size > limit {
		abort(c, ctx, consts.StatusRequestEntityTooLarge, nil, fmt.Sprintf("文件大小超过限制 %dMB", h.cfg.Server.MaxUploadMB))
		return
	}
	filename := filepath.Base(fileHeader.Filename)
	if h.deps.Extensions != nil && !h.deps.Extensions.Supports(filename) {
		abort(c, ctx, consts.StatusUnsupportedMediaType, nil, "不支持的文件类型: "+filepath.Ext(filename))
		return
	}

	async := false
	if v := string(ctx.FormValue("async")); v != "" {
		async, err = strconv.ParseBool(v)
		if err != nil {
			abort(c, ctx, consts.StatusBadRequest, err, "async 参数无效")
			return
		}
	}
	if async && !h.AsyncEnabled() {
		abort(c, ctx, consts.StatusBadRequest, nil, "异步处理未启用")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abort(c, ctx, consts.StatusInternalServerError, err, "打开文件失败")
		return
	}
	defer file.Close()
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		abort(c, ctx, consts.StatusInternalServerError, err, "读取上传文件内容失败")
		return
	}
	sum := md5.Sum(fileBytes)
	fileMD5Hex := hex.EncodeToString(sum[:])

	uuidV7, err := uuid.NewV7()
	if err != nil {
		abort(c, ctx, consts.StatusInternalServerError, err, "生成提交ID失败")
		return
	}
	submissionUUID := uuidV7.String()

	if h.deps.Dedup != nil {
		existing, claimed, err := h.deps.Dedup.Claim(c, fileMD5Hex, submissionUUID)
		if err != nil {
			logger.Error().Err(err).Str("md5", fileMD5Hex).Msg("查询文件MD5去重记录失败")
			abort(c, ctx, consts.StatusInternalServerError, err, "检查文件重复性失败")
			return
		}
		if !claimed {
			logger.Info().Str("md5", fileMD5Hex).Str("filename", filename).Str("existing", existing).Msg("检测到重复的文件MD5，跳过处理")
			ctx.JSON(consts.StatusConflict, UploadResponse{Status: models.StatusDuplicate, Key: existing})
			return
		}
	}

	form := uploadForm{
		submissionUUID: submissionUUID,
		filename:       filename,
		md5Hex:         fileMD5Hex,
		data:           fileBytes,
		nameHint:       string(ctx.FormValue("name")),
		phoneHint:      string(ctx.FormValue("phone")),
		emailHint:      string(ctx.FormValue("email")),
	}
	if async {
		h.uploadAsync(c, ctx, form)
		return
	}
	h.uploadSync(c, ctx, form)
}

type uploadForm struct {
	submissionUUID string
	filename       string
	md5Hex         string
	data           []byte

	nameHint, phoneHint, emailHint string
}

func (h *ResumeHandler) release(c context.Context, md5Hex string) {
	if h.deps.Dedup == nil {
		return
	}
	if err := h.deps.Dedup.Release(c, md5Hex); err != nil {
		logger.Warn().Err(err).Str("md5", md5Hex).Msg("回滚去重记录失败")
	}
}

func (h *ResumeHandler) recordSubmission(c context.Context, sub *models.Submission) {
	if h.deps.Submissions == nil {
		return
	}
	if err := h.deps.Submissions.CreateSubmission(c, sub); err != nil {
		logger.Warn().Err(err).Str("submission_uuid", sub.SubmissionUUID).Msg("写入提交记录失败")
	}
}

func (h *ResumeHandler) uploadSync(c context.Context, ctx *app.RequestContext, form uploadForm) {
	out, err := h.proc.Process(c, processor.Document{
		URI:       form.filename,
		Data:      form.data,
		NameHint:  form.nameHint,
		PhoneHint: form.phoneHint,
		EmailHint: form.emailHint,
	})
	if err != nil {
		h.release(c, form.md5Hex)
		logger.Error().Err(err).Str("filename", form.filename).Msg("同步处理简历失败")
		if errors.Is(err, processor.ErrExtractFailed) {
			abort(c, ctx, consts.StatusUnprocessableEntity, err, "无法提取文档文本")
			return
		}
		abort(c, ctx, consts.StatusInternalServerError, err, "保存候选人记录失败")
		return
	}

	if h.deps.Dedup != nil {
		if err := h.deps.Dedup.Resolve(c, form.md5Hex, out.Key); err != nil {
			logger.Warn().Err(err).Str("md5", form.md5Hex).Msg("更新去重映射失败")
		}
	}
	h.recordSubmission(c, &models.Submission{
		SubmissionUUID:      form.submissionUUID,
		SubmissionTimestamp: time.Now(),
		OriginalFilename:    form.filename,
		RawFileMD5:          form.md5Hex,
		RecordKey:           out.Key,
		ProcessingStatus:    models.StatusProcessed,
	})

	breakdown := h.engine.Breakdown(out.Record)
	ctx.JSON(consts.StatusOK, UploadResponse{
		SubmissionUUID: form.submissionUUID,
		Status:         models.StatusProcessed,
		Key:            out.Key,
		Overwrote:      out.Overwrote,
		Record:         &out.Record,
		Breakdown:      &breakdown,
	})
}

func (h *ResumeHandler) uploadAsync(c context.Context, ctx *app.RequestContext, form uploadForm) {
	ext := filepath.Ext(form.filename)
	if ext == "" {
		ext = ".pdf"
	}
	objectKey, _, err := h.deps.Originals.UploadOriginal(c, form.submissionUUID, ext, bytes.NewReader(form.data), int64(len(form.data)))
	if err != nil {
		h.release(c, form.md5Hex)
		logger.Error().Err(err).Str("submission_uuid", form.submissionUUID).Msg("上传原始文件失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "上传原始文件失败")
		return
	}

	now := time.Now()
	sub := &models.Submission{
		SubmissionUUID:      form.submissionUUID,
		SubmissionTimestamp: now,
		OriginalFilename:    form.filename,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          form.md5Hex,
		ProcessingStatus:    models.StatusPending,
	}
	msg := storage.DocumentUploadMessage{
		SubmissionUUID:      form.submissionUUID,
		SubmissionTimestamp: now,
		OriginalFilename:    form.filename,
		OriginalFilePathOSS: objectKey,
		RawFileMD5:          form.md5Hex,
		NameHint:            form.nameHint,
		PhoneHint:           form.phoneHint,
		EmailHint:           form.emailHint,
	}
	if err := h.enqueue(c, sub, msg); err != nil {
		h.release(c, form.md5Hex)
		if delErr := h.deps.Originals.DeleteOriginal(c, objectKey); delErr != nil {
			logger.Warn().Err(delErr).Str("object", objectKey).Msg("清理原始文件失败")
		}
		logger.Error().Err(err).Str("submission_uuid", form.submissionUUID).Msg("发布上传消息失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "发布上传消息失败")
		return
	}

	logger.Info().Str("submission_uuid", form.submissionUUID).Str("object", objectKey).Msg("简历已提交异步处理")
	ctx.JSON(consts.StatusAccepted, UploadResponse{
		SubmissionUUID: form.submissionUUID,
		Status:         models.StatusPending,
	})
}

// enqueue 优先写入发件箱，否则记录提交后直接发布
func (h *ResumeHandler) enqueue(c context.Context, sub *models.Submission, msg storage.DocumentUploadMessage) error {
	if h.deps.Outbox != nil {
		return h.deps.Outbox.EnqueueUpload(c, sub, msg)
	}
	h.recordSubmission(c, sub)
	return h.deps.Publisher.PublishUpload(c, msg)
}

// ListCandidates 处理 GET /candidates
func (h *ResumeHandler) ListCandidates(c context.Context, ctx *app.RequestContext) {
	rep, err := h.pipe.ScoreAll(c)
	if err != nil {
		logger.Error().Err(err).Msg("生成排行榜失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "生成排行榜失败")
		return
	}
	ctx.JSON(consts.StatusOK, report.NewLeaderboard(rep))
}

// GetCandidate 处理 GET /candidates/:key
func (h *ResumeHandler) GetCandidate(c context.Context, ctx *app.RequestContext) {
	key := ctx.Param("key")
	if err := storage.ValidateKey(key); err != nil {
		abort(c, ctx, consts.StatusBadRequest, err, "无效的记录键")
		return
	}
	rec, err := h.proc.Load(c, key)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrRecordNotFound):
		abort(c, ctx, consts.StatusNotFound, err, "记录不存在")
		return
	case errors.Is(err, processor.ErrDecodeFailed):
		abort(c, ctx, consts.StatusUnprocessableEntity, err, "记录格式无效")
		return
	default:
		logger.Error().Err(err).Str("key", key).Msg("读取记录失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "读取记录失败")
		return
	}

	ctx.JSON(consts.StatusOK, CandidateResponse{
		Key:       key,
		Record:    rec,
		Result:    h.engine.Result(key, rec),
		Breakdown: h.engine.Breakdown(rec),
	})
}

// ExportLeaderboard 处理 GET /reports/leaderboard.xlsx
func (h *ResumeHandler) ExportLeaderboard(c context.Context, ctx *app.RequestContext) {
	rep, err := h.pipe.ScoreAll(c)
	if err != nil {
		logger.Error().Err(err).Msg("生成排行榜失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "生成排行榜失败")
		return
	}
	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep.Results); err != nil {
		logger.Error().Err(err).Msg("生成XLSX失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "生成XLSX失败")
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="leaderboard.xlsx"`)
	ctx.Data(consts.StatusOK, xlsxContentType, buf.Bytes())
}

// GetSubmission 处理 GET /submissions/:uuid
func (h *ResumeHandler) GetSubmission(c context.Context, ctx *app.RequestContext) {
	if h.deps.Submissions == nil {
		abort(c, ctx, consts.StatusNotFound, nil, "提交记录未启用")
		return
	}
	id := ctx.Param("uuid")
	sub, err := h.deps.Submissions.GetSubmission(c, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			abort(c, ctx, consts.StatusNotFound, err, "提交记录不存在")
			return
		}
		logger.Error().Err(err).Str("submission_uuid", id).Msg("查询提交记录失败")
		abort(c, ctx, consts.StatusInternalServerError, err, "查询提交记录失败")
		return
	}
	ctx.JSON(consts.StatusOK, SubmissionResponse{
		SubmissionUUID:   sub.SubmissionUUID,
		OriginalFilename: sub.OriginalFilename,
		Status:           sub.ProcessingStatus,
		RecordKey:        sub.RecordKey,
		ErrorMessage:     sub.ErrorMessage,
		SubmittedAt:      sub.SubmissionTimestamp,
	})
}

// Health 处理 GET /health
func (h *ResumeHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{
		"status":        "ok",
		"store_backend": h.cfg.Store.Backend,
		"async":         h.AsyncEnabled(),
	})
}
