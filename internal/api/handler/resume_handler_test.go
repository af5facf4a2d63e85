package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"testing"

	"resume-ats/internal/api/handler"
	"resume-ats/internal/api/router"
	"resume-ats/internal/config"
	"resume-ats/internal/parser"
	"resume-ats/internal/pipeline"
	"resume-ats/internal/processor"
	"resume-ats/internal/report"
	"resume-ats/internal/scoring"
	"resume-ats/internal/storage"
	"resume-ats/internal/storage/models"
	"resume-ats/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const janeResume = `jane.doe@example.com | +1-555-123-4567
Skills: Python, AWS
Languages: English`

// pdfAsText 测试用 PDF 后端，直接把字节当作文本
var pdfAsText = parser.ExtractorFunc(func(ctx context.Context, data []byte, uri string) (string, error) {
	if bytes.HasPrefix(data, []byte("CORRUPT")) {
		return "", errors.New("corrupt pdf")
	}
	return string(data), nil
})

type fakeOriginals struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeOriginals) UploadOriginal(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}
	key := storage.OriginalObjectKey(submissionUUID, fileExt)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return key, "", nil
}

func (f *fakeOriginals) GetOriginal(ctx context.Context, objectKey string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return data, nil
}

func (f *fakeOriginals) DeleteOriginal(ctx context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectKey)
	return nil
}

type fakePublisher struct {
	messages []storage.DocumentUploadMessage
	err      error
}

func (p *fakePublisher) PublishUpload(ctx context.Context, msg storage.DocumentUploadMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

type fakeOutbox struct {
	subs     []*models.Submission
	messages []storage.DocumentUploadMessage
	err      error
}

func (o *fakeOutbox) EnqueueUpload(ctx context.Context, sub *models.Submission, msg storage.DocumentUploadMessage) error {
	if o.err != nil {
		return o.err
	}
	o.subs = append(o.subs, sub)
	o.messages = append(o.messages, msg)
	return nil
}

type fakeSubmissions struct {
	rows map[string]*models.Submission
}

func (s *fakeSubmissions) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if s.rows == nil {
		s.rows = map[string]*models.Submission{}
	}
	s.rows[sub.SubmissionUUID] = sub
	return nil
}

func (s *fakeSubmissions) GetSubmission(ctx context.Context, submissionUUID string) (*models.Submission, error) {
	sub, ok := s.rows[submissionUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

type testServer struct {
	h     *server.Hertz
	store *storage.FSRecordStore
	cfg   *config.Config
}

func newTestServer(t *testing.T, deps handler.Dependencies, apiKeys ...string) *testServer {
	t.Helper()
	return newTestServerWith(t, deps, func(cfg *config.Config) {
		cfg.Server.APIKeys = apiKeys
	})
}

func newTestServerWith(t *testing.T, deps handler.Dependencies, configure func(*config.Config)) *testServer {
	t.Helper()
	store, err := storage.NewFSRecordStore(t.TempDir())
	require.NoError(t, err)

	extractors := parser.NewRouter(pdfAsText)
	proc, err := processor.NewDocumentProcessor(&processor.Components{
		TextExtractor: extractors,
		Store:         store,
	}, nil, processor.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Store.Backend = config.StoreBackendFS
	cfg.Server.MaxUploadMB = 1
	configure(cfg)
	if deps.Extensions == nil {
		deps.Extensions = extractors
	}

	engine := scoring.Default()
	rh := handler.NewResumeHandler(cfg, proc, pipeline.New(proc, engine), engine, deps)
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, rh, cfg.Server)
	return &testServer{h: h, store: store, cfg: cfg}
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (s *testServer) upload(t *testing.T, filename string, content []byte, fields map[string]string, headers ...ut.Header) *ut.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, filename, content, fields)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: contentType})
	return ut.PerformRequest(s.h.Engine, "POST", "/api/v1/resume/upload",
		&ut.Body{Body: body, Len: body.Len()}, headers...)
}

func (s *testServer) get(path string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(s.h.Engine, "GET", path, nil, headers...)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	resp := s.get("/api/v1/health")
	require.Equal(t, http.StatusOK, resp.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["async"])
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	resp := s.get("/api/v1/health", ut.Header{Key: "X-Request-ID", Value: "req-123"})
	assert.Equal(t, "req-123", resp.Header().Get("X-Request-ID"))
}

func TestUploadSync(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"name": "Jane Doe"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out handler.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, models.StatusProcessed, out.Status)
	assert.Equal(t, "Jane_Doe_4567.json", out.Key)
	assert.NotEmpty(t, out.SubmissionUUID)
	require.NotNil(t, out.Record)
	assert.Equal(t, "Jane Doe", out.Record.Name)
	assert.Equal(t, "jane.doe@example.com", out.Record.Email)
	require.NotNil(t, out.Breakdown)

	keys, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane_Doe_4567.json"}, keys)
}

func TestUploadPlainText(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	resp := s.upload(t, "jane.txt", []byte(janeResume), nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out handler.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "Unknown_4567.json", out.Key)
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})

	resp := s.upload(t, "", nil, map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.upload(t, "resume.docx", []byte("x"), nil)
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.Code)

	resp = s.upload(t, "big.pdf", bytes.Repeat([]byte("a"), (1<<20)+1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

	resp = s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"async": "true"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"async": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = s.upload(t, "broken.pdf", []byte("CORRUPT"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestUploadDuplicateIsRejected(t *testing.T) {
	mr := miniredis.RunT(t)
	dedup, err := storage.NewRedisAdapter(&config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { dedup.Close() })

	s := newTestServer(t, handler.Dependencies{Dedup: dedup})
	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"name": "Jane Doe"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = s.upload(t, "copy.pdf", []byte(janeResume), nil)
	require.Equal(t, http.StatusConflict, resp.Code)
	var out handler.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, models.StatusDuplicate, out.Status)
	assert.Equal(t, "Jane_Doe_4567.json", out.Key)
}

func TestUploadFailureReleasesDedup(t *testing.T) {
	mr := miniredis.RunT(t)
	dedup, err := storage.NewRedisAdapter(&config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { dedup.Close() })

	s := newTestServer(t, handler.Dependencies{Dedup: dedup})
	resp := s.upload(t, "broken.pdf", []byte("CORRUPT"), nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	// the same bytes may be retried after a failed attempt
	resp = s.upload(t, "broken.pdf", []byte("CORRUPT"), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestUploadAsync(t *testing.T) {
	originals := &fakeOriginals{}
	publisher := &fakePublisher{}
	submissions := &fakeSubmissions{}
	s := newTestServer(t, handler.Dependencies{
		Originals:   originals,
		Publisher:   publisher,
		Submissions: submissions,
	})

	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{
		"async": "true",
		"name":  "Jane Doe",
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	var out handler.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, models.StatusPending, out.Status)
	require.NotEmpty(t, out.SubmissionUUID)

	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]
	assert.Equal(t, out.SubmissionUUID, msg.SubmissionUUID)
	assert.Equal(t, "Jane Doe", msg.NameHint)
	assert.Equal(t, "jane.pdf", msg.OriginalFilename)
	assert.Len(t, msg.RawFileMD5, 32)
	assert.True(t, msg.Valid())

	stored, err := originals.GetOriginal(context.Background(), msg.OriginalFilePathOSS)
	require.NoError(t, err)
	assert.Equal(t, janeResume, string(stored))

	require.Contains(t, submissions.rows, out.SubmissionUUID)
	assert.Equal(t, models.StatusPending, submissions.rows[out.SubmissionUUID].ProcessingStatus)

	// nothing is persisted until the consumer runs
	keys, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)

	statusResp := s.get("/api/v1/submissions/" + out.SubmissionUUID)
	require.Equal(t, http.StatusOK, statusResp.Code)
	var sub handler.SubmissionResponse
	require.NoError(t, json.Unmarshal(statusResp.Body.Bytes(), &sub))
	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "jane.pdf", sub.OriginalFilename)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/submissions/unknown").Code)
}

func TestUploadAsyncPublishFailureCleansUp(t *testing.T) {
	originals := &fakeOriginals{}
	s := newTestServer(t, handler.Dependencies{
		Originals: originals,
		Publisher: &fakePublisher{err: errors.New("channel closed")},
	})

	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"async": "1"})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Empty(t, originals.objects)
}

func TestUploadAsyncUsesOutbox(t *testing.T) {
	outbox := &fakeOutbox{}
	publisher := &fakePublisher{}
	submissions := &fakeSubmissions{}
	s := newTestServer(t, handler.Dependencies{
		Originals:   &fakeOriginals{},
		Publisher:   publisher,
		Outbox:      outbox,
		Submissions: submissions,
	})

	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"async": "true"})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())

	var out handler.UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, outbox.messages, 1)
	require.Len(t, outbox.subs, 1)
	assert.Equal(t, out.SubmissionUUID, outbox.messages[0].SubmissionUUID)
	assert.Equal(t, out.SubmissionUUID, outbox.subs[0].SubmissionUUID)
	assert.Equal(t, models.StatusPending, outbox.subs[0].ProcessingStatus)
	assert.Equal(t, outbox.messages[0].OriginalFilePathOSS, outbox.subs[0].OriginalFilePathOSS)

	// the relay publishes, not the handler
	assert.Empty(t, publisher.messages)
	assert.Empty(t, submissions.rows)
}

func TestUploadAsyncOutboxFailureCleansUp(t *testing.T) {
	originals := &fakeOriginals{}
	s := newTestServer(t, handler.Dependencies{
		Originals: originals,
		Outbox:    &fakeOutbox{err: errors.New("deadlock")},
	})

	resp := s.upload(t, "jane.pdf", []byte(janeResume), map[string]string{"async": "true"})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Empty(t, originals.objects)
}

func putRecord(t *testing.T, store storage.RecordStore, key string, rec types.CandidateRecord) {
	t.Helper()
	data, err := types.MustNewCodec().Encode(rec)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), key, data))
}

func seedLeaderboard(t *testing.T, s *testServer) {
	t.Helper()
	putRecord(t, s.store, "Alice_0001.json", types.CandidateRecord{
		Name:   "Alice",
		Skills: []string{"Python", "SQL", "Machine Learning"},
	})
	putRecord(t, s.store, "Bob_0002.json", types.CandidateRecord{Name: "Bob"})
	require.NoError(t, s.store.Put(context.Background(), "Broken.json", []byte(`{"name": 42}`)))
}

func TestListCandidates(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	seedLeaderboard(t, s)

	resp := s.get("/api/v1/candidates")
	require.Equal(t, http.StatusOK, resp.Code)

	var lb report.Leaderboard
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &lb))
	require.Len(t, lb.Results, 2)
	assert.Equal(t, "Alice_0001.json", lb.Results[0].ResumeFile)
	assert.Greater(t, lb.Results[0].Score, lb.Results[1].Score)
	assert.Equal(t, "Bob", lb.Results[1].Name)
	require.Len(t, lb.Failures, 1)
	assert.Equal(t, "Broken.json", lb.Failures[0].Key)
}

func TestListCandidatesEmpty(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	resp := s.get("/api/v1/candidates")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"results": []}`, resp.Body.String())
}

func TestGetCandidate(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	seedLeaderboard(t, s)

	resp := s.get("/api/v1/candidates/Alice_0001.json")
	require.Equal(t, http.StatusOK, resp.Code)
	var out handler.CandidateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "Alice", out.Record.Name)
	assert.Equal(t, out.Breakdown.Total, out.Result.Score)

	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/candidates/Nobody.json").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, s.get("/api/v1/candidates/Broken.json").Code)
	assert.Equal(t, http.StatusBadRequest, s.get("/api/v1/candidates/notes.txt").Code)
}

func TestExportLeaderboard(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	seedLeaderboard(t, s)

	resp := s.get("/api/v1/reports/leaderboard.xlsx")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(resp.Header().Get("Content-Type"), "application/vnd.openxmlformats"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "leaderboard.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(resp.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Alice_0001.json", rows[1][1])
}

func TestAPIKeyAuth(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{}, "secret")

	assert.Equal(t, http.StatusUnauthorized, s.get("/api/v1/candidates").Code)
	assert.Equal(t, http.StatusUnauthorized, s.get("/api/v1/candidates",
		ut.Header{Key: "Authorization", Value: "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK, s.get("/api/v1/candidates",
		ut.Header{Key: "Authorization", Value: "Bearer secret"}).Code)
	assert.Equal(t, http.StatusOK, s.get("/api/v1/health").Code)
}

func TestUploadRateLimit(t *testing.T) {
	s := newTestServerWith(t, handler.Dependencies{}, func(cfg *config.Config) {
		cfg.Server.UploadRatePerMinute = 60
		cfg.Server.UploadBurst = 1
	})

	first := s.upload(t, "jane.pdf", []byte(janeResume), nil)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	second := s.upload(t, "jane.pdf", []byte(janeResume), nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))

	// other routes are not limited
	assert.Equal(t, http.StatusOK, s.get("/api/v1/candidates").Code)
}

func TestSubmissionsDisabled(t *testing.T) {
	s := newTestServer(t, handler.Dependencies{})
	assert.Equal(t, http.StatusNotFound, s.get("/api/v1/submissions/abc").Code)
}
