package parser

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 创建一个模拟的Tika服务器，用于测试
func createMockTikaServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/tika":
			if r.Header.Get("Accept") != "text/plain" || len(body) == 0 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Header().Set("X-Annotations", r.Header.Get("X-Tika-PDFExtractAnnotationText"))
			w.Write([]byte("\n  Jane Doe\nWork Experience\n" + r.Header.Get("X-Tika-Resource-Name") + "\n"))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"Content-Type":"application/pdf","xmpTPg:NPages":2,"dc:title":"简历"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewTikaExtractorDefaults(t *testing.T) {
	e := NewTikaExtractor("http://localhost:9998/")
	assert.Equal(t, "http://localhost:9998", e.ServerURL, "末尾的斜杠应被去掉")
	require.NotNil(t, e.Client)
	assert.Equal(t, 60*time.Second, e.Client.Timeout)
	assert.True(t, e.extractAnnotations)

	custom := NewTikaExtractor("http://tika", WithTimeout(5*time.Second), WithAnnotations(false))
	assert.Equal(t, 5*time.Second, custom.Client.Timeout)
	assert.False(t, custom.extractAnnotations)

	client := &http.Client{}
	assert.Same(t, client, NewTikaExtractor("http://tika", WithHTTPClient(client)).Client)
}

func TestTikaExtractText(t *testing.T) {
	server := createMockTikaServer(t)
	e := NewTikaExtractor(server.URL)

	text, err := e.ExtractText(context.Background(), []byte("%PDF-1.5 mock"), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nWork Experience\nresume.pdf", text, "文本应去除首尾空白")
}

func TestTikaMetadata(t *testing.T) {
	server := createMockTikaServer(t)
	meta, err := NewTikaExtractor(server.URL).Metadata(context.Background(), []byte("%PDF"), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, float64(2), meta["xmpTPg:NPages"])
	assert.Equal(t, "简历", meta["dc:title"])
}

func TestTikaServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := NewTikaExtractor(server.URL).ExtractText(context.Background(), []byte("x"), "a.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestTikaContextCancelled(t *testing.T) {
	server := createMockTikaServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTikaExtractor(server.URL).ExtractText(ctx, []byte("x"), "a.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
