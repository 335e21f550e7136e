package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brainblog/internal/api"
	"github.com/brainblog/internal/articleview"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/content"
	"github.com/brainblog/internal/mocks"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/service"
	"github.com/brainblog/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// pngBytes starts with the PNG signature so content sniffing detects image/png
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type testEnv struct {
	router  *gin.Engine
	article *mocks.MockArticleService
	export  *mocks.MockExportService
	feed    *mocks.MockFeedService
	cleanup *mocks.MockCleanupService
	blobDir string
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		article: mocks.NewMockArticleService(),
		export:  mocks.NewMockExportService(),
		feed:    mocks.NewMockFeedService(),
		cleanup: mocks.NewMockCleanupService(),
		blobDir: t.TempDir(),
	}

	services := &service.Services{
		Article: env.article,
		Export:  env.export,
		Feed:    env.feed,
		Cleanup: env.cleanup,
	}

	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080"},
		Blob: config.BlobConfig{
			Dir:           env.blobDir,
			PublicPath:    "/files",
			MaxUploadSize: 1024,
		},
	}

	env.router = api.NewRouter(services, cfg, zerolog.Nop())
	return env
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// multipartRequest builds a form with the given fields and, when content is not nil, a file part
func multipartRequest(t *testing.T, method, target string, fields map[string]string, filename, declaredType string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	if content != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", declaredType)
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart failed: %v", err)
		}
		part.Write(content)
	}
	writer.Close()

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "brainblog" {
		t.Errorf("Expected service 'brainblog', got %v", response["service"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestRouter(t)
	env.article.Articles = append(env.article.Articles, &models.Article{ID: "a1", Title: "t"})
	env.cleanup.Pending = 3

	w := env.do(httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Store struct {
			Articles int `json:"articles"`
		} `json:"store"`
		BlobCleanup struct {
			Pending int `json:"pending"`
		} `json:"blob_cleanup"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if response.Store.Articles != 1 || response.BlobCleanup.Pending != 3 {
		t.Errorf("unexpected metrics %+v", response)
	}
}

func TestListArticles_SortParameter(t *testing.T) {
	env := setupTestRouter(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	env.article.Articles = []*models.Article{
		{ID: "a1", Title: "Beta", CreatedAt: base},
		{ID: "a2", Title: "alpha", CreatedAt: base.Add(time.Hour)},
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantKey    articleview.SortKey
		wantFirst  string
	}{
		{name: "default is newest first", query: "", wantStatus: http.StatusOK, wantKey: articleview.DateDesc, wantFirst: "a2"},
		{name: "oldest first", query: "?sort=date_asc", wantStatus: http.StatusOK, wantKey: articleview.DateAsc, wantFirst: "a1"},
		{name: "title descending", query: "?sort=TITLE_DESC", wantStatus: http.StatusOK, wantKey: articleview.TitleDesc, wantFirst: "a1"},
		{name: "search", query: "?search=ALPH", wantStatus: http.StatusOK, wantKey: articleview.DateDesc, wantFirst: "a2"},
		{name: "unknown sort", query: "?sort=fileType", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.article.ListCalls = nil
			w := env.do(httptest.NewRequest("GET", "/v1/articles"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if len(env.article.ListCalls) != 0 {
					t.Error("service should not be called for a bad sort key")
				}
				return
			}

			var response struct {
				Articles []models.Article `json:"articles"`
				Count    int              `json:"count"`
				Sort     string           `json:"sort"`
			}
			json.Unmarshal(w.Body.Bytes(), &response)

			if response.Sort != string(tt.wantKey) || env.article.ListCalls[0] != tt.wantKey {
				t.Errorf("Expected sort %s, got %s", tt.wantKey, response.Sort)
			}
			if response.Count == 0 || response.Articles[0].ID != tt.wantFirst {
				t.Errorf("Expected %s first, got %+v", tt.wantFirst, response.Articles)
			}
		})
	}
}

func TestGetArticle(t *testing.T) {
	env := setupTestRouter(t)
	env.article.GetFunc = func(ctx context.Context, id string) (*models.ArticleDetail, error) {
		if id != "a1" {
			return nil, models.ErrNotFound
		}
		return &models.ArticleDetail{
			Article:    models.Article{ID: "a1", Title: "t", File: "/files/1-a.pdf", FileType: "application/pdf"},
			Attachment: models.AttachmentView{Kind: "pdf", URL: "/files/1-a.pdf", MimeType: "application/pdf"},
			Segments:   []models.SegmentView{{Kind: "prose", Text: "hi", HTML: "hi"}},
		}, nil
	}

	w := env.do(httptest.NewRequest("GET", "/v1/articles/a1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["id"] != "a1" {
		t.Errorf("article fields should be inlined, got %v", response)
	}
	attachment, _ := response["attachment"].(map[string]interface{})
	if attachment["kind"] != "pdf" {
		t.Errorf("Expected pdf attachment, got %v", response["attachment"])
	}

	w = env.do(httptest.NewRequest("GET", "/v1/articles/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateArticle_SniffsMimeType(t *testing.T) {
	env := setupTestRouter(t)

	// Declared type is ignored in favour of the content
	req := multipartRequest(t, "POST", "/v1/articles",
		map[string]string{"title": "Cat", "theme": "pets", "content": "meow"},
		"cat.png", "text/plain", pngBytes)
	w := env.do(req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.article.Uploads) != 1 || env.article.Uploads[0] == nil {
		t.Fatal("Expected one upload passed to the service")
	}

	upload := env.article.Uploads[0]
	if upload.MimeType != "image/png" || upload.Name != "cat.png" || upload.Size != int64(len(pngBytes)) {
		t.Errorf("unexpected upload %+v", upload)
	}

	var article models.Article
	json.Unmarshal(w.Body.Bytes(), &article)
	if article.Title != "Cat" || article.Theme != "pets" || article.FileType != "image/png" {
		t.Errorf("unexpected response %+v", article)
	}
}

func TestCreateArticle_ReaderStartsAtBeginning(t *testing.T) {
	env := setupTestRouter(t)

	var received []byte
	env.article.CreateFunc = func(ctx context.Context, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
		received, _ = io.ReadAll(upload.Reader)
		return &models.Article{ID: "a1", Title: input.Title}, nil
	}

	pdf := []byte("%PDF-1.4\n%fake pdf body\n")
	w := env.do(multipartRequest(t, "POST", "/v1/articles", map[string]string{"title": "Doc"}, "doc.pdf", "application/pdf", pdf))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	if !bytes.Equal(received, pdf) {
		t.Errorf("service received %q, want the full file", received)
	}
	if env.article.Uploads[0].MimeType != "application/pdf" {
		t.Errorf("Expected application/pdf, got %s", env.article.Uploads[0].MimeType)
	}
}

func TestCreateArticle_WithoutFile(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(multipartRequest(t, "POST", "/v1/articles", map[string]string{"title": "Plain"}, "", "", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if env.article.Uploads[0] != nil {
		t.Error("Expected no upload")
	}
}

func TestCreateArticle_CRLFContent(t *testing.T) {
	env := setupTestRouter(t)

	var received string
	env.article.CreateFunc = func(ctx context.Context, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
		received = input.Content
		return &models.Article{ID: "a1", Title: input.Title, Content: input.Content}, nil
	}

	// Browsers submit textarea values with CRLF line endings
	fields := map[string]string{"title": "Form post", "content": "Hello\r\n\r\n<code>x=1</code>"}
	w := env.do(multipartRequest(t, "POST", "/v1/articles", fields, "", "", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	segments := content.Split(received)
	if len(segments) != 2 {
		t.Fatalf("Expected prose and code segments, got %+v", segments)
	}
	if segments[0] != content.Prose("Hello") || segments[1] != content.CodeBlock("x=1") {
		t.Errorf("unexpected segments %+v", segments)
	}
}

func TestCreateArticle_ValidationErrors(t *testing.T) {
	env := setupTestRouter(t)
	env.article.CreateFunc = func(ctx context.Context, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
		return nil, validation.Errors{{Field: "title", Message: "title is required"}}
	}

	w := env.do(multipartRequest(t, "POST", "/v1/articles", map[string]string{"content": "x"}, "", "", nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", w.Code)
	}

	var response struct {
		Error   string                       `json:"error"`
		Details []validation.ValidationError `json:"details"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if len(response.Details) != 1 || response.Details[0].Field != "title" {
		t.Errorf("unexpected details %+v", response)
	}
}

func TestCreateArticle_TooLarge(t *testing.T) {
	env := setupTestRouter(t)

	// MaxUploadSize is 1KB plus 1MB of form overhead
	big := append([]byte{}, pngBytes...)
	big = append(big, make([]byte, 2<<20)...)
	w := env.do(multipartRequest(t, "POST", "/v1/articles", map[string]string{"title": "Big"}, "big.png", "image/png", big))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	if len(env.article.Uploads) != 0 {
		t.Error("service should not be called")
	}
}

func TestUpdateArticle(t *testing.T) {
	env := setupTestRouter(t)
	env.article.Articles = []*models.Article{{ID: "a1", Title: "old"}}

	var gotInput *models.ArticleInput
	env.article.UpdateFunc = func(ctx context.Context, id string, input *models.ArticleInput, upload *service.Upload) (*models.Article, error) {
		gotInput = input
		if id != "a1" {
			return nil, models.ErrNotFound
		}
		return &models.Article{ID: id, Title: input.Title}, nil
	}

	w := env.do(multipartRequest(t, "PUT", "/v1/articles/a1",
		map[string]string{"title": "new", "remove_file": "true"}, "", "", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if gotInput == nil || gotInput.Title != "new" || !gotInput.RemoveFile {
		t.Errorf("unexpected input %+v", gotInput)
	}

	w = env.do(multipartRequest(t, "PUT", "/v1/articles/missing", map[string]string{"title": "x"}, "", "", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestDeleteArticle(t *testing.T) {
	env := setupTestRouter(t)
	env.article.Articles = []*models.Article{{ID: "a1", Title: "t"}}

	w := env.do(httptest.NewRequest("DELETE", "/v1/articles/a1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", w.Code)
	}
	if len(env.article.Deleted) != 1 {
		t.Error("Expected the article to be deleted")
	}

	w = env.do(httptest.NewRequest("DELETE", "/v1/articles/a1", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	env.article.DeleteFunc = func(ctx context.Context, id string) error {
		return errors.New("db down")
	}
	w = env.do(httptest.NewRequest("DELETE", "/v1/articles/a1", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestExportStream_Formats(t *testing.T) {
	env := setupTestRouter(t)

	var gotFormat string
	env.export.StreamArticlesFunc = func(ctx context.Context, w http.ResponseWriter, format string) error {
		gotFormat = format
		w.Write([]byte("ok"))
		return nil
	}

	tests := []struct {
		query      string
		wantStatus int
		wantFormat string
	}{
		{query: "", wantStatus: http.StatusOK, wantFormat: "ndjson"},
		{query: "?format=json", wantStatus: http.StatusOK, wantFormat: "json"},
		{query: "?format=csv", wantStatus: http.StatusOK, wantFormat: "csv"},
		{query: "?format=xml", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gotFormat = ""
			w := env.do(httptest.NewRequest("GET", "/v1/exports"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if gotFormat != tt.wantFormat {
				t.Errorf("Expected format %q, got %q", tt.wantFormat, gotFormat)
			}
		})
	}
}

func TestRSSFeed(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(httptest.NewRequest("GET", "/rss.xml", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "application/rss+xml") {
		t.Errorf("unexpected content type %q", w.Header().Get("Content-Type"))
	}

	env.feed.WriteRSSFunc = func(ctx context.Context, w io.Writer) error {
		w.Write([]byte("<partial"))
		return errors.New("store down")
	}
	w = env.do(httptest.NewRequest("GET", "/rss.xml", nil))
	if w.Code != http.StatusInternalServerError || strings.Contains(w.Body.String(), "<partial") {
		t.Errorf("Expected a clean 500, got %d %q", w.Code, w.Body.String())
	}
}

func TestHighlightCSS(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(httptest.NewRequest("GET", "/static/highlight.css", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), ".chroma") {
		t.Errorf("unexpected stylesheet response %d %q", w.Code, w.Body.String())
	}
}

func TestStaticFiles(t *testing.T) {
	env := setupTestRouter(t)
	os.WriteFile(filepath.Join(env.blobDir, "1-a.png"), pngBytes, 0o644)

	w := env.do(httptest.NewRequest("GET", "/files/1-a.png", nil))
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), pngBytes) {
		t.Errorf("Expected stored blob, got %d", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(httptest.NewRequest("OPTIONS", "/v1/articles", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for OPTIONS, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header Access-Control-Allow-Origin: *")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Error("Expected DELETE in allowed methods")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := setupTestRouter(t)
	env.article.GetFunc = func(ctx context.Context, id string) (*models.ArticleDetail, error) {
		panic("boom")
	}

	w := env.do(httptest.NewRequest("GET", "/v1/articles/a1", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500 after panic, got %d", w.Code)
	}
}
