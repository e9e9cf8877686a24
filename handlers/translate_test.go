package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/config"
	"pdf-translator/extract"
	"pdf-translator/middleware"
	"pdf-translator/models"
	"pdf-translator/pipeline"
	"pdf-translator/translator"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeExtractor struct {
	doc *extract.Document
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, path string) (*extract.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	doc := *f.doc
	doc.Path = path
	return &doc, nil
}

func upperFactory(ctx context.Context, pc translator.ProviderConfig, cache *translator.Cache, prompt string) (pipeline.Translator, error) {
	return pipeline.TranslatorFunc(func(ctx context.Context, text, src, tgt string) (string, error) {
		return strings.ToUpper(text), nil
	}), nil
}

func testDocument() *extract.Document {
	return &extract.Document{
		Title: "Sample Paper",
		Pages: 2,
		Fragments: []pipeline.Fragment{
			{Text: "Introduction", Size: 24, Page: 1},
			{Text: "hello world", Size: 12, Page: 1},
			{Text: "goodbye", Size: 12, Page: 2},
		},
	}
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	handler *Handler
	cookie  *http.Cookie
}

func newTestServer(t *testing.T, ex translator.DocumentExtractor, mutate func(*config.Config)) *testServer {
	cfg := config.Default()
	cfg.Server.DataDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	h := NewHandler(context.Background(), cfg, nil, ex, upperFactory)
	t.Cleanup(h.Wait)

	r := gin.New()
	r.Use(middleware.NewSessionManager(time.Hour).Middleware())
	h.Register(r.Group("/api"))
	return &testServer{t: t, router: r, handler: h}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			s.cookie = c
		}
	}
	return w
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (s *testServer) upload(filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = fw.Write(content)
	require.NoError(s.t, err)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/translate", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *testServer) waitForTask(taskID string) models.TranslateTask {
	var task models.TranslateTask
	require.Eventually(s.t, func() bool {
		w := s.get("/api/status/" + taskID)
		if w.Code != http.StatusOK {
			return false
		}
		task = models.TranslateTask{}
		if err := json.Unmarshal(w.Body.Bytes(), &task); err != nil {
			return false
		}
		return task.Done()
	}, 5*time.Second, 10*time.Millisecond)
	return task
}

func taskIDFrom(t *testing.T, w *httptest.ResponseRecorder) string {
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		TaskID string `json:"taskId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TaskID)
	return resp.TaskID
}

func TestTranslateFlow(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)

	taskID := taskIDFrom(t, s.upload("paper.pdf", []byte("%PDF-1.4 fake"), map[string]string{
		"direction": "en-id",
		"format":    "md",
	}))

	task := s.waitForTask(taskID)
	require.Equal(t, models.StatusCompleted, task.Status, task.Error)
	assert.Equal(t, 1.0, task.Progress)
	assert.Equal(t, "en", task.SourceLanguage)
	assert.Equal(t, "id", task.TargetLanguage)
	assert.Equal(t, "md", task.Format)
	assert.Equal(t, "google", task.Provider)
	require.NotNil(t, task.Stats)
	assert.Equal(t, 2, task.Stats.Pages)
	assert.Equal(t, 3, task.Stats.Fragments)
	assert.Equal(t, 1, task.Stats.Batches)
	assert.Equal(t, 1, task.Stats.Calls)
	assert.Zero(t, task.Stats.Fallbacks)

	w := s.get("/api/download/" + taskID)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "translated_paper.md")
	assert.Contains(t, w.Body.String(), "# INTRODUCTION")
	assert.Contains(t, w.Body.String(), "HELLO WORLD")

	w = s.get("/api/download/" + taskID + "?format=html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "translated_paper.html")
	assert.Contains(t, w.Body.String(), "<h1>INTRODUCTION</h1>")

	w = s.get("/api/download/" + taskID + "?format=docx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "translated_paper.docx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	w = s.get("/api/download/" + taskID + "?format=rtf")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.get("/api/preview/" + taskID)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Title  string `json:"title"`
		Blocks []struct {
			Level int    `json:"level"`
			Text  string `json:"text"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "Sample Paper", preview.Title)
	require.Len(t, preview.Blocks, 3)
	assert.Equal(t, 1, preview.Blocks[0].Level)
	assert.Equal(t, "GOODBYE", preview.Blocks[2].Text)

	w = s.get("/api/tasks")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestTranslate_ExplicitLanguagesOverrideDirection(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)

	taskID := taskIDFrom(t, s.upload("paper.PDF", []byte("x"), map[string]string{
		"direction":      "auto-en",
		"targetLanguage": "de",
		"llmConfig":      `{"provider":"echo"}`,
	}))
	task := s.waitForTask(taskID)
	assert.Equal(t, "auto", task.SourceLanguage)
	assert.Equal(t, "de", task.TargetLanguage)
	assert.Equal(t, "echo", task.Provider)
	assert.Equal(t, "txt", task.Format)
}

func TestTranslate_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"not a pdf", "book.epub", nil},
		{"unknown direction", "a.pdf", map[string]string{"direction": "xx-yy"}},
		{"auto target", "a.pdf", map[string]string{"targetLanguage": "auto"}},
		{"bad language", "a.pdf", map[string]string{"sourceLanguage": "not a language!"}},
		{"bad format", "a.pdf", map[string]string{"format": "rtf"}},
		{"bad llm config", "a.pdf", map[string]string{"llmConfig": "{oops"}},
		{"unknown provider", "a.pdf", map[string]string{"llmConfig": `{"provider":"babelfish"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)
			w := s.upload(tt.filename, []byte("x"), tt.fields)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Empty(t, s.handler.Tasks().GetUserTasks(s.cookie.Value))
		})
	}
}

func TestTranslate_MissingFile(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/translate", strings.NewReader(""))
	w := s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranslate_TooLarge(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, func(c *config.Config) {
		c.Server.MaxUploadMB = 1
	})
	w := s.upload("big.pdf", bytes.Repeat([]byte("a"), 1<<20+1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTranslate_ExtractionFailure(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument(), err: extract.ErrNoText}, nil)

	taskID := taskIDFrom(t, s.upload("scan.pdf", []byte("x"), nil))
	task := s.waitForTask(taskID)
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "扫描件")

	w := s.get("/api/download/" + taskID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.get("/api/preview/" + taskID)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTranslate_ClientFactoryFailure(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)
	s.handler.newClient = func(ctx context.Context, pc translator.ProviderConfig, cache *translator.Cache, prompt string) (pipeline.Translator, error) {
		return nil, errors.New("no credentials")
	}

	task := s.waitForTask(taskIDFrom(t, s.upload("a.pdf", []byte("x"), nil)))
	assert.Equal(t, models.StatusFailed, task.Status)
	assert.Contains(t, task.Error, "no credentials")
}

func TestTasksAreIsolatedPerSession(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)
	taskID := taskIDFrom(t, s.upload("a.pdf", []byte("x"), nil))
	s.waitForTask(taskID)

	// 新会话看不到其他会话的任务
	s.cookie = nil
	assert.Equal(t, http.StatusNotFound, s.get("/api/status/"+taskID).Code)
	assert.Equal(t, http.StatusNotFound, s.get("/api/download/"+taskID).Code)
}

func TestRemoveSession(t *testing.T) {
	s := newTestServer(t, fakeExtractor{doc: testDocument()}, nil)
	taskID := taskIDFrom(t, s.upload("a.pdf", []byte("x"), nil))
	s.waitForTask(taskID)

	sessionID := s.cookie.Value
	dir := s.handler.userDir(sessionID)
	_, err := os.Stat(dir)
	require.NoError(t, err)

	s.handler.RemoveSession(sessionID)
	_, ok := s.handler.Tasks().GetTask(sessionID, taskID)
	assert.False(t, ok)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestLanguages(t *testing.T) {
	s := newTestServer(t, nil, nil)
	w := s.get("/api/languages")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Directions []models.Direction `json:"directions"`
		Providers  []string           `json:"providers"`
		Formats    []string           `json:"formats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Directions, len(models.Directions))
	assert.Contains(t, resp.Providers, "lambda")
	assert.Contains(t, resp.Formats, "bilingual")
	assert.Contains(t, resp.Formats, "docx")
}

func TestNoSession(t *testing.T) {
	h := NewHandler(context.Background(), config.Default(), nil, nil, upperFactory)
	r := gin.New()
	h.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMergeProvider(t *testing.T) {
	base := translator.ProviderConfig{
		Type:        translator.ProviderOpenAI,
		APIKey:      "server-key",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
	}

	got := mergeProvider(base, models.ProviderSettings{Model: "gpt-4o"})
	assert.Equal(t, "server-key", got.APIKey)
	assert.Equal(t, "gpt-4o", got.Model)

	got = mergeProvider(base, models.ProviderSettings{Provider: "claude", APIKey: "user-key"})
	assert.Equal(t, translator.ProviderClaude, got.Type)
	assert.Equal(t, "user-key", got.APIKey)
	assert.Empty(t, got.Model, "switching provider drops server model")
	assert.Equal(t, 0.3, got.Temperature)

	got = mergeProvider(base, models.ProviderSettings{Provider: "openai", Temperature: 0.9})
	assert.Equal(t, "server-key", got.APIKey)
	assert.Equal(t, 0.9, got.Temperature)
}

func TestTaskManager_ReturnsCopies(t *testing.T) {
	tm := NewTaskManager()
	now := time.Now()
	tm.AddTask("s", &models.TranslateTask{ID: "old", CreatedAt: now.Add(-time.Minute)})
	tm.AddTask("s", &models.TranslateTask{ID: "new", CreatedAt: now})

	task, ok := tm.GetTask("s", "old")
	require.True(t, ok)
	task.Status = models.StatusFailed

	again, _ := tm.GetTask("s", "old")
	assert.Empty(t, again.Status)

	list := tm.GetUserTasks("s")
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)

	assert.Empty(t, tm.GetUserTasks("other"))
	_, ok = tm.GetTask("other", "old")
	assert.False(t, ok)
}
