package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/notemate/internal/ai"
	"github.com/xxxsen/notemate/internal/config"
	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/handler"
	"github.com/xxxsen/notemate/internal/middleware"
	"github.com/xxxsen/notemate/internal/repo"
	"github.com/xxxsen/notemate/internal/service"
	"github.com/xxxsen/notemate/internal/testutil"
)

type stubExtractor struct{}

func (stubExtractor) Extract(data []byte) ([]string, error) {
	return []string{"alpha is introduced here", "beta follows on page two"}, nil
}

// stubProvider answers JSON requests with one item per known word found in
// the prompt and plain requests with a fixed sentence.
type stubProvider struct {
	mu   sync.Mutex
	fail bool
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Generate(ctx context.Context, model string, req *ai.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return "", errors.New("quota exceeded")
	}
	if !req.JSON {
		return "a plain answer", nil
	}
	var parts []string
	for _, w := range []string{"alpha", "beta"} {
		if strings.Contains(req.Prompt, w) {
			parts = append(parts, `{"term": "`+w+`", "explanation": "about `+w+`"}`)
		}
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

func (p *stubProvider) setFail(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = v
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t        *testing.T
	handler  http.Handler
	provider *stubProvider
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := testutil.OpenTestDB(t)
	store, err := filestore.New(config.FileStoreConfig{
		Type: "local",
		Data: map[string]interface{}{
			"dir": filepath.Join(t.TempDir(), "files"),
		},
	})
	require.NoError(t, err)

	provider := &stubProvider{}
	manager := ai.NewManager(ai.NewGenerator(provider, "test"), ai.NewChatter(provider, "test"), ai.ManagerConfig{MaxInputChars: 12000, MaxHistory: 20})

	docRepo := repo.NewDocumentRepo(conn)
	pageRepo := repo.NewPageRepo(conn)
	files := service.NewFileService(store, "test-secret", time.Minute)
	dict := service.NewDictionaryService(docRepo, repo.NewDictionaryRepo(conn))
	documents := service.NewDocumentService(conn, docRepo, pageRepo, store, stubExtractor{}, files, 1024*1024)
	terms := service.NewTermService(docRepo, pageRepo, dict, manager)
	chats := service.NewChatService(conn, docRepo, pageRepo, repo.NewChatRepo(conn), dict, manager)
	notes := service.NewNoteService(docRepo, repo.NewNoteRepo(conn), repo.NewNoteImageRepo(conn), store)

	deps := handler.RouterDeps{
		Documents:  handler.NewDocumentHandler(documents, terms, 1024*1024),
		Notes:      handler.NewNoteHandler(notes),
		Chats:      handler.NewChatHandler(chats),
		Dictionary: handler.NewDictionaryHandler(dict),
		Files:      handler.NewFileHandler(files, notes),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return &testServer{t: t, handler: engine, provider: provider}
}

func (s *testServer) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	require.Equal(s.t, http.StatusOK, resp.Code)
	return resp
}

func (s *testServer) upload(path, field, filename string, content []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(s.t, err)
	_, err = part.Write(content)
	require.NoError(s.t, err)
	require.NoError(s.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)
	require.Equal(s.t, http.StatusOK, resp.Code)
	return resp
}

// decode unwraps the envelope into out and returns its code.
func decode(t *testing.T, resp *httptest.ResponseRecorder, out interface{}) int {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	if out != nil && env.Code == 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env.Code
}

func (s *testServer) uploadDocument(name string) string {
	s.t.Helper()
	resp := s.upload("/api/v1/documents", "file", name, []byte("%PDF-1.4 fake body"))
	var result struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
	}
	require.Equal(s.t, 0, decode(s.t, resp, &result))
	require.NotEmpty(s.t, result.Document.ID)
	return result.Document.ID
}
