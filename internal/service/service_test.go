package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notemate/internal/ai"
	"github.com/xxxsen/notemate/internal/config"
	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/repo"
	"github.com/xxxsen/notemate/internal/testutil"
)

type fakeExtractor struct {
	pages []string
	err   error
}

func (f *fakeExtractor) Extract(data []byte) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.pages...), nil
}

// fakeProvider answers with reply(req) and counts calls.
type fakeProvider struct {
	calls atomic.Int32
	reply func(req *ai.Request) (string, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Generate(ctx context.Context, model string, req *ai.Request) (string, error) {
	p.calls.Add(1)
	return p.reply(req)
}

// termsInPrompt returns a JSON array naming each known word found in the prompt.
func termsInPrompt(words ...string) func(req *ai.Request) (string, error) {
	return func(req *ai.Request) (string, error) {
		var parts []string
		for _, w := range words {
			if strings.Contains(req.Prompt, w) {
				parts = append(parts, `{"term": "`+w+`", "explanation": "about `+w+`", "context": "lecture"}`)
			}
		}
		return "[" + strings.Join(parts, ",") + "]", nil
	}
}

type testEnv struct {
	conn      *db.DB
	store     filestore.Store
	extractor *fakeExtractor
	provider  *fakeProvider
	docs      *DocumentService
	terms     *TermService
	chats     *ChatService
	notes     *NoteService
	dict      *DictionaryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn := testutil.OpenTestDB(t)

	store, err := filestore.New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": filepath.Join(dir, "files")}})
	require.NoError(t, err)

	extractor := &fakeExtractor{pages: []string{"alpha is introduced here", "beta follows on page two"}}
	provider := &fakeProvider{reply: termsInPrompt("alpha", "beta")}
	manager := ai.NewManager(ai.NewGenerator(provider, "test"), ai.NewChatter(provider, "test"), ai.ManagerConfig{MaxInputChars: 12000, MaxHistory: 20})
	return buildEnv(conn, store, extractor, provider, manager)
}

func buildEnv(conn *db.DB, store filestore.Store, extractor *fakeExtractor, provider *fakeProvider, manager *ai.Manager) *testEnv {
	docRepo := repo.NewDocumentRepo(conn)
	pageRepo := repo.NewPageRepo(conn)
	dict := NewDictionaryService(docRepo, repo.NewDictionaryRepo(conn))
	files := NewFileService(store, "test-secret", time.Minute)
	return &testEnv{
		conn:      conn,
		store:     store,
		extractor: extractor,
		provider:  provider,
		docs:      NewDocumentService(conn, docRepo, pageRepo, store, extractor, files, 1024*1024),
		terms:     NewTermService(docRepo, pageRepo, dict, manager),
		chats:     NewChatService(conn, docRepo, pageRepo, repo.NewChatRepo(conn), dict, manager),
		notes:     NewNoteService(docRepo, repo.NewNoteRepo(conn), repo.NewNoteImageRepo(conn), store),
		dict:      dict,
	}
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.conn.QueryRowContext(context.Background(), "SELECT COUNT(1) FROM "+table).Scan(&n))
	return n
}

func (e *testEnv) upload(t *testing.T, name string) *UploadResult {
	t.Helper()
	res, err := e.docs.Upload(context.Background(), name, strings.NewReader("%PDF-1.4 fake body"))
	require.NoError(t, err)
	return res
}

var errBroken = errors.New("broken xref")
