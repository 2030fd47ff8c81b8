package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

func TestUploadRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.docs.Upload(context.Background(), "notes.txt", strings.NewReader("hello"))
	require.ErrorIs(t, err, appErr.ErrUnsupportedFormat)
	require.Zero(t, env.countRows(t, "documents"))
	files, err := env.store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestUploadRejectsOversize(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.docs.Upload(context.Background(), "big.pdf", strings.NewReader(strings.Repeat("x", 1024*1024+1)))
	require.ErrorIs(t, err, appErr.ErrInvalid)
	require.Zero(t, env.countRows(t, "documents"))
}

func TestUploadStoresPages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	res := env.upload(t, `C:\lectures\Lecture1.PDF`)
	require.Empty(t, res.ExtractionError)
	doc := res.Document
	require.Equal(t, "Lecture1.PDF", doc.Filename)
	require.Equal(t, doc.ID+".pdf", doc.FileKey)
	require.Len(t, doc.ID, 32)
	require.Equal(t, 2, doc.PageCount)
	require.Equal(t, model.ExtractStateOK, doc.ExtractState)

	pages, err := env.docs.Pages(ctx, doc.ID, PageRange{From: 2, To: 2})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.Contains(t, pages[0].Content, "beta")

	_, err = env.docs.Pages(ctx, doc.ID, PageRange{From: 3, To: 3})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	detail, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(detail.FileURL, "/api/v1/files/"))

	token := strings.TrimPrefix(detail.FileURL, "/api/v1/files/")
	claims, rc, err := env.docs.files.OpenSigned(ctx, token)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	require.Equal(t, doc.FileKey, claims.FileKey)
	require.Equal(t, "%PDF-1.4 fake body", string(body))

	_, _, err = env.docs.files.OpenSigned(ctx, "garbage")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestUploadExtractionFailureKeepsFile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.extractor.err = errBroken

	res := env.upload(t, "scan.pdf")
	require.NotEmpty(t, res.ExtractionError)
	require.Equal(t, model.ExtractStateFailed, res.Document.ExtractState)

	_, rc, err := env.docs.OpenFile(ctx, res.Document.ID)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, _, err = env.terms.Extract(ctx, res.Document.ID, PageRange{})
	require.ErrorIs(t, err, appErr.ErrExtractionUnavailable)
	require.Zero(t, env.provider.calls.Load())

	env.extractor.err = nil
	again, err := env.docs.Reextract(ctx, res.Document.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExtractStateOK, again.Document.ExtractState)
	require.Equal(t, 2, again.Document.PageCount)
}

func TestReextractFailureKeepsPages(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	doc := env.upload(t, "lecture1.pdf").Document
	require.Equal(t, 2, env.countRows(t, "document_pages"))

	_, err := env.conn.ExecContext(ctx, "CREATE TRIGGER block_doc_update BEFORE UPDATE ON documents BEGIN SELECT RAISE(ABORT, 'blocked'); END")
	require.NoError(t, err)
	env.extractor.err = errBroken

	_, err = env.docs.Reextract(ctx, doc.ID)
	require.Error(t, err)
	require.Equal(t, 2, env.countRows(t, "document_pages"))

	detail, err := env.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, model.ExtractStateOK, detail.Document.ExtractState)
	require.Equal(t, 2, detail.Document.PageCount)
}

func TestRenameValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	doc := env.upload(t, "a.pdf").Document

	_, err := env.docs.Rename(ctx, doc.ID, "slides.pptx")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.docs.Rename(ctx, doc.ID, strings.Repeat("a", 252)+".pdf")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = env.docs.Rename(ctx, doc.ID, "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)

	renamed, err := env.docs.Rename(ctx, doc.ID, " week2.pdf ")
	require.NoError(t, err)
	require.Equal(t, "week2.pdf", renamed.Filename)

	_, err = env.docs.Rename(ctx, "missing", "x.pdf")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestDeleteRemovesFileAndDependents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	doc := env.upload(t, "a.pdf").Document

	note, err := env.notes.Create(ctx, doc.ID, "n", "body")
	require.NoError(t, err)
	_, err = env.notes.AddImage(ctx, note.ID, "pic.png", strings.NewReader(pngBytes))
	require.NoError(t, err)
	_, err = env.chats.SendFree(ctx, doc.ID, "what is alpha?")
	require.NoError(t, err)
	_, _, err = env.terms.Extract(ctx, doc.ID, PageRange{})
	require.NoError(t, err)

	require.NoError(t, env.docs.Delete(ctx, doc.ID))

	for _, table := range []string{"documents", "document_pages", "notes", "note_images", "chat_messages", "dictionary_entries"} {
		require.Zero(t, env.countRows(t, table), table)
	}
	files, err := env.store.List(ctx)
	require.NoError(t, err)
	require.Empty(t, files)

	require.ErrorIs(t, env.docs.Delete(ctx, doc.ID), appErr.ErrNotFound)
}
