package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/testutil"
)

func newTestDB(t *testing.T) *db.DB {
	return testutil.OpenTestDB(t)
}

func seedDocument(t *testing.T, repo *DocumentRepo, id string, ctime int64) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:           id,
		Filename:     id + ".pdf",
		FileKey:      id + ".pdf",
		Size:         10,
		ExtractState: model.ExtractStateOK,
		Ctime:        ctime,
		Mtime:        ctime,
	}
	require.NoError(t, repo.Create(context.Background(), doc))
	return doc
}

func TestDocumentRepoCRUD(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	docs := NewDocumentRepo(conn)

	seedDocument(t, docs, "d1", 100)
	seedDocument(t, docs, "d2", 200)

	items, err := docs.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "d2", items[0].ID)

	require.NoError(t, docs.UpdateFilename(ctx, "d1", "renamed.pdf", 300))
	got, err := docs.GetByID(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, "renamed.pdf", got.Filename)
	require.Equal(t, int64(300), got.Mtime)

	got.PageCount = 3
	got.ExtractState = model.ExtractStateFailed
	got.ExtractError = "broken"
	require.NoError(t, docs.UpdateExtraction(ctx, got))
	got, err = docs.GetByID(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, 3, got.PageCount)
	require.Equal(t, model.ExtractStateFailed, got.ExtractState)

	_, err = docs.GetByID(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, docs.UpdateFilename(ctx, "missing", "x.pdf", 1), appErr.ErrNotFound)

	keys, err := docs.ListFileKeys(ctx, []string{"d1.pdf", "orphan.pdf"})
	require.NoError(t, err)
	require.Equal(t, []string{"d1.pdf"}, keys)
}

func TestDocumentRepoDeleteCascade(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	docs := NewDocumentRepo(conn)
	pages := NewPageRepo(conn)
	notes := NewNoteRepo(conn)
	images := NewNoteImageRepo(conn)
	chats := NewChatRepo(conn)
	dict := NewDictionaryRepo(conn)

	seedDocument(t, docs, "d1", 1)
	seedDocument(t, docs, "d2", 2)
	require.NoError(t, pages.ReplaceByDocument(ctx, "d1", []string{"one", "two"}))
	require.NoError(t, notes.Create(ctx, &model.Note{ID: "n1", DocumentID: "d1", Title: "t", Ctime: 1, Mtime: 1}))
	require.NoError(t, images.Create(ctx, &model.NoteImage{ID: "i1", NoteID: "n1", DocumentID: "d1", FileKey: "i1.png", Ctime: 1}))
	require.NoError(t, chats.Append(ctx, &model.ChatMessage{ID: "c1", DocumentID: "d1", Category: model.ChatCategoryFree, Role: model.ChatRoleUser, Content: "hi", Ctime: 1, Seq: 1}))
	require.NoError(t, dict.UpsertBatch(ctx, []*model.DictionaryEntry{
		{ID: "e1", DocumentID: "d1", Term: "Alpha", Explanation: "a", Source: model.DictionarySourceExtract, Ctime: 1, Mtime: 1},
		{ID: "e2", DocumentID: "", Term: "Global", Explanation: "g", Source: model.DictionarySourceManual, Ctime: 1, Mtime: 1},
		{ID: "e3", DocumentID: "d2", Term: "Other", Explanation: "o", Source: model.DictionarySourceManual, Ctime: 1, Mtime: 1},
	}))

	keys, err := docs.DeleteCascade(ctx, "d1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"d1.pdf", "i1.png"}, keys)

	for _, table := range []string{"document_pages", "notes", "note_images", "chat_messages"} {
		var count int
		require.NoError(t, conn.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table+" WHERE document_id = ?", "d1").Scan(&count))
		require.Zero(t, count, table)
	}
	entries, err := dict.List(ctx, DictionaryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	_, err = docs.DeleteCascade(ctx, "d1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPageRepoRange(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	pages := NewPageRepo(conn)
	require.NoError(t, pages.ReplaceByDocument(ctx, "d1", []string{"p1", "p2", "p3"}))

	items, err := pages.ListByDocument(ctx, "d1", 2, 3)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, items[0].PageNo)
	require.Equal(t, "p3", items[1].Content)

	require.NoError(t, pages.ReplaceByDocument(ctx, "d1", []string{"only"}))
	items, err = pages.ListByDocument(ctx, "d1", 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "only", items[0].Content)
}

func TestNoteRepoDeleteReturnsImages(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	notes := NewNoteRepo(conn)
	images := NewNoteImageRepo(conn)

	require.NoError(t, notes.Create(ctx, &model.Note{ID: "n1", DocumentID: "d1", Title: "a", Content: "x", Ctime: 1, Mtime: 1}))
	require.NoError(t, images.Create(ctx, &model.NoteImage{ID: "i1", NoteID: "n1", DocumentID: "d1", FileKey: "i1.png", Ctime: 1}))

	require.NoError(t, notes.Update(ctx, &model.Note{ID: "n1", Title: "b", Content: "y", Mtime: 2}))
	got, err := notes.GetByID(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, "b", got.Title)

	keys, err := notes.Delete(ctx, "n1")
	require.NoError(t, err)
	require.Equal(t, []string{"i1.png"}, keys)
	list, err := images.ListByNote(ctx, "n1")
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = notes.Delete(ctx, "n1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestChatRepoCategories(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	chats := NewChatRepo(conn)

	for i := 1; i <= 4; i++ {
		require.NoError(t, chats.Append(ctx, &model.ChatMessage{
			ID: "f" + string(rune('0'+i)), DocumentID: "d1", Category: model.ChatCategoryFree,
			Role: model.ChatRoleUser, Content: string(rune('0' + i)), Ctime: 100, Seq: int64(i),
		}))
	}
	require.NoError(t, chats.Append(ctx, &model.ChatMessage{ID: "t1", DocumentID: "d1", Category: model.ChatCategoryTerm, Role: model.ChatRoleUser, Content: "term", Ctime: 50, Seq: 1}))

	free, err := chats.ListByCategory(ctx, "d1", model.ChatCategoryFree)
	require.NoError(t, err)
	require.Len(t, free, 4)
	require.Equal(t, "f1", free[0].ID)

	recent, err := chats.ListRecent(ctx, "d1", model.ChatCategoryFree, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "f3", recent[0].ID)
	require.Equal(t, "f4", recent[1].ID)

	require.ErrorIs(t, chats.Delete(ctx, "d1", model.ChatCategoryTerm, "f1"), appErr.ErrNotFound)
	require.NoError(t, chats.Delete(ctx, "d1", model.ChatCategoryFree, "f1"))

	n, err := chats.DeleteByCategory(ctx, "d1", model.ChatCategoryFree)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	term, err := chats.ListByCategory(ctx, "d1", model.ChatCategoryTerm)
	require.NoError(t, err)
	require.Len(t, term, 1)
	require.Equal(t, "term", term[0].Content)
}

func TestDictionaryRepoUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	dict := NewDictionaryRepo(conn)

	first := &model.DictionaryEntry{ID: "e1", DocumentID: "d1", Term: "Entropy", Explanation: "old", Source: model.DictionarySourceExtract, PageLabel: "1", Ctime: 1, Mtime: 1}
	require.NoError(t, dict.UpsertBatch(ctx, []*model.DictionaryEntry{first}))

	second := &model.DictionaryEntry{ID: "e2", DocumentID: "d1", Term: " entropy ", Explanation: "new", Source: model.DictionarySourceChat, PageLabel: "2", Ctime: 2, Mtime: 2}
	require.NoError(t, dict.UpsertBatch(ctx, []*model.DictionaryEntry{second}))
	require.Equal(t, "e1", second.ID)
	require.Equal(t, int64(1), second.Ctime)

	items, err := dict.List(ctx, DictionaryFilter{DocumentID: "d1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "new", items[0].Explanation)
	require.Equal(t, model.DictionarySourceChat, items[0].Source)

	items, err = dict.List(ctx, DictionaryFilter{Query: "ENTR"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	items, err = dict.List(ctx, DictionaryFilter{Query: "zzz"})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestDictionaryRepoDetachMerges(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	dict := NewDictionaryRepo(conn)

	require.NoError(t, dict.UpsertBatch(ctx, []*model.DictionaryEntry{
		{ID: "g1", DocumentID: "", Term: "Vector", Explanation: "global", Source: model.DictionarySourceManual, Ctime: 1, Mtime: 1},
		{ID: "s1", DocumentID: "d1", Term: "vector", Explanation: "scoped", Source: model.DictionarySourceExtract, Ctime: 1, Mtime: 1},
		{ID: "s2", DocumentID: "d1", Term: "Matrix", Explanation: "m", Source: model.DictionarySourceExtract, Ctime: 1, Mtime: 1},
	}))

	merged, err := dict.Detach(ctx, "s1", 5)
	require.NoError(t, err)
	require.Equal(t, "g1", merged.ID)
	require.Equal(t, "scoped", merged.Explanation)
	_, err = dict.GetByID(ctx, "s1")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	moved, err := dict.Detach(ctx, "s2", 6)
	require.NoError(t, err)
	require.Equal(t, "s2", moved.ID)
	require.Empty(t, moved.DocumentID)

	detached, err := dict.List(ctx, DictionaryFilter{DetachedOnly: true})
	require.NoError(t, err)
	require.Len(t, detached, 2)

	require.NoError(t, dict.Delete(ctx, "s2"))
	require.ErrorIs(t, dict.Delete(ctx, "s2"), appErr.ErrNotFound)
	_, err = dict.Detach(ctx, "missing", 1)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	docs := NewDocumentRepo(conn)
	images := NewNoteImageRepo(conn)

	seedDocument(t, docs, "d1", 100)
	err := docs.Create(ctx, &model.Document{ID: "d1", Filename: "x.pdf", FileKey: "x.pdf", Ctime: 1, Mtime: 1})
	require.ErrorIs(t, err, appErr.ErrConflict)

	image := &model.NoteImage{ID: "i1", NoteID: "n1", DocumentID: "d1", FileKey: "i1.png", Ctime: 1}
	require.NoError(t, images.Create(ctx, image))
	require.ErrorIs(t, images.Create(ctx, image), appErr.ErrConflict)
}

func TestDictionaryRepoQueryIsLiteral(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	dict := NewDictionaryRepo(conn)

	require.NoError(t, dict.UpsertBatch(ctx, []*model.DictionaryEntry{
		{ID: "e1", DocumentID: "d1", Term: "a_b", Explanation: "x", Ctime: 1, Mtime: 1},
		{ID: "e2", DocumentID: "d1", Term: "axb", Explanation: "x", Ctime: 1, Mtime: 1},
		{ID: "e3", DocumentID: "d1", Term: "50% rule", Explanation: "x", Ctime: 1, Mtime: 1},
		{ID: "e4", DocumentID: "d1", Term: "500 rule", Explanation: "x", Ctime: 1, Mtime: 1},
	}))

	items, err := dict.List(ctx, DictionaryFilter{Query: "a_b"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a_b", items[0].Term)

	items, err = dict.List(ctx, DictionaryFilter{DocumentID: "d1", Query: "0%"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "50% rule", items[0].Term)

	items, err = dict.List(ctx, DictionaryFilter{DocumentID: "d1", Query: "RULE"})
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestWithTxRollsBackAcrossRepos(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	chats := NewChatRepo(conn)
	dict := NewDictionaryRepo(conn)

	err := conn.WithTx(ctx, func(tx *db.Tx) error {
		msg := &model.ChatMessage{ID: "m1", DocumentID: "d1", Category: model.ChatCategoryTerm, Role: model.ChatRoleUser, Content: "q", Ctime: 1, Seq: 1}
		if err := chats.WithTx(tx).Append(ctx, msg); err != nil {
			return err
		}
		entry := &model.DictionaryEntry{ID: "e1", DocumentID: "d1", Term: "t", Explanation: "x", Ctime: 1, Mtime: 1}
		if err := dict.WithTx(tx).UpsertBatch(ctx, []*model.DictionaryEntry{entry}); err != nil {
			return err
		}
		return appErr.ErrInternal
	})
	require.ErrorIs(t, err, appErr.ErrInternal)

	msgs, err := chats.ListByCategory(ctx, "d1", model.ChatCategoryTerm)
	require.NoError(t, err)
	require.Empty(t, msgs)
	entries, err := dict.List(ctx, DictionaryFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}
