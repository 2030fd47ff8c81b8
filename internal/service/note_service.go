package service

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/pkg/timeutil"
	"github.com/xxxsen/notemate/internal/repo"
)

const (
	maxNoteImageSize = 10 * 1024 * 1024
	noteTitleDefault = "Untitled"
)

var imageExts = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type NoteService struct {
	docs   *repo.DocumentRepo
	notes  *repo.NoteRepo
	images *repo.NoteImageRepo
	store  filestore.Store
	md     goldmark.Markdown
	cache  *expirable.LRU[string, string]
}

func NewNoteService(docs *repo.DocumentRepo, notes *repo.NoteRepo, images *repo.NoteImageRepo, store filestore.Store) *NoteService {
	return &NoteService{
		docs:   docs,
		notes:  notes,
		images: images,
		store:  store,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		cache: expirable.NewLRU[string, string](512, nil, time.Hour),
	}
}

type NoteDetail struct {
	*model.Note
	HTML   string            `json:"html"`
	Images []model.NoteImage `json:"images"`
}

type NoteImageResult struct {
	*model.NoteImage
	URL string `json:"url"`
}

func (s *NoteService) Create(ctx context.Context, docID, title, content string) (*model.Note, error) {
	if _, err := s.docs.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	note := &model.Note{
		ID:         newID(),
		DocumentID: docID,
		Title:      normalizeTitle(title),
		Content:    content,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, noteID string) (*NoteDetail, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	html, err := s.Render(note.Content)
	if err != nil {
		return nil, err
	}
	images, err := s.images.ListByNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if images == nil {
		images = []model.NoteImage{}
	}
	return &NoteDetail{Note: note, HTML: html, Images: images}, nil
}

func (s *NoteService) ListByDocument(ctx context.Context, docID string) ([]model.Note, error) {
	if _, err := s.docs.GetByID(ctx, docID); err != nil {
		return nil, err
	}
	items, err := s.notes.ListByDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Note{}
	}
	return items, nil
}

func (s *NoteService) Update(ctx context.Context, noteID, title, content string) (*model.Note, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	note.Title = normalizeTitle(title)
	note.Content = content
	note.Mtime = timeutil.NowUnix()
	if err := s.notes.Update(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *NoteService) Delete(ctx context.Context, noteID string) error {
	keys, err := s.notes.Delete(ctx, noteID)
	if err != nil {
		return err
	}
	removeFiles(ctx, s.store, keys)
	return nil
}

// AddImage stores an image for embedding in the note's Markdown. The type is
// sniffed from the content, not taken from the client.
func (s *NoteService) AddImage(ctx context.Context, noteID, name string, r io.Reader) (*NoteImageResult, error) {
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(io.LimitReader(r, maxNoteImageSize+1))
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	ext, ok := imageExts[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: images must be png, jpeg, gif or webp", appErr.ErrUnsupportedFormat)
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	if len(data) > maxNoteImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", appErr.ErrInvalid, maxNoteImageSize)
	}
	id := newID()
	image := &model.NoteImage{
		ID:          id,
		NoteID:      note.ID,
		DocumentID:  note.DocumentID,
		FileKey:     id + ext,
		Name:        strings.TrimSpace(name),
		ContentType: contentType,
		Size:        int64(len(data)),
		Ctime:       timeutil.NowUnix(),
	}
	if err := s.store.Save(ctx, image.FileKey, bytes.NewReader(data), image.Size, contentType); err != nil {
		return nil, err
	}
	if err := s.images.Create(ctx, image); err != nil {
		removeFiles(ctx, s.store, []string{image.FileKey})
		return nil, err
	}
	return &NoteImageResult{NoteImage: image, URL: noteImageURL(image.ID)}, nil
}

func (s *NoteService) OpenImage(ctx context.Context, imageID string) (*model.NoteImage, io.ReadCloser, error) {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, image.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return image, rc, nil
}

// Render converts Markdown to HTML, caching by content hash.
func (s *NoteService) Render(content string) (string, error) {
	sum := sha256.Sum256([]byte(content))
	key := hex.EncodeToString(sum[:])
	if html, ok := s.cache.Get(key); ok {
		return html, nil
	}
	var out bytes.Buffer
	if err := s.md.Convert([]byte(content), &out); err != nil {
		return "", err
	}
	html := out.String()
	s.cache.Add(key, html)
	return html, nil
}

func noteImageURL(imageID string) string {
	return "/api/v1/images/" + imageID
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return noteTitleDefault
	}
	return title
}
