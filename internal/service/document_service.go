package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/filestore"
	"github.com/xxxsen/notemate/internal/model"
	"github.com/xxxsen/notemate/internal/pdftext"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/pkg/timeutil"
	"github.com/xxxsen/notemate/internal/repo"
)

const (
	pdfExt            = ".pdf"
	pdfContentType    = "application/pdf"
	maxFilenameLength = 255
)

type DocumentService struct {
	conn          *db.DB
	docs          *repo.DocumentRepo
	pages         *repo.PageRepo
	store         filestore.Store
	extractor     pdftext.Extractor
	files         *FileService
	maxUploadSize int64
}

func NewDocumentService(conn *db.DB, docs *repo.DocumentRepo, pages *repo.PageRepo, store filestore.Store, extractor pdftext.Extractor, files *FileService, maxUploadSize int64) *DocumentService {
	return &DocumentService{conn: conn, docs: docs, pages: pages, store: store, extractor: extractor, files: files, maxUploadSize: maxUploadSize}
}

// UploadResult carries the registered document. ExtractionError is set when
// the PDF was stored but its text could not be read.
type UploadResult struct {
	Document        *model.Document `json:"document"`
	ExtractionError string          `json:"extraction_error,omitempty"`
}

type DocumentDetail struct {
	*model.Document
	FileURL string `json:"file_url"`
}

// Upload validates and stores a PDF, extracts its page texts and registers
// the document. Nothing is written when validation fails.
func (s *DocumentService) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	name := cleanFilename(filename)
	if !hasPDFExt(name) {
		return nil, fmt.Errorf("%w: only %s files are accepted", appErr.ErrUnsupportedFormat, pdfExt)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", appErr.ErrInvalid, s.maxUploadSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", appErr.ErrInvalid)
	}

	logger := logutil.GetLogger(ctx).With(zap.String("filename", name))
	id := newID()
	key := id + pdfExt
	if err := s.store.Save(ctx, key, bytes.NewReader(data), int64(len(data)), pdfContentType); err != nil {
		logger.Error("save pdf failed", zap.Error(err))
		return nil, err
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:       id,
		Filename: name,
		FileKey:  key,
		Size:     int64(len(data)),
		Ctime:    now,
		Mtime:    now,
	}
	pages, extractErr := s.extractor.Extract(data)
	applyExtraction(doc, pages, extractErr)
	err = s.conn.WithTx(ctx, func(tx *db.Tx) error {
		if err := s.docs.WithTx(tx).Create(ctx, doc); err != nil {
			return err
		}
		return s.pages.WithTx(tx).ReplaceByDocument(ctx, id, pages)
	})
	if err != nil {
		logger.Error("register document failed", zap.String("doc_id", id), zap.Error(err))
		removeFiles(ctx, s.store, []string{key})
		return nil, err
	}
	result := &UploadResult{Document: doc}
	if extractErr != nil {
		logger.Warn("pdf text extraction failed", zap.String("doc_id", id), zap.Error(extractErr))
		result.ExtractionError = fmt.Errorf("%w: %v", appErr.ErrExtractionUnavailable, extractErr).Error()
	}
	logger.Info("document uploaded", zap.String("doc_id", id), zap.Int("pages", doc.PageCount))
	return result, nil
}

// Reextract re-reads the stored PDF and replaces the page texts together
// with the extraction state.
func (s *DocumentService) Reextract(ctx context.Context, docID string) (*UploadResult, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	rc, err := s.store.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, err
	}
	pages, extractErr := s.extractor.Extract(data)
	applyExtraction(doc, pages, extractErr)
	doc.Mtime = timeutil.NowUnix()
	err = s.conn.WithTx(ctx, func(tx *db.Tx) error {
		if err := s.pages.WithTx(tx).ReplaceByDocument(ctx, docID, pages); err != nil {
			return err
		}
		return s.docs.WithTx(tx).UpdateExtraction(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	result := &UploadResult{Document: doc}
	if extractErr != nil {
		result.ExtractionError = fmt.Errorf("%w: %v", appErr.ErrExtractionUnavailable, extractErr).Error()
	}
	return result, nil
}

func (s *DocumentService) Get(ctx context.Context, docID string) (*DocumentDetail, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	url, err := s.files.SignedURL(doc.FileKey, "", pdfContentType)
	if err != nil {
		return nil, err
	}
	return &DocumentDetail{Document: doc, FileURL: url}, nil
}

func (s *DocumentService) List(ctx context.Context) ([]model.Document, error) {
	docs, err := s.docs.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return docs, nil
}

func (s *DocumentService) Rename(ctx context.Context, docID, filename string) (*model.Document, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	if utf8.RuneCountInString(name) > maxFilenameLength {
		return nil, fmt.Errorf("%w: filename must be at most %d characters", appErr.ErrInvalid, maxFilenameLength)
	}
	if !hasPDFExt(name) || strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("%w: filename must end with %s", appErr.ErrInvalid, pdfExt)
	}
	if err := s.docs.UpdateFilename(ctx, docID, name, timeutil.NowUnix()); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, docID)
}

// Delete removes the document and its dependents, then its stored files.
func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	keys, err := s.docs.DeleteCascade(ctx, docID)
	if err != nil {
		return err
	}
	removeFiles(ctx, s.store, keys)
	logutil.GetLogger(ctx).Info("document deleted", zap.String("doc_id", docID), zap.Int("files", len(keys)))
	return nil
}

func (s *DocumentService) OpenFile(ctx context.Context, docID string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, doc.FileKey)
	if err != nil {
		return nil, nil, err
	}
	return doc, rc, nil
}

func (s *DocumentService) Pages(ctx context.Context, docID string, r PageRange) ([]model.DocumentPage, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.ExtractState != model.ExtractStateOK {
		return nil, appErr.ErrExtractionUnavailable
	}
	r, err = r.resolve(doc.PageCount)
	if err != nil {
		return nil, err
	}
	pages, err := s.pages.ListByDocument(ctx, docID, r.From, r.To)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []model.DocumentPage{}
	}
	return pages, nil
}

func applyExtraction(doc *model.Document, pages []string, err error) {
	if err != nil {
		doc.ExtractState = model.ExtractStateFailed
		doc.ExtractError = err.Error()
		doc.PageCount = 0
		return
	}
	doc.ExtractState = model.ExtractStateOK
	doc.ExtractError = ""
	doc.PageCount = len(pages)
}

func hasPDFExt(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), pdfExt)
}

func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSpace(path.Base(name))
}
