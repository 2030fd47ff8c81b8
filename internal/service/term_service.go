package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notemate/internal/ai"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/repo"
)

// TermService extracts glossary entries from page texts with the AI model.
type TermService struct {
	docs    *repo.DocumentRepo
	pages   *repo.PageRepo
	dict    *DictionaryService
	manager *ai.Manager
}

func NewTermService(docs *repo.DocumentRepo, pages *repo.PageRepo, dict *DictionaryService, manager *ai.Manager) *TermService {
	return &TermService{docs: docs, pages: pages, dict: dict, manager: manager}
}

// Extract runs term extraction over the selected pages and stores the result
// in the document's dictionary. Blank text yields no entries and no AI call.
// On AI or parse failure nothing is stored. The returned range has its open
// end filled in.
func (s *TermService) Extract(ctx context.Context, docID string, r PageRange) ([]model.DictionaryEntry, PageRange, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, PageRange{}, err
	}
	if doc.ExtractState != model.ExtractStateOK {
		return nil, PageRange{}, appErr.ErrExtractionUnavailable
	}
	r, err = r.resolve(doc.PageCount)
	if err != nil {
		return nil, PageRange{}, err
	}
	text, err := loadText(ctx, s.pages, docID, r)
	if err != nil {
		return nil, PageRange{}, err
	}
	if strings.TrimSpace(text) == "" {
		return []model.DictionaryEntry{}, r, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID), zap.String("pages", r.Label()))
	items, err := s.manager.ExtractTerms(ctx, text)
	if err != nil {
		logger.Warn("term extraction failed", zap.Error(err))
		return nil, PageRange{}, err
	}
	if len(items) == 0 {
		return []model.DictionaryEntry{}, r, nil
	}
	inputs := make([]EntryInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, EntryInput{Term: item.Term, Explanation: item.Explanation, Context: item.Context})
	}
	entries, err := s.dict.Promote(ctx, docID, model.DictionarySourceExtract, r.Label(), inputs)
	if err != nil {
		return nil, PageRange{}, err
	}
	logger.Info("terms extracted", zap.Int("count", len(entries)))
	return entries, r, nil
}

func loadText(ctx context.Context, pages *repo.PageRepo, docID string, r PageRange) (string, error) {
	items, err := pages.ListByDocument(ctx, docID, r.From, r.To)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(items))
	for _, p := range items {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, "\n"), nil
}
