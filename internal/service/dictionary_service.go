package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/pkg/timeutil"
	"github.com/xxxsen/notemate/internal/repo"
)

const (
	DictionaryScopeAll      = "all"
	DictionaryScopeDetached = "detached"
)

type DictionaryService struct {
	docs *repo.DocumentRepo
	dict *repo.DictionaryRepo
}

func NewDictionaryService(docs *repo.DocumentRepo, dict *repo.DictionaryRepo) *DictionaryService {
	return &DictionaryService{docs: docs, dict: dict}
}

type EntryInput struct {
	Term        string `json:"term"`
	Explanation string `json:"explanation"`
	Context     string `json:"context"`
}

type ListQuery struct {
	DocumentID string
	Scope      string
	Query      string
}

func (s *DictionaryService) List(ctx context.Context, q ListQuery) ([]model.DictionaryEntry, error) {
	filter := repo.DictionaryFilter{DocumentID: q.DocumentID, Query: q.Query}
	switch strings.ToLower(strings.TrimSpace(q.Scope)) {
	case "", DictionaryScopeAll:
	case DictionaryScopeDetached:
		filter.DetachedOnly = true
	default:
		return nil, fmt.Errorf("%w: unknown scope %q", appErr.ErrInvalid, q.Scope)
	}
	if filter.DocumentID != "" && !filter.DetachedOnly {
		if _, err := s.docs.GetByID(ctx, filter.DocumentID); err != nil {
			return nil, err
		}
	}
	items, err := s.dict.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.DictionaryEntry{}
	}
	return items, nil
}

// Promote upserts entries into a document's dictionary. An empty docID
// writes to the cross-document dictionary.
func (s *DictionaryService) Promote(ctx context.Context, docID, source, pageLabel string, inputs []EntryInput) ([]model.DictionaryEntry, error) {
	if docID != "" {
		if _, err := s.docs.GetByID(ctx, docID); err != nil {
			return nil, err
		}
	}
	entries, err := buildEntries(docID, source, pageLabel, inputs)
	if err != nil {
		return nil, err
	}
	if err := s.dict.UpsertBatch(ctx, entries); err != nil {
		return nil, err
	}
	return derefEntries(entries), nil
}

// buildEntries validates inputs and collapses duplicate terms, the last one winning.
func buildEntries(docID, source, pageLabel string, inputs []EntryInput) ([]*model.DictionaryEntry, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no entries given", appErr.ErrInvalid)
	}
	now := timeutil.NowUnix()
	entries := make([]*model.DictionaryEntry, 0, len(inputs))
	index := make(map[string]int, len(inputs))
	for _, in := range inputs {
		term := strings.TrimSpace(in.Term)
		explanation := strings.TrimSpace(in.Explanation)
		if term == "" || explanation == "" {
			return nil, fmt.Errorf("%w: term and explanation are required", appErr.ErrInvalid)
		}
		entry := &model.DictionaryEntry{
			ID:          newID(),
			DocumentID:  docID,
			Term:        term,
			Explanation: explanation,
			Context:     strings.TrimSpace(in.Context),
			Source:      source,
			PageLabel:   pageLabel,
			Ctime:       now,
			Mtime:       now,
		}
		key := repo.TermKey(term)
		if i, ok := index[key]; ok {
			entries[i] = entry
			continue
		}
		index[key] = len(entries)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *DictionaryService) upsertTx(ctx context.Context, tx *db.Tx, entries []*model.DictionaryEntry) error {
	return s.dict.WithTx(tx).UpsertBatch(ctx, entries)
}

func derefEntries(entries []*model.DictionaryEntry) []model.DictionaryEntry {
	out := make([]model.DictionaryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, *e)
	}
	return out
}

func (s *DictionaryService) Detach(ctx context.Context, id string) (*model.DictionaryEntry, error) {
	return s.dict.Detach(ctx, id, timeutil.NowUnix())
}

func (s *DictionaryService) Delete(ctx context.Context, id string) error {
	return s.dict.Delete(ctx, id)
}
