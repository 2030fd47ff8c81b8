package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notemate/internal/ai"
	"github.com/xxxsen/notemate/internal/db"
	"github.com/xxxsen/notemate/internal/model"
	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
	"github.com/xxxsen/notemate/internal/repo"
)

// ChatService keeps two independent conversations per document: free Q&A
// and term explanation. Messages are stored only after a successful reply.
type ChatService struct {
	conn    *db.DB
	docs    *repo.DocumentRepo
	pages   *repo.PageRepo
	chats   *repo.ChatRepo
	dict    *DictionaryService
	manager *ai.Manager
}

func NewChatService(conn *db.DB, docs *repo.DocumentRepo, pages *repo.PageRepo, chats *repo.ChatRepo, dict *DictionaryService, manager *ai.Manager) *ChatService {
	return &ChatService{conn: conn, docs: docs, pages: pages, chats: chats, dict: dict, manager: manager}
}

type TermChatResult struct {
	Messages []model.ChatMessage     `json:"messages"`
	Items    []ai.TermItem           `json:"items"`
	Entries  []model.DictionaryEntry `json:"entries,omitempty"`
}

func (s *ChatService) List(ctx context.Context, docID, category string) ([]model.ChatMessage, error) {
	if err := s.check(ctx, docID, category); err != nil {
		return nil, err
	}
	items, err := s.chats.ListByCategory(ctx, docID, category)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.ChatMessage{}
	}
	return items, nil
}

// SendFree answers one free-chat turn and returns the stored user and
// assistant messages.
func (s *ChatService) SendFree(ctx context.Context, docID, message string) ([]model.ChatMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", appErr.ErrInvalid)
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	lecture, err := s.lectureText(ctx, doc)
	if err != nil {
		return nil, err
	}
	prior, err := s.chats.ListRecent(ctx, docID, model.ChatCategoryFree, s.manager.MaxHistory())
	if err != nil {
		return nil, err
	}
	history := make([]ai.Message, 0, len(prior))
	for _, msg := range prior {
		history = append(history, ai.Message{Role: msg.Role, Content: msg.Content})
	}
	asked := time.Now()
	reply, err := s.manager.Chat(ctx, lecture, history, message)
	if err != nil {
		logutil.GetLogger(ctx).Warn("free chat failed", zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}
	return s.store(ctx, docID, model.ChatCategoryFree, asked, message, reply)
}

// ExplainTerms asks the model to explain terms and keeps the exchange in the
// term category. With promote the parsed explanations also go into the
// document dictionary, in the same transaction as the exchange.
func (s *ChatService) ExplainTerms(ctx context.Context, docID string, terms []string, promote bool) (*TermChatResult, error) {
	cleaned := cleanTerms(terms)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one term is required", appErr.ErrInvalid)
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	lecture, err := s.lectureText(ctx, doc)
	if err != nil {
		return nil, err
	}
	asked := time.Now()
	raw, items, err := s.manager.ExplainTerms(ctx, lecture, cleaned)
	if err != nil {
		logutil.GetLogger(ctx).Warn("term explanation failed", zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}
	var entries []*model.DictionaryEntry
	if promote && len(items) > 0 {
		inputs := make([]EntryInput, 0, len(items))
		for _, item := range items {
			inputs = append(inputs, EntryInput{Term: item.Term, Explanation: item.Explanation, Context: item.Context})
		}
		if entries, err = buildEntries(docID, model.DictionarySourceChat, PageRange{}.Label(), inputs); err != nil {
			return nil, err
		}
	}
	user, assistant := newExchange(docID, model.ChatCategoryTerm, asked, "Explain: "+strings.Join(cleaned, ", "), raw)
	err = s.conn.WithTx(ctx, func(tx *db.Tx) error {
		if err := s.chats.WithTx(tx).Append(ctx, user, assistant); err != nil {
			return err
		}
		return s.dict.upsertTx(ctx, tx, entries)
	})
	if err != nil {
		return nil, err
	}
	result := &TermChatResult{Messages: []model.ChatMessage{*user, *assistant}, Items: items}
	if len(entries) > 0 {
		result.Entries = derefEntries(entries)
	}
	return result, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, docID, category, msgID string) error {
	if err := s.check(ctx, docID, category); err != nil {
		return err
	}
	return s.chats.Delete(ctx, docID, category, msgID)
}

func (s *ChatService) Clear(ctx context.Context, docID, category string) (int64, error) {
	if err := s.check(ctx, docID, category); err != nil {
		return 0, err
	}
	return s.chats.DeleteByCategory(ctx, docID, category)
}

func (s *ChatService) check(ctx context.Context, docID, category string) error {
	if !model.IsChatCategory(category) {
		return fmt.Errorf("%w: unknown chat category %q", appErr.ErrInvalid, category)
	}
	_, err := s.docs.GetByID(ctx, docID)
	return err
}

func (s *ChatService) lectureText(ctx context.Context, doc *model.Document) (string, error) {
	if doc.ExtractState != model.ExtractStateOK {
		return "", nil
	}
	return loadText(ctx, s.pages, doc.ID, PageRange{})
}

func (s *ChatService) store(ctx context.Context, docID, category string, asked time.Time, question, answer string) ([]model.ChatMessage, error) {
	user, assistant := newExchange(docID, category, asked, question, answer)
	if err := s.chats.Append(ctx, user, assistant); err != nil {
		return nil, err
	}
	return []model.ChatMessage{*user, *assistant}, nil
}

func newExchange(docID, category string, asked time.Time, question, answer string) (*model.ChatMessage, *model.ChatMessage) {
	seq := time.Now().UnixNano()
	user := &model.ChatMessage{
		ID:         newID(),
		DocumentID: docID,
		Category:   category,
		Role:       model.ChatRoleUser,
		Content:    question,
		Ctime:      asked.UnixMilli(),
		Seq:        seq,
	}
	assistant := &model.ChatMessage{
		ID:         newID(),
		DocumentID: docID,
		Category:   category,
		Role:       model.ChatRoleAssistant,
		Content:    answer,
		Ctime:      time.Now().UnixMilli(),
		Seq:        seq + 1,
	}
	if assistant.Ctime < user.Ctime {
		assistant.Ctime = user.Ctime
	}
	return user, assistant
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
	}
	return out
}
