package model

const (
	ChatCategoryFree = "free"
	ChatCategoryTerm = "term"

	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Category   string `json:"category"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	Ctime      int64  `json:"ctime"`
	Seq        int64  `json:"-"`
}

func IsChatCategory(category string) bool {
	return category == ChatCategoryFree || category == ChatCategoryTerm
}
