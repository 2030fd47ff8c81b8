package model

const (
	DictionarySourceExtract = "extract"
	DictionarySourceChat    = "chat"
	DictionarySourceManual  = "manual"
)

// DictionaryEntry with an empty DocumentID belongs to the cross-document dictionary.
type DictionaryEntry struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id,omitempty"`
	Term        string `json:"term"`
	TermKey     string `json:"-"`
	Explanation string `json:"explanation"`
	Context     string `json:"context,omitempty"`
	Source      string `json:"source"`
	PageLabel   string `json:"page_label,omitempty"`
	Ctime       int64  `json:"ctime"`
	Mtime       int64  `json:"mtime"`
}
