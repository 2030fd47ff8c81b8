package model

const (
	ExtractStatePending = 0
	ExtractStateOK      = 1
	ExtractStateFailed  = 2
)

type Document struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	FileKey      string `json:"file_key"`
	Size         int64  `json:"size"`
	PageCount    int    `json:"page_count"`
	ExtractState int    `json:"extract_state"`
	ExtractError string `json:"extract_error,omitempty"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}

type DocumentPage struct {
	DocumentID string `json:"document_id"`
	PageNo     int    `json:"page_no"`
	Content    string `json:"content"`
}
