package model

type Note struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}

type NoteImage struct {
	ID          string `json:"id"`
	NoteID      string `json:"note_id"`
	DocumentID  string `json:"document_id"`
	FileKey     string `json:"file_key"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Ctime       int64  `json:"ctime"`
}
