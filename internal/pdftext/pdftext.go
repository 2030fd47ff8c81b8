package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyFile = errors.New("empty pdf file")

// Extractor turns a PDF binary into one plain-text string per page.
type Extractor interface {
	Extract(data []byte) ([]string, error)
}

type ledongthucExtractor struct{}

func New() Extractor {
	return &ledongthucExtractor{}
}

// Extract returns the page texts in page order. Pages without a content
// dictionary yield an empty string so indexes stay aligned with page numbers.
func (e *ledongthucExtractor) Extract(data []byte) (pages []string, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	total := reader.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}
