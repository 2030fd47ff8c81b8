package service

import (
	"fmt"
	"strconv"
	"strings"

	appErr "github.com/xxxsen/notemate/internal/pkg/errors"
)

// PageRange is an inclusive, 1-based page selection. The zero value selects
// every page.
type PageRange struct {
	From int
	To   int
}

func (r PageRange) All() bool {
	return r.From == 0 && r.To == 0
}

// Label renders the range the way it is stored on dictionary entries:
// "all", "3" or "2-4".
func (r PageRange) Label() string {
	switch {
	case r.All():
		return "all"
	case r.From == r.To:
		return strconv.Itoa(r.From)
	default:
		return fmt.Sprintf("%d-%d", r.From, r.To)
	}
}

// ParsePageRange reads the page/from/to query values. page wins when set;
// "all" or empty values select everything.
func ParsePageRange(page, from, to string) (PageRange, error) {
	page = strings.TrimSpace(page)
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if page != "" && !strings.EqualFold(page, "all") {
		n, err := parsePageNumber(page)
		if err != nil {
			return PageRange{}, err
		}
		return PageRange{From: n, To: n}, nil
	}
	if from == "" && to == "" {
		return PageRange{}, nil
	}
	var r PageRange
	var err error
	if from != "" {
		if r.From, err = parsePageNumber(from); err != nil {
			return PageRange{}, err
		}
	}
	if to != "" {
		if r.To, err = parsePageNumber(to); err != nil {
			return PageRange{}, err
		}
	}
	if r.From == 0 {
		r.From = 1
	}
	if r.To != 0 && r.To < r.From {
		return PageRange{}, fmt.Errorf("%w: page range end before start", appErr.ErrInvalid)
	}
	return r, nil
}

// resolve checks the range against the document and fills an open end.
func (r PageRange) resolve(pageCount int) (PageRange, error) {
	if r.All() {
		return r, nil
	}
	if r.To == 0 {
		r.To = pageCount
	}
	if r.From < 1 || r.To > pageCount || r.From > r.To {
		return PageRange{}, fmt.Errorf("%w: page out of range (document has %d pages)", appErr.ErrInvalid, pageCount)
	}
	return r, nil
}

func parsePageNumber(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: bad page number %q", appErr.ErrInvalid, v)
	}
	return n, nil
}
