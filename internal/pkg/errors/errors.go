package errors

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalid               = errors.New("invalid")
	ErrConflict              = errors.New("conflict")
	ErrTooMany               = errors.New("too many requests")
	ErrInternal              = errors.New("internal")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrExtractionUnavailable = errors.New("text extraction unavailable")
	ErrServiceUnavailable    = errors.New("ai service unavailable")
	ErrParse                 = errors.New("malformed ai response")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
