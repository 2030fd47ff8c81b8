package service

import (
	"strings"

	"github.com/google/uuid"
)

// newID returns a random UUID in 32-character hex form.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
