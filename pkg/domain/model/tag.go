package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/types"
)

// MaxTagNameLength is the maximum number of characters in a tag name
const MaxTagNameLength = 50

// TagID is a UUID-based identifier for Tag
type TagID string

// NewTagID generates a new UUID v4 TagID
func NewTagID() TagID {
	return TagID(uuid.New().String())
}

func (x TagID) String() string {
	return string(x)
}

// IsValid reports whether x is a well-formed UUID
func (x TagID) IsValid() bool {
	_, err := uuid.Parse(string(x))
	return err == nil
}

// Tag is a named, colored label attachable to many entries
type Tag struct {
	ID        TagID
	Name      string
	Color     types.Color
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TagWithCount is a tag with the number of entries it is attached to
type TagWithCount struct {
	*Tag
	EntryCount int
}

// NormalizeTagName returns the key used for case-insensitive uniqueness
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateTagName checks a trimmed tag name
func ValidateTagName(name string) error {
	if name == "" {
		return goerr.Wrap(ErrValidation, "tag name is required")
	}
	if n := utf8.RuneCountInString(name); n > MaxTagNameLength {
		return goerr.Wrap(ErrValidation, "tag name is too long",
			goerr.V("length", n), goerr.V("max", MaxTagNameLength))
	}
	return nil
}
