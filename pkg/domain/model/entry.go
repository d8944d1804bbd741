package model

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// MaxContentLength is the maximum number of characters in Entry.Content
	MaxContentLength = 10000
	// MaxSourceLength is the maximum number of characters in Entry.Source
	MaxSourceLength = 2000
)

// EntryID is a UUID-based identifier for Entry
type EntryID string

// NewEntryID generates a new UUID v4 EntryID
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

func (x EntryID) String() string {
	return string(x)
}

// IsValid reports whether x is a well-formed UUID
func (x EntryID) IsValid() bool {
	_, err := uuid.Parse(string(x))
	return err == nil
}

// Entry is a single trivia record. Embedding is nil until generated and,
// when present, has unit L2 norm.
type Entry struct {
	ID        EntryID
	Content   string
	Source    string
	Embedding []float32
	TagIDs    []TagID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasEmbedding reports whether the entry carries an embedding vector
func (x *Entry) HasEmbedding() bool {
	return len(x.Embedding) > 0
}

// Copy returns a deep copy of the entry
func (x *Entry) Copy() *Entry {
	copied := *x
	if x.Embedding != nil {
		copied.Embedding = make([]float32, len(x.Embedding))
		copy(copied.Embedding, x.Embedding)
	}
	if x.TagIDs != nil {
		copied.TagIDs = make([]TagID, len(x.TagIDs))
		copy(copied.TagIDs, x.TagIDs)
	}
	return &copied
}

// ValidateEntryInput checks content and source against their limits
func ValidateEntryInput(content, source string) error {
	if strings.TrimSpace(content) == "" {
		return goerr.Wrap(ErrValidation, "content is required")
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return goerr.Wrap(ErrValidation, "content is too long",
			goerr.V("length", n), goerr.V("max", MaxContentLength))
	}
	if n := utf8.RuneCountInString(source); n > MaxSourceLength {
		return goerr.Wrap(ErrValidation, "source is too long",
			goerr.V("length", n), goerr.V("max", MaxSourceLength))
	}
	return nil
}

// EntryWithTags is an entry joined with its associated tags
type EntryWithTags struct {
	*Entry
	Tags []*Tag
}
