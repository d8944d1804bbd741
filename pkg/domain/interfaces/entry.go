package interfaces

import (
	"context"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// EntrySearchQuery filters entries by keyword and tags. An empty Keyword
// matches every entry; a non-empty TagIDs matches entries having ANY of them.
type EntrySearchQuery struct {
	Keyword string
	TagIDs  []model.TagID
	Limit   int
	Offset  int
}

// EntryRepository defines the interface for Entry data persistence
type EntryRepository interface {
	// Create persists a new entry. ID and timestamps are assigned when empty.
	Create(ctx context.Context, entry *model.Entry) (*model.Entry, error)

	// Get retrieves an entry by ID
	Get(ctx context.Context, id model.EntryID) (*model.Entry, error)

	// Update overwrites content, source and tags and refreshes UpdatedAt. The
	// stored embedding is kept; use UpdateEmbedding to change it.
	Update(ctx context.Context, entry *model.Entry) (*model.Entry, error)

	// Delete deletes an entry and its tag associations
	Delete(ctx context.Context, id model.EntryID) error

	// SetTags replaces the tag set of an entry
	SetTags(ctx context.Context, id model.EntryID, tagIDs []model.TagID) error

	// List returns entries ordered by UpdatedAt desc with the total count
	List(ctx context.Context, limit, offset int) ([]*model.Entry, int, error)

	// Recent returns the newest entries ordered by CreatedAt desc
	Recent(ctx context.Context, limit int) ([]*model.Entry, error)

	// Search returns matching entries ordered by CreatedAt desc with the total count
	Search(ctx context.Context, query EntrySearchQuery) ([]*model.Entry, int, error)

	// ListByTag returns entries carrying the tag ordered by CreatedAt desc
	ListByTag(ctx context.Context, tagID model.TagID) ([]*model.Entry, error)

	// ListWithoutEmbedding returns up to limit entries lacking an embedding,
	// oldest first. A limit of 0 means no limit.
	ListWithoutEmbedding(ctx context.Context, limit int) ([]*model.Entry, error)

	// UpdateEmbedding writes the embedding of an entry. A nil embedding clears it.
	// UpdatedAt is left untouched.
	UpdateEmbedding(ctx context.Context, id model.EntryID, embedding []float32) error

	// FindSimilar returns at most limit entries whose similarity to the unit
	// query vector is at least threshold, ordered by similarity desc then ID asc.
	FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.SimilarEntry, error)

	// CountEmbeddings returns the total number of entries and the number
	// carrying an embedding
	CountEmbeddings(ctx context.Context) (total int, embedded int, err error)
}
