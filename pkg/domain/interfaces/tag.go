package interfaces

import (
	"context"

	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// TagRepository defines the interface for Tag data persistence
type TagRepository interface {
	// Create persists a new tag. A case-insensitive name collision returns
	// model.ErrDuplicateTag.
	Create(ctx context.Context, tag *model.Tag) (*model.Tag, error)

	// Get retrieves a tag by ID
	Get(ctx context.Context, id model.TagID) (*model.Tag, error)

	// GetByName retrieves a tag by name, ignoring case
	GetByName(ctx context.Context, name string) (*model.Tag, error)

	// GetMany retrieves the tags that exist among ids. Unknown IDs are skipped.
	GetMany(ctx context.Context, ids []model.TagID) ([]*model.Tag, error)

	// List returns every tag ordered by name asc with its entry count
	List(ctx context.Context) ([]*model.TagWithCount, error)

	// Update overwrites name and color. Renaming onto another tag's name
	// returns model.ErrDuplicateTag.
	Update(ctx context.Context, tag *model.Tag) (*model.Tag, error)

	// Delete deletes a tag and removes it from every entry
	Delete(ctx context.Context, id model.TagID) error

	// ListByEntryIDs returns the tags of each entry in one batched lookup.
	// Every requested ID is present in the result, possibly with no tags.
	ListByEntryIDs(ctx context.Context, entryIDs []model.EntryID) (map[model.EntryID][]*model.Tag, error)
}
