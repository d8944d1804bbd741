package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

type tagRepository struct {
	store *store
}

func copyTag(t *model.Tag) *model.Tag {
	copied := *t
	return &copied
}

// findByName must be called with the lock held
func (r *tagRepository) findByName(name string) *model.Tag {
	key := model.NormalizeTagName(name)
	for _, t := range r.store.tags {
		if model.NormalizeTagName(t.Name) == key {
			return t
		}
	}
	return nil
}

func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing := r.findByName(tag.Name); existing != nil {
		return nil, goerr.Wrap(model.ErrDuplicateTag, "tag name already exists",
			goerr.V(model.TagNameKey, tag.Name), goerr.V(model.TagIDKey, existing.ID))
	}

	now := time.Now().UTC()
	created := copyTag(tag)
	if created.ID == "" {
		created.ID = model.NewTagID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	r.store.tags[created.ID] = created
	return copyTag(created), nil
}

func (r *tagRepository) Get(ctx context.Context, id model.TagID) (*model.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tag, exists := r.store.tags[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, id))
	}
	return copyTag(tag), nil
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	tag := r.findByName(name)
	if tag == nil {
		return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagNameKey, name))
	}
	return copyTag(tag), nil
}

func (r *tagRepository) GetMany(ctx context.Context, ids []model.TagID) ([]*model.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]*model.Tag, 0, len(ids))
	seen := make(map[model.TagID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if tag, exists := r.store.tags[id]; exists {
			result = append(result, copyTag(tag))
		}
	}
	return result, nil
}

func (r *tagRepository) List(ctx context.Context) ([]*model.TagWithCount, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[model.TagID]int, len(r.store.tags))
	for _, e := range r.store.entries {
		for _, id := range e.TagIDs {
			counts[id]++
		}
	}

	result := make([]*model.TagWithCount, 0, len(r.store.tags))
	for _, t := range r.store.tags {
		result = append(result, &model.TagWithCount{Tag: copyTag(t), EntryCount: counts[t.ID]})
	}
	sort.Slice(result, func(i, j int) bool {
		ni, nj := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if ni != nj {
			return ni < nj
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, exists := r.store.tags[tag.ID]
	if !exists {
		return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, tag.ID))
	}
	if other := r.findByName(tag.Name); other != nil && other.ID != tag.ID {
		return nil, goerr.Wrap(model.ErrDuplicateTag, "tag name already exists",
			goerr.V(model.TagNameKey, tag.Name), goerr.V(model.TagIDKey, other.ID))
	}

	updated := copyTag(tag)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.store.tags[updated.ID] = updated
	return copyTag(updated), nil
}

func (r *tagRepository) Delete(ctx context.Context, id model.TagID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.tags[id]; !exists {
		return goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, id))
	}

	delete(r.store.tags, id)
	for _, e := range r.store.entries {
		e.TagIDs = slices.DeleteFunc(e.TagIDs, func(t model.TagID) bool { return t == id })
	}
	return nil
}

func (r *tagRepository) ListByEntryIDs(ctx context.Context, entryIDs []model.EntryID) (map[model.EntryID][]*model.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make(map[model.EntryID][]*model.Tag, len(entryIDs))
	for _, entryID := range entryIDs {
		tags := []*model.Tag{}
		if e, exists := r.store.entries[entryID]; exists {
			for _, tagID := range e.TagIDs {
				if t, ok := r.store.tags[tagID]; ok {
					tags = append(tags, copyTag(t))
				}
			}
		}
		result[entryID] = tags
	}
	return result, nil
}
