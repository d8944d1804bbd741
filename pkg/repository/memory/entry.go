package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

type entryRepository struct {
	store *store
}

func uniqueTagIDs(ids []model.TagID) []model.TagID {
	result := make([]model.TagID, 0, len(ids))
	seen := make(map[model.TagID]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}

// sortByCreatedAtDesc orders newest first with ID as tie breaker
func sortByCreatedAtDesc(entries []*model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func paginate(entries []*model.Entry, limit, offset int) []*model.Entry {
	if offset >= len(entries) {
		return []*model.Entry{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end]
}

func (r *entryRepository) Create(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	created := entry.Copy()
	if created.ID == "" {
		created.ID = model.NewEntryID()
	}
	if _, exists := r.store.entries[created.ID]; exists {
		return nil, goerr.New("entry already exists", goerr.V(model.EntryIDKey, created.ID))
	}
	created.TagIDs = uniqueTagIDs(created.TagIDs)
	created.CreatedAt = now
	created.UpdatedAt = now

	r.store.entries[created.ID] = created
	return created.Copy(), nil
}

func (r *entryRepository) Get(ctx context.Context, id model.EntryID) (*model.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entry, exists := r.store.entries[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}
	return entry.Copy(), nil
}

func (r *entryRepository) Update(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	existing, exists := r.store.entries[entry.ID]
	if !exists {
		return nil, goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, entry.ID))
	}

	updated := entry.Copy()
	updated.Embedding = existing.Copy().Embedding
	updated.TagIDs = uniqueTagIDs(updated.TagIDs)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	r.store.entries[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *entryRepository) Delete(ctx context.Context, id model.EntryID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.entries[id]; !exists {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}

	delete(r.store.entries, id)
	return nil
}

func (r *entryRepository) SetTags(ctx context.Context, id model.EntryID, tagIDs []model.TagID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, exists := r.store.entries[id]
	if !exists {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}

	entry.TagIDs = uniqueTagIDs(tagIDs)
	return nil
}

func (r *entryRepository) snapshot(match func(*model.Entry) bool) []*model.Entry {
	result := make([]*model.Entry, 0, len(r.store.entries))
	for _, e := range r.store.entries {
		if match == nil || match(e) {
			result = append(result, e.Copy())
		}
	}
	return result
}

func (r *entryRepository) List(ctx context.Context, limit, offset int) ([]*model.Entry, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := r.snapshot(nil)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})

	return paginate(all, limit, offset), len(all), nil
}

func (r *entryRepository) Recent(ctx context.Context, limit int) ([]*model.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := r.snapshot(nil)
	sortByCreatedAtDesc(all)
	return paginate(all, limit, 0), nil
}

func (r *entryRepository) Search(ctx context.Context, query interfaces.EntrySearchQuery) ([]*model.Entry, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	keyword := strings.ToLower(query.Keyword)
	matched := r.snapshot(func(e *model.Entry) bool {
		if keyword != "" && !strings.Contains(strings.ToLower(e.Content), keyword) {
			return false
		}
		if len(query.TagIDs) == 0 {
			return true
		}
		for _, id := range query.TagIDs {
			if slices.Contains(e.TagIDs, id) {
				return true
			}
		}
		return false
	})
	sortByCreatedAtDesc(matched)

	return paginate(matched, query.Limit, query.Offset), len(matched), nil
}

func (r *entryRepository) ListByTag(ctx context.Context, tagID model.TagID) ([]*model.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := r.snapshot(func(e *model.Entry) bool {
		return slices.Contains(e.TagIDs, tagID)
	})
	sortByCreatedAtDesc(result)
	return result, nil
}

func (r *entryRepository) ListWithoutEmbedding(ctx context.Context, limit int) ([]*model.Entry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := r.snapshot(func(e *model.Entry) bool {
		return !e.HasEmbedding()
	})
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return paginate(result, limit, 0), nil
}

func (r *entryRepository) UpdateEmbedding(ctx context.Context, id model.EntryID, embedding []float32) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry, exists := r.store.entries[id]
	if !exists {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}

	if embedding == nil {
		entry.Embedding = nil
		return nil
	}
	entry.Embedding = make([]float32, len(embedding))
	copy(entry.Embedding, embedding)
	return nil
}

func (r *entryRepository) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.SimilarEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var candidates []*model.SimilarEntry
	for _, e := range r.store.entries {
		if len(e.Embedding) != len(embedding) {
			continue
		}
		score, err := model.CosineSimilarity(embedding, e.Embedding)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to score entry", goerr.V(model.EntryIDKey, e.ID))
		}
		if score < threshold {
			continue
		}
		candidates = append(candidates, &model.SimilarEntry{Entry: e.Copy(), Similarity: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		return candidates[i].Entry.ID < candidates[j].Entry.ID
	})

	if limit < len(candidates) {
		candidates = candidates[:limit]
	}
	if candidates == nil {
		candidates = []*model.SimilarEntry{}
	}
	return candidates, nil
}

func (r *entryRepository) CountEmbeddings(ctx context.Context) (int, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	embedded := 0
	for _, e := range r.store.entries {
		if e.HasEmbedding() {
			embedded++
		}
	}
	return len(r.store.entries), embedded, nil
}
