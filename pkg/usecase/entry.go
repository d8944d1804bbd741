package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

const (
	// DefaultPerPage matches the grid size of the browse screen
	DefaultPerPage = 48
	// MaxPerPage caps a single page
	MaxPerPage = 200
	// DefaultRecentLimit is the number of entries on the home screen
	DefaultRecentLimit = 10
)

// EntryInput carries the user-editable fields of an entry
type EntryInput struct {
	Content string
	Source  string
	TagIDs  []model.TagID
}

// EntryPage is one page of entries with paging metadata
type EntryPage struct {
	Entries    []*model.EntryWithTags
	Total      int
	Page       int
	PerPage    int
	TotalPages int
}

type EntryUseCase struct {
	repo          interfaces.Repository
	embedding     *EmbeddingUseCase
	autoEmbedding bool
	dispatch      Dispatcher
}

func NewEntryUseCase(repo interfaces.Repository, embedding *EmbeddingUseCase, autoEmbedding bool, dispatch Dispatcher) *EntryUseCase {
	return &EntryUseCase{
		repo:          repo,
		embedding:     embedding,
		autoEmbedding: autoEmbedding && embedding != nil && embedding.generator.Available(),
		dispatch:      dispatch,
	}
}

// checkTags fails with ErrValidation when any tag ID is unknown
func (uc *EntryUseCase) checkTags(ctx context.Context, tagIDs []model.TagID) ([]model.TagID, error) {
	unique := make([]model.TagID, 0, len(tagIDs))
	seen := make(map[model.TagID]bool, len(tagIDs))
	var malformed []model.TagID
	for _, id := range tagIDs {
		if !id.IsValid() {
			malformed = append(malformed, id)
			continue
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(malformed) > 0 {
		return nil, goerr.Wrap(model.ErrValidation, "unknown tag", goerr.V("tag_ids", malformed))
	}
	if len(unique) == 0 {
		return unique, nil
	}

	tags, err := uc.repo.Tag().GetMany(ctx, unique)
	if err != nil {
		return nil, storeError(err, "failed to look up tags")
	}
	if len(tags) != len(unique) {
		found := make(map[model.TagID]bool, len(tags))
		for _, t := range tags {
			found[t.ID] = true
		}
		var missing []model.TagID
		for _, id := range unique {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, goerr.Wrap(model.ErrValidation, "unknown tag", goerr.V("tag_ids", missing))
	}
	return unique, nil
}

// withTags joins entries with their tags in one batched lookup
func (uc *EntryUseCase) withTags(ctx context.Context, entries []*model.Entry) ([]*model.EntryWithTags, error) {
	result := make([]*model.EntryWithTags, 0, len(entries))
	if len(entries) == 0 {
		return result, nil
	}

	ids := make([]model.EntryID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	tags, err := uc.repo.Tag().ListByEntryIDs(ctx, ids)
	if err != nil {
		return nil, storeError(err, "failed to load entry tags")
	}

	for _, e := range entries {
		t := tags[e.ID]
		if t == nil {
			t = []*model.Tag{}
		}
		result = append(result, &model.EntryWithTags{Entry: e, Tags: t})
	}
	return result, nil
}

func (uc *EntryUseCase) scheduleEmbedding(ctx context.Context, entry *model.Entry) {
	if !uc.autoEmbedding {
		return
	}
	id, content := entry.ID, entry.Content
	uc.dispatch(ctx, func(ctx context.Context) error {
		return uc.embedding.GenerateForEntry(ctx, id, content)
	})
}

func (uc *EntryUseCase) CreateEntry(ctx context.Context, input EntryInput) (*model.EntryWithTags, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := model.ValidateEntryInput(input.Content, input.Source); err != nil {
		return nil, err
	}
	tagIDs, err := uc.checkTags(ctx, input.TagIDs)
	if err != nil {
		return nil, err
	}

	created, err := uc.repo.Entry().Create(ctx, &model.Entry{
		Content: input.Content,
		Source:  input.Source,
		TagIDs:  tagIDs,
	})
	if err != nil {
		return nil, storeError(err, "failed to create entry")
	}

	uc.scheduleEmbedding(ctx, created)

	result, err := uc.withTags(ctx, []*model.Entry{created})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}

func (uc *EntryUseCase) GetEntry(ctx context.Context, id model.EntryID) (*model.EntryWithTags, error) {
	if err := checkEntryID(id); err != nil {
		return nil, err
	}
	entry, err := uc.repo.Entry().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to get entry", goerr.V(model.EntryIDKey, id))
	}

	result, err := uc.withTags(ctx, []*model.Entry{entry})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}

// UpdateEntry replaces content, source and tags. A content change drops
// the stale embedding.
func (uc *EntryUseCase) UpdateEntry(ctx context.Context, id model.EntryID, input EntryInput) (*model.EntryWithTags, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if err := checkEntryID(id); err != nil {
		return nil, err
	}
	if err := model.ValidateEntryInput(input.Content, input.Source); err != nil {
		return nil, err
	}
	tagIDs, err := uc.checkTags(ctx, input.TagIDs)
	if err != nil {
		return nil, err
	}

	existing, err := uc.repo.Entry().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to get entry", goerr.V(model.EntryIDKey, id))
	}

	contentChanged := existing.Content != input.Content
	entry := existing.Copy()
	entry.Content = input.Content
	entry.Source = input.Source
	entry.TagIDs = tagIDs

	updated, err := uc.repo.Entry().Update(ctx, entry)
	if err != nil {
		return nil, storeError(err, "failed to update entry", goerr.V(model.EntryIDKey, id))
	}

	if contentChanged {
		if err := uc.repo.Entry().UpdateEmbedding(ctx, id, nil); err != nil {
			return nil, storeError(err, "failed to clear stale embedding", goerr.V(model.EntryIDKey, id))
		}
		updated.Embedding = nil
		uc.scheduleEmbedding(ctx, updated)
	}

	result, err := uc.withTags(ctx, []*model.Entry{updated})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}

func (uc *EntryUseCase) DeleteEntry(ctx context.Context, id model.EntryID) error {
	if _, err := requireUser(ctx); err != nil {
		return err
	}
	if err := checkEntryID(id); err != nil {
		return err
	}

	if err := uc.repo.Entry().Delete(ctx, id); err != nil {
		return storeError(err, "failed to delete entry", goerr.V(model.EntryIDKey, id))
	}
	return nil
}

// ListEntries returns a 1-based page ordered by UpdatedAt desc. Zero
// arguments fall back to page 1 and DefaultPerPage.
func (uc *EntryUseCase) ListEntries(ctx context.Context, page, perPage int) (*EntryPage, error) {
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if page < 0 {
		return nil, goerr.Wrap(model.ErrValidation, "page must be positive", goerr.V(PageKey, page))
	}
	if perPage < 0 || perPage > MaxPerPage {
		return nil, goerr.Wrap(model.ErrValidation, "per_page is out of range",
			goerr.V(PerPageKey, perPage), goerr.V("max", MaxPerPage))
	}

	entries, total, err := uc.repo.Entry().List(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, storeError(err, "failed to list entries", goerr.V(PageKey, page), goerr.V(PerPageKey, perPage))
	}

	withTags, err := uc.withTags(ctx, entries)
	if err != nil {
		return nil, err
	}

	return &EntryPage{
		Entries:    withTags,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// RecentEntries returns the newest entries by CreatedAt
func (uc *EntryUseCase) RecentEntries(ctx context.Context, limit int) ([]*model.EntryWithTags, error) {
	if limit == 0 {
		limit = DefaultRecentLimit
	}
	if limit < 0 || limit > MaxPerPage {
		return nil, goerr.Wrap(model.ErrValidation, "limit is out of range", goerr.V(LimitKey, limit))
	}

	entries, err := uc.repo.Entry().Recent(ctx, limit)
	if err != nil {
		return nil, storeError(err, "failed to list recent entries")
	}
	return uc.withTags(ctx, entries)
}

// SearchEntries matches content case-insensitively and, when tagIDs is
// non-empty, keeps entries having any of them. With neither a keyword nor
// a tag nothing is returned.
func (uc *EntryUseCase) SearchEntries(ctx context.Context, keyword string, tagIDs []model.TagID) ([]*model.EntryWithTags, error) {
	keyword = strings.TrimSpace(keyword)

	valid := make([]model.TagID, 0, len(tagIDs))
	for _, id := range tagIDs {
		if id.IsValid() {
			valid = append(valid, id)
		}
	}
	// malformed tag IDs match no entry
	if (len(tagIDs) > 0 && len(valid) == 0) || (keyword == "" && len(valid) == 0) {
		return []*model.EntryWithTags{}, nil
	}

	entries, _, err := uc.repo.Entry().Search(ctx, interfaces.EntrySearchQuery{
		Keyword: keyword,
		TagIDs:  valid,
	})
	if err != nil {
		return nil, storeError(err, "failed to search entries")
	}
	return uc.withTags(ctx, entries)
}

// ListEntriesByTagName resolves the tag, then returns its entries newest first
func (uc *EntryUseCase) ListEntriesByTagName(ctx context.Context, name string) (*model.Tag, []*model.EntryWithTags, error) {
	tag, err := uc.repo.Tag().GetByName(ctx, name)
	if err != nil {
		return nil, nil, storeError(err, "failed to get tag", goerr.V(model.TagNameKey, name))
	}

	entries, err := uc.repo.Entry().ListByTag(ctx, tag.ID)
	if err != nil {
		return nil, nil, storeError(err, "failed to list entries by tag", goerr.V(model.TagIDKey, tag.ID))
	}

	withTags, err := uc.withTags(ctx, entries)
	if err != nil {
		return nil, nil, err
	}
	return tag, withTags, nil
}
