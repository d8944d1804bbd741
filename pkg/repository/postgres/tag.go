package postgres

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"gorm.io/gorm"
)

type tagRepository struct {
	db *gorm.DB
}

// duplicateName maps the unique lower(name) index violation
func duplicateName(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return goerr.Wrap(model.ErrDuplicateTag, "tag name already exists", goerr.V(model.TagNameKey, name))
	}
	return nil
}

func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	created := *tag
	if created.ID == "" {
		created.ID = model.NewTagID()
	}
	ts := now()
	created.CreatedAt = ts
	created.UpdatedAt = ts

	if err := r.db.WithContext(ctx).Create(toTagRow(&created)).Error; err != nil {
		if dup := duplicateName(err, tag.Name); dup != nil {
			return nil, dup
		}
		return nil, goerr.Wrap(err, "failed to insert tag", goerr.V(model.TagNameKey, tag.Name))
	}
	return &created, nil
}

func (r *tagRepository) first(query *gorm.DB, key string, value any) (*model.Tag, error) {
	var row tagRow
	if err := query.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(key, value))
		}
		return nil, goerr.Wrap(err, "failed to get tag", goerr.V(key, value))
	}
	return fromTagRow(&row), nil
}

func (r *tagRepository) Get(ctx context.Context, id model.TagID) (*model.Tag, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", string(id)), model.TagIDKey, id)
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	query := r.db.WithContext(ctx).Where("lower(name) = ?", model.NormalizeTagName(name))
	return r.first(query, model.TagNameKey, name)
}

func (r *tagRepository) GetMany(ctx context.Context, ids []model.TagID) ([]*model.Tag, error) {
	if len(ids) == 0 {
		return []*model.Tag{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, string(id))
	}

	var rows []tagRow
	if err := r.db.WithContext(ctx).Where("id IN ?", keys).Order("lower(name), id").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to get tags")
	}

	result := make([]*model.Tag, 0, len(rows))
	for i := range rows {
		result = append(result, fromTagRow(&rows[i]))
	}
	return result, nil
}

type tagCountRow struct {
	Tag        tagRow `gorm:"embedded"`
	EntryCount int    `gorm:"column:entry_count"`
}

func (r *tagRepository) List(ctx context.Context) ([]*model.TagWithCount, error) {
	var rows []tagCountRow
	err := r.db.WithContext(ctx).Model(&tagRow{}).
		Select("tags.*, COUNT(entry_tags.entry_id) AS entry_count").
		Joins("LEFT JOIN entry_tags ON entry_tags.tag_id = tags.id").
		Group("tags.id").
		Order("lower(tags.name), tags.id").
		Scan(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags")
	}

	result := make([]*model.TagWithCount, 0, len(rows))
	for i := range rows {
		result = append(result, &model.TagWithCount{Tag: fromTagRow(&rows[i].Tag), EntryCount: rows[i].EntryCount})
	}
	return result, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	result := r.db.WithContext(ctx).Model(&tagRow{}).Where("id = ?", string(tag.ID)).Updates(map[string]any{
		"name":       tag.Name,
		"color":      tag.Color.String(),
		"updated_at": now(),
	})
	if result.Error != nil {
		if dup := duplicateName(result.Error, tag.Name); dup != nil {
			return nil, dup
		}
		return nil, goerr.Wrap(result.Error, "failed to update tag", goerr.V(model.TagIDKey, tag.ID))
	}
	if result.RowsAffected == 0 {
		return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, tag.ID))
	}

	return r.Get(ctx, tag.ID)
}

// Delete relies on the entry_tags foreign key to drop associations
func (r *tagRepository) Delete(ctx context.Context, id model.TagID) error {
	result := r.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&tagRow{})
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete tag", goerr.V(model.TagIDKey, id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, id))
	}
	return nil
}

type entryTagJoinRow struct {
	EntryID string `gorm:"column:entry_id"`
	Tag     tagRow `gorm:"embedded"`
}

func (r *tagRepository) ListByEntryIDs(ctx context.Context, entryIDs []model.EntryID) (map[model.EntryID][]*model.Tag, error) {
	result := make(map[model.EntryID][]*model.Tag, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(entryIDs))
	for _, id := range entryIDs {
		result[id] = []*model.Tag{}
		keys = append(keys, string(id))
	}

	var rows []entryTagJoinRow
	err := r.db.WithContext(ctx).Table("entry_tags").
		Select("entry_tags.entry_id, tags.*").
		Joins("JOIN tags ON tags.id = entry_tags.tag_id").
		Where("entry_tags.entry_id IN ?", keys).
		Order("lower(tags.name), tags.id").
		Scan(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags by entries")
	}

	for i := range rows {
		id := model.EntryID(rows[i].EntryID)
		result[id] = append(result[id], fromTagRow(&rows[i].Tag))
	}
	return result, nil
}
