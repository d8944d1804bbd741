package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"gorm.io/gorm"
)

type entryRepository struct {
	db *gorm.DB
}

// now is truncated to the precision of a timestamptz column
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *entryRepository) tagIDsOf(db *gorm.DB, ids []string) (map[string][]model.TagID, error) {
	result := make(map[string][]model.TagID, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var links []entryTagRow
	if err := db.Where("entry_id IN ?", ids).Order("tag_id").Find(&links).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to load entry tags")
	}
	for _, link := range links {
		result[link.EntryID] = append(result[link.EntryID], model.TagID(link.TagID))
	}
	return result, nil
}

func (r *entryRepository) toEntries(db *gorm.DB, rows []entryRow) ([]*model.Entry, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	tagIDs, err := r.tagIDsOf(db, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]*model.Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, fromEntryRow(&rows[i], tagIDs[rows[i].ID]))
	}
	return entries, nil
}

func (r *entryRepository) Create(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	created := entry.Copy()
	if created.ID == "" {
		created.ID = model.NewEntryID()
	}
	ts := now()
	created.CreatedAt = ts
	created.UpdatedAt = ts

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(toEntryRow(created)).Error; err != nil {
			return goerr.Wrap(err, "failed to insert entry", goerr.V(model.EntryIDKey, created.ID))
		}
		if links := uniqueTagRows(created.ID, created.TagIDs); len(links) > 0 {
			if err := tx.Create(&links).Error; err != nil {
				return goerr.Wrap(err, "failed to insert entry tags", goerr.V(model.EntryIDKey, created.ID))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, created.ID)
}

func (r *entryRepository) Get(ctx context.Context, id model.EntryID) (*model.Entry, error) {
	db := r.db.WithContext(ctx)

	var row entryRow
	if err := db.Where("id = ?", string(id)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get entry", goerr.V(model.EntryIDKey, id))
	}

	entries, err := r.toEntries(db, []entryRow{row})
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

func (r *entryRepository) Update(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	row := toEntryRow(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entryRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"content":    row.Content,
			"source":     row.Source,
			"updated_at": now(),
		})
		if result.Error != nil {
			return goerr.Wrap(result.Error, "failed to update entry", goerr.V(model.EntryIDKey, entry.ID))
		}
		if result.RowsAffected == 0 {
			return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, entry.ID))
		}
		return replaceTags(tx, entry.ID, entry.TagIDs)
	})
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, entry.ID)
}

func replaceTags(tx *gorm.DB, id model.EntryID, tagIDs []model.TagID) error {
	if err := tx.Where("entry_id = ?", string(id)).Delete(&entryTagRow{}).Error; err != nil {
		return goerr.Wrap(err, "failed to clear entry tags", goerr.V(model.EntryIDKey, id))
	}
	if links := uniqueTagRows(id, tagIDs); len(links) > 0 {
		if err := tx.Create(&links).Error; err != nil {
			return goerr.Wrap(err, "failed to insert entry tags", goerr.V(model.EntryIDKey, id))
		}
	}
	return nil
}

func (r *entryRepository) Delete(ctx context.Context, id model.EntryID) error {
	result := r.db.WithContext(ctx).Where("id = ?", string(id)).Delete(&entryRow{})
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete entry", goerr.V(model.EntryIDKey, id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}
	return nil
}

func (r *entryRepository) SetTags(ctx context.Context, id model.EntryID, tagIDs []model.TagID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&entryRow{}).Where("id = ?", string(id)).Count(&count).Error; err != nil {
			return goerr.Wrap(err, "failed to check entry", goerr.V(model.EntryIDKey, id))
		}
		if count == 0 {
			return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
		}
		return replaceTags(tx, id, tagIDs)
	})
}

func (r *entryRepository) find(ctx context.Context, query *gorm.DB) ([]*model.Entry, error) {
	var rows []entryRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to query entries")
	}
	return r.toEntries(r.db.WithContext(ctx), rows)
}

// embeddingValue maps a missing vector to SQL NULL
func embeddingValue(v *pgvector.Vector) any {
	if v == nil {
		return gorm.Expr("NULL")
	}
	return v
}

func (r *entryRepository) List(ctx context.Context, limit, offset int) ([]*model.Entry, int, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&entryRow{}).Count(&total).Error; err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count entries")
	}

	query := db.Model(&entryRow{}).Order("updated_at DESC, id ASC").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	entries, err := r.find(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return entries, int(total), nil
}

func (r *entryRepository) Recent(ctx context.Context, limit int) ([]*model.Entry, error) {
	query := r.db.WithContext(ctx).Model(&entryRow{}).Order("created_at DESC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(ctx, query)
}

func (r *entryRepository) Search(ctx context.Context, q interfaces.EntrySearchQuery) ([]*model.Entry, int, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Model(&entryRow{})
		if q.Keyword != "" {
			db = db.Where("content ILIKE ?", "%"+escapeLike(q.Keyword)+"%")
		}
		if len(q.TagIDs) > 0 {
			ids := make([]string, 0, len(q.TagIDs))
			for _, id := range q.TagIDs {
				ids = append(ids, string(id))
			}
			db = db.Where("id IN (SELECT entry_id FROM entry_tags WHERE tag_id IN ?)", ids)
		}
		return db
	}

	db := r.db.WithContext(ctx)
	var total int64
	if err := filter(db).Count(&total).Error; err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count search results")
	}

	query := filter(db).Order("created_at DESC, id ASC").Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	entries, err := r.find(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return entries, int(total), nil
}

func (r *entryRepository) ListByTag(ctx context.Context, tagID model.TagID) ([]*model.Entry, error) {
	query := r.db.WithContext(ctx).Model(&entryRow{}).
		Where("id IN (SELECT entry_id FROM entry_tags WHERE tag_id = ?)", string(tagID)).
		Order("created_at DESC, id ASC")
	return r.find(ctx, query)
}

func (r *entryRepository) ListWithoutEmbedding(ctx context.Context, limit int) ([]*model.Entry, error) {
	query := r.db.WithContext(ctx).Model(&entryRow{}).
		Where("embedding IS NULL").
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(ctx, query)
}

func (r *entryRepository) UpdateEmbedding(ctx context.Context, id model.EntryID, embedding []float32) error {
	var value *pgvector.Vector
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		value = &v
	}

	result := r.db.WithContext(ctx).Model(&entryRow{}).Where("id = ?", string(id)).
		UpdateColumn("embedding", embeddingValue(value))
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to update embedding", goerr.V(model.EntryIDKey, id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}
	return nil
}

type similarRow struct {
	Entry      entryRow `gorm:"embedded"`
	Similarity float64  `gorm:"column:similarity"`
}

// FindSimilar uses the negative inner product operator. Stored and query
// vectors are unit length, so the inner product equals cosine similarity.
func (r *entryRepository) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.SimilarEntry, error) {
	db := r.db.WithContext(ctx)
	query := pgvector.NewVector(embedding)

	var rows []similarRow
	err := db.Model(&entryRow{}).
		Select("entries.*, -(embedding <#> ?) AS similarity", query).
		Where("embedding IS NOT NULL").
		Where("-(embedding <#> ?) >= ?", query, threshold).
		Order("similarity DESC, id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run vector search")
	}

	entryRows := make([]entryRow, 0, len(rows))
	for _, row := range rows {
		entryRows = append(entryRows, row.Entry)
	}
	entries, err := r.toEntries(db, entryRows)
	if err != nil {
		return nil, err
	}

	result := make([]*model.SimilarEntry, 0, len(rows))
	for i, e := range entries {
		result = append(result, &model.SimilarEntry{Entry: e, Similarity: rows[i].Similarity})
	}
	return result, nil
}

func (r *entryRepository) CountEmbeddings(ctx context.Context) (int, int, error) {
	db := r.db.WithContext(ctx)

	var total, embedded int64
	if err := db.Model(&entryRow{}).Count(&total).Error; err != nil {
		return 0, 0, goerr.Wrap(err, "failed to count entries")
	}
	if err := db.Model(&entryRow{}).Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return 0, 0, goerr.Wrap(err, "failed to count embedded entries")
	}
	return int(total), int(embedded), nil
}
