package postgres

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/types"
)

type entryRow struct {
	ID        string           `gorm:"column:id;type:uuid;primaryKey"`
	Content   string           `gorm:"column:content;type:text;not null"`
	Source    string           `gorm:"column:source;type:text;not null;default:''"`
	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt time.Time        `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time        `gorm:"column:updated_at;not null;index"`
}

func (entryRow) TableName() string {
	return "entries"
}

type tagRow struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(50);not null"`
	Color     string    `gorm:"column:color;type:varchar(7);not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (tagRow) TableName() string {
	return "tags"
}

type entryTagRow struct {
	EntryID string `gorm:"column:entry_id;type:uuid;primaryKey"`
	TagID   string `gorm:"column:tag_id;type:uuid;primaryKey;index"`
}

func (entryTagRow) TableName() string {
	return "entry_tags"
}

func toEntryRow(e *model.Entry) *entryRow {
	row := &entryRow{
		ID:        string(e.ID),
		Content:   e.Content,
		Source:    e.Source,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if len(e.Embedding) > 0 {
		v := pgvector.NewVector(e.Embedding)
		row.Embedding = &v
	}
	return row
}

func fromEntryRow(row *entryRow, tagIDs []model.TagID) *model.Entry {
	e := &model.Entry{
		ID:        model.EntryID(row.ID),
		Content:   row.Content,
		Source:    row.Source,
		TagIDs:    tagIDs,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if e.TagIDs == nil {
		e.TagIDs = []model.TagID{}
	}
	if row.Embedding != nil {
		e.Embedding = row.Embedding.Slice()
	}
	return e
}

func toTagRow(t *model.Tag) *tagRow {
	return &tagRow{
		ID:        string(t.ID),
		Name:      t.Name,
		Color:     t.Color.String(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTagRow(row *tagRow) *model.Tag {
	return &model.Tag{
		ID:        model.TagID(row.ID),
		Name:      row.Name,
		Color:     types.Color(row.Color),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func uniqueTagRows(entryID model.EntryID, tagIDs []model.TagID) []entryTagRow {
	rows := make([]entryTagRow, 0, len(tagIDs))
	seen := make(map[model.TagID]bool, len(tagIDs))
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, entryTagRow{EntryID: string(entryID), TagID: string(id)})
	}
	return rows
}
