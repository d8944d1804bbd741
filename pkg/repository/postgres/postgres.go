package postgres

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Postgres struct {
	db    *gorm.DB
	entry *entryRepository
	tag   *tagRepository
}

var _ interfaces.Repository = &Postgres{}

type Option func(*gorm.Config)

// WithLogger replaces the silent gorm logger
func WithLogger(l logger.Interface) Option {
	return func(cfg *gorm.Config) {
		cfg.Logger = l
	}
}

func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	return &Postgres{
		db:    db,
		entry: &entryRepository{db: db},
		tag:   &tagRepository{db: db},
	}, nil
}

func (p *Postgres) Entry() interfaces.EntryRepository {
	return p.entry
}

func (p *Postgres) Tag() interfaces.TagRepository {
	return p.tag
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.Close()
}

// Migrate creates the schema. It is idempotent except that changing the
// dimension of a populated embedding column fails.
func (p *Postgres) Migrate(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return goerr.New("dimension must be positive", goerr.V("dimension", dimension))
	}

	db := p.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return goerr.Wrap(err, "failed to enable pgvector extension")
	}

	if err := db.AutoMigrate(&entryRow{}, &tagRow{}, &entryTagRow{}); err != nil {
		return goerr.Wrap(err, "failed to auto-migrate tables")
	}

	ddl := []string{
		fmt.Sprintf("ALTER TABLE entries ALTER COLUMN embedding TYPE vector(%d)", dimension),
		"CREATE INDEX IF NOT EXISTS entries_embedding_idx ON entries USING hnsw (embedding vector_ip_ops)",
		"CREATE UNIQUE INDEX IF NOT EXISTS tags_name_lower_idx ON tags (lower(name))",
		`DO $$ BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'entry_tags_entry_fk') THEN
				ALTER TABLE entry_tags ADD CONSTRAINT entry_tags_entry_fk
					FOREIGN KEY (entry_id) REFERENCES entries(id) ON DELETE CASCADE;
			END IF;
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'entry_tags_tag_fk') THEN
				ALTER TABLE entry_tags ADD CONSTRAINT entry_tags_tag_fk
					FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE;
			END IF;
		END $$`,
	}
	for _, stmt := range ddl {
		if err := db.Exec(stmt).Error; err != nil {
			return goerr.Wrap(err, "failed to apply schema", goerr.V("statement", stmt))
		}
	}

	return nil
}
