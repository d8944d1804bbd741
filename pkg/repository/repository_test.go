package repository_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/repository/firestore"
	"github.com/secmon-lab/zatsugaku/pkg/repository/memory"
	"github.com/secmon-lab/zatsugaku/pkg/repository/postgres"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testDimension is the embedding width used by repository tests
const testDimension = 3

func newMemoryRepository(t *testing.T) interfaces.Repository {
	t.Helper()
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d_", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

// newPostgresRepository migrates a throwaway schema per test so that
// counts and vector searches see only the test's own rows
func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	admin, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{})
	gt.NoError(t, err).Required()

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	gt.NoError(t, admin.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error).Required()
	gt.NoError(t, admin.Exec("CREATE SCHEMA "+schema).Error).Required()

	sep := " "
	if strings.Contains(dsn, "://") {
		sep = "&"
		if !strings.Contains(dsn, "?") {
			sep = "?"
		}
	}
	repo, err := postgres.New(ctx, dsn+sep+"search_path="+schema+",public")
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Migrate(ctx, testDimension)).Required()

	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
		gt.NoError(t, admin.Exec("DROP SCHEMA "+schema+" CASCADE").Error)
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return repo
}

func runAllBackends(t *testing.T, run func(t *testing.T, newRepo func(t *testing.T) interfaces.Repository)) {
	t.Run("memory", func(t *testing.T) { run(t, newMemoryRepository) })
	t.Run("firestore", func(t *testing.T) { run(t, newFirestoreRepository) })
	t.Run("postgres", func(t *testing.T) { run(t, newPostgresRepository) })
}
