package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/repository/memory"
	"github.com/secmon-lab/zatsugaku/pkg/service/embedding"
	"github.com/secmon-lab/zatsugaku/pkg/usecase"
)

func newEntryUseCases(client *mockEmbeddingClient) (*usecase.UseCases, *memory.Repository) {
	repo := memory.New()
	opts := []usecase.Option{usecase.WithDispatcher(syncDispatch)}
	if client != nil {
		opts = append(opts,
			usecase.WithGenerator(embedding.New(client, embedding.WithDimension(3))),
			usecase.WithAutoEmbedding(true),
		)
	}
	return usecase.New(repo, opts...), repo
}

func TestEntryUseCase_CreateEntry(t *testing.T) {
	ctx := authedContext()

	t.Run("stores the entry with tags and embeds it", func(t *testing.T) {
		client := fixedEmbedding(1, 0, 0)
		uc, repo := newEntryUseCases(client)

		tag, err := uc.Tag.CreateTag(ctx, "animals", "")
		gt.NoError(t, err).Required()

		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{
			Content: "Octopuses have three hearts.",
			Source:  "https://example.com/octopus",
			TagIDs:  []model.TagID{tag.ID, tag.ID},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, created.Entry.Content).Equal("Octopuses have three hearts.")
		gt.Array(t, created.Tags).Length(1).Required()
		gt.Value(t, created.Tags[0].ID).Equal(tag.ID)

		gt.Value(t, client.callCount()).Equal(1)
		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.HasEmbedding()).True()
	})

	t.Run("tags are stored with the entry in one write", func(t *testing.T) {
		repo := newHookedRepository(memory.New())
		uc := usecase.New(repo, usecase.WithDispatcher(syncDispatch))

		tag, err := uc.Tag.CreateTag(ctx, "animals", "")
		gt.NoError(t, err).Required()

		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{
			Content: "Cows have best friends.",
			TagIDs:  []model.TagID{tag.ID},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, repo.entry.setTagsCalls).Equal(0)

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.TagIDs).Equal([]model.TagID{tag.ID})
	})

	t.Run("rejects malformed tag IDs", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{
			Content: "fact",
			TagIDs:  []model.TagID{"not-a-uuid"},
		})
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
	})

	t.Run("rejects unknown tags", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{
			Content: "fact",
			TagIDs:  []model.TagID{model.NewTagID()},
		})
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
	})

	t.Run("rejects blank content", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "  "})
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
	})

	t.Run("requires a user", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.CreateEntry(context.Background(), usecase.EntryInput{Content: "fact"})
		gt.Bool(t, errors.Is(err, model.ErrUnauthorized)).True()
	})

	t.Run("works without an embedding provider", func(t *testing.T) {
		uc, repo := newEntryUseCases(nil)
		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "fact"})
		gt.NoError(t, err).Required()

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.HasEmbedding()).False()
	})
}

func TestEntryUseCase_UpdateEntry(t *testing.T) {
	ctx := authedContext()

	t.Run("content change replaces the embedding", func(t *testing.T) {
		var count int
		client := &mockEmbeddingClient{
			generateFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				count++
				if count == 1 {
					return [][]float64{{1, 0, 0}}, nil
				}
				return [][]float64{{0, 1, 0}}, nil
			},
		}
		uc, repo := newEntryUseCases(client)

		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "before"})
		gt.NoError(t, err).Required()

		_, err = uc.Entry.UpdateEntry(ctx, created.Entry.ID, usecase.EntryInput{Content: "after"})
		gt.NoError(t, err).Required()

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Content).Equal("after")
		gt.Value(t, stored.Embedding).Equal([]float32{0, 1, 0})
		gt.Value(t, client.calls).Equal([]string{"before", "after"})
	})

	t.Run("source-only change keeps the embedding", func(t *testing.T) {
		client := fixedEmbedding(1, 0, 0)
		uc, repo := newEntryUseCases(client)

		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "same"})
		gt.NoError(t, err).Required()

		_, err = uc.Entry.UpdateEntry(ctx, created.Entry.ID, usecase.EntryInput{Content: "same", Source: "book"})
		gt.NoError(t, err).Required()

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.HasEmbedding()).True()
		gt.Value(t, client.callCount()).Equal(1)
	})

	t.Run("content change clears the embedding when no provider is set", func(t *testing.T) {
		uc, repo := newEntryUseCases(nil)
		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "before"})
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Entry().UpdateEmbedding(ctx, created.Entry.ID, []float32{1, 0, 0})).Required()

		_, err = uc.Entry.UpdateEntry(ctx, created.Entry.ID, usecase.EntryInput{Content: "after"})
		gt.NoError(t, err).Required()

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, stored.HasEmbedding()).False()
	})

	t.Run("embedding written during the update survives", func(t *testing.T) {
		repo := newHookedRepository(memory.New())
		uc := usecase.New(repo, usecase.WithDispatcher(syncDispatch))

		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "same"})
		gt.NoError(t, err).Required()

		repo.entry.afterGet = func(ctx context.Context, id model.EntryID) {
			gt.NoError(t, repo.Entry().UpdateEmbedding(ctx, id, []float32{1, 0, 0}))
		}

		updated, err := uc.Entry.UpdateEntry(ctx, created.Entry.ID, usecase.EntryInput{Content: "same", Source: "book"})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Entry.Source).Equal("book")

		stored, err := repo.Entry().Get(ctx, created.Entry.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, stored.Embedding).Equal([]float32{1, 0, 0})
	})

	t.Run("unknown entry", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.UpdateEntry(ctx, model.NewEntryID(), usecase.EntryInput{Content: "x"})
		gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()
	})

	t.Run("malformed entry ID is not found", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		_, err := uc.Entry.UpdateEntry(ctx, "not-a-uuid", usecase.EntryInput{Content: "x"})
		gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()
	})

	t.Run("requires a user", func(t *testing.T) {
		uc, _ := newEntryUseCases(nil)
		created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "x"})
		gt.NoError(t, err).Required()

		_, err = uc.Entry.UpdateEntry(context.Background(), created.Entry.ID, usecase.EntryInput{Content: "y"})
		gt.Bool(t, errors.Is(err, model.ErrUnauthorized)).True()
	})
}

func TestEntryUseCase_DeleteEntry(t *testing.T) {
	ctx := authedContext()
	uc, _ := newEntryUseCases(nil)

	created, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "gone soon"})
	gt.NoError(t, err).Required()

	err = uc.Entry.DeleteEntry(context.Background(), created.Entry.ID)
	gt.Bool(t, errors.Is(err, model.ErrUnauthorized)).True()

	gt.NoError(t, uc.Entry.DeleteEntry(ctx, created.Entry.ID)).Required()

	_, err = uc.Entry.GetEntry(ctx, created.Entry.ID)
	gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()

	err = uc.Entry.DeleteEntry(ctx, created.Entry.ID)
	gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()

	err = uc.Entry.DeleteEntry(ctx, "not-a-uuid")
	gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()

	_, err = uc.Entry.GetEntry(ctx, "not-a-uuid")
	gt.Bool(t, errors.Is(err, model.ErrEntryNotFound)).True()
}

func TestEntryUseCase_ListEntries(t *testing.T) {
	ctx := authedContext()
	uc, _ := newEntryUseCases(nil)

	for i := range 5 {
		_, err := uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: fmt.Sprintf("fact %d", i)})
		gt.NoError(t, err).Required()
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("paging", func(t *testing.T) {
		page, err := uc.Entry.ListEntries(ctx, 2, 2)
		gt.NoError(t, err).Required()
		gt.Value(t, page.Total).Equal(5)
		gt.Value(t, page.TotalPages).Equal(3)
		gt.Array(t, page.Entries).Length(2).Required()
		gt.Value(t, page.Entries[0].Entry.Content).Equal("fact 2")
		gt.Value(t, page.Entries[1].Entry.Content).Equal("fact 1")
	})

	t.Run("defaults", func(t *testing.T) {
		page, err := uc.Entry.ListEntries(ctx, 0, 0)
		gt.NoError(t, err).Required()
		gt.Value(t, page.Page).Equal(1)
		gt.Value(t, page.PerPage).Equal(usecase.DefaultPerPage)
		gt.Array(t, page.Entries).Length(5)
		gt.Value(t, page.TotalPages).Equal(1)
	})

	t.Run("past the end is empty", func(t *testing.T) {
		page, err := uc.Entry.ListEntries(ctx, 10, 2)
		gt.NoError(t, err).Required()
		gt.Array(t, page.Entries).Length(0)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := uc.Entry.ListEntries(ctx, -1, 2)
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()

		_, err = uc.Entry.ListEntries(ctx, 1, usecase.MaxPerPage+1)
		gt.Bool(t, errors.Is(err, model.ErrValidation)).True()
	})

	t.Run("recent", func(t *testing.T) {
		recent, err := uc.Entry.RecentEntries(ctx, 3)
		gt.NoError(t, err).Required()
		gt.Array(t, recent).Length(3).Required()
		gt.Value(t, recent[0].Entry.Content).Equal("fact 4")
	})
}

func TestEntryUseCase_Lookup(t *testing.T) {
	ctx := authedContext()
	uc, _ := newEntryUseCases(nil)

	science, err := uc.Tag.CreateTag(ctx, "Science", "")
	gt.NoError(t, err).Required()
	history, err := uc.Tag.CreateTag(ctx, "History", "")
	gt.NoError(t, err).Required()

	_, err = uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "Light takes 8 minutes from the Sun.", TagIDs: []model.TagID{science.ID}})
	gt.NoError(t, err).Required()
	_, err = uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "Cleopatra lived closer to the Moon landing than to the pyramids.", TagIDs: []model.TagID{history.ID}})
	gt.NoError(t, err).Required()
	_, err = uc.Entry.CreateEntry(ctx, usecase.EntryInput{Content: "Honey never spoils."})
	gt.NoError(t, err).Required()

	t.Run("search by keyword ignores case", func(t *testing.T) {
		found, err := uc.Entry.SearchEntries(ctx, "MOON", nil)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1).Required()
		gt.Value(t, found[0].Tags[0].Name).Equal("History")
	})

	t.Run("search by tags matches any", func(t *testing.T) {
		found, err := uc.Entry.SearchEntries(ctx, "", []model.TagID{science.ID, history.ID})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(2)
	})

	t.Run("search without keyword or tags returns nothing", func(t *testing.T) {
		found, err := uc.Entry.SearchEntries(ctx, "", nil)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)

		found, err = uc.Entry.SearchEntries(ctx, "   ", nil)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)
	})

	t.Run("search with only malformed tags returns nothing", func(t *testing.T) {
		found, err := uc.Entry.SearchEntries(ctx, "the", []model.TagID{"not-a-uuid"})
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(0)
	})

	t.Run("entries by tag name", func(t *testing.T) {
		tag, entries, err := uc.Entry.ListEntriesByTagName(ctx, "science")
		gt.NoError(t, err).Required()
		gt.Value(t, tag.ID).Equal(science.ID)
		gt.Array(t, entries).Length(1)
	})

	t.Run("unknown tag name", func(t *testing.T) {
		_, _, err := uc.Entry.ListEntriesByTagName(ctx, "nope")
		gt.Bool(t, errors.Is(err, model.ErrTagNotFound)).True()
	})

	t.Run("untagged entry has empty tags", func(t *testing.T) {
		found, err := uc.Entry.SearchEntries(ctx, "honey", nil)
		gt.NoError(t, err).Required()
		gt.Array(t, found).Length(1).Required()
		gt.Value(t, found[0].Tags).Equal([]*model.Tag{})
	})
}
