package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model/auth"
)

type mockEmbeddingClient struct {
	mu         sync.Mutex
	generateFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
	calls      []string
}

func (m *mockEmbeddingClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, input...)
	m.mu.Unlock()
	return m.generateFn(ctx, dimension, input)
}

func (m *mockEmbeddingClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// fixedEmbedding returns the same vector for every input
func fixedEmbedding(v ...float64) *mockEmbeddingClient {
	return &mockEmbeddingClient{
		generateFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			return [][]float64{v}, nil
		},
	}
}

// syncDispatch runs background work inline so tests can observe it
func syncDispatch(ctx context.Context, handler func(ctx context.Context) error) {
	_ = handler(ctx)
}

func authedContext() context.Context {
	return auth.ContextWithUser(context.Background(), &auth.User{
		Sub:   "user-1",
		Email: "user@example.com",
		Name:  "Test User",
	})
}

// hookedRepository wraps a repository so tests can interleave writes with
// use-case calls
type hookedRepository struct {
	interfaces.Repository
	entry *hookedEntryRepository
}

func newHookedRepository(base interfaces.Repository) *hookedRepository {
	return &hookedRepository{
		Repository: base,
		entry:      &hookedEntryRepository{EntryRepository: base.Entry()},
	}
}

func (r *hookedRepository) Entry() interfaces.EntryRepository {
	return r.entry
}

type hookedEntryRepository struct {
	interfaces.EntryRepository
	afterGet     func(ctx context.Context, id model.EntryID)
	setTagsCalls int
}

func (r *hookedEntryRepository) Get(ctx context.Context, id model.EntryID) (*model.Entry, error) {
	entry, err := r.EntryRepository.Get(ctx, id)
	if err == nil && r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook(ctx, id)
	}
	return entry, err
}

func (r *hookedEntryRepository) SetTags(ctx context.Context, id model.EntryID, tagIDs []model.TagID) error {
	r.setTagsCalls++
	return errors.New("set tags unavailable")
}
