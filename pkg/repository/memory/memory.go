package memory

import (
	"sync"

	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// store is shared by entry and tag repositories so that tag deletion can
// detach the tag from entries under one lock
type store struct {
	mu      sync.RWMutex
	entries map[model.EntryID]*model.Entry
	tags    map[model.TagID]*model.Tag
}

type Memory struct {
	entry *entryRepository
	tag   *tagRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	s := &store{
		entries: make(map[model.EntryID]*model.Entry),
		tags:    make(map[model.TagID]*model.Tag),
	}

	return &Memory{
		entry: &entryRepository{store: s},
		tag:   &tagRepository{store: s},
	}
}

func (m *Memory) Entry() interfaces.EntryRepository {
	return m.entry
}

func (m *Memory) Tag() interfaces.TagRepository {
	return m.tag
}

func (m *Memory) Close() error {
	return nil
}
