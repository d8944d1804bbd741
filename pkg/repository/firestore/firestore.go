package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"google.golang.org/api/iterator"
)

const (
	entriesCollection = "entries"
	tagsCollection    = "tags"
)

type Firestore struct {
	client *firestore.Client
	entry  *entryRepository
	tag    *tagRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix prefixes every collection name. Tests use it to
// isolate runs that share one database.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.entry.collectionPrefix = prefix
		f.tag.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		entry:  &entryRepository{client: client},
		tag:    &tagRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Entry() interfaces.EntryRepository {
	return f.entry
}

func (f *Firestore) Tag() interfaces.TagRepository {
	return f.tag
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// collectDocs drains a document iterator
func collectDocs[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (T, error)) ([]T, error) {
	defer iter.Stop()

	result := make([]T, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}

		v, err := decode(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal document", goerr.V("id", doc.Ref.ID))
		}
		result = append(result, v)
	}

	return result, nil
}
