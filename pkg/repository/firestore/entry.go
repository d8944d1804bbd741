package firestore

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/interfaces"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// similarityField receives the dot product computed by FindNearest
const similarityField = "_similarity"

// maxArrayContainsAny is the Firestore limit on array-contains-any operands
const maxArrayContainsAny = 30

// entryDoc is the Firestore document representation of model.Entry.
// Embedding is stored as firestore.Vector32 so that FindNearest vector search
// works. HasEmbedding mirrors it for equality filters.
type entryDoc struct {
	ID           model.EntryID      `firestore:"ID"`
	Content      string             `firestore:"Content"`
	Source       string             `firestore:"Source"`
	Embedding    firestore.Vector32 `firestore:"Embedding,omitempty"`
	HasEmbedding bool               `firestore:"HasEmbedding"`
	TagIDs       []string           `firestore:"TagIDs"`
	CreatedAt    time.Time          `firestore:"CreatedAt"`
	UpdatedAt    time.Time          `firestore:"UpdatedAt"`
}

func toEntryDoc(e *model.Entry) *entryDoc {
	doc := &entryDoc{
		ID:        e.ID,
		Content:   e.Content,
		Source:    e.Source,
		TagIDs:    tagIDsToStrings(e.TagIDs),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if len(e.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(e.Embedding)
		doc.HasEmbedding = true
	}
	return doc
}

func fromEntryDoc(d *entryDoc) *model.Entry {
	e := &model.Entry{
		ID:        d.ID,
		Content:   d.Content,
		Source:    d.Source,
		TagIDs:    make([]model.TagID, 0, len(d.TagIDs)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, id := range d.TagIDs {
		e.TagIDs = append(e.TagIDs, model.TagID(id))
	}
	if len(d.Embedding) > 0 {
		e.Embedding = []float32(d.Embedding)
	}
	return e
}

func docToEntry(doc *firestore.DocumentSnapshot) (*model.Entry, error) {
	var d entryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromEntryDoc(&d), nil
}

func tagIDsToStrings(ids []model.TagID) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(result, string(id)) {
			result = append(result, string(id))
		}
	}
	return result
}

func sortByCreatedAtDesc(entries []*model.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

func paginate(entries []*model.Entry, limit, offset int) []*model.Entry {
	if offset >= len(entries) {
		return []*model.Entry{}
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end]
}

type entryRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func (r *entryRepository) entries() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + entriesCollection)
}

func entryNotFound(err error, id model.EntryID) error {
	if status.Code(err) == codes.NotFound {
		return goerr.Wrap(model.ErrEntryNotFound, "entry not found", goerr.V(model.EntryIDKey, id))
	}
	return goerr.Wrap(err, "failed to access entry", goerr.V(model.EntryIDKey, id))
}

func (r *entryRepository) Create(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	now := time.Now().UTC()
	created := entry.Copy()
	if created.ID == "" {
		created.ID = model.NewEntryID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	docRef := r.entries().Doc(string(created.ID))
	if _, err := docRef.Create(ctx, toEntryDoc(created)); err != nil {
		return nil, goerr.Wrap(err, "failed to create entry", goerr.V(model.EntryIDKey, created.ID))
	}

	return fromEntryDoc(toEntryDoc(created)), nil
}

func (r *entryRepository) Get(ctx context.Context, id model.EntryID) (*model.Entry, error) {
	doc, err := r.entries().Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, entryNotFound(err, id)
	}

	e, err := docToEntry(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal entry", goerr.V(model.EntryIDKey, id))
	}
	return e, nil
}

func (r *entryRepository) Update(ctx context.Context, entry *model.Entry) (*model.Entry, error) {
	docRef := r.entries().Doc(string(entry.ID))

	var updated *model.Entry
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			return entryNotFound(err, entry.ID)
		}
		existing, err := docToEntry(doc)
		if err != nil {
			return goerr.Wrap(err, "failed to unmarshal entry", goerr.V(model.EntryIDKey, entry.ID))
		}

		updated = entry.Copy()
		updated.Embedding = existing.Embedding
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = time.Now().UTC()
		return tx.Set(docRef, toEntryDoc(updated))
	})
	if err != nil {
		return nil, err
	}

	return fromEntryDoc(toEntryDoc(updated)), nil
}

func (r *entryRepository) Delete(ctx context.Context, id model.EntryID) error {
	docRef := r.entries().Doc(string(id))

	if _, err := docRef.Get(ctx); err != nil {
		return entryNotFound(err, id)
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete entry", goerr.V(model.EntryIDKey, id))
	}

	return nil
}

func (r *entryRepository) SetTags(ctx context.Context, id model.EntryID, tagIDs []model.TagID) error {
	_, err := r.entries().Doc(string(id)).Update(ctx, []firestore.Update{
		{Path: "TagIDs", Value: tagIDsToStrings(tagIDs)},
	})
	if err != nil {
		return entryNotFound(err, id)
	}
	return nil
}

func (r *entryRepository) List(ctx context.Context, limit, offset int) ([]*model.Entry, int, error) {
	allDocs, err := r.entries().Select().Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to count entries")
	}
	totalCount := len(allDocs)

	query := r.entries().OrderBy("UpdatedAt", firestore.Desc).Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	entries, err := collectDocs(query.Documents(ctx), docToEntry)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to list entries")
	}

	return entries, totalCount, nil
}

func (r *entryRepository) Recent(ctx context.Context, limit int) ([]*model.Entry, error) {
	query := r.entries().OrderBy("CreatedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	entries, err := collectDocs(query.Documents(ctx), docToEntry)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list recent entries")
	}
	return entries, nil
}

// Search narrows by tag on the server when the operand count allows and
// matches the keyword on the client, since Firestore has no substring filter.
func (r *entryRepository) Search(ctx context.Context, query interfaces.EntrySearchQuery) ([]*model.Entry, int, error) {
	q := r.entries().Query
	if n := len(query.TagIDs); n > 0 && n <= maxArrayContainsAny {
		q = q.Where("TagIDs", "array-contains-any", tagIDsToStrings(query.TagIDs))
	}

	candidates, err := collectDocs(q.Documents(ctx), docToEntry)
	if err != nil {
		return nil, 0, goerr.Wrap(err, "failed to search entries")
	}

	keyword := strings.ToLower(query.Keyword)
	matched := make([]*model.Entry, 0, len(candidates))
	for _, e := range candidates {
		if keyword != "" && !strings.Contains(strings.ToLower(e.Content), keyword) {
			continue
		}
		if len(query.TagIDs) > 0 && !slices.ContainsFunc(e.TagIDs, func(id model.TagID) bool {
			return slices.Contains(query.TagIDs, id)
		}) {
			continue
		}
		matched = append(matched, e)
	}
	sortByCreatedAtDesc(matched)

	return paginate(matched, query.Limit, query.Offset), len(matched), nil
}

func (r *entryRepository) ListByTag(ctx context.Context, tagID model.TagID) ([]*model.Entry, error) {
	iter := r.entries().Where("TagIDs", "array-contains", string(tagID)).Documents(ctx)
	entries, err := collectDocs(iter, docToEntry)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list entries by tag", goerr.V(model.TagIDKey, tagID))
	}

	sortByCreatedAtDesc(entries)
	return entries, nil
}

func (r *entryRepository) ListWithoutEmbedding(ctx context.Context, limit int) ([]*model.Entry, error) {
	iter := r.entries().Where("HasEmbedding", "==", false).Documents(ctx)
	entries, err := collectDocs(iter, docToEntry)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list entries without embedding")
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return paginate(entries, limit, 0), nil
}

func (r *entryRepository) UpdateEmbedding(ctx context.Context, id model.EntryID, embedding []float32) error {
	updates := []firestore.Update{
		{Path: "Embedding", Value: firestore.Delete},
		{Path: "HasEmbedding", Value: false},
	}
	if embedding != nil {
		updates = []firestore.Update{
			{Path: "Embedding", Value: firestore.Vector32(embedding)},
			{Path: "HasEmbedding", Value: true},
		}
	}

	if _, err := r.entries().Doc(string(id)).Update(ctx, updates); err != nil {
		return entryNotFound(err, id)
	}
	return nil
}

// FindSimilar relies on stored and query vectors being unit length, so the
// dot product equals cosine similarity. For DOT_PRODUCT the distance
// threshold keeps documents whose distance is at least the threshold.
func (r *entryRepository) FindSimilar(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.SimilarEntry, error) {
	vq := r.entries().FindNearest("Embedding", firestore.Vector32(embedding), limit,
		firestore.DistanceMeasureDotProduct, &firestore.FindNearestOptions{
			DistanceThreshold:   &threshold,
			DistanceResultField: similarityField,
		})

	results, err := collectDocs(vq.Documents(ctx), func(doc *firestore.DocumentSnapshot) (*model.SimilarEntry, error) {
		e, err := docToEntry(doc)
		if err != nil {
			return nil, err
		}
		v, err := doc.DataAt(similarityField)
		if err != nil {
			return nil, goerr.Wrap(err, "similarity field is missing")
		}
		score, ok := v.(float64)
		if !ok {
			return nil, goerr.New("similarity field is not a number", goerr.V("value", v))
		}
		return &model.SimilarEntry{Entry: e, Similarity: score}, nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run vector search")
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Entry.ID < results[j].Entry.ID
	})
	return results, nil
}

func (r *entryRepository) CountEmbeddings(ctx context.Context) (int, int, error) {
	allDocs, err := r.entries().Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to count entries")
	}

	embeddedDocs, err := r.entries().Where("HasEmbedding", "==", true).Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, 0, goerr.Wrap(err, "failed to count embedded entries")
	}

	return len(allDocs), len(embeddedDocs), nil
}
