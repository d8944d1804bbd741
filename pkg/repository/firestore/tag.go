package firestore

import (
	"context"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/zatsugaku/pkg/domain/model"
	"github.com/secmon-lab/zatsugaku/pkg/domain/types"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// getAllChunkSize bounds the number of refs per GetAll round trip
const getAllChunkSize = 100

// tagDoc is the Firestore document representation of model.Tag. NameLower
// backs case-insensitive uniqueness.
type tagDoc struct {
	ID        model.TagID `firestore:"ID"`
	Name      string      `firestore:"Name"`
	NameLower string      `firestore:"NameLower"`
	Color     string      `firestore:"Color"`
	CreatedAt time.Time   `firestore:"CreatedAt"`
	UpdatedAt time.Time   `firestore:"UpdatedAt"`
}

func toTagDoc(t *model.Tag) *tagDoc {
	return &tagDoc{
		ID:        t.ID,
		Name:      t.Name,
		NameLower: model.NormalizeTagName(t.Name),
		Color:     t.Color.String(),
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTagDoc(d *tagDoc) *model.Tag {
	return &model.Tag{
		ID:        d.ID,
		Name:      d.Name,
		Color:     types.Color(d.Color),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func docToTag(doc *firestore.DocumentSnapshot) (*model.Tag, error) {
	var d tagDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, err
	}
	return fromTagDoc(&d), nil
}

type tagRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func (r *tagRepository) tags() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + tagsCollection)
}

func (r *tagRepository) entries() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + entriesCollection)
}

func tagNotFound(err error, id model.TagID) error {
	if status.Code(err) == codes.NotFound {
		return goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagIDKey, id))
	}
	return goerr.Wrap(err, "failed to access tag", goerr.V(model.TagIDKey, id))
}

// checkNameAvailable fails with ErrDuplicateTag when another tag already
// owns the name. It must run before any write in the transaction.
func (r *tagRepository) checkNameAvailable(tx *firestore.Transaction, name string, self model.TagID) error {
	docs, err := tx.Documents(r.tags().Where("NameLower", "==", model.NormalizeTagName(name))).GetAll()
	if err != nil {
		return goerr.Wrap(err, "failed to look up tag name", goerr.V(model.TagNameKey, name))
	}
	for _, doc := range docs {
		if doc.Ref.ID != string(self) {
			return goerr.Wrap(model.ErrDuplicateTag, "tag name already exists",
				goerr.V(model.TagNameKey, name), goerr.V(model.TagIDKey, doc.Ref.ID))
		}
	}
	return nil
}

func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	now := time.Now().UTC()
	created := *tag
	if created.ID == "" {
		created.ID = model.NewTagID()
	}
	created.CreatedAt = now
	created.UpdatedAt = now

	docRef := r.tags().Doc(string(created.ID))
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := r.checkNameAvailable(tx, created.Name, created.ID); err != nil {
			return err
		}
		return tx.Create(docRef, toTagDoc(&created))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create tag", goerr.V(model.TagNameKey, tag.Name))
	}

	return &created, nil
}

func (r *tagRepository) Get(ctx context.Context, id model.TagID) (*model.Tag, error) {
	doc, err := r.tags().Doc(string(id)).Get(ctx)
	if err != nil {
		return nil, tagNotFound(err, id)
	}

	t, err := docToTag(doc)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal tag", goerr.V(model.TagIDKey, id))
	}
	return t, nil
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*model.Tag, error) {
	iter := r.tags().Where("NameLower", "==", model.NormalizeTagName(name)).Limit(1).Documents(ctx)
	tags, err := collectDocs(iter, docToTag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tag by name", goerr.V(model.TagNameKey, name))
	}
	if len(tags) == 0 {
		return nil, goerr.Wrap(model.ErrTagNotFound, "tag not found", goerr.V(model.TagNameKey, name))
	}
	return tags[0], nil
}

func (r *tagRepository) GetMany(ctx context.Context, ids []model.TagID) ([]*model.Tag, error) {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	seen := make(map[model.TagID]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		refs = append(refs, r.tags().Doc(string(id)))
	}

	docs, err := r.getAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tags")
	}

	result := make([]*model.Tag, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		t, err := docToTag(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal tag", goerr.V(model.TagIDKey, doc.Ref.ID))
		}
		result = append(result, t)
	}
	return result, nil
}

// getAll fetches refs in parallel chunks, preserving input order
func (r *tagRepository) getAll(ctx context.Context, refs []*firestore.DocumentRef) ([]*firestore.DocumentSnapshot, error) {
	result := make([]*firestore.DocumentSnapshot, len(refs))

	eg, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(refs); start += getAllChunkSize {
		end := min(start+getAllChunkSize, len(refs))
		eg.Go(func() error {
			docs, err := r.client.GetAll(ctx, refs[start:end])
			if err != nil {
				return goerr.Wrap(err, "failed to get documents", goerr.V("count", end-start))
			}
			copy(result[start:end], docs)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *tagRepository) List(ctx context.Context) ([]*model.TagWithCount, error) {
	tags, err := collectDocs(r.tags().Documents(ctx), docToTag)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tags")
	}

	entryDocs, err := r.entries().Select("TagIDs").Documents(ctx).GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count tag usage")
	}
	counts := make(map[model.TagID]int, len(tags))
	for _, doc := range entryDocs {
		var d entryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal entry", goerr.V(model.EntryIDKey, doc.Ref.ID))
		}
		for _, id := range d.TagIDs {
			counts[model.TagID(id)]++
		}
	}

	result := make([]*model.TagWithCount, 0, len(tags))
	for _, t := range tags {
		result = append(result, &model.TagWithCount{Tag: t, EntryCount: counts[t.ID]})
	}
	sort.Slice(result, func(i, j int) bool {
		ni, nj := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if ni != nj {
			return ni < nj
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *model.Tag) (*model.Tag, error) {
	docRef := r.tags().Doc(string(tag.ID))

	var updated *model.Tag
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			return tagNotFound(err, tag.ID)
		}
		existing, err := docToTag(doc)
		if err != nil {
			return goerr.Wrap(err, "failed to unmarshal tag", goerr.V(model.TagIDKey, tag.ID))
		}
		if err := r.checkNameAvailable(tx, tag.Name, tag.ID); err != nil {
			return err
		}

		copied := *tag
		copied.CreatedAt = existing.CreatedAt
		copied.UpdatedAt = time.Now().UTC()
		updated = &copied
		return tx.Set(docRef, toTagDoc(updated))
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update tag", goerr.V(model.TagIDKey, tag.ID))
	}

	return updated, nil
}

// Delete removes the tag document, then strips the ID from every entry
// carrying it
func (r *tagRepository) Delete(ctx context.Context, id model.TagID) error {
	docRef := r.tags().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		return tagNotFound(err, id)
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete tag", goerr.V(model.TagIDKey, id))
	}

	docs, err := r.entries().Where("TagIDs", "array-contains", string(id)).Select().Documents(ctx).GetAll()
	if err != nil {
		return goerr.Wrap(err, "failed to find entries with tag", goerr.V(model.TagIDKey, id))
	}
	if len(docs) == 0 {
		return nil
	}

	bulkWriter := r.client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := bulkWriter.Update(doc.Ref, []firestore.Update{
			{Path: "TagIDs", Value: firestore.ArrayRemove(string(id))},
		}); err != nil {
			return goerr.Wrap(err, "failed to remove tag from entry",
				goerr.V(model.TagIDKey, id), goerr.V(model.EntryIDKey, doc.Ref.ID))
		}
	}
	bulkWriter.End()

	return nil
}

func (r *tagRepository) ListByEntryIDs(ctx context.Context, entryIDs []model.EntryID) (map[model.EntryID][]*model.Tag, error) {
	result := make(map[model.EntryID][]*model.Tag, len(entryIDs))
	if len(entryIDs) == 0 {
		return result, nil
	}

	refs := make([]*firestore.DocumentRef, 0, len(entryIDs))
	for _, id := range entryIDs {
		result[id] = []*model.Tag{}
		refs = append(refs, r.entries().Doc(string(id)))
	}

	entryDocs, err := r.getAll(ctx, refs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get entries for tag lookup")
	}

	tagIDsByEntry := make(map[model.EntryID][]model.TagID, len(entryDocs))
	var allTagIDs []model.TagID
	for _, doc := range entryDocs {
		if !doc.Exists() {
			continue
		}
		e, err := docToEntry(doc)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal entry", goerr.V(model.EntryIDKey, doc.Ref.ID))
		}
		tagIDsByEntry[e.ID] = e.TagIDs
		allTagIDs = append(allTagIDs, e.TagIDs...)
	}

	tags, err := r.GetMany(ctx, allTagIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[model.TagID]*model.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}

	for entryID, tagIDs := range tagIDsByEntry {
		for _, tagID := range tagIDs {
			if t, ok := byID[tagID]; ok {
				copied := *t
				result[entryID] = append(result[entryID], &copied)
			}
		}
	}
	return result, nil
}
