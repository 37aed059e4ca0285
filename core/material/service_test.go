package material

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
	logsvc "github.com/trezcool/orbit/services/logger"
)

type fakeCollections []collection.Collection

func (f fakeCollections) CreateCollection(_ context.Context, c collection.Collection) (collection.Collection, error) {
	return c, nil
}

func (f fakeCollections) ListCollections(_ context.Context, ownerEmail string) ([]collection.Collection, error) {
	colls := make([]collection.Collection, 0)
	for _, c := range f {
		if c.OwnerEmail == ownerEmail {
			colls = append(colls, c)
		}
	}
	return colls, nil
}

func (f fakeCollections) GetCollection(_ context.Context, id string) (collection.Collection, error) {
	for _, c := range f {
		if c.ID == id {
			return c, nil
		}
	}
	return collection.Collection{}, core.ErrNotFound
}

type fakeRepository struct {
	*fakeSource
}

func (r fakeRepository) CreateMaterial(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.CollectionID] = append(r.records[rec.CollectionID], rec)
	return rec, nil
}

func (r fakeRepository) GetMaterial(_ context.Context, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, records := range r.records {
		for _, rec := range records {
			if rec.ID == id {
				return rec, nil
			}
		}
	}
	return Record{}, ErrNotFound
}

func (r fakeRepository) DeleteMaterial(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for collID, records := range r.records {
		kept := make([]Record, 0, len(records))
		for _, rec := range records {
			if rec.ID != id {
				kept = append(kept, rec)
			}
		}
		r.records[collID] = kept
	}
	return nil
}

const owner = "teacher@school.test"

func newTestService() (*Service, fakeRepository, map[string]*catalogSink) {
	colls := fakeCollections{
		{ID: "c1", Name: "Algebra", OwnerEmail: owner},
		{ID: "c2", Name: "Biology", OwnerEmail: owner},
		{ID: "c3", Code: "CHEM-101", OwnerEmail: owner},
		{ID: "x1", Name: "Someone else's", OwnerEmail: "other@school.test"},
	}
	src := threeCollectionsSource()
	src.records["x1"] = []Record{fileRecord("m5", "x1", "Private", "PDF")}
	repo := fakeRepository{src}

	sinks := make(map[string]*catalogSink)
	factory := func(owner string) Sink {
		s := new(catalogSink)
		sinks[owner] = s
		return s
	}
	return NewService(colls, repo, logsvc.NewDiscardLogger(), core.NewTestConfig(), factory), repo, sinks
}

func TestService_Catalog(t *testing.T) {
	svc, repo, sinks := newTestService()
	ctx := context.Background()

	catalog, err := svc.Catalog(ctx, owner, false)
	require.NoError(t, err)
	assert.Len(t, catalog.All, 3)
	assert.Len(t, catalog.Failures, 1)

	_, err = svc.Catalog(ctx, owner, false)
	require.NoError(t, err)
	assert.Len(t, repo.calls, 3, "loaded catalog is reused")

	_, err = svc.Catalog(ctx, owner, true)
	require.NoError(t, err)
	assert.Len(t, repo.calls, 6)
	assert.Len(t, sinks[owner].catalogs, 2)
}

func TestService_Query(t *testing.T) {
	svc, _, _ := newTestService()

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{name: "all by title", q: Query{Orderings: core.ParseOrderings("title")}, want: []string{"m4", "m2", "m1"}},
		{name: "search", q: Query{Search: "QUIZ"}, want: []string{"m2"}},
		{name: "collection", q: Query{Collection: "c1", Orderings: core.ParseOrderings("-title")}, want: []string{"m1", "m2"}},
		{name: "other owner's collection", q: Query{Collection: "x1"}, want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := svc.Query(context.Background(), owner, tc.q)
			require.NoError(t, err)
			ids := make([]string, 0)
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tc.want, ids)
		})
	}
}

func TestService_Counts(t *testing.T) {
	svc, _, _ := newTestService()

	counts, err := svc.Counts(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c1": 2, "c2": 0, "c3": 1}, counts)
}

func TestService_Delete(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	assert.Equal(t, ErrNotFound, svc.Delete(ctx, owner, "unknown"))
	assert.Equal(t, ErrNotFound, svc.Delete(ctx, owner, "m5"), "belongs to another owner")

	require.NoError(t, svc.Delete(ctx, owner, "m1"))
	records, err := svc.Query(ctx, owner, Query{Collection: "c1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "m2", records[0].ID)
}

func TestService_RefreshKnown(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	assert.Equal(t, 0, svc.RefreshKnown(ctx))

	_, err := svc.Catalog(ctx, owner, false)
	require.NoError(t, err)
	_, err = repo.CreateMaterial(ctx, fileRecord("m6", "c3", "New", "PDF"))
	require.NoError(t, err)

	assert.Equal(t, 1, svc.RefreshKnown(ctx))
	assert.Equal(t, 2, svc.merger(owner).CountFor("c3"))
}
