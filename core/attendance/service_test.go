package attendance

import (
	"context"
	"errors"
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

const owner = "teacher@school.test"

func newTestService(src *fakeSource, fallback bool) (*Service, map[string]*snapshotSink) {
	colls := fakeCollections{
		{ID: "c1", Name: "Algebra", OwnerEmail: owner},
		{ID: "c2", Name: "Biology", OwnerEmail: owner},
	}
	conf := core.NewTestConfig()
	conf.Analytics.FallbackEnabled = fallback

	sinks := make(map[string]*snapshotSink)
	factory := func(owner string) Sink {
		s := new(snapshotSink)
		sinks[owner] = s
		return s
	}
	return NewService(colls, src, logsvc.NewDiscardLogger(), conf, factory), sinks
}

func TestService_Overview(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	svc, sinks := newTestService(src, true)
	ctx := context.Background()

	snap, err := svc.Overview(ctx, owner, "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.SessionCount)
	assert.Equal(t, 65, snap.AverageAttendance)
	assert.Equal(t, "Biology", svc.aggregator(owner).records[2].CollectionName)

	snap, err = svc.Overview(ctx, owner, "c1", false)
	require.NoError(t, err)
	assert.Equal(t, "c1", snap.Filter)
	assert.Equal(t, 2, snap.SessionCount)
	assert.Len(t, src.filters, 1, "loaded sessions are reused")

	src.fail(errors.New("analytics down"))
	snap, err = svc.Overview(ctx, owner, "c2", true)
	assert.True(t, core.IsWarning(err))
	assert.Equal(t, 1, snap.SessionCount)
	assert.False(t, snap.Fallback)

	assert.NotEmpty(t, sinks[owner].snapshots)
}

func TestService_Overview_fallback(t *testing.T) {
	tests := []struct {
		name      string
		fallback  bool
		wantFatal bool
	}{
		{name: "enabled", fallback: true},
		{name: "disabled", fallback: false, wantFatal: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestService(&fakeSource{err: errors.New("analytics down")}, tc.fallback)

			snap, err := svc.Overview(context.Background(), owner, "", false)
			require.Error(t, err)
			if tc.wantFatal {
				assert.False(t, core.IsWarning(err))
				return
			}
			assert.True(t, core.IsWarning(err))
			assert.True(t, snap.Fallback)
			assert.Equal(t, snap.SessionCount, snap.Buckets.Low+snap.Buckets.Medium+snap.Buckets.High)
		})
	}
}

func TestService_RefreshKnown(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	svc, _ := newTestService(src, true)
	ctx := context.Background()

	assert.Equal(t, 0, svc.RefreshKnown(ctx))

	_, err := svc.Overview(ctx, owner, "c1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.RefreshKnown(ctx))
	assert.Equal(t, "c1", svc.aggregator(owner).Filter(), "filter survives a refresh")
	assert.Len(t, src.filters, 2)
}

func TestService_Invalidate(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	svc, _ := newTestService(src, true)
	ctx := context.Background()

	require.NoError(t, svc.Invalidate(ctx, owner))
	assert.Empty(t, src.filters, "nothing loaded yet")

	_, err := svc.Overview(ctx, owner, "c2", false)
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx, owner))
	assert.Len(t, src.filters, 2)
	assert.Equal(t, "c2", svc.aggregator(owner).Filter())
}
