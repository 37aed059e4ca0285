package material

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

type ServiceInterface interface {
	Catalog(ctx context.Context, owner string, refresh bool) (Catalog, error)
	Query(ctx context.Context, owner string, q Query) ([]Record, error)
	Counts(ctx context.Context, owner string) (map[string]int, error)
	Delete(ctx context.Context, owner, id string) error
	RefreshKnown(ctx context.Context) int
}

// Query narrows the flattened catalog. Every field is optional.
type Query struct {
	Collection string
	Search     string
	Orderings  []core.DBOrdering
	Refresh    bool
}

// Service keeps one Merger per owner, so dashboards never share catalog state.
type Service struct {
	collections collection.Repository
	repo        Repository
	logger      core.Logger
	sinks       SinkFactory
	concurrency int

	mu      sync.Mutex
	mergers map[string]*Merger
}

var _ ServiceInterface = (*Service)(nil)

// NewService returns a material Service. sinks may be nil.
func NewService(collections collection.Repository, repo Repository, logger core.Logger, conf *core.Config, sinks SinkFactory) *Service {
	return &Service{
		collections: collections,
		repo:        repo,
		logger:      logger,
		sinks:       sinks,
		concurrency: conf.Catalog.FetchConcurrency,
		mergers:     make(map[string]*Merger),
	}
}

func (svc *Service) merger(owner string) *Merger {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if m, ok := svc.mergers[owner]; ok {
		return m
	}
	var sink Sink
	if svc.sinks != nil {
		sink = svc.sinks(owner)
	}
	m := NewMerger(svc.repo, sink, svc.logger, svc.concurrency)
	svc.mergers[owner] = m
	return m
}

// Catalog returns the owner's catalog, fetching it on first use or when refresh is set.
func (svc *Service) Catalog(ctx context.Context, owner string, refresh bool) (Catalog, error) {
	m := svc.merger(owner)
	if catalog := m.Catalog(); !refresh && !catalog.RefreshedAt.IsZero() {
		return catalog, nil
	}
	return svc.refresh(ctx, owner, m)
}

func (svc *Service) refresh(ctx context.Context, owner string, m *Merger) (Catalog, error) {
	colls, err := svc.collections.ListCollections(ctx, owner)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "listing collections")
	}
	return m.RefreshAll(ctx, colls)
}

// Query filters the owner's catalog by collection and text, then sorts it.
func (svc *Service) Query(ctx context.Context, owner string, q Query) ([]Record, error) {
	catalog, err := svc.Catalog(ctx, owner, q.Refresh)
	if err != nil {
		return nil, err
	}
	records := append([]Record{}, catalog.All...)
	if q.Collection != "" {
		records = FilterByCollection(records, q.Collection)
	}
	records = FilterByText(records, q.Search)
	SortRecords(records, q.Orderings)
	return records, nil
}

// Counts returns the number of materials per collection; every collection of the owner is listed.
func (svc *Service) Counts(ctx context.Context, owner string) (map[string]int, error) {
	if _, err := svc.Catalog(ctx, owner, false); err != nil {
		return nil, err
	}
	colls, err := svc.collections.ListCollections(ctx, owner)
	if err != nil {
		return nil, errors.Wrap(err, "listing collections")
	}
	m := svc.merger(owner)
	counts := make(map[string]int, len(colls))
	for _, c := range colls {
		counts[c.ID] = m.CountFor(c.ID)
	}
	return counts, nil
}

// Delete removes one material of the owner and refreshes the owner's catalog.
func (svc *Service) Delete(ctx context.Context, owner, id string) error {
	rec, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return err
	}
	coll, err := svc.collections.GetCollection(ctx, rec.CollectionID)
	if err != nil {
		return errors.Wrap(err, "getting collection")
	}
	if coll.OwnerEmail != owner {
		return ErrNotFound
	}
	if err := svc.repo.DeleteMaterial(ctx, id); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	_, err = svc.Catalog(ctx, owner, true)
	return err
}

// Invalidate refreshes the owner's catalog if one was loaded already.
func (svc *Service) Invalidate(ctx context.Context, owner string) {
	svc.mu.Lock()
	m, ok := svc.mergers[owner]
	svc.mu.Unlock()
	if !ok {
		return
	}
	if _, err := svc.refresh(ctx, owner, m); err != nil {
		svc.logger.Error("refreshing catalog", err, map[string]interface{}{"owner": owner})
	}
}

// RefreshKnown refreshes the catalog of every owner seen so far and returns how many succeeded.
func (svc *Service) RefreshKnown(ctx context.Context) int {
	svc.mu.Lock()
	owners := make([]string, 0, len(svc.mergers))
	for owner := range svc.mergers {
		owners = append(owners, owner)
	}
	svc.mu.Unlock()

	var refreshed int
	for _, owner := range owners {
		m := svc.merger(owner)
		if _, err := svc.refresh(ctx, owner, m); err != nil {
			svc.logger.Error("refreshing catalog", err, map[string]interface{}{"owner": owner})
			continue
		}
		refreshed++
	}
	return refreshed
}
