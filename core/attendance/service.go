package attendance

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

type ServiceInterface interface {
	Overview(ctx context.Context, owner, filter string, refresh bool) (Snapshot, error)
	Invalidate(ctx context.Context, owner string) error
	RefreshKnown(ctx context.Context) int
}

// Service keeps one Aggregator per owner.
type Service struct {
	collections collection.Repository
	source      Source
	logger      core.Logger
	sinks       SinkFactory

	fallbackEnabled bool
	fallbackSeed    int64

	mu          sync.Mutex
	aggregators map[string]*Aggregator
}

var _ ServiceInterface = (*Service)(nil)

// NewService returns an attendance Service. sinks may be nil.
func NewService(collections collection.Repository, source Source, logger core.Logger, conf *core.Config, sinks SinkFactory) *Service {
	return &Service{
		collections:     collections,
		source:          source,
		logger:          logger,
		sinks:           sinks,
		fallbackEnabled: conf.Analytics.FallbackEnabled,
		fallbackSeed:    conf.Analytics.FallbackSeed,
		aggregators:     make(map[string]*Aggregator),
	}
}

func (svc *Service) aggregator(owner string) *Aggregator {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if agg, ok := svc.aggregators[owner]; ok {
		return agg
	}
	var (
		sink Sink
		gen  *FallbackGenerator
	)
	if svc.sinks != nil {
		sink = svc.sinks(owner)
	}
	if svc.fallbackEnabled {
		gen = NewFallbackGenerator(svc.fallbackSeed)
	}
	agg := NewAggregator(svc.source, sink, svc.logger, gen)
	svc.aggregators[owner] = agg
	return agg
}

// Overview returns the owner's snapshot for filter, loading the sessions on first use or when refresh is set.
// A *core.SourceUnavailable warning may come along with a valid snapshot; check it with core.IsWarning.
func (svc *Service) Overview(ctx context.Context, owner, filter string, refresh bool) (Snapshot, error) {
	agg := svc.aggregator(owner)

	var warning error
	if refresh || !agg.Loaded() {
		colls, err := svc.collections.ListCollections(ctx, owner)
		if err != nil {
			return Snapshot{}, errors.Wrap(err, "listing collections")
		}
		if _, err = agg.Refresh(ctx, owner, colls); err != nil {
			if !core.IsWarning(err) {
				return Snapshot{}, err
			}
			warning = err
		}
	}
	agg.SetFilter(filter)
	return agg.SnapshotFor(filter), warning
}

// Invalidate reloads the owner's sessions if they were loaded already, keeping the current filter.
func (svc *Service) Invalidate(ctx context.Context, owner string) error {
	svc.mu.Lock()
	agg, ok := svc.aggregators[owner]
	svc.mu.Unlock()
	if !ok || !agg.Loaded() {
		return nil
	}
	return svc.reload(ctx, owner, agg)
}

// RefreshKnown reloads the sessions of every owner seen so far and returns how many got fresh data.
func (svc *Service) RefreshKnown(ctx context.Context) int {
	svc.mu.Lock()
	owners := make([]string, 0, len(svc.aggregators))
	for owner := range svc.aggregators {
		owners = append(owners, owner)
	}
	svc.mu.Unlock()

	var refreshed int
	for _, owner := range owners {
		if err := svc.reload(ctx, owner, svc.aggregator(owner)); err == nil {
			refreshed++
		}
	}
	return refreshed
}

// reload refreshes agg then restores its filter. Warnings are returned once the filter is back.
func (svc *Service) reload(ctx context.Context, owner string, agg *Aggregator) error {
	colls, err := svc.collections.ListCollections(ctx, owner)
	if err != nil {
		err = errors.Wrap(err, "listing collections")
		svc.logger.Error("refreshing sessions", err, map[string]interface{}{"owner": owner})
		return err
	}
	filter := agg.Filter()
	_, err = agg.Refresh(ctx, owner, colls)
	if err != nil && !core.IsWarning(err) {
		return err // already logged
	}
	agg.SetFilter(filter)
	return err
}
