package material

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kat-co/vala"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

var nowFunc = time.Now // mockable

// Merger fetches the materials of several collections and merges them into one Catalog.
// The catalog is rebuilt on every refresh and swapped in whole; readers never see a partial merge.
type Merger struct {
	source      Source
	sink        Sink
	logger      core.Logger
	concurrency int

	refreshMu sync.Mutex // one refresh at a time

	mu      sync.RWMutex
	catalog Catalog
}

// NewMerger returns an empty Merger. concurrency bounds simultaneous fetches, 1 fetches one collection at a time.
func NewMerger(source Source, sink Sink, logger core.Logger, concurrency int) *Merger {
	vala.BeginValidation().Validate(
		core.IsNotNil(source, "source"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if sink == nil {
		sink = nopSink{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Merger{
		source:      source,
		sink:        sink,
		logger:      logger,
		concurrency: concurrency,
		catalog:     Catalog{ByCollection: map[string][]Record{}, All: []Record{}, Failures: []core.FetchFailure{}},
	}
}

type fetchResult struct {
	records []Record
	err     error
}

// RefreshAll fetches every collection and rebuilds the catalog.
// A collection that fails to fetch is logged and contributes no records; the refresh itself never fails
// unless ctx is done, in which case the previous catalog is kept.
func (m *Merger) RefreshAll(ctx context.Context, colls []collection.Collection) (Catalog, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	if err := ctx.Err(); err != nil {
		return m.Catalog(), err
	}
	results := make([]fetchResult, len(colls))
	if m.concurrency == 1 {
		for i, c := range colls {
			if err := ctx.Err(); err != nil {
				return m.Catalog(), err
			}
			results[i] = m.fetch(ctx, c.ID)
		}
	} else {
		g := new(errgroup.Group)
		g.SetLimit(m.concurrency)
		for i, c := range colls {
			i, id := i, c.ID
			g.Go(func() error {
				results[i] = m.fetch(ctx, id)
				return nil
			})
		}
		_ = g.Wait() // fetch errors are kept per collection
		if err := ctx.Err(); err != nil {
			return m.Catalog(), err
		}
	}

	catalog := merge(colls, results)
	for _, f := range catalog.Failures {
		m.logger.Warn("material listing failed", f)
	}

	m.mu.Lock()
	m.catalog = catalog
	m.mu.Unlock()

	m.sink.OnCatalogChanged(catalog)
	return catalog, nil
}

func (m *Merger) fetch(ctx context.Context, collectionID string) fetchResult {
	records, err := m.source.ListMaterials(ctx, collectionID)
	return fetchResult{records: records, err: err}
}

func merge(colls []collection.Collection, results []fetchResult) Catalog {
	names := collection.Names(colls)
	catalog := Catalog{
		ByCollection: make(map[string][]Record, len(colls)),
		All:          make([]Record, 0),
		Failures:     make([]core.FetchFailure, 0),
		RefreshedAt:  nowFunc().UTC(),
	}
	seen := make(map[string]bool)
	for i, c := range colls {
		res := results[i]
		if res.err != nil {
			catalog.Failures = append(catalog.Failures, core.FetchFailure{CollectionID: c.ID, Err: res.err})
			continue
		}
		records := make([]Record, 0, len(res.records))
		for _, rec := range res.records {
			if seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			if rec.CollectionID == "" {
				rec.CollectionID = c.ID
			}
			rec.CollectionName = names[rec.CollectionID]
			records = append(records, rec)
		}
		catalog.ByCollection[c.ID] = append(catalog.ByCollection[c.ID], records...)
		catalog.All = append(catalog.All, records...)
	}
	return catalog
}

// Catalog returns the last merged catalog.
func (m *Merger) Catalog() Catalog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// Flattened returns every merged record, annotated with its collection's display name.
func (m *Merger) Flattened() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Record{}, m.catalog.All...)
}

// FilterByText matches term against the title and the type, ignoring case. An empty term matches everything.
func (m *Merger) FilterByText(term string) []Record {
	return FilterByText(m.Flattened(), term)
}

// FilterByCollection keeps the records of one collection. An unknown id yields no records.
func (m *Merger) FilterByCollection(id string) []Record {
	return FilterByCollection(m.Flattened(), id)
}

// CountFor is the number of records fetched for one collection; failed and unknown collections count 0.
func (m *Merger) CountFor(collectionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.catalog.ByCollection[collectionID])
}

func (m *Merger) Counts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.catalog.ByCollection))
	for id, records := range m.catalog.ByCollection {
		counts[id] = len(records)
	}
	return counts
}

func (m *Merger) Failures() []core.FetchFailure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.FetchFailure{}, m.catalog.Failures...)
}

func FilterByText(records []Record, term string) []Record {
	term = strings.ToLower(core.CleanString(term))
	filtered := make([]Record, 0, len(records))
	for _, rec := range records {
		if term == "" ||
			strings.Contains(strings.ToLower(rec.Title), term) ||
			strings.Contains(strings.ToLower(rec.Type), term) {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}

func FilterByCollection(records []Record, id string) []Record {
	id = core.CleanString(id)
	filtered := make([]Record, 0)
	for _, rec := range records {
		if rec.CollectionID == id {
			filtered = append(filtered, rec)
		}
	}
	return filtered
}
