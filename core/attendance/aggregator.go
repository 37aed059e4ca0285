package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

// Aggregator owns the unfiltered session records of one dashboard and the active collection filter.
// Snapshots are recomputed from both on every read.
type Aggregator struct {
	source   Source
	sink     Sink
	logger   core.Logger
	fallback *FallbackGenerator

	refreshMu sync.Mutex

	mu         sync.RWMutex
	records    []SessionRecord
	filter     string
	loaded     bool
	provenance Provenance
}

// NewAggregator returns an empty Aggregator. A nil fallback disables placeholder data.
func NewAggregator(source Source, sink Sink, logger core.Logger, fallback *FallbackGenerator) *Aggregator {
	vala.BeginValidation().Validate(
		core.IsNotNil(source, "source"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if sink == nil {
		sink = nopSink{}
	}
	return &Aggregator{source: source, sink: sink, logger: logger, fallback: fallback}
}

// Load replaces the whole record set and clears the filter.
func (a *Aggregator) Load(records []SessionRecord) {
	a.replace(records, ProvenanceRemote)
}

// LoadFallback replaces the record set with placeholder sessions for colls.
func (a *Aggregator) LoadFallback(colls []collection.Collection) {
	gen := a.fallback
	if gen == nil {
		gen = NewFallbackGenerator(0)
	}
	a.replace(gen.Generate(colls), ProvenanceFallback)
}

func (a *Aggregator) replace(records []SessionRecord, prov Provenance) {
	recs := make([]SessionRecord, len(records))
	for i, rec := range records {
		rec.Provenance = prov
		rec.ComputeRate()
		recs[i] = rec
	}

	a.mu.Lock()
	a.records = recs
	a.filter = ""
	a.loaded = true
	a.provenance = prov
	snap := a.snapshot("")
	a.mu.Unlock()

	a.sink.OnSnapshotChanged(snap)
}

// SetFilter restricts snapshots to one collection; an empty id means all collections.
func (a *Aggregator) SetFilter(collectionID string) {
	collectionID = core.CleanString(collectionID)

	a.mu.Lock()
	if a.filter == collectionID {
		a.mu.Unlock()
		return
	}
	a.filter = collectionID
	snap := a.snapshot(collectionID)
	a.mu.Unlock()

	a.sink.OnSnapshotChanged(snap)
}

func (a *Aggregator) Filter() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.filter
}

func (a *Aggregator) Loaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loaded
}

// Snapshot projects the records matching the active filter.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot(a.filter)
}

// SnapshotFor projects the records matching filter without changing the active one.
func (a *Aggregator) SnapshotFor(filter string) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot(core.CleanString(filter))
}

func (a *Aggregator) snapshot(filter string) Snapshot {
	matching := make([]SessionRecord, 0, len(a.records))
	for _, rec := range a.records {
		if filter == "" || rec.CollectionID == filter {
			matching = append(matching, rec)
		}
	}
	snap := Summarize(matching)
	snap.Filter = filter
	if a.loaded {
		snap.Provenance = a.provenance
		snap.Fallback = a.provenance == ProvenanceFallback
	}
	return snap
}

// Summarize derives the counts, averages, buckets and timeline of records.
func Summarize(records []SessionRecord) Snapshot {
	snap := Snapshot{
		SessionCount: len(records),
		Timeline:     make([]TimelinePoint, 0, len(records)),
	}
	var minutes, rates int
	for _, rec := range records {
		minutes += rec.DurationMinutes
		rates += rec.AttendanceRate
		snap.Buckets.add(rec.AttendanceRate)
		snap.Timeline = append(snap.Timeline, TimelinePoint{
			SessionID:           rec.SessionID,
			CollectionID:        rec.CollectionID,
			CollectionName:      rec.CollectionName,
			Date:                rec.StartTime,
			AttendanceRate:      rec.AttendanceRate,
			TotalParticipants:   rec.TotalParticipants,
			PresentParticipants: rec.PresentParticipants,
		})
	}
	snap.TotalHours = core.RoundHalfUp(minutes, 60)
	snap.AverageAttendance = core.RoundHalfUp(rates, len(records))
	sort.SliceStable(snap.Timeline, func(i, j int) bool {
		return snap.Timeline[i].Date.Before(snap.Timeline[j].Date)
	})
	return snap
}

// Refresh reloads the sessions of owner's collections.
// When the source fails, the data already loaded is kept, or placeholder data is loaded if there was none;
// both cases return a *core.SourceUnavailable warning along with the snapshot. Without any data to show, the
// error is fatal.
func (a *Aggregator) Refresh(ctx context.Context, owner string, colls []collection.Collection) (Snapshot, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	ids := make([]string, len(colls))
	for i, c := range colls {
		ids[i] = c.ID
	}
	records, err := a.source.ListSessions(ctx, owner, SessionFilter{CollectionIDs: ids})
	if err == nil {
		names := collection.Names(colls)
		for i := range records {
			records[i].CollectionName = names[records[i].CollectionID]
		}
		a.Load(records)
		return a.Snapshot(), nil
	}
	if ctx.Err() != nil {
		return Snapshot{}, ctx.Err()
	}

	a.logger.Warn("session listing failed", err, map[string]interface{}{"owner": owner})
	switch {
	case a.Loaded():
		return a.Snapshot(), &core.SourceUnavailable{Err: err, Retained: true}
	case a.fallback != nil:
		a.LoadFallback(colls)
		return a.Snapshot(), &core.SourceUnavailable{Err: err, Fallback: true}
	default:
		return Snapshot{}, &core.SourceUnavailable{Err: errors.Wrap(err, "listing sessions")}
	}
}
