package realtime

import (
	"time"

	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/material"
	"github.com/trezcool/orbit/core/upload"
)

type (
	ProgressData struct {
		BatchID string  `json:"batchId"`
		Percent float64 `json:"percent"`
	}

	CatalogData struct {
		Total       int               `json:"total"`
		Counts      map[string]int    `json:"counts"`
		Failures    map[string]string `json:"failures"`
		RefreshedAt time.Time         `json:"refreshedAt"`
	}
)

// Sink publishes one owner's upload, catalog and analytics events.
type Sink struct {
	hub   *Hub
	owner string
}

var (
	_ upload.Sink     = (*Sink)(nil)
	_ material.Sink   = (*Sink)(nil)
	_ attendance.Sink = (*Sink)(nil)
)

func (h *Hub) Sink(owner string) *Sink {
	return &Sink{hub: h, owner: owner}
}

func (s *Sink) OnAggregateProgressChanged(batchID string, percent float64) {
	s.hub.Publish(s.owner, Message{Event: EventProgress, Data: ProgressData{BatchID: batchID, Percent: percent}})
}

func (s *Sink) OnBatchComplete(result upload.Result) {
	s.hub.Publish(s.owner, Message{Event: EventBatchComplete, Data: result})
}

// OnCatalogChanged sends a summary; clients fetch the records they display.
func (s *Sink) OnCatalogChanged(catalog material.Catalog) {
	data := CatalogData{
		Total:       len(catalog.All),
		Counts:      make(map[string]int, len(catalog.ByCollection)),
		Failures:    make(map[string]string, len(catalog.Failures)),
		RefreshedAt: catalog.RefreshedAt,
	}
	for id, records := range catalog.ByCollection {
		data.Counts[id] = len(records)
	}
	for _, f := range catalog.Failures {
		data.Failures[f.CollectionID] = f.Err.Error()
	}
	s.hub.Publish(s.owner, Message{Event: EventCatalog, Data: data})
}

func (s *Sink) OnSnapshotChanged(snapshot attendance.Snapshot) {
	s.hub.Publish(s.owner, Message{Event: EventSnapshot, Data: snapshot})
}
