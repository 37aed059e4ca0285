package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/orbit/core/attendance"
)

type sessionRepository struct {
	db          *sessionTable
	collections *collectionTable
}

var _ attendance.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) attendance.Repository {
	return &sessionRepository{db: db.session, collections: db.collection}
}

func (repo *sessionRepository) CreateSession(_ context.Context, rec attendance.SessionRecord) (attendance.SessionRecord, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}
	rec.StartTime = rec.StartTime.UTC()
	rec.Provenance = attendance.ProvenanceRemote
	rec.CollectionName = ""
	rec.ComputeRate()
	repo.db.table[rec.SessionID] = &rec
	return rec, nil
}

func (repo *sessionRepository) ownedBy(owner string) map[string]bool {
	repo.collections.RLock()
	defer repo.collections.RUnlock()

	owned := make(map[string]bool)
	for id, c := range repo.collections.table {
		if c.OwnerEmail == owner {
			owned[id] = true
		}
	}
	return owned
}

// ListSessions returns the sessions of the collections owned by owner, oldest first.
func (repo *sessionRepository) ListSessions(_ context.Context, owner string, filter attendance.SessionFilter) ([]attendance.SessionRecord, error) {
	owned := repo.ownedBy(owner)
	var wanted map[string]bool
	if len(filter.CollectionIDs) > 0 {
		wanted = make(map[string]bool, len(filter.CollectionIDs))
		for _, id := range filter.CollectionIDs {
			wanted[id] = true
		}
	}

	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.SessionRecord, 0)
	for _, rec := range repo.db.table {
		switch {
		case !owned[rec.CollectionID]:
		case wanted != nil && !wanted[rec.CollectionID]:
		case !filter.From.IsZero() && rec.StartTime.Before(filter.From):
		case !filter.To.IsZero() && !rec.StartTime.Before(filter.To):
		default:
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartTime.Before(records[j].StartTime) })
	return records, nil
}
