package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/orbit/core/material"
)

type materialRepository struct {
	db *materialTable
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db *DB) material.Repository {
	return &materialRepository{db: db.material}
}

func (repo *materialRepository) CreateMaterial(_ context.Context, rec material.Record) (material.Record, error) {
	if err := rec.Validate(); err != nil {
		return material.Record{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.CollectionName = ""
	repo.db.table[rec.ID] = &rec
	return rec, nil
}

// ListMaterials returns the materials of one collection, newest first.
func (repo *materialRepository) ListMaterials(_ context.Context, collectionID string) ([]material.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]material.Record, 0)
	for _, rec := range repo.db.table {
		if rec.CollectionID == collectionID {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (repo *materialRepository) GetMaterial(_ context.Context, id string) (material.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return *rec, nil
	}
	return material.Record{}, material.ErrNotFound
}

func (repo *materialRepository) DeleteMaterial(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return material.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
