package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

type collectionRepository struct {
	db *collectionTable
}

var _ collection.Repository = (*collectionRepository)(nil) // interface compliance check

func NewCollectionRepository(db *DB) collection.Repository {
	return &collectionRepository{db: db.collection}
}

func (repo *collectionRepository) CreateCollection(_ context.Context, coll collection.Collection) (collection.Collection, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if coll.ID == "" {
		coll.ID = uuid.New().String()
	}
	coll.CreatedAt = coll.CreatedAt.UTC()
	repo.db.table[coll.ID] = &coll
	return coll, nil
}

func (repo *collectionRepository) ListCollections(_ context.Context, ownerEmail string) ([]collection.Collection, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	colls := make([]collection.Collection, 0)
	for _, c := range repo.db.table {
		if c.OwnerEmail == ownerEmail {
			colls = append(colls, *c)
		}
	}
	sort.Slice(colls, func(i, j int) bool {
		if colls[i].Name != colls[j].Name {
			return colls[i].Name < colls[j].Name
		}
		return colls[i].Code < colls[j].Code
	})
	return colls, nil
}

func (repo *collectionRepository) GetCollection(_ context.Context, id string) (collection.Collection, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return collection.Collection{}, core.ErrNotFound
}
