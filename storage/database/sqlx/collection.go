package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

const collectionColumns = `id, code, name, owner_email, student_count, created_at`

type collectionRepository struct {
	db sqlx.ExtContext
}

var _ collection.Repository = (*collectionRepository)(nil) // interface compliance check

func NewCollectionRepository(db sqlx.ExtContext) *collectionRepository {
	return &collectionRepository{db: db}
}

func (repo collectionRepository) CreateCollection(ctx context.Context, coll collection.Collection) (collection.Collection, error) {
	if coll.ID == "" {
		coll.ID = uuid.New().String()
	}
	coll.CreatedAt = coll.CreatedAt.UTC()
	q := `INSERT INTO collections (` + collectionColumns + `)
		VALUES (:id, :code, :name, :owner_email, :student_count, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, coll); err != nil {
		return collection.Collection{}, errors.Wrap(err, "inserting collection")
	}
	return coll, nil
}

func (repo collectionRepository) ListCollections(ctx context.Context, ownerEmail string) ([]collection.Collection, error) {
	colls := make([]collection.Collection, 0)
	q := `SELECT ` + collectionColumns + ` FROM collections WHERE owner_email = $1 ORDER BY name, code`
	if err := sqlx.SelectContext(ctx, repo.db, &colls, q, ownerEmail); err != nil {
		return nil, errors.Wrap(err, "selecting collections")
	}
	return colls, nil
}

func (repo collectionRepository) GetCollection(ctx context.Context, id string) (collection.Collection, error) {
	var coll collection.Collection
	q := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.db, &coll, q, id); err != nil {
		return collection.Collection{}, trapNoRowsErr(err, core.ErrNotFound, "selecting collection")
	}
	return coll, nil
}
