package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core/material"
)

const materialColumns = `id, collection_id, title, type, size, file_url, external_link, uploaded_by, created_at`

type materialRepository struct {
	db sqlx.ExtContext
}

var _ material.Repository = (*materialRepository)(nil) // interface compliance check

func NewMaterialRepository(db sqlx.ExtContext) *materialRepository {
	return &materialRepository{db: db}
}

func (repo materialRepository) CreateMaterial(ctx context.Context, rec material.Record) (material.Record, error) {
	if err := rec.Validate(); err != nil {
		return material.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	q := `INSERT INTO materials (` + materialColumns + `)
		VALUES (:id, :collection_id, :title, :type, :size, :file_url, :external_link, :uploaded_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, rec); err != nil {
		return material.Record{}, errors.Wrap(err, "inserting material")
	}
	return rec, nil
}

func (repo materialRepository) ListMaterials(ctx context.Context, collectionID string) ([]material.Record, error) {
	records := make([]material.Record, 0)
	q := `SELECT ` + materialColumns + ` FROM materials WHERE collection_id = $1 ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, repo.db, &records, q, collectionID); err != nil {
		return nil, errors.Wrap(err, "selecting materials")
	}
	return records, nil
}

func (repo materialRepository) GetMaterial(ctx context.Context, id string) (material.Record, error) {
	var rec material.Record
	q := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1`
	if err := sqlx.GetContext(ctx, repo.db, &rec, q, id); err != nil {
		return material.Record{}, trapNoRowsErr(err, material.ErrNotFound, "selecting material")
	}
	return rec, nil
}

func (repo materialRepository) DeleteMaterial(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting material")
	}
	if n == 0 {
		return material.ErrNotFound
	}
	return nil
}
