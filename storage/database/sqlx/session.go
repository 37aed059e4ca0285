package sqlxrepos

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core/attendance"
)

type sessionRepository struct {
	db sqlx.ExtContext
}

var _ attendance.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db sqlx.ExtContext) *sessionRepository {
	return &sessionRepository{db: db}
}

func (repo sessionRepository) CreateSession(ctx context.Context, rec attendance.SessionRecord) (attendance.SessionRecord, error) {
	if rec.SessionID == "" {
		rec.SessionID = uuid.New().String()
	}
	rec.StartTime = rec.StartTime.UTC()
	rec.Provenance = attendance.ProvenanceRemote
	rec.ComputeRate()
	q := `INSERT INTO sessions (id, collection_id, start_time, duration_minutes, total_participants, present_participants)
		VALUES (:id, :collection_id, :start_time, :duration_minutes, :total_participants, :present_participants)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, rec); err != nil {
		return attendance.SessionRecord{}, errors.Wrap(err, "inserting session")
	}
	return rec, nil
}

// ListSessions returns the sessions of the collections owned by owner, oldest first.
func (repo sessionRepository) ListSessions(ctx context.Context, owner string, filter attendance.SessionFilter) ([]attendance.SessionRecord, error) {
	conds := []string{"c.owner_email = ?"}
	args := []interface{}{owner}
	if len(filter.CollectionIDs) > 0 {
		conds = append(conds, "s.collection_id IN (?)")
		args = append(args, filter.CollectionIDs)
	}
	if !filter.From.IsZero() {
		conds = append(conds, "s.start_time >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conds = append(conds, "s.start_time < ?")
		args = append(args, filter.To.UTC())
	}

	q := `SELECT s.id, s.collection_id, s.start_time, s.duration_minutes, s.total_participants, s.present_participants
		FROM sessions s JOIN collections c ON c.id = s.collection_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY s.start_time`
	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building sessions query")
	}

	records := make([]attendance.SessionRecord, 0)
	if err = sqlx.SelectContext(ctx, repo.db, &records, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting sessions")
	}
	for i := range records {
		records[i].Provenance = attendance.ProvenanceRemote
		records[i].ComputeRate()
	}
	return records, nil
}
