package sqlxrepos

import (
	"database/sql"

	"github.com/pkg/errors"
)

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
