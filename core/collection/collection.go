package collection

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
)

// Collection is a class: it owns materials and sessions.
type Collection struct {
	ID         string `json:"id" db:"id"`
	Code       string `json:"code" db:"code"`
	Name       string `json:"name" db:"name"`
	OwnerEmail string `json:"ownerEmail" db:"owner_email"`
	// StudentCount is invalid (null) when the class size is unknown.
	StudentCount null.Int  `json:"studentCount" db:"student_count"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// DisplayName is what the dashboards show for the collection.
func (c Collection) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.Code != "":
		return c.Code
	default:
		return c.ID
	}
}

type Repository interface {
	CreateCollection(ctx context.Context, coll Collection) (Collection, error)
	ListCollections(ctx context.Context, ownerEmail string) ([]Collection, error)
	GetCollection(ctx context.Context, id string) (Collection, error)
}

// Names indexes display names by collection id.
func Names(colls []Collection) map[string]string {
	names := make(map[string]string, len(colls))
	for _, c := range colls {
		names[c.ID] = c.DisplayName()
	}
	return names
}
