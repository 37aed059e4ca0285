package material

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/orbit/core"
)

var (
	// errors
	ErrNotFound      = errors.New("material not found")
	errInvalidRecord = errors.New("invalid material")
)

// Record is one uploaded or externally linked resource.
type Record struct {
	ID           string      `json:"id" db:"id"`
	Title        string      `json:"title" db:"title"`
	Type         string      `json:"type" db:"type"`
	Size         int64       `json:"size" db:"size"`
	FileURL      null.String `json:"fileUrl" db:"file_url"`
	ExternalLink null.String `json:"externalLink" db:"external_link"`
	CreatedAt    time.Time   `json:"createdAt" db:"created_at"` // UTC
	CollectionID string      `json:"collectionId" db:"collection_id"`
	UploadedBy   string      `json:"uploadedBy" db:"uploaded_by"`

	// CollectionName is resolved when the catalog is merged, it is not stored.
	CollectionName string `json:"collectionName" db:"-"`
}

// Validate checks the required fields and that exactly one of FileURL and ExternalLink is set.
func (r *Record) Validate() error {
	r.Title = core.CleanString(r.Title)
	r.CollectionID = core.CleanString(r.CollectionID)

	var flds []core.FieldError
	if r.Title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "this field is required"})
	}
	if r.CollectionID == "" {
		flds = append(flds, core.FieldError{Field: "collectionId", Error: "this field is required"})
	}
	hasFile := r.FileURL.Valid && r.FileURL.String != ""
	hasLink := r.ExternalLink.Valid && r.ExternalLink.String != ""
	switch {
	case hasFile && hasLink:
		flds = append(flds, core.FieldError{Field: "externalLink", Error: "a material is either a file or a link, not both"})
	case !hasFile && !hasLink:
		flds = append(flds, core.FieldError{Field: "fileUrl", Error: "a file or a link is required"})
	}
	if flds != nil {
		return core.NewValidationError(errInvalidRecord, flds...)
	}
	return nil
}

// Link returns the file URL, or the external link for linked materials.
func (r Record) Link() string {
	if r.FileURL.Valid && r.FileURL.String != "" {
		return r.FileURL.String
	}
	return r.ExternalLink.String
}

// Catalog maps collection ids to their materials. All is the flattened, de-duplicated view.
type Catalog struct {
	ByCollection map[string][]Record `json:"byCollection"`
	All          []Record            `json:"all"`
	Failures     []core.FetchFailure `json:"-"`
	RefreshedAt  time.Time           `json:"refreshedAt"`
}

type (
	// Source lists the materials of one collection.
	Source interface {
		ListMaterials(ctx context.Context, collectionID string) ([]Record, error)
	}

	Repository interface {
		Source
		CreateMaterial(ctx context.Context, rec Record) (Record, error)
		GetMaterial(ctx context.Context, id string) (Record, error)
		DeleteMaterial(ctx context.Context, id string) error
	}

	// Sink is told every time a catalog is rebuilt.
	Sink interface {
		OnCatalogChanged(catalog Catalog)
	}

	SinkFactory func(owner string) Sink
)

type nopSink struct{}

func (nopSink) OnCatalogChanged(Catalog) {}
