package transport

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/material"
	"github.com/trezcool/orbit/core/upload"
	"github.com/trezcool/orbit/storage/objectstore"
)

var (
	nowFunc = time.Now // mockable

	unsafeKeyChars = regexp.MustCompile(`[^\w.-]+`)
)

// MaterialTransport uploads a file to the object store then records it as a material of the target collection.
type MaterialTransport struct {
	store     objectstore.Store
	materials material.Repository
	logger    core.Logger
	keyPrefix string
}

var _ upload.Transport = (*MaterialTransport)(nil)

func NewMaterialTransport(store objectstore.Store, materials material.Repository, logger core.Logger, conf *core.Config) *MaterialTransport {
	vala.BeginValidation().Validate(
		core.IsNotNil(store, "store"),
		core.IsNotNil(materials, "materials"),
		core.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &MaterialTransport{
		store:     store,
		materials: materials,
		logger:    logger,
		keyPrefix: conf.Storage.KeyPrefix,
	}
}

// ObjectKey is where a file of a collection is stored: <prefix>/<collection>/<id>-<name>.
func (t *MaterialTransport) ObjectKey(collectionID, id, name string) string {
	name = unsafeKeyChars.ReplaceAllString(path.Base(name), "_")
	return path.Join(t.keyPrefix, collectionID, id+"-"+strings.Trim(name, "_"))
}

func (t *MaterialTransport) UploadFile(ctx context.Context, req upload.Request, progress upload.ProgressFunc) error {
	if req.File.Open == nil {
		return errors.New("no content")
	}
	body, err := req.File.Open()
	if err != nil {
		return errors.Wrap(err, "opening file")
	}
	defer func() { _ = body.Close() }()

	id := uuid.New().String()
	key := t.ObjectKey(req.CollectionID, id, req.File.Name)
	reader := objectstore.NewProgressReader(body, req.File.Size, func(percent int) {
		if percent < 100 { // 100 is reported once the material is recorded
			progress(percent)
		}
	})
	url, err := t.store.Put(ctx, key, reader.Body(), req.File.Size, req.File.MIMEType)
	if err != nil {
		return err
	}

	size := req.File.Size
	if size <= 0 {
		size = reader.BytesRead()
	}
	_, err = t.materials.CreateMaterial(ctx, material.Record{
		ID:           id,
		Title:        req.Title,
		Type:         req.Type,
		Size:         size,
		FileURL:      null.StringFrom(url),
		CreatedAt:    nowFunc().UTC(),
		CollectionID: req.CollectionID,
		UploadedBy:   req.UploadedBy,
	})
	if err != nil {
		if delErr := t.store.Delete(context.Background(), key); delErr != nil {
			t.logger.Error("removing orphan object", delErr, map[string]interface{}{"key": key})
		}
		return errors.Wrap(err, "recording material")
	}
	progress(100)
	return nil
}
