package echoapi

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core/upload"
)

type uploadApi struct {
	deps ServerDeps
}

func registerUploadAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := uploadApi{deps: deps}

	g.POST("/collections/:id/uploads", api.create, jwt, facultyMiddleware())
	g.GET("/uploads", api.query, jwt, facultyMiddleware())

	ug := g.Group("/uploads/:batch", jwt, facultyMiddleware())
	ug.GET("", api.retrieve)
	ug.DELETE("", api.cancel)
}

// create runs one upload batch and answers once every file is terminal:
// 201 when at least one file made it, 422 otherwise.
func (api *uploadApi) create(ctx echo.Context) error {
	coll, claims, err := ownedCollection(ctx, api.deps.Collections)
	if err != nil {
		return err
	}

	var headers []*multipart.FileHeader
	form, err := ctx.MultipartForm()
	switch err {
	case nil:
		headers = form.File["files"]
	case http.ErrNotMultipart, http.ErrMissingBoundary: // no files; validation reports it
	default:
		return errors.Wrap(err, "parsing multipart form")
	}

	files := make([]upload.File, len(headers))
	for i, fh := range headers {
		fh := fh
		files[i] = upload.File{
			Name:     fh.Filename,
			Size:     fh.Size,
			MIMEType: fh.Header.Get(echo.HeaderContentType),
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	// the batch does not die with the request: a dropped client cancels it below
	reqCtx := ctx.Request().Context()
	coord, err := api.deps.UploadSvc.Start(context.WithoutCancel(reqCtx), upload.NewBatch{
		CollectionID: coll.ID,
		Title:        ctx.FormValue("title"),
		UploadedBy:   claims.Email,
		Files:        files,
	})
	if err != nil {
		return err
	}
	result, err := coord.Wait(reqCtx)
	if err != nil {
		coord.CancelBatch()
		api.deps.Logger.Info("upload client went away, batch cancelled", map[string]interface{}{"batch": coord.ID()})
		return nil
	}

	code := http.StatusCreated
	if !result.AnySucceeded() {
		code = http.StatusUnprocessableEntity
	}
	return ctx.JSON(code, result)
}

func (api *uploadApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return ctx.JSON(http.StatusOK, api.deps.UploadSvc.List(claims.Email))
}

// ownedBatch returns the batch in the path, if the authenticated user started it.
func (api *uploadApi) ownedBatch(ctx echo.Context) (upload.Batch, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return upload.Batch{}, errors.Wrap(err, "getting context claims")
	}
	batch, err := api.deps.UploadSvc.Get(ctx.Param("batch"))
	if err != nil {
		return upload.Batch{}, err
	}
	if batch.UploadedBy != claims.Email {
		return upload.Batch{}, errHttpNotFound
	}
	return batch, nil
}

func (api *uploadApi) retrieve(ctx echo.Context) error {
	batch, err := api.ownedBatch(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, batch)
}

func (api *uploadApi) cancel(ctx echo.Context) error {
	batch, err := api.ownedBatch(ctx)
	if err != nil {
		return err
	}
	if err = api.deps.UploadSvc.Cancel(batch.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
