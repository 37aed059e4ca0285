package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/collection"
)

type collectionApi struct {
	deps ServerDeps
}

func registerCollectionAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := collectionApi{deps: deps}

	cg := g.Group("/collections", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, facultyMiddleware())
	cg.POST("/:id/sessions", api.createSession, facultyMiddleware())
}

// ownedCollection returns the collection in the path, if the authenticated user owns it.
func ownedCollection(ctx echo.Context, repo collection.Repository) (collection.Collection, Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return collection.Collection{}, Claims{}, errors.Wrap(err, "getting context claims")
	}
	coll, err := repo.GetCollection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return collection.Collection{}, claims, errors.Wrap(err, "getting collection")
	}
	if coll.OwnerEmail != claims.Email {
		return collection.Collection{}, claims, errHttpNotFound
	}
	return coll, claims, nil
}

func (api *collectionApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	colls, err := api.deps.Collections.ListCollections(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "listing collections")
	}
	return ctx.JSON(http.StatusOK, colls)
}

func (api *collectionApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data newCollection
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to newCollection")
	}
	data.Code = core.CleanString(data.Code)
	data.Name = core.CleanString(data.Name)
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	coll := collection.Collection{
		Code:       data.Code,
		Name:       data.Name,
		OwnerEmail: claims.Email,
		CreatedAt:  time.Now().UTC(),
	}
	if data.StudentCount != nil {
		coll.StudentCount = null.IntFrom(*data.StudentCount)
	}
	if coll, err = api.deps.Collections.CreateCollection(ctx.Request().Context(), coll); err != nil {
		return errors.Wrap(err, "creating collection")
	}
	return ctx.JSON(http.StatusCreated, coll)
}

// createSession records a completed session of the collection and reloads the owner's analytics.
func (api *collectionApi) createSession(ctx echo.Context) error {
	coll, claims, err := ownedCollection(ctx, api.deps.Collections)
	if err != nil {
		return err
	}
	var data newSession
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to newSession")
	}
	if err = api.deps.Validate.Struct(data); err != nil {
		return err
	}

	rec, err := api.deps.Sessions.CreateSession(ctx.Request().Context(), data.Record(coll.ID))
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	rec.CollectionName = coll.DisplayName()

	if err = api.deps.AttendanceSvc.Invalidate(ctx.Request().Context(), claims.Email); err != nil && !core.IsWarning(err) {
		api.deps.Logger.Warn("refreshing analytics", err, claims.Person())
	}
	return ctx.JSON(http.StatusCreated, rec)
}
