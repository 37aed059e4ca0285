package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type materialApi struct {
	deps ServerDeps
}

func registerMaterialAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := materialApi{deps: deps}

	mg := g.Group("/materials", jwt)
	mg.GET("", api.query)
	mg.GET("/counts", api.counts)
	mg.DELETE("/:id", api.destroy, facultyMiddleware())
}

func (api *materialApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var params materialQuery
	q, err := params.Bind(ctx, api.deps.Validate)
	if err != nil {
		return err
	}
	records, err := api.deps.MaterialSvc.Query(ctx.Request().Context(), claims.Email, q)
	if err != nil {
		return errors.Wrap(err, "querying materials")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *materialApi) counts(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	counts, err := api.deps.MaterialSvc.Counts(ctx.Request().Context(), claims.Email)
	if err != nil {
		return errors.Wrap(err, "counting materials")
	}
	return ctx.JSON(http.StatusOK, counts)
}

func (api *materialApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.deps.MaterialSvc.Delete(ctx.Request().Context(), claims.Email, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting material")
	}
	return ctx.NoContent(http.StatusNoContent)
}
