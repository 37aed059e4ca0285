package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/attendance"
)

type analyticsApi struct {
	deps ServerDeps
}

// overview is a snapshot, plus the warning to show when the data is not live.
type overview struct {
	attendance.Snapshot
	Warning string `json:"warning,omitempty"`
}

func registerAnalyticsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := analyticsApi{deps: deps}

	ag := g.Group("/analytics", jwt)
	ag.GET("/overview", api.overview)
}

func (api *analyticsApi) overview(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	refresh, err := bindBool(ctx, "refresh")
	if err != nil {
		return err
	}

	snap, err := api.deps.AttendanceSvc.Overview(ctx.Request().Context(), claims.Email, ctx.QueryParam("collection"), refresh)
	resp := overview{Snapshot: snap}
	if err != nil {
		if !core.IsWarning(err) {
			return err
		}
		resp.Warning = err.Error()
	}
	return ctx.JSON(http.StatusOK, resp)
}
