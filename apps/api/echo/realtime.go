package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func registerRealtimeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	// GET /v1/ws?token=<jwt> streams the progress, batch_complete, catalog and snapshot events of the user.
	g.GET("/ws", func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		return deps.Hub.Serve(ctx.Response(), ctx.Request(), claims.Email)
	}, jwt)
}
