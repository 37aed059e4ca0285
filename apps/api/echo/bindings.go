package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/orbit/core"
	"github.com/trezcool/orbit/core/attendance"
	"github.com/trezcool/orbit/core/material"
)

// materialQuery holds the `GET /materials` query params.
type materialQuery struct {
	Collection string `json:"collection" validate:"max=64"`
	Search     string `json:"search" validate:"max=200"`
	Ordering   string `json:"ordering" validate:"omitempty,ordering"`
	Refresh    bool   `json:"refresh"`
}

func (q *materialQuery) Bind(ctx echo.Context, validate *validator.Validate) (material.Query, error) {
	q.Collection = core.CleanString(ctx.QueryParam("collection"))
	q.Search = core.CleanString(ctx.QueryParam("search"))
	q.Ordering = core.CleanString(ctx.QueryParam("ordering"))

	var err error
	if q.Refresh, err = bindBool(ctx, "refresh"); err != nil {
		return material.Query{}, err
	}
	if err = validate.Struct(q); err != nil {
		return material.Query{}, err
	}

	orderings := core.ParseOrderings(q.Ordering)
	for _, ord := range orderings {
		if !material.IsOrderingField(ord.Field) {
			return material.Query{}, core.NewValidationError(nil, core.FieldError{
				Field: "ordering",
				Error: "unknown field " + strconv.Quote(ord.Field) + ", use one of: " + strings.Join(material.OrderingFields, ", "),
			})
		}
	}
	return material.Query{
		Collection: q.Collection,
		Search:     q.Search,
		Orderings:  orderings,
		Refresh:    q.Refresh,
	}, nil
}

// bindBool reads an optional boolean query param; absent means false.
func bindBool(ctx echo.Context, param string) (bool, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, core.NewValidationError(nil, core.FieldError{Field: param, Error: "must be a boolean"})
	}
	return b, nil
}

// newSession is the body of `POST /collections/:id/sessions`.
type newSession struct {
	StartTime           time.Time `json:"startTime" validate:"required"`
	DurationMinutes     int       `json:"durationMinutes" validate:"gt=0,lte=1440"`
	TotalParticipants   int       `json:"totalParticipants" validate:"gte=0"`
	PresentParticipants int       `json:"presentParticipants" validate:"gte=0,ltefield=TotalParticipants"`
}

func (ns newSession) Record(collectionID string) attendance.SessionRecord {
	return attendance.NewSessionRecord(
		"", collectionID, ns.StartTime, ns.DurationMinutes, ns.TotalParticipants, ns.PresentParticipants,
		attendance.ProvenanceRemote,
	)
}

// newCollection is the body of `POST /collections`.
type newCollection struct {
	Code         string `json:"code" validate:"required,max=32"`
	Name         string `json:"name" validate:"max=200"`
	StudentCount *int   `json:"studentCount" validate:"omitempty,gte=0"`
}
