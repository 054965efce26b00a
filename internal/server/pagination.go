package server

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/apperror"
)

// Page is a skip/limit window over a collection.
type Page struct {
	Skip  int
	Limit int
}

// ParsePage reads skip and limit from the query string. A missing or zero
// limit gets the configured default and oversized limits are capped.
func ParsePage(c echo.Context, cfg config.GraphConfig) (Page, error) {
	var p Page
	if raw := c.QueryParam("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, apperror.NewInvalid("skip must be a non-negative integer")
		}
		p.Skip = n
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, apperror.NewInvalid("limit must be a non-negative integer")
		}
		limit = n
	}
	p.Limit = cfg.ClampLimit(limit)
	return p, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.NewInvalid(name + " must be a boolean")
	}
	return b, nil
}
