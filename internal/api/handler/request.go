package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/domain"
)

// Default page sizes. Checklist and media lists are longer by default since
// clients usually render them whole.
const (
	defaultLimit     = domain.DefaultPageLimit
	defaultLongLimit = 50
)

// messageResponse is the body of actions that return no entity.
type messageResponse struct {
	Message string `json:"message"`
}

// bind decodes the request into req and runs struct-tag validation.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Invalid("invalid payload")
	}
	return c.Validate(req)
}

// page reads limit and offset from the query string.
func page(c echo.Context, def int) (domain.Page, error) {
	var limit, offset int
	err := echo.QueryParamsBinder(c).
		Int("limit", &limit).
		Int("offset", &offset).
		BindError()
	if err != nil {
		return domain.Page{}, domain.Invalid("limit and offset must be integers")
	}
	return domain.NewPage(limit, offset, def, domain.MaxPageLimit), nil
}

// timeQuery parses an optional RFC 3339 timestamp or date (YYYY-MM-DD) query parameter.
func timeQuery(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid("%s must be an ISO-8601 date", name)
}
