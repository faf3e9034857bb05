package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fieldops/installation-api/internal/core/ports"
)

type AuditHandler struct {
	audit ports.AuditQueryService
}

func NewAuditHandler(audit ports.AuditQueryService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /audit-logs.
//
// @Summary      Search the audit trail
// @Tags         audit
// @Produce      json
// @Param        actor_id   query     string  false  "Actor user id"
// @Param        entity     query     string  false  "Entity name"
// @Param        entity_id  query     string  false  "Entity id"
// @Param        action     query     string  false  "Action, e.g. installation.status_change"
// @Param        date_from  query     string  false  "Created at or after (ISO-8601)"
// @Param        date_to    query     string  false  "Created at or before (ISO-8601)"
// @Param        q          query     string  false  "Action, entity or ip contains"
// @Param        limit      query     int     false  "Page size"
// @Param        offset     query     int     false  "Offset"
// @Success      200        {object}  domain.List[domain.AuditLog]
// @Failure      400        {object}  errorBody
// @Router       /audit-logs [get]
func (h *AuditHandler) List(c echo.Context) error {
	p, err := page(c, defaultLimit)
	if err != nil {
		return err
	}
	from, err := timeQuery(c, "date_from")
	if err != nil {
		return err
	}
	to, err := timeQuery(c, "date_to")
	if err != nil {
		return err
	}

	out, err := h.audit.List(c.Request().Context(), ports.AuditFilter{
		ActorID:  c.QueryParam("actor_id"),
		Entity:   c.QueryParam("entity"),
		EntityID: c.QueryParam("entity_id"),
		Action:   c.QueryParam("action"),
		From:     from,
		To:       to,
		Q:        c.QueryParam("q"),
	}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Get handles GET /audit-logs/:id.
//
// @Summary      Get an audit entry
// @Tags         audit
// @Produce      json
// @Param        id   path      string  true  "Audit log id"
// @Success      200  {object}  domain.AuditLog
// @Failure      404  {object}  errorBody
// @Router       /audit-logs/{id} [get]
func (h *AuditHandler) Get(c echo.Context) error {
	entry, err := h.audit.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}
