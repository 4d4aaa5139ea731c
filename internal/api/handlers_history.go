package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/models"
)

func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validationf("%s parametresi RFC3339 biçiminde olmalı", name).
			WithFields(map[string]string{name: "geçersiz tarih"})
	}
	return &t, nil
}

// queryHistory handles GET /api/history
// @Summary Query history rows
// @Tags History
// @Produce json
// @Param entityType query string false "Entity type"
// @Param entityId query string false "Entity ID"
// @Param action query string false "create, update, delete or restore"
// @Param userId query string false "Author of the change"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} ListResponse
// @Failure 400 {object} ErrorResponse
// @Router /history [get]
func (s *Server) queryHistory(c echo.Context) error {
	from, err := queryTime(c, "from")
	if err != nil {
		return err
	}
	to, err := queryTime(c, "to")
	if err != nil {
		return err
	}

	p := parseListParams(c)
	if c.QueryParam("limit") == "" && s.config.Catalog.HistoryDefaultLimit > 0 {
		p.Limit = s.config.Catalog.HistoryDefaultLimit
	}
	page, err := s.services.History.Query(reqCtx(c), history.Filter{
		EntityType: models.EntityType(c.QueryParam("entityType")),
		EntityID:   c.QueryParam("entityId"),
		Action:     models.HistoryAction(c.QueryParam("action")),
		UserID:     c.QueryParam("userId"),
		From:       from,
		To:         to,
	}, p.Limit, (p.Page-1)*p.Limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope(p, page.Rows, len(page.Rows), page.Total))
}

// entityHistory handles GET /api/history/:entityId
// @Summary History of one entity
// @Description Rows where the entity is the subject or an affected entity, newest first.
// @Tags History
// @Produce json
// @Param entityId path string true "Entity ID"
// @Param entityType query string false "Entity type"
// @Param limit query int false "Page size"
// @Param skip query int false "Rows to skip"
// @Success 200 {object} HistoryPage
// @Failure 400 {object} ErrorResponse
// @Router /history/{entityId} [get]
func (s *Server) entityHistory(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	skip, err := queryInt(c, "skip")
	if err != nil {
		return err
	}
	page, err := s.services.History.GetEntityHistory(reqCtx(c), c.Param("entityId"),
		models.EntityType(c.QueryParam("entityType")), limit, skip)
	if err != nil {
		return err
	}
	if limit == 0 {
		limit = s.config.Catalog.HistoryDefaultLimit
	}
	return c.JSON(http.StatusOK, HistoryPage{Success: true, Total: page.Total, Limit: limit, Skip: skip, Data: page.Rows})
}
