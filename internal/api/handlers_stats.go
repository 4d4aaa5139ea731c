package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// getStatistics handles GET /api/stats
// @Summary Document counts per entity type
// @Tags System
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DataResponse
// @Router /stats [get]
func (s *Server) getStatistics(c echo.Context) error {
	stats, err := s.services.Storage.GetStatistics(reqCtx(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, stats)
}
