package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// integrityScan handles GET /api/integrity/scan
// @Summary Scan the catalog for integrity issues
// @Description Finds dangling references, Category and Family links that disagree, and stale attribute closures
// @Tags Integrity
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DataResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /integrity/scan [get]
func (s *Server) integrityScan(c echo.Context) error {
	report, err := s.services.Integrity.Scan(reqCtx(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, report)
}

// integrityRepair handles POST /api/integrity/repair
// @Summary Repair integrity issues
// @Description Builds a repair plan from a fresh scan and executes it. With dryRun=true nothing is written.
// @Tags Integrity
// @Produce json
// @Security BearerAuth
// @Param dryRun query bool false "Only report what would change"
// @Success 200 {object} RepairResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /integrity/repair [post]
func (s *Server) integrityRepair(c echo.Context) error {
	dryRun, err := queryBool(c, "dryRun")
	if err != nil {
		return err
	}
	plan, _, err := s.services.Integrity.CreateRepairPlan(reqCtx(c))
	if err != nil {
		return err
	}
	result := s.services.Integrity.ExecutePlan(reqCtx(c), plan, dryRun != nil && *dryRun)
	return c.JSON(http.StatusOK, RepairResponse{Success: result.FailureCount == 0, Plan: plan, Result: result})
}
