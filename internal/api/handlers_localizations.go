package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// listLanguages handles GET /api/localizations/languages
func (s *Server) listLanguages(c echo.Context) error {
	langs, err := s.services.Localization.Languages(reqCtx(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, langs)
}

// getLocalizationBundle handles GET /api/localizations/:lang
// @Summary Translations of one language
// @Description Returns a flat map of namespace.key to text.
// @Tags Localizations
// @Produce json
// @Param lang path string true "Language code"
// @Success 200 {object} DataResponse
// @Router /localizations/{lang} [get]
func (s *Server) getLocalizationBundle(c echo.Context) error {
	bundle, err := s.services.Localization.Bundle(reqCtx(c), c.Param("lang"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, bundle)
}

// upsertLocalization handles POST /api/localizations
// @Summary Create or update a translation key
// @Tags Localizations
// @Accept json
// @Produce json
// @Param localization body LocalizationRequest true "Translations"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Router /localizations [post]
func (s *Server) upsertLocalization(c echo.Context) error {
	var req LocalizationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	loc, err := s.services.Localization.Upsert(reqCtx(c), req.Key, req.Namespace, req.Translations, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, loc)
}
