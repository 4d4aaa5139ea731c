package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/catalog"
	"evalgo.org/mdm/models"
)

func attributeKeys(a *catalog.AttributeView) listKeys {
	return listKeys{Code: a.Code, Name: catalog.DisplayName(a.Name), CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
}

func attributeGroupKeys(g *catalog.AttributeGroupView) listKeys {
	return listKeys{Code: g.Code, Name: catalog.DisplayName(g.Name), CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt}
}

// listAttributes handles GET /api/attributes
// @Summary List attributes
// @Tags Attributes
// @Produce json
// @Param isActive query bool false "Filter by active flag"
// @Param type query string false "Filter by attribute type"
// @Param attributeGroup query string false "Only attributes of this group"
// @Param search query string false "Search in code and name"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} ListResponse
// @Failure 400 {object} ErrorResponse
// @Router /attributes [get]
func (s *Server) listAttributes(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListAttributes(reqCtx(c), catalog.AttributeFilter{
		IsActive:       active,
		Type:           models.AttributeType(c.QueryParam("type")),
		AttributeGroup: c.QueryParam("attributeGroup"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, attributeKeys)
}

// getAttribute handles GET /api/attributes/:id
// @Summary Get an attribute
// @Tags Attributes
// @Produce json
// @Param id path string true "Attribute ID"
// @Success 200 {object} DataResponse
// @Failure 404 {object} ErrorResponse
// @Router /attributes/{id} [get]
func (s *Server) getAttribute(c echo.Context) error {
	view, err := s.services.Catalog.GetAttribute(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createAttribute handles POST /api/attributes
// @Summary Create an attribute
// @Tags Attributes
// @Accept json
// @Produce json
// @Param attribute body catalog.AttributeInput true "Attribute"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attributes [post]
func (s *Server) createAttribute(c echo.Context) error {
	var in catalog.AttributeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.CreateAttribute(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, view)
}

// updateAttribute handles PUT /api/attributes/:id
// @Summary Update an attribute
// @Tags Attributes
// @Accept json
// @Produce json
// @Param id path string true "Attribute ID"
// @Param attribute body catalog.AttributeInput true "Changed fields"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attributes/{id} [put]
func (s *Server) updateAttribute(c echo.Context) error {
	var in catalog.AttributeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.UpdateAttribute(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// deleteAttribute handles DELETE /api/attributes/:id
// @Summary Delete an attribute
// @Tags Attributes
// @Produce json
// @Param id path string true "Attribute ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /attributes/{id} [delete]
func (s *Server) deleteAttribute(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteAttribute(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}

// getAttributeGroupsOf handles GET /api/attributes/:id/groups
func (s *Server) getAttributeGroupsOf(c echo.Context) error {
	groups, err := s.services.Catalog.GetAttributeGroupsOf(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, groups)
}

// setAttributeGroups handles PUT /api/attributes/:id/groups
// @Summary Replace the groups of an attribute
// @Tags Attributes
// @Accept json
// @Produce json
// @Param id path string true "Attribute ID"
// @Param groups body AttributeGroupsRequest true "Group IDs"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attributes/{id}/groups [put]
func (s *Server) setAttributeGroups(c echo.Context) error {
	var req AttributeGroupsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	groups, err := s.services.Catalog.SetAttributeGroups(reqCtx(c), c.Param("id"), req.AttributeGroups, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, groups)
}

// listAttributeGroups handles GET /api/attributeGroups
func (s *Server) listAttributeGroups(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListAttributeGroups(reqCtx(c), catalog.AttributeGroupFilter{
		IsActive:  active,
		Attribute: c.QueryParam("attribute"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, attributeGroupKeys)
}

// getAttributeGroup handles GET /api/attributeGroups/:id
func (s *Server) getAttributeGroup(c echo.Context) error {
	view, err := s.services.Catalog.GetAttributeGroup(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createAttributeGroup handles POST /api/attributeGroups
// @Summary Create an attribute group
// @Tags AttributeGroups
// @Accept json
// @Produce json
// @Param group body catalog.AttributeGroupInput true "Attribute group"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attributeGroups [post]
func (s *Server) createAttributeGroup(c echo.Context) error {
	var in catalog.AttributeGroupInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.CreateAttributeGroup(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, view)
}

// updateAttributeGroup handles PUT /api/attributeGroups/:id
func (s *Server) updateAttributeGroup(c echo.Context) error {
	var in catalog.AttributeGroupInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.UpdateAttributeGroup(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// deleteAttributeGroup handles DELETE /api/attributeGroups/:id
func (s *Server) deleteAttributeGroup(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteAttributeGroup(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}
