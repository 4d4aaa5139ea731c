package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/catalog"
)

func itemTypeKeys(v *catalog.ItemTypeView) listKeys {
	return listKeys{Code: v.Code, Name: catalog.DisplayName(v.Name), CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
}

func associationKeys(v *catalog.AssociationView) listKeys {
	return listKeys{Code: v.Code, Name: catalog.DisplayName(v.Name), CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
}

// listItemTypes handles GET /api/ItemTypes
// @Summary List item types
// @Tags ItemTypes
// @Produce json
// @Param isActive query bool false "Filter by active flag"
// @Param category query string false "Filter by category"
// @Param attributeGroup query string false "Filter by attribute group"
// @Success 200 {object} ListResponse
// @Router /ItemTypes [get]
func (s *Server) listItemTypes(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListItemTypes(reqCtx(c), catalog.ItemTypeFilter{
		IsActive:       active,
		Category:       c.QueryParam("category"),
		AttributeGroup: c.QueryParam("attributeGroup"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, itemTypeKeys)
}

// navbarItemTypes handles GET /api/ItemTypes/navbar
func (s *Server) navbarItemTypes(c echo.Context) error {
	rows, err := s.services.Catalog.NavbarItemTypes(reqCtx(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rows)
}

// getItemTypeByCode handles GET /api/ItemTypes/code/:code
func (s *Server) getItemTypeByCode(c echo.Context) error {
	view, err := s.services.Catalog.GetItemTypeByCode(reqCtx(c), c.Param("code"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// getItemType handles GET /api/ItemTypes/:id
func (s *Server) getItemType(c echo.Context) error {
	view, err := s.services.Catalog.GetItemType(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createItemType handles POST /api/ItemTypes
// @Summary Create an item type
// @Tags ItemTypes
// @Accept json
// @Produce json
// @Param itemType body catalog.ItemTypeInput true "Item type"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /ItemTypes [post]
func (s *Server) createItemType(c echo.Context) error {
	var in catalog.ItemTypeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.CreateItemType(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, view)
}

// updateItemType handles PUT /api/ItemTypes/:id
func (s *Server) updateItemType(c echo.Context) error {
	var in catalog.ItemTypeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.UpdateItemType(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// deleteItemType handles DELETE /api/ItemTypes/:id
func (s *Server) deleteItemType(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteItemType(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}

// listAssociations handles GET /api/associations
func (s *Server) listAssociations(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListAssociations(reqCtx(c), catalog.AssociationFilter{
		IsActive: active,
		ItemType: c.QueryParam("itemType"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, associationKeys)
}

// getAssociation handles GET /api/associations/:id
func (s *Server) getAssociation(c echo.Context) error {
	view, err := s.services.Catalog.GetAssociation(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createAssociation handles POST /api/associations
// @Summary Create an association between item types
// @Tags Associations
// @Accept json
// @Produce json
// @Param association body catalog.AssociationInput true "Association"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /associations [post]
func (s *Server) createAssociation(c echo.Context) error {
	var in catalog.AssociationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.CreateAssociation(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, view)
}

// updateAssociation handles PUT /api/associations/:id
func (s *Server) updateAssociation(c echo.Context) error {
	var in catalog.AssociationInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.UpdateAssociation(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// deleteAssociation handles DELETE /api/associations/:id
func (s *Server) deleteAssociation(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteAssociation(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}
