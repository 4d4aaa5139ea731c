package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/catalog"
)

func itemKeys(v *catalog.ItemView) listKeys {
	k := listKeys{Code: v.ID, CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
	if v.ItemType != nil {
		k.Name = v.ItemType.Code
	}
	return k
}

// listItems handles GET /api/items
// @Summary List items
// @Tags Items
// @Produce json
// @Param isActive query bool false "Filter by active flag"
// @Param itemType query string false "Filter by item type"
// @Param family query string false "Filter by family"
// @Param category query string false "Filter by category"
// @Success 200 {object} ListResponse
// @Router /items [get]
func (s *Server) listItems(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListItems(reqCtx(c), catalog.ItemFilter{
		IsActive: active,
		ItemType: c.QueryParam("itemType"),
		Family:   c.QueryParam("family"),
		Category: c.QueryParam("category"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, itemKeys)
}

// getItem handles GET /api/items/:id
func (s *Server) getItem(c echo.Context) error {
	view, err := s.services.Catalog.GetItem(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createItem handles POST /api/items
// @Summary Create an item
// @Description Attribute values are checked against the attributes required by the item type and category.
// @Tags Items
// @Accept json
// @Produce json
// @Param item body catalog.ItemInput true "Item"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Router /items [post]
func (s *Server) createItem(c echo.Context) error {
	var in catalog.ItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.CreateItem(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, view)
}

// updateItem handles PUT /api/items/:id
func (s *Server) updateItem(c echo.Context) error {
	var in catalog.ItemInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, err := s.services.Catalog.UpdateItem(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// deleteItem handles DELETE /api/items/:id
func (s *Server) deleteItem(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteItem(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}

// requiredAttributes handles GET /api/ItemTypes/:id/required-attributes
// @Summary Attributes an item of this type must carry
// @Tags ItemTypes
// @Produce json
// @Param id path string true "Item type ID"
// @Param category query string false "Category the item is placed in"
// @Success 200 {object} DataResponse
// @Failure 404 {object} ErrorResponse
// @Router /ItemTypes/{id}/required-attributes [get]
func (s *Server) requiredAttributes(c echo.Context) error {
	attrs, err := s.services.Catalog.RequiredAttributes(reqCtx(c), c.Param("id"), c.QueryParam("category"))
	if err != nil {
		return err
	}
	views, err := s.services.Catalog.AttributeViews(reqCtx(c), attrs)
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, views)
}
