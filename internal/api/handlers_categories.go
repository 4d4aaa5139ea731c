package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/catalog"
)

func categoryKeys(v *catalog.CategoryView) listKeys {
	return listKeys{Code: v.Code, Name: catalog.DisplayName(v.Name), CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
}

func familyKeys(v *catalog.FamilyView) listKeys {
	return listKeys{Code: v.Code, Name: catalog.DisplayName(v.Name), CreatedAt: v.CreatedAt, UpdatedAt: v.UpdatedAt}
}

// listCategories handles GET /api/categories
// @Summary List categories
// @Tags Categories
// @Produce json
// @Param isActive query bool false "Filter by active flag"
// @Param parent query string false "Filter by parent category"
// @Param family query string false "Filter by family"
// @Param attributeGroup query string false "Filter by attribute group"
// @Param search query string false "Search in code and name"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} ListResponse
// @Router /categories [get]
func (s *Server) listCategories(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListCategories(reqCtx(c), catalog.CategoryFilter{
		IsActive:       active,
		Parent:         c.QueryParam("parent"),
		Family:         c.QueryParam("family"),
		AttributeGroup: c.QueryParam("attributeGroup"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, categoryKeys)
}

// categoriesByItemType handles GET /api/categories/by-itemtype/:itemTypeId
func (s *Server) categoriesByItemType(c echo.Context) error {
	rows, err := s.services.Catalog.CategoriesByItemType(reqCtx(c), c.Param("itemTypeId"))
	if err != nil {
		return err
	}
	return respondList(c, rows, categoryKeys)
}

// getCategory handles GET /api/categories/:id
func (s *Server) getCategory(c echo.Context) error {
	view, err := s.services.Catalog.GetCategory(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createCategory handles POST /api/categories
// @Summary Create a category
// @Description Creates a category. A family given in the body is linked both ways.
// @Tags Categories
// @Accept json
// @Produce json
// @Param category body catalog.CategoryInput true "Category"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /categories [post]
func (s *Server) createCategory(c echo.Context) error {
	var in catalog.CategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, report, err := s.services.Catalog.CreateCategory(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondSynced(c, http.StatusCreated, view, report)
}

// updateCategory handles PUT /api/categories/:id
// @Summary Update a category
// @Description Only the fields present in the body change. An empty family removes the link on both sides.
// @Tags Categories
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param category body catalog.CategoryInput true "Changed fields"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /categories/{id} [put]
func (s *Server) updateCategory(c echo.Context) error {
	var in catalog.CategoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, report, err := s.services.Catalog.UpdateCategory(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondSynced(c, http.StatusOK, view, report)
}

// deleteCategory handles DELETE /api/categories/:id
func (s *Server) deleteCategory(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteCategory(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}

// listFamilies handles GET /api/families
func (s *Server) listFamilies(c echo.Context) error {
	active, err := queryBool(c, "isActive")
	if err != nil {
		return err
	}
	rows, err := s.services.Catalog.ListFamilies(reqCtx(c), catalog.FamilyFilter{
		IsActive:       active,
		Parent:         c.QueryParam("parent"),
		Category:       c.QueryParam("category"),
		ItemType:       c.QueryParam("itemType"),
		AttributeGroup: c.QueryParam("attributeGroup"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, familyKeys)
}

// familiesByCategory handles GET /api/families/by-category/:categoryId
func (s *Server) familiesByCategory(c echo.Context) error {
	rows, err := s.services.Catalog.FamiliesByCategory(reqCtx(c), c.Param("categoryId"))
	if err != nil {
		return err
	}
	return respondList(c, rows, familyKeys)
}

// getFamily handles GET /api/families/:id
func (s *Server) getFamily(c echo.Context) error {
	view, err := s.services.Catalog.GetFamily(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, view)
}

// createFamily handles POST /api/families
// @Summary Create a family
// @Tags Families
// @Accept json
// @Produce json
// @Param family body catalog.FamilyInput true "Family"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /families [post]
func (s *Server) createFamily(c echo.Context) error {
	var in catalog.FamilyInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, report, err := s.services.Catalog.CreateFamily(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondSynced(c, http.StatusCreated, view, report)
}

// updateFamily handles PUT /api/families/:id
func (s *Server) updateFamily(c echo.Context) error {
	var in catalog.FamilyInput
	if err := bind(c, &in); err != nil {
		return err
	}
	view, report, err := s.services.Catalog.UpdateFamily(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondSynced(c, http.StatusOK, view, report)
}

// deleteFamily handles DELETE /api/families/:id
func (s *Server) deleteFamily(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Catalog.DeleteFamily(reqCtx(c), id, actor(c)); err != nil {
		return err
	}
	return respondDeleted(c, id)
}
