package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/relationship"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

func relationshipKeys(r *models.Relationship) listKeys {
	return listKeys{Code: r.RelationshipTypeID, Name: r.SourceEntityID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func relationshipTypeKeys(t *models.RelationshipType) listKeys {
	return listKeys{Code: t.Code, Name: t.Name, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt}
}

// listRelationships handles GET /api/relationships
func (s *Server) listRelationships(c echo.Context) error {
	status := models.RelationshipStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return apperror.Validationf("Geçersiz durum: %s", status).
			WithFields(map[string]string{"status": "active, inactive, pending veya archived olmalı"})
	}
	rows, err := s.services.Relationships.List(reqCtx(c), relationship.Filter{
		RelationshipTypeID: c.QueryParam("relationshipTypeId"),
		Status:             status,
		SourceEntityID:     c.QueryParam("sourceEntityId"),
		TargetEntityID:     c.QueryParam("targetEntityId"),
	})
	if err != nil {
		return err
	}
	return respondList(c, rows, relationshipKeys)
}

// relationshipsByEntity handles GET /api/relationships/entity/:entityType/:entityId
// @Summary Relationships touching an entity
// @Tags Relationships
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Param role query string false "source, target or any"
// @Success 200 {object} ListResponse
// @Failure 400 {object} ErrorResponse
// @Router /relationships/entity/{entityType}/{entityId} [get]
func (s *Server) relationshipsByEntity(c echo.Context) error {
	role := storage.EntityRole(c.QueryParam("role"))
	switch role {
	case "":
		role = storage.EntityRoleAny
	case storage.EntityRoleSource, storage.EntityRoleTarget, storage.EntityRoleAny:
	default:
		return apperror.Validationf("Geçersiz rol: %s", role).
			WithFields(map[string]string{"role": "source, target veya any olmalı"})
	}
	rows, err := s.services.Relationships.GetByEntity(reqCtx(c), c.Param("entityId"), c.Param("entityType"), role)
	if err != nil {
		return err
	}
	return respondList(c, rows, relationshipKeys)
}

// getRelationship handles GET /api/relationships/:id
func (s *Server) getRelationship(c echo.Context) error {
	rel, err := s.services.Relationships.Get(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rel)
}

// createRelationship handles POST /api/relationships
// @Summary Create a relationship
// @Description The endpoints must exist and be allowed by the relationship type. Attributes are checked against the type's schema.
// @Tags Relationships
// @Accept json
// @Produce json
// @Param relationship body relationship.Input true "Relationship"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /relationships [post]
func (s *Server) createRelationship(c echo.Context) error {
	var in relationship.Input
	if err := bind(c, &in); err != nil {
		return err
	}
	rel, err := s.services.Relationships.Create(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, rel)
}

// updateRelationship handles PUT /api/relationships/:id
func (s *Server) updateRelationship(c echo.Context) error {
	var in relationship.Input
	if err := bind(c, &in); err != nil {
		return err
	}
	rel, err := s.services.Relationships.Update(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rel)
}

// changeRelationshipStatus handles PATCH /api/relationships/:id/status
// @Summary Change the status of a relationship
// @Tags Relationships
// @Accept json
// @Produce json
// @Param id path string true "Relationship ID"
// @Param status body StatusRequest true "New status"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /relationships/{id}/status [patch]
func (s *Server) changeRelationshipStatus(c echo.Context) error {
	var req StatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rel, err := s.services.Relationships.ChangeStatus(reqCtx(c), c.Param("id"), models.RelationshipStatus(req.Status), actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rel)
}

// deleteRelationship handles DELETE /api/relationships/:id
func (s *Server) deleteRelationship(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Relationships.Delete(reqCtx(c), id); err != nil {
		return err
	}
	return respondDeleted(c, id)
}

// listRelationshipTypes handles GET /api/relationship-types
func (s *Server) listRelationshipTypes(c echo.Context) error {
	rows, err := s.services.Relationships.ListTypes(reqCtx(c))
	if err != nil {
		return err
	}
	return respondList(c, rows, relationshipTypeKeys)
}

// getRelationshipType handles GET /api/relationship-types/:id
func (s *Server) getRelationshipType(c echo.Context) error {
	rt, err := s.services.Relationships.GetType(reqCtx(c), c.Param("id"))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rt)
}

// createRelationshipType handles POST /api/relationship-types
// @Summary Create a relationship type
// @Tags RelationshipTypes
// @Accept json
// @Produce json
// @Param type body relationship.TypeInput true "Relationship type"
// @Success 201 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /relationship-types [post]
func (s *Server) createRelationshipType(c echo.Context) error {
	var in relationship.TypeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	rt, err := s.services.Relationships.CreateType(reqCtx(c), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusCreated, rt)
}

// updateRelationshipType handles PUT /api/relationship-types/:id
func (s *Server) updateRelationshipType(c echo.Context) error {
	var in relationship.TypeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	rt, err := s.services.Relationships.UpdateType(reqCtx(c), c.Param("id"), in, actor(c))
	if err != nil {
		return err
	}
	return respondData(c, http.StatusOK, rt)
}

// deleteRelationshipType handles DELETE /api/relationship-types/:id
// @Summary Delete a relationship type
// @Description Fails with 409 while relationships of this type exist.
// @Tags RelationshipTypes
// @Produce json
// @Param id path string true "Relationship type ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /relationship-types/{id} [delete]
func (s *Server) deleteRelationshipType(c echo.Context) error {
	id := c.Param("id")
	if err := s.services.Relationships.DeleteType(reqCtx(c), id); err != nil {
		return err
	}
	return respondDeleted(c, id)
}
