package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// TypeInput is the create/update payload of a RelationshipType.
type TypeInput struct {
	Rev                string                 `json:"_rev,omitempty"`
	Code               *string                `json:"code" validate:"omitempty,min=1,max=100"`
	Name               *string                `json:"name"`
	Description        *string                `json:"description"`
	IsDirectional      *bool                  `json:"isDirectional"`
	AllowedSourceTypes *[]string              `json:"allowedSourceTypes"`
	AllowedTargetTypes *[]string              `json:"allowedTargetTypes"`
	AttributeSchema    map[string]interface{} `json:"attributeSchema"`
}

// CreateType stores a new relationship type. The attribute schema, when
// given, must compile.
func (s *Service) CreateType(ctx context.Context, in TypeInput, userID string) (*models.RelationshipType, error) {
	rt := &models.RelationshipType{
		Document:      models.Document{ID: models.GenerateID("relationshipType")},
		IsDirectional: true,
	}
	if err := applyTypeInput(rt, in); err != nil {
		return nil, err
	}

	var missing []string
	if rt.Code == "" {
		missing = append(missing, "code")
	}
	if rt.Name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields("Zorunlu alanlar eksik", missing)
	}
	if err := s.ensureUniqueCode(ctx, rt.Code, ""); err != nil {
		return nil, err
	}

	rt.Touch(userID, s.now())
	if err := s.store.SaveRelationshipType(ctx, rt); err != nil {
		return nil, fmt.Errorf("save relationship type: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationshipType), string(models.ActionCreate))
	return rt, nil
}

// GetType returns a relationship type.
func (s *Service) GetType(ctx context.Context, id string) (*models.RelationshipType, error) {
	rt, err := s.store.GetRelationshipType(ctx, id)
	if err != nil {
		return nil, notFound(err, labelRelationshipType, id)
	}
	return rt, nil
}

// ListTypes returns every relationship type.
func (s *Service) ListTypes(ctx context.Context) ([]*models.RelationshipType, error) {
	return s.store.ListRelationshipTypes(ctx, nil)
}

// UpdateType applies in to a relationship type. Existing relationships are
// not re-validated against a narrowed allow-list or a changed schema.
func (s *Service) UpdateType(ctx context.Context, id string, in TypeInput, userID string) (*models.RelationshipType, error) {
	rt, err := s.store.GetRelationshipType(ctx, id)
	if err != nil {
		return nil, notFound(err, labelRelationshipType, id)
	}
	if in.Rev != "" && in.Rev != rt.Rev {
		return nil, apperror.Conflict("Kayıt siz düzenlerken değiştirildi, lütfen yeniden yükleyin")
	}
	oldCode := rt.Code
	if err := applyTypeInput(rt, in); err != nil {
		return nil, err
	}
	if rt.Code == "" || rt.Name == "" {
		return nil, apperror.Validation("Kod ve ad boş olamaz")
	}
	if rt.Code != oldCode {
		if err := s.ensureUniqueCode(ctx, rt.Code, rt.ID); err != nil {
			return nil, err
		}
	}

	rt.Touch(userID, s.now())
	if err := s.store.SaveRelationshipType(ctx, rt); err != nil {
		return nil, fmt.Errorf("save relationship type: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationshipType), string(models.ActionUpdate))
	return rt, nil
}

// DeleteType removes a relationship type that no relationship uses.
func (s *Service) DeleteType(ctx context.Context, id string) error {
	rt, err := s.store.GetRelationshipType(ctx, id)
	if err != nil {
		return notFound(err, labelRelationshipType, id)
	}
	n, err := s.store.CountType(ctx, models.TypeRelationship, storage.Filters{"relationshipTypeId": id})
	if err != nil {
		return fmt.Errorf("count relationships: %w", err)
	}
	if n > 0 {
		return apperror.Conflict(fmt.Sprintf("%s tipi %d ilişki tarafından kullanılıyor", rt.Code, n))
	}
	if err := s.store.Delete(ctx, rt.ID, rt.Rev); err != nil {
		return fmt.Errorf("delete relationship type: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationshipType), string(models.ActionDelete))
	return nil
}

func applyTypeInput(rt *models.RelationshipType, in TypeInput) error {
	if in.Code != nil {
		rt.Code = strings.TrimSpace(*in.Code)
	}
	if in.Name != nil {
		rt.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		rt.Description = *in.Description
	}
	if in.IsDirectional != nil {
		rt.IsDirectional = *in.IsDirectional
	}
	if in.AllowedSourceTypes != nil {
		rt.AllowedSourceTypes = *in.AllowedSourceTypes
	}
	if in.AllowedTargetTypes != nil {
		rt.AllowedTargetTypes = *in.AllowedTargetTypes
	}
	if in.AttributeSchema != nil {
		if len(in.AttributeSchema) > 0 {
			if _, err := compileSchema(in.AttributeSchema); err != nil {
				return err
			}
		}
		rt.AttributeSchema = in.AttributeSchema
	}
	if rt.AllowedSourceTypes == nil {
		rt.AllowedSourceTypes = []string{}
	}
	if rt.AllowedTargetTypes == nil {
		rt.AllowedTargetTypes = []string{}
	}
	return nil
}

func (s *Service) ensureUniqueCode(ctx context.Context, code, selfID string) error {
	existing, err := s.store.FindRelationshipTypeByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return apperror.Duplicate(labelRelationshipType, "code", code)
	}
	return nil
}
