// Package relationship implements typed, schema-validated links between
// arbitrary catalog entities. A RelationshipType declares which entity
// kinds may appear at each end and, optionally, a JSON schema for the
// attributes a Relationship of that type carries.
package relationship

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

const (
	labelRelationship     = "İlişki"
	labelRelationshipType = "İlişki tipi"
)

// Service manages relationships and relationship types.
type Service struct {
	store   *storage.Storage
	metrics *metrics.Metrics
	schemas *schemaCache
	now     func() time.Time
}

// NewService creates a relationship service.
func NewService(store *storage.Storage, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		metrics: m,
		schemas: newSchemaCache(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for default start dates.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Input is the create/update payload of a Relationship.
type Input struct {
	Rev                string                     `json:"_rev,omitempty"`
	RelationshipTypeID *string                    `json:"relationshipTypeId"`
	SourceEntityID     *string                    `json:"sourceEntityId"`
	SourceEntityType   *string                    `json:"sourceEntityType"`
	TargetEntityID     *string                    `json:"targetEntityId"`
	TargetEntityType   *string                    `json:"targetEntityType"`
	StartDate          *time.Time                 `json:"startDate"`
	EndDate            *time.Time                 `json:"endDate"`
	Status             *models.RelationshipStatus `json:"status" validate:"omitempty,oneof=active inactive pending archived"`
	Priority           *int                       `json:"priority"`
	Attributes         map[string]interface{}     `json:"attributes"`
}

// Filter narrows List.
type Filter struct {
	RelationshipTypeID string
	Status             models.RelationshipStatus
	SourceEntityID     string
	TargetEntityID     string
}

// Create validates and stores a new relationship. Status defaults to
// active and the start date to now.
func (s *Service) Create(ctx context.Context, in Input, userID string) (*models.Relationship, error) {
	r := &models.Relationship{
		Document:           models.Document{ID: models.GenerateID("relationship")},
		RelationshipTypeID: strings.TrimSpace(deref(in.RelationshipTypeID)),
		SourceEntityID:     strings.TrimSpace(deref(in.SourceEntityID)),
		SourceEntityType:   strings.TrimSpace(deref(in.SourceEntityType)),
		TargetEntityID:     strings.TrimSpace(deref(in.TargetEntityID)),
		TargetEntityType:   strings.TrimSpace(deref(in.TargetEntityType)),
		Status:             models.RelationshipActive,
		StartDate:          s.now(),
		EndDate:            in.EndDate,
		Attributes:         in.Attributes,
	}
	if in.Status != nil {
		r.Status = *in.Status
	}
	if in.StartDate != nil {
		r.StartDate = *in.StartDate
	}
	if in.Priority != nil {
		r.Priority = *in.Priority
	}

	var missing []string
	for field, v := range map[string]string{
		"relationshipTypeId": r.RelationshipTypeID,
		"sourceEntityId":     r.SourceEntityID,
		"sourceEntityType":   r.SourceEntityType,
		"targetEntityId":     r.TargetEntityID,
		"targetEntityType":   r.TargetEntityType,
	} {
		if v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields("Zorunlu alanlar eksik", missing)
	}

	rt, err := s.relationshipType(ctx, r.RelationshipTypeID)
	if err != nil {
		return nil, err
	}
	if err := checkEnds(rt, r); err != nil {
		return nil, err
	}
	if err := s.checkFields(rt, r); err != nil {
		return nil, err
	}

	r.Touch(userID, s.now())
	if err := s.store.SaveRelationship(ctx, r); err != nil {
		return nil, fmt.Errorf("save relationship: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationship), string(models.ActionCreate))
	logging.FromContext(ctx).WithField("relationshipId", r.ID).Debug("relationship created")
	return r, nil
}

// Get returns a relationship.
func (s *Service) Get(ctx context.Context, id string) (*models.Relationship, error) {
	r, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, notFound(err, labelRelationship, id)
	}
	return r, nil
}

// List returns the relationships matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]*models.Relationship, error) {
	filters := storage.Filters{}
	if f.RelationshipTypeID != "" {
		filters["relationshipTypeId"] = f.RelationshipTypeID
	}
	if f.Status != "" {
		filters["status"] = string(f.Status)
	}
	if f.SourceEntityID != "" {
		filters["sourceEntityId"] = f.SourceEntityID
	}
	if f.TargetEntityID != "" {
		filters["targetEntityId"] = f.TargetEntityID
	}
	return s.store.ListRelationships(ctx, filters)
}

// Update applies in to a relationship. When the type or an entity type
// changes, the allow-lists are checked against the merged values.
func (s *Service) Update(ctx context.Context, id string, in Input, userID string) (*models.Relationship, error) {
	r, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return nil, notFound(err, labelRelationship, id)
	}
	if in.Rev != "" && in.Rev != r.Rev {
		return nil, apperror.Conflict("Kayıt siz düzenlerken değiştirildi, lütfen yeniden yükleyin")
	}

	endsChanged := false
	set := func(dst *string, v *string, end bool) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if end && nv != *dst {
			endsChanged = true
		}
		*dst = nv
	}
	set(&r.RelationshipTypeID, in.RelationshipTypeID, true)
	set(&r.SourceEntityType, in.SourceEntityType, true)
	set(&r.TargetEntityType, in.TargetEntityType, true)
	set(&r.SourceEntityID, in.SourceEntityID, false)
	set(&r.TargetEntityID, in.TargetEntityID, false)
	if in.StartDate != nil {
		r.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		r.EndDate = in.EndDate
	}
	if in.Status != nil {
		r.Status = *in.Status
	}
	if in.Priority != nil {
		r.Priority = *in.Priority
	}
	if in.Attributes != nil {
		r.Attributes = in.Attributes
	}
	if r.SourceEntityID == "" || r.TargetEntityID == "" {
		return nil, apperror.Validation("Kaynak ve hedef varlık zorunludur")
	}

	rt, err := s.relationshipType(ctx, r.RelationshipTypeID)
	if err != nil {
		return nil, err
	}
	if endsChanged {
		if err := checkEnds(rt, r); err != nil {
			return nil, err
		}
	}
	if err := s.checkFields(rt, r); err != nil {
		return nil, err
	}

	r.Touch(userID, s.now())
	if err := s.store.SaveRelationship(ctx, r); err != nil {
		return nil, fmt.Errorf("save relationship: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationship), string(models.ActionUpdate))
	return r, nil
}

// GetByEntity returns the active relationships where the entity is at the
// given end. role is source, target or any.
func (s *Service) GetByEntity(ctx context.Context, entityID, entityType string, role storage.EntityRole) ([]*models.Relationship, error) {
	if role == "" {
		role = storage.EntityRoleAny
	}
	switch role {
	case storage.EntityRoleSource, storage.EntityRoleTarget, storage.EntityRoleAny:
	default:
		return nil, apperror.Validationf("Geçersiz rol: %s", role)
	}
	if entityID == "" || entityType == "" {
		return nil, apperror.Validation("Varlık kimliği ve tipi zorunludur")
	}
	return s.store.RelationshipsByEntity(ctx, entityID, entityType, role)
}

// ChangeStatus moves a relationship to status.
func (s *Service) ChangeStatus(ctx context.Context, id string, status models.RelationshipStatus, userID string) (*models.Relationship, error) {
	if !status.Valid() {
		return nil, apperror.Validationf("Geçersiz durum: %s", status).
			WithFields(map[string]string{"status": "geçersiz"})
	}
	var r *models.Relationship
	err := retry(func() error {
		var err error
		if r, err = s.store.GetRelationship(ctx, id); err != nil {
			return err
		}
		r.Status = status
		r.Touch(userID, s.now())
		return s.store.SaveRelationship(ctx, r)
	})
	if err != nil {
		return nil, notFound(err, labelRelationship, id)
	}
	s.metrics.IncMutation(string(models.EntityRelationship), string(models.ActionUpdate))
	return r, nil
}

// Delete removes a relationship. No history is written.
func (s *Service) Delete(ctx context.Context, id string) error {
	r, err := s.store.GetRelationship(ctx, id)
	if err != nil {
		return notFound(err, labelRelationship, id)
	}
	if err := s.store.Delete(ctx, r.ID, r.Rev); err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	s.metrics.IncMutation(string(models.EntityRelationship), string(models.ActionDelete))
	return nil
}

func (s *Service) relationshipType(ctx context.Context, id string) (*models.RelationshipType, error) {
	rt, err := s.store.GetRelationshipType(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperror.Validationf("İlişki tipi bulunamadı: %s", id)
	}
	return rt, err
}

func checkEnds(rt *models.RelationshipType, r *models.Relationship) error {
	if !rt.AllowsSource(r.SourceEntityType) {
		return apperror.Validationf("%s kaynak olarak %s tipine izin vermiyor", rt.Code, r.SourceEntityType).
			WithFields(map[string]string{"sourceEntityType": "izin verilmiyor"})
	}
	if !rt.AllowsTarget(r.TargetEntityType) {
		return apperror.Validationf("%s hedef olarak %s tipine izin vermiyor", rt.Code, r.TargetEntityType).
			WithFields(map[string]string{"targetEntityType": "izin verilmiyor"})
	}
	return nil
}

func (s *Service) checkFields(rt *models.RelationshipType, r *models.Relationship) error {
	if !r.Status.Valid() {
		return apperror.Validationf("Geçersiz durum: %s", r.Status).
			WithFields(map[string]string{"status": "geçersiz"})
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return apperror.Validation("Bitiş tarihi başlangıç tarihinden önce olamaz").
			WithFields(map[string]string{"endDate": "geçersiz"})
	}
	return s.schemas.validateAttributes(rt, r.Attributes)
}

func retry(step func() error) error {
	err := step()
	if errors.Is(err, storage.ErrConflict) {
		err = step()
	}
	return err
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
