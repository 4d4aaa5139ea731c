// Package history records the audit trail of catalog mutations.
//
// Every row names a primary entity and the entities affected by the same
// mutation. Writes are best-effort from the caller's point of view: Record
// and RecordRelationshipChange log and count failures instead of returning
// them, so an audit failure never undoes the mutation being audited.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/localization"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/registry"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// SystemUserID attributes writes the system performs on its own behalf.
const SystemUserID = "system"

// Entry describes one mutation to record.
type Entry struct {
	EntityID         string
	EntityType       models.EntityType
	EntityName       string
	Action           models.HistoryAction
	AffectedEntities []models.AffectedEntity
	PreviousData     interface{}
	NewData          interface{}
	AdditionalInfo   map[string]interface{}
	UserID           string
}

// EntityRef identifies one side of a relationship change.
type EntityRef struct {
	ID   string
	Type models.EntityType
	Name string
}

// RelationshipChange describes a membership edge that was added or removed.
type RelationshipChange struct {
	Primary          EntityRef
	Secondary        EntityRef
	Action           models.HistoryAction
	RelationshipType string
	AdditionalInfo   map[string]interface{}
	UserID           string
}

// Service writes and queries history rows.
type Service struct {
	store        *storage.Storage
	registry     *registry.Service
	metrics      *metrics.Metrics
	defaultLimit int
	now          func() time.Time
}

// NewService creates a history service.
func NewService(store *storage.Storage, reg *registry.Service, m *metrics.Metrics, defaultLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &Service{
		store:        store,
		registry:     reg,
		metrics:      m,
		defaultLimit: defaultLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used to stamp rows.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// RecordHistory writes one row for e and refreshes the registry entries of
// every entity it mentions.
func (s *Service) RecordHistory(ctx context.Context, e Entry) (*models.History, error) {
	if e.EntityID == "" {
		return nil, fmt.Errorf("history entry without entity id")
	}
	if !e.Action.Valid() {
		return nil, fmt.Errorf("unknown history action %q", e.Action)
	}

	name := s.resolveName(ctx, e)
	code := codeOf(e.NewData)
	if code == "" {
		code = codeOf(e.PreviousData)
	}

	affected := make([]models.AffectedEntity, 0, len(e.AffectedEntities)+1)
	affected = append(affected, models.AffectedEntity{
		EntityID:   e.EntityID,
		EntityType: e.EntityType,
		EntityName: name,
		Role:       models.RolePrimary,
	})
	for _, a := range e.AffectedEntities {
		if a.EntityID == "" || a.EntityID == e.EntityID {
			continue
		}
		if a.EntityName == "" {
			a.EntityName = s.registryName(ctx, a.EntityID)
		}
		if a.Role == "" {
			a.Role = models.RoleSecondary
		}
		affected = append(affected, a)
	}

	log := logging.FromContext(ctx)
	if name != localization.FallbackName {
		s.register(ctx, log, e.EntityID, e.EntityType, name, code)
	}
	for _, a := range affected[1:] {
		if a.EntityName != "" && a.EntityName != localization.FallbackName {
			s.register(ctx, log, a.EntityID, a.EntityType, a.EntityName, "")
		}
	}

	row := &models.History{
		Document:         models.Document{ID: models.GenerateID("history")},
		EntityID:         e.EntityID,
		EntityType:       e.EntityType,
		EntityName:       name,
		Action:           e.Action,
		AffectedEntities: affected,
		PreviousData:     e.PreviousData,
		NewData:          e.NewData,
		AdditionalInfo:   e.AdditionalInfo,
		CreatedBy:        e.UserID,
		CreatedAt:        s.now(),
	}
	if err := s.store.SaveHistory(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to save history for %s: %w", e.EntityID, err)
	}
	return row, nil
}

// Record writes e and swallows any failure after logging and counting it.
func (s *Service) Record(ctx context.Context, e Entry) {
	if _, err := s.RecordHistory(ctx, e); err != nil {
		s.metrics.IncHistoryFailure(string(e.Action))
		logging.FromContext(ctx).WithError(err).WithFields(logrus.Fields{
			"entityId":   e.EntityID,
			"entityType": e.EntityType,
			"action":     e.Action,
		}).Warn("history write failed")
	}
}

// RecordRelationshipChange writes two rows, one attributed to each side of
// the change, each listing the other side as a secondary entity. Failures
// are logged and counted.
func (s *Service) RecordRelationshipChange(ctx context.Context, c RelationshipChange) {
	info := map[string]interface{}{}
	for k, v := range c.AdditionalInfo {
		info[k] = v
	}
	if c.RelationshipType != "" {
		info["relationshipType"] = c.RelationshipType
	}

	sides := [2][2]EntityRef{{c.Primary, c.Secondary}, {c.Secondary, c.Primary}}
	for _, side := range sides {
		self, other := side[0], side[1]
		s.Record(ctx, Entry{
			EntityID:   self.ID,
			EntityType: self.Type,
			EntityName: self.Name,
			Action:     c.Action,
			AffectedEntities: []models.AffectedEntity{{
				EntityID:   other.ID,
				EntityType: other.Type,
				EntityName: other.Name,
				Role:       models.RoleSecondary,
			}},
			AdditionalInfo: info,
			UserID:         c.UserID,
		})
	}
}

// Page is a slice of history rows plus the number of matching rows.
type Page struct {
	Rows  []*models.History
	Total int
}

// GetEntityHistory returns the rows where entityID is the primary entity or
// an affected entity, newest first. A zero limit uses the default page size.
func (s *Service) GetEntityHistory(ctx context.Context, entityID string, entityType models.EntityType, limit, skip int) (*Page, error) {
	rows, err := s.store.HistoryForEntity(ctx, entityID, entityType)
	if err != nil {
		return nil, err
	}
	return s.paginate(rows, limit, skip), nil
}

// Filter narrows a type-scoped history query.
type Filter struct {
	EntityType models.EntityType
	EntityID   string
	Action     models.HistoryAction
	UserID     string
	From       *time.Time
	To         *time.Time
}

// Query returns the rows matching f, newest first.
func (s *Service) Query(ctx context.Context, f Filter, limit, skip int) (*Page, error) {
	filters := storage.Filters{}
	if f.EntityType != "" {
		filters["entityType"] = string(f.EntityType)
	}
	if f.EntityID != "" {
		filters["entityId"] = f.EntityID
	}
	if f.Action != "" {
		filters["action"] = string(f.Action)
	}
	if f.UserID != "" {
		filters["createdBy"] = f.UserID
	}

	rows, err := s.store.ListHistory(ctx, filters)
	if err != nil {
		return nil, err
	}
	if f.From != nil || f.To != nil {
		kept := rows[:0]
		for _, r := range rows {
			if f.From != nil && r.CreatedAt.Before(*f.From) {
				continue
			}
			if f.To != nil && r.CreatedAt.After(*f.To) {
				continue
			}
			kept = append(kept, r)
		}
		rows = kept
	}
	return s.paginate(rows, limit, skip), nil
}

// DeleteEntityHistory purges every row that mentions entityID.
func (s *Service) DeleteEntityHistory(ctx context.Context, entityID string) (int, error) {
	return s.store.DeleteHistoryForEntity(ctx, entityID)
}

// Purge deletes the history of entityID, logging instead of returning errors.
func (s *Service) Purge(ctx context.Context, entityID string) {
	n, err := s.DeleteEntityHistory(ctx, entityID)
	log := logging.FromContext(ctx).WithField("entityId", entityID)
	if err != nil {
		s.metrics.IncHistoryFailure("purge")
		log.WithError(err).Warn("history purge incomplete")
		return
	}
	log.WithField("rows", n).Debug("history purged")
}

func (s *Service) paginate(rows []*models.History, limit, skip int) *Page {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	total := len(rows)
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if skip < 0 {
		skip = 0
	}
	if skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return &Page{Rows: rows[skip:end], Total: total}
}

func (s *Service) resolveName(ctx context.Context, e Entry) string {
	if e.EntityName != "" {
		return e.EntityName
	}
	if name, ok := localization.Resolve(localization.FromData(e.NewData)); ok {
		return name
	}
	if name, ok := localization.Resolve(localization.FromData(e.PreviousData)); ok {
		return name
	}
	if name := s.registryName(ctx, e.EntityID); name != "" {
		return name
	}
	return localization.FallbackName
}

func (s *Service) registryName(ctx context.Context, entityID string) string {
	if s.registry == nil {
		return ""
	}
	return s.registry.Name(ctx, entityID)
}

func (s *Service) register(ctx context.Context, log *logrus.Entry, id string, entityType models.EntityType, name, code string) {
	if s.registry == nil {
		return
	}
	if err := s.registry.Register(ctx, id, entityType, name, code); err != nil {
		log.WithError(err).WithField("entityId", id).Warn("registry upsert failed")
	}
}

func codeOf(data interface{}) string {
	if data == nil {
		return ""
	}
	m, ok := data.(map[string]interface{})
	if !ok {
		raw, err := json.Marshal(data)
		if err != nil {
			return ""
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return ""
		}
	}
	code, _ := m["code"].(string)
	return code
}
