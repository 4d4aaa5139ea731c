package storage

import (
	"context"
	"fmt"

	"evalgo.org/mdm/models"
)

// Statistics contains document counts for the stats endpoint.
type Statistics struct {
	Attributes        int `json:"attributes"`
	AttributeGroups   int `json:"attributeGroups"`
	Categories        int `json:"categories"`
	Families          int `json:"families"`
	ItemTypes         int `json:"itemTypes"`
	Associations      int `json:"associations"`
	Items             int `json:"items"`
	ActiveItems       int `json:"activeItems"`
	RelationshipTypes int `json:"relationshipTypes"`
	Relationships     int `json:"relationships"`
	HistoryRows       int `json:"historyRows"`
	Localizations     int `json:"localizations"`
	Users             int `json:"users"`
}

// GetStatistics counts the documents of each catalog type.
func (s *Storage) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}

	counts := []struct {
		docType string
		filters Filters
		dst     *int
	}{
		{models.TypeAttribute, nil, &stats.Attributes},
		{models.TypeAttributeGroup, nil, &stats.AttributeGroups},
		{models.TypeCategory, nil, &stats.Categories},
		{models.TypeFamily, nil, &stats.Families},
		{models.TypeItemType, nil, &stats.ItemTypes},
		{models.TypeAssociation, nil, &stats.Associations},
		{models.TypeItem, nil, &stats.Items},
		{models.TypeItem, Filters{"isActive": true}, &stats.ActiveItems},
		{models.TypeRelationshipType, nil, &stats.RelationshipTypes},
		{models.TypeRelationship, nil, &stats.Relationships},
		{models.TypeHistory, nil, &stats.HistoryRows},
		{models.TypeLocalization, nil, &stats.Localizations},
		{models.TypeUser, nil, &stats.Users},
	}

	for _, c := range counts {
		n, err := s.CountType(ctx, c.docType, c.filters)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.docType, err)
		}
		*c.dst = n
	}

	return stats, nil
}
