package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestMatchSelector(t *testing.T) {
	doc := decode(t, `{
		"_id": "family:1",
		"@type": "Family",
		"code": "shoes",
		"isActive": true,
		"priority": 3,
		"attributeGroups": ["group:a", "group:b"],
		"settings": {"navigation": {"showInNavbar": true}},
		"affectedEntities": [
			{"entityId": "category:1", "entityType": "category", "role": "secondary"}
		]
	}`)

	tests := []struct {
		name     string
		selector string
		want     bool
	}{
		{"implicit eq", `{"code": "shoes"}`, true},
		{"eq operator", `{"@type": {"$eq": "Family"}}`, true},
		{"eq mismatch", `{"code": {"$eq": "hats"}}`, false},
		{"ne", `{"code": {"$ne": "hats"}}`, true},
		{"ne on missing field", `{"parent": {"$ne": "x"}}`, true},
		{"exists true", `{"code": {"$exists": true}}`, true},
		{"exists false", `{"parent": {"$exists": false}}`, true},
		{"gt null matches any value", `{"_id": {"$gt": null}}`, true},
		{"numeric range", `{"priority": {"$gte": 3, "$lt": 4}}`, true},
		{"numeric range miss", `{"priority": {"$gt": 3}}`, false},
		{"in scalar", `{"code": {"$in": ["hats", "shoes"]}}`, true},
		{"in array intersects", `{"attributeGroups": {"$in": ["group:b"]}}`, true},
		{"nin", `{"code": {"$nin": ["shoes"]}}`, false},
		{"array equality needs whole value", `{"attributeGroups": "group:a"}`, false},
		{"elemMatch scalar", `{"attributeGroups": {"$elemMatch": {"$eq": "group:a"}}}`, true},
		{"elemMatch object", `{"affectedEntities": {"$elemMatch": {"entityId": "category:1", "entityType": "category"}}}`, true},
		{"elemMatch object miss", `{"affectedEntities": {"$elemMatch": {"entityId": "category:1", "entityType": "family"}}}`, false},
		{"all", `{"attributeGroups": {"$all": ["group:a", "group:b"]}}`, true},
		{"size", `{"attributeGroups": {"$size": 2}}`, true},
		{"regex", `{"code": {"$regex": "^sho"}}`, true},
		{"dotted path", `{"settings.navigation.showInNavbar": true}`, true},
		{"or", `{"$or": [{"code": "hats"}, {"code": "shoes"}]}`, true},
		{"or miss", `{"$or": [{"code": "hats"}, {"code": "caps"}]}`, false},
		{"and", `{"$and": [{"code": "shoes"}, {"isActive": true}]}`, true},
		{"nor", `{"$nor": [{"code": "shoes"}]}`, false},
		{"not", `{"code": {"$not": {"$eq": "hats"}}}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := normalizeSelector(decode(t, tt.selector))
			require.NoError(t, err)
			assert.Equal(t, tt.want, matchSelector(doc, sel))
		})
	}
}

func TestNormalizeSelectorConvertsGoTypes(t *testing.T) {
	sel, err := normalizeSelector(map[string]interface{}{
		"_id":   map[string]interface{}{"$in": []string{"a", "b"}},
		"count": 2,
	})
	require.NoError(t, err)

	doc := map[string]interface{}{"_id": "b", "count": float64(2)}
	assert.True(t, matchSelector(doc, sel))
}

func TestCollate(t *testing.T) {
	assert.Equal(t, -1, collate(nil, false))
	assert.Equal(t, -1, collate(false, true))
	assert.Equal(t, -1, collate(true, float64(0)))
	assert.Equal(t, -1, collate(float64(10), "a"))
	assert.Equal(t, -1, collate("a", []interface{}{}))
	assert.Equal(t, 0, collate("a", "a"))
	assert.Equal(t, 1, collate("b", "a"))
}
