package relationship

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/models"
)

// schemaCache holds compiled attribute schemas keyed by relationship type
// id and revision, so an edited type is recompiled on first use.
type schemaCache struct {
	mu      sync.Mutex
	schemas map[string]*gojsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{schemas: make(map[string]*gojsonschema.Schema)}
}

func (c *schemaCache) get(rt *models.RelationshipType) (*gojsonschema.Schema, error) {
	if len(rt.AttributeSchema) == 0 {
		return nil, nil
	}
	key := rt.ID + "@" + rt.Rev

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.schemas[key]; ok {
		return s, nil
	}
	s, err := compileSchema(rt.AttributeSchema)
	if err != nil {
		return nil, err
	}
	for k := range c.schemas {
		if strings.HasPrefix(k, rt.ID+"@") {
			delete(c.schemas, k)
		}
	}
	c.schemas[key] = s
	return s, nil
}

func compileSchema(raw map[string]interface{}) (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, apperror.Validationf("Geçersiz öznitelik şeması: %v", err)
	}
	return s, nil
}

// validateAttributes checks attrs against the type's attribute schema. A
// type without a schema accepts anything.
func (c *schemaCache) validateAttributes(rt *models.RelationshipType, attrs map[string]interface{}) error {
	schema, err := c.get(rt)
	if err != nil || schema == nil {
		return err
	}
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(attrs))
	if err != nil {
		return apperror.Validationf("İlişki öznitelikleri doğrulanamadı: %v", err)
	}
	if result.Valid() {
		return nil
	}

	fields := make(map[string]string, len(result.Errors()))
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		fields[e.Field()] = e.Description()
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return apperror.Validationf("İlişki öznitelikleri şemaya uymuyor: %s", strings.Join(msgs, "; ")).
		WithFields(fields)
}
