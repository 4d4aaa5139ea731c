// Package storage provides the document storage layer for the MDM catalog.
// Documents live in CouchDB (through eve.evalgo.org/db) or, for tests and
// single-process deployments, in an in-memory backend with the same
// revision semantics.
//
// Every write is a check-and-set on the document's _rev: saving a document
// read at an old revision fails with ErrConflict instead of silently
// overwriting a concurrent change.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/config"
)

// Doc is implemented by every model through models.Document.
type Doc interface {
	DocID() string
	DocRev() string
	SetRev(rev string)
}

type typedDoc interface {
	DocType() string
}

// Filters are field conditions merged into a type selector. Plain values
// mean equality; operator maps such as {"$in": [...]} and combinators such
// as "$or" are used as given.
type Filters map[string]interface{}

// Storage provides typed operations over a Backend.
type Storage struct {
	backend    Backend
	log        *logrus.Entry
	queryLimit int
}

// New creates a Storage instance from the application configuration.
func New(cfg *config.Config, log *logrus.Entry) (*Storage, error) {
	var backend Backend
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		backend = NewMemoryBackend()
	case config.BackendCouchDB:
		b, err := NewCouchDBBackend(cfg.CouchDB, log)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
	return NewWithBackend(backend, cfg.Storage.QueryLimit, log), nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(backend Backend, queryLimit int, log *logrus.Entry) *Storage {
	if queryLimit <= 0 {
		queryLimit = 10000
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Storage{backend: backend, log: log, queryLimit: queryLimit}
}

// Backend returns the underlying document store.
func (s *Storage) Backend() Backend {
	return s.backend
}

// Close closes the storage connection.
func (s *Storage) Close() error {
	return s.backend.Close()
}

// GetDatabaseInfo returns database statistics.
func (s *Storage) GetDatabaseInfo(ctx context.Context) (*Info, error) {
	return s.backend.Info(ctx)
}

// Save writes doc at its current revision and records the new revision on it.
func (s *Storage) Save(ctx context.Context, doc Doc) error {
	rev, err := s.backend.Put(ctx, doc)
	if err != nil {
		return err
	}
	if rev != "" {
		doc.SetRev(rev)
	}
	return nil
}

// Upsert saves doc, adopting the stored revision and retrying once when the
// write conflicts. Use it only for last-write-wins documents.
func (s *Storage) Upsert(ctx context.Context, doc Doc) error {
	err := s.Save(ctx, doc)
	if !errors.Is(err, ErrConflict) {
		return err
	}

	var existing struct {
		Rev string `json:"_rev"`
	}
	if getErr := s.backend.Get(ctx, doc.DocID(), &existing); getErr != nil {
		if errors.Is(getErr, ErrNotFound) {
			doc.SetRev("")
			return s.Save(ctx, doc)
		}
		return err
	}
	doc.SetRev(existing.Rev)
	return s.Save(ctx, doc)
}

// Delete removes the document at the given revision.
func (s *Storage) Delete(ctx context.Context, id, rev string) error {
	return s.backend.Delete(ctx, id, rev)
}

// FindRaw runs a selector and returns undecoded documents.
func (s *Storage) FindRaw(ctx context.Context, selector map[string]interface{}) ([]json.RawMessage, error) {
	return s.backend.Find(ctx, Query{Selector: selector, Limit: s.queryLimit})
}

// AllDocuments returns every document in the store.
func (s *Storage) AllDocuments(ctx context.Context) ([]json.RawMessage, error) {
	return s.FindRaw(ctx, map[string]interface{}{
		"_id": map[string]interface{}{"$gt": nil},
	})
}

// CountType returns how many documents of docType match filters.
func (s *Storage) CountType(ctx context.Context, docType string, filters Filters) (int, error) {
	return s.backend.Count(ctx, typeSelector(docType, filters))
}

func typeSelector(docType string, filters Filters) map[string]interface{} {
	selector := map[string]interface{}{
		"@type": map[string]interface{}{"$eq": docType},
	}
	for field, value := range filters {
		if strings.HasPrefix(field, "$") {
			selector[field] = value
			continue
		}
		if ops, ok := value.(map[string]interface{}); ok {
			selector[field] = ops
			continue
		}
		selector[field] = map[string]interface{}{"$eq": value}
	}
	return selector
}

func idsSelector(docType string, ids []string) map[string]interface{} {
	return typeSelector(docType, Filters{
		"_id": map[string]interface{}{"$in": ids},
	})
}

// getTyped fetches id and checks that it is a docType document.
func getTyped[T any](ctx context.Context, s *Storage, id, docType string) (*T, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	var out T
	if err := s.backend.Get(ctx, id, &out); err != nil {
		return nil, err
	}
	if td, ok := any(&out).(typedDoc); ok && td.DocType() != docType {
		return nil, fmt.Errorf("%w: %s is not a %s", ErrNotFound, id, docType)
	}
	return &out, nil
}

// findTyped decodes every document matching selector.
func findTyped[T any](ctx context.Context, s *Storage, selector map[string]interface{}) ([]*T, error) {
	raw, err := s.FindRaw(ctx, selector)
	if err != nil {
		return nil, err
	}
	result := make([]*T, 0, len(raw))
	for _, r := range raw {
		var doc T
		if err := json.Unmarshal(r, &doc); err != nil {
			s.log.WithError(err).Warn("skipping undecodable document")
			continue
		}
		result = append(result, &doc)
	}
	return result, nil
}

// listTyped returns every docType document matching filters.
func listTyped[T any](ctx context.Context, s *Storage, docType string, filters Filters) ([]*T, error) {
	return findTyped[T](ctx, s, typeSelector(docType, filters))
}

// getManyTyped loads the docType documents with the given ids. Missing ids
// are skipped; the result follows the order of ids.
func getManyTyped[T any](ctx context.Context, s *Storage, docType string, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}
	docs, err := findTyped[T](ctx, s, idsSelector(docType, ids))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*T, len(docs))
	for _, d := range docs {
		if doc, ok := any(d).(Doc); ok {
			byID[doc.DocID()] = d
		}
	}
	result := make([]*T, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok && !seen[id] {
			result = append(result, d)
			seen[id] = true
		}
	}
	return result, nil
}

// findOneTyped returns the first docType document matching filters, or ErrNotFound.
func findOneTyped[T any](ctx context.Context, s *Storage, docType string, filters Filters) (*T, error) {
	docs, err := s.backend.Find(ctx, Query{Selector: typeSelector(docType, filters), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	var out T
	if err := json.Unmarshal(docs[0], &out); err != nil {
		return nil, err
	}
	return &out, nil
}
