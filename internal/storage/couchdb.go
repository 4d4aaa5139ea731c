package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"eve.evalgo.org/db"
	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/config"
)

// couchBackend stores documents in CouchDB through the eve db service.
type couchBackend struct {
	service *db.CouchDBService
	log     *logrus.Entry
}

// NewCouchDBBackend connects to CouchDB, creating the database if missing,
// and ensures the Mango indexes used by the catalog queries exist.
func NewCouchDBBackend(cfg config.CouchDBConfig, log *logrus.Entry) (Backend, error) {
	service, err := db.NewCouchDBServiceFromConfig(db.CouchDBConfig{
		URL:             cfg.URL,
		Database:        cfg.Database,
		Username:        cfg.Username,
		Password:        cfg.Password,
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create CouchDB service: %w", err)
	}

	b := &couchBackend{service: service, log: log}
	b.initializeSchema()
	return b, nil
}

// initializeSchema creates the indexes used by list and lookup queries.
func (b *couchBackend) initializeSchema() {
	indexes := []db.Index{
		{Name: "type-code", Fields: []string{"@type", "code"}, Type: "json"},
		{Name: "type-active", Fields: []string{"@type", "isActive"}, Type: "json"},
		{Name: "family-category", Fields: []string{"@type", "category"}, Type: "json"},
		{Name: "item-itemtype", Fields: []string{"@type", "itemType"}, Type: "json"},
		{Name: "history-entity", Fields: []string{"@type", "entityId"}, Type: "json"},
		{Name: "history-type-created", Fields: []string{"@type", "entityType", "createdAt"}, Type: "json"},
		{Name: "relationship-source", Fields: []string{"@type", "sourceEntityId", "sourceEntityType"}, Type: "json"},
		{Name: "relationship-target", Fields: []string{"@type", "targetEntityId", "targetEntityType"}, Type: "json"},
		{Name: "localization-namespace", Fields: []string{"@type", "namespace"}, Type: "json"},
		{Name: "user-email", Fields: []string{"@type", "email"}, Type: "json"},
	}

	for _, index := range indexes {
		if err := b.service.CreateIndex(index); err != nil {
			// Index might already exist
			b.log.WithError(err).Warnf("failed to create index %s", index.Name)
		}
	}
}

func (b *couchBackend) Get(ctx context.Context, id string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapCouchError(b.service.GetGenericDocument(id, out))
}

func (b *couchBackend) Put(ctx context.Context, doc interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	resp, err := b.service.SaveGenericDocument(doc)
	if err != nil {
		return "", mapCouchError(err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Rev, nil
}

func (b *couchBackend) Delete(ctx context.Context, id, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapCouchError(b.service.DeleteDocument(id, rev))
}

func (b *couchBackend) Find(ctx context.Context, q Query) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs, err := b.service.Find(db.MangoQuery{
		Selector: q.Selector,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, mapCouchError(err)
	}
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, json.RawMessage(d))
	}
	return out, nil
}

func (b *couchBackend) Count(ctx context.Context, selector map[string]interface{}) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := b.service.Count(selector)
	return n, mapCouchError(err)
}

func (b *couchBackend) Info(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := b.service.GetDatabaseInfo()
	if err != nil {
		return nil, mapCouchError(err)
	}
	return &Info{
		Backend:     config.BackendCouchDB,
		Name:        info.DBName,
		DocCount:    int64(info.DocCount),
		DocDelCount: int64(info.DocDelCount),
	}, nil
}

func (b *couchBackend) Close() error {
	return b.service.Close()
}

// mapCouchError translates eve's CouchDB errors into the package sentinels.
func mapCouchError(err error) error {
	if err == nil {
		return nil
	}
	if couchErr, ok := err.(*db.CouchDBError); ok {
		switch {
		case couchErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case couchErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
