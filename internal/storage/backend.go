package storage

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned when a write carries a stale or missing _rev.
	ErrConflict = errors.New("document update conflict")
)

// Query is a Mango query.
type Query struct {
	Selector map[string]interface{}
	Limit    int
}

// Info describes the underlying database.
type Info struct {
	Backend     string `json:"backend"`
	Name        string `json:"name"`
	DocCount    int64  `json:"docCount"`
	DocDelCount int64  `json:"docDelCount"`
}

// Backend is a JSON document store with per-document revisions.
//
// Put writes doc (which must marshal to an object with an _id) and returns
// the new revision. When the stored document exists, doc's _rev must match
// it; otherwise ErrConflict is returned. Find evaluates a Mango selector.
type Backend interface {
	Get(ctx context.Context, id string, out interface{}) error
	Put(ctx context.Context, doc interface{}) (string, error)
	Delete(ctx context.Context, id, rev string) error
	Find(ctx context.Context, q Query) ([]json.RawMessage, error)
	Count(ctx context.Context, selector map[string]interface{}) (int, error)
	Info(ctx context.Context) (*Info, error)
	Close() error
}
