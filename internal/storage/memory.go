package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"evalgo.org/mdm/internal/config"
)

// Op names a backend operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpFind   Op = "find"
)

// FaultFunc may return an error to make an operation on id fail.
type FaultFunc func(op Op, id string) error

type memoryDoc struct {
	rev  string
	body []byte
}

// MemoryBackend is an in-process Backend with CouchDB revision semantics.
type MemoryBackend struct {
	mu    sync.RWMutex
	docs  map[string]memoryDoc
	fault FaultFunc
}

// NewMemoryBackend returns an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string]memoryDoc)}
}

// InjectFault installs fn to be consulted before each operation. Passing nil
// removes it.
func (m *MemoryBackend) InjectFault(fn FaultFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = fn
}

func (m *MemoryBackend) checkFault(op Op, id string) error {
	if m.fault == nil {
		return nil
	}
	return m.fault(op, id)
}

func (m *MemoryBackend) Get(ctx context.Context, id string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkFault(OpGet, id); err != nil {
		return err
	}
	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return json.Unmarshal(doc.body, out)
}

func (m *MemoryBackend) Put(ctx context.Context, doc interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", fmt.Errorf("document must be a JSON object: %w", err)
	}
	id, _ := fields["_id"].(string)
	if id == "" {
		return "", fmt.Errorf("document has no _id")
	}
	rev, _ := fields["_rev"].(string)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFault(OpPut, id); err != nil {
		return "", err
	}

	generation := 0
	if existing, ok := m.docs[id]; ok {
		if rev != existing.rev {
			return "", fmt.Errorf("%w: %s has rev %s, write carried %q", ErrConflict, id, existing.rev, rev)
		}
		generation = revGeneration(existing.rev)
	} else if rev != "" {
		return "", fmt.Errorf("%w: %s does not exist", ErrConflict, id)
	}

	newRev := fmt.Sprintf("%d-%s", generation+1, strings.ReplaceAll(uuid.New().String(), "-", ""))
	fields["_rev"] = newRev
	body, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	m.docs[id] = memoryDoc{rev: newRev, body: body}
	return newRev, nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id, rev string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkFault(OpDelete, id); err != nil {
		return err
	}
	existing, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if existing.rev != rev {
		return fmt.Errorf("%w: %s has rev %s, delete carried %q", ErrConflict, id, existing.rev, rev)
	}
	delete(m.docs, id)
	return nil
}

func (m *MemoryBackend) Find(ctx context.Context, q Query) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := normalizeSelector(q.Selector)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.checkFault(OpFind, ""); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []json.RawMessage
	for _, id := range ids {
		body := m.docs[id].body
		var decoded map[string]interface{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			continue
		}
		if !matchSelector(decoded, sel) {
			continue
		}
		out = append(out, json.RawMessage(body))
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryBackend) Count(ctx context.Context, selector map[string]interface{}) (int, error) {
	docs, err := m.Find(ctx, Query{Selector: selector})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (m *MemoryBackend) Info(ctx context.Context) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Info{Backend: config.BackendMemory, Name: "memory", DocCount: int64(len(m.docs))}, nil
}

func (m *MemoryBackend) Close() error { return nil }

func revGeneration(rev string) int {
	prefix, _, _ := strings.Cut(rev, "-")
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return n
}
