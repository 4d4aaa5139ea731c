// Package catalog implements the schema composition model of the MDM
// catalog: attributes and their groups, the category and family trees,
// item types with their associations, and items validated against the
// required attributes their item type and category impose.
//
// Cross-document invariants are kept here:
//
//   - Family.Attributes and ItemType.Attributes are the union of the
//     attributes of their attribute groups.
//   - A Category's family and that Family's category point at each other,
//     and no two categories claim the same family.
//   - An Item carries a value for every required attribute reachable from
//     its item type and category.
//
// Writes use the document revision as a check-and-set token. Within one
// process, updates of the same entity are additionally serialized with a
// per-id lock, and all changes to category/family pointers are serialized
// with a single link lock.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"evalgo.org/mdm/internal/apperror"
	"evalgo.org/mdm/internal/history"
	"evalgo.org/mdm/internal/localization"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/metrics"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// Resource labels used in user facing messages.
const (
	labelAttribute      = "Öznitelik"
	labelAttributeGroup = "Öznitelik grubu"
	labelCategory       = "Kategori"
	labelFamily         = "Aile"
	labelItemType       = "Öğe tipi"
	labelAssociation    = "İlişkilendirme"
	labelItem           = "Öğe"
)

// Service is the catalog domain service.
type Service struct {
	store   *storage.Storage
	loc     *localization.Service
	history *history.Service
	metrics *metrics.Metrics

	locks *keyedLocker
	links sync.Mutex
	now   func() time.Time
}

// New creates a catalog service.
func New(store *storage.Storage, loc *localization.Service, hist *history.Service, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		loc:     loc,
		history: hist,
		metrics: m,
		locks:   newKeyedLocker(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying storage.
func (s *Service) Store() *storage.Storage {
	return s.store
}

func (s *Service) mutated(entity models.EntityType, action models.HistoryAction) {
	s.metrics.IncMutation(string(entity), string(action))
}

// notFound turns a storage miss into a 404 for resource.
func notFound(err error, resource, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}

// checkRev rejects a write whose client supplied revision is stale.
func checkRev(given, current string) error {
	if given != "" && given != current {
		return apperror.Conflict("Kayıt siz düzenlerken değiştirildi, lütfen yeniden yükleyin")
	}
	return nil
}

// ensureUniqueCode fails when another document already uses code.
func ensureUniqueCode[T storage.Doc](ctx context.Context, find func(context.Context, string) (T, error), code, selfID, resource string) error {
	existing, err := find(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.DocID() != selfID {
		return apperror.Duplicate(resource, "code", code)
	}
	return nil
}

// ensureExist fails with a validation error naming every id that does not
// resolve to a document.
func ensureExist[T storage.Doc](ctx context.Context, getMany func(context.Context, []string) ([]T, error), ids []string, resource string) error {
	if len(ids) == 0 {
		return nil
	}
	docs, err := getMany(ctx, ids)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(docs))
	for _, d := range docs {
		found[d.DocID()] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return apperror.Validationf("Geçersiz %s: %s", strings.ToLower(resource), strings.Join(missing, ", "))
	}
	return nil
}

// ensureOne checks a single optional reference.
func ensureOne[T any](ctx context.Context, get func(context.Context, string) (T, error), id, resource string) error {
	if id == "" {
		return nil
	}
	if _, err := get(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperror.Validationf("Geçersiz %s: %s", strings.ToLower(resource), id)
		}
		return err
	}
	return nil
}

// uniqueStrings drops empty and repeated values, keeping first occurrence order.
func uniqueStrings(values ...[]string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, list := range values {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func difference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}
	var out []string
	for _, v := range a {
		if !inB[v] {
			out = append(out, v)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func remove(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// assignText writes a localized field and returns the reference to store.
// A nil input keeps current.
func (s *Service) assignText(ctx context.Context, in *models.LocalizedInput, current, namespace, key, userID string) (string, error) {
	if in == nil {
		return current, nil
	}
	return s.loc.Assign(ctx, in, namespace, key, userID)
}

// retryOnConflict runs step once more when it fails with a revision conflict.
func retryOnConflict(step func() error) error {
	err := step()
	if errors.Is(err, storage.ErrConflict) {
		err = step()
	}
	return err
}

func (s *Service) warn(ctx context.Context, err error, msg string, fields map[string]interface{}) {
	logging.FromContext(ctx).WithError(err).WithFields(fields).Warn(msg)
}

func required(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validationf("%s alanı zorunludur", field).
			WithFields(map[string]string{field: "zorunlu"})
	}
	return nil
}

func errWrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
