package integrity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// repairUser is recorded as updatedBy on documents changed by a repair.
const repairUser = "system"

// CreateRepairPlan scans the catalog and returns the operations that fix
// what the scan found, together with the scan itself.
func (s *Service) CreateRepairPlan(ctx context.Context) (*RepairPlan, *ScanReport, error) {
	report, snap, err := s.scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	plan := buildPlan(snap, report.Issues)
	plan.ID = uuid.New().String()
	plan.Timestamp = s.now()
	plan.ScanID = report.ID

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"plan":       plan.ID,
		"operations": len(plan.Operations),
		"unresolved": len(plan.Unresolved),
	}).Info("integrity repair plan created")
	return plan, report, nil
}

// buildPlan turns issues into operations. Reference drops come first, then
// category relinks, then closure refreshes, so closures are computed from
// the repaired group lists.
func buildPlan(snap *snapshot, issues []Issue) *RepairPlan {
	plan := &RepairPlan{Operations: []RepairOperation{}}
	var drops, relinks, closures []RepairOperation
	seen := map[RepairOperation]bool{}
	add := func(list *[]RepairOperation, op RepairOperation) {
		if seen[op] {
			return
		}
		seen[op] = true
		*list = append(*list, op)
	}

	for _, issue := range issues {
		switch issue.Type {
		case IssueDanglingReference:
			if issue.DocumentType == models.TypeItem && issue.Field == "itemType" {
				plan.Unresolved = append(plan.Unresolved, issue)
				continue
			}
			add(&drops, RepairOperation{
				Type:         OpDropReference,
				DocumentID:   issue.DocumentID,
				DocumentType: issue.DocumentType,
				Field:        issue.Field,
				Value:        issue.Value,
			})
			if issue.Field == "attributeGroups" || issue.Field == "attributes" {
				switch issue.DocumentType {
				case models.TypeFamily:
					add(&closures, RepairOperation{Type: OpRefreshFamilyClosure, DocumentID: issue.DocumentID, DocumentType: models.TypeFamily})
				case models.TypeItemType:
					add(&closures, RepairOperation{Type: OpRefreshItemTypeClosure, DocumentID: issue.DocumentID, DocumentType: models.TypeItemType})
				}
			}
		case IssueDuplicateCode:
			plan.Unresolved = append(plan.Unresolved, issue)
		case IssueClosureDrift:
			op := OpRefreshFamilyClosure
			if issue.DocumentType == models.TypeItemType {
				op = OpRefreshItemTypeClosure
			}
			add(&closures, RepairOperation{Type: op, DocumentID: issue.DocumentID, DocumentType: issue.DocumentType})
		}
	}

	for _, op := range planFamilyLinks(snap, issues) {
		if op.Type == OpRelinkCategory {
			add(&relinks, op)
		} else {
			add(&drops, op)
		}
	}

	plan.Operations = append(plan.Operations, drops...)
	plan.Operations = append(plan.Operations, relinks...)
	plan.Operations = append(plan.Operations, closures...)
	return plan
}

// planFamilyLinks decides, per desynced family, which category keeps it.
// The category the family already points at wins; otherwise the most
// recently updated claimant does. Losing claimants drop their pointer.
func planFamilyLinks(snap *snapshot, issues []Issue) []RepairOperation {
	families := make(map[string]*models.Family, len(snap.families))
	for _, f := range snap.families {
		families[f.ID] = f
	}
	claimants := map[string][]*models.Category{}
	for _, c := range snap.categories {
		if c.Family != "" && families[c.Family] != nil {
			claimants[c.Family] = append(claimants[c.Family], c)
		}
	}

	affected := map[string]bool{}
	for _, issue := range issues {
		if issue.Type != IssueFamilyDesync {
			continue
		}
		if issue.DocumentType == models.TypeCategory {
			affected[issue.Value] = true
		} else {
			affected[issue.DocumentID] = true
		}
	}
	ids := make([]string, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var ops []RepairOperation
	for _, famID := range ids {
		fam := families[famID]
		if fam == nil {
			continue
		}
		cats := claimants[famID]
		if len(cats) == 0 {
			ops = append(ops, RepairOperation{
				Type:         OpDropReference,
				DocumentID:   fam.ID,
				DocumentType: models.TypeFamily,
				Field:        "category",
				Value:        fam.Category,
			})
			continue
		}

		winner := pickWinner(fam, cats)
		for _, c := range cats {
			if c.ID == winner.ID {
				continue
			}
			ops = append(ops, RepairOperation{
				Type:         OpDropReference,
				DocumentID:   c.ID,
				DocumentType: models.TypeCategory,
				Field:        "family",
				Value:        fam.ID,
			})
		}
		if fam.Category != winner.ID {
			ops = append(ops, RepairOperation{
				Type:         OpRelinkCategory,
				DocumentID:   winner.ID,
				DocumentType: models.TypeCategory,
			})
		}
	}
	return ops
}

func pickWinner(fam *models.Family, cats []*models.Category) *models.Category {
	var winner *models.Category
	for _, c := range cats {
		if c.ID == fam.Category {
			return c
		}
		if winner == nil || c.UpdatedAt.After(winner.UpdatedAt) ||
			(c.UpdatedAt.Equal(winner.UpdatedAt) && c.ID < winner.ID) {
			winner = c
		}
	}
	return winner
}

// ExecutePlan applies the plan's operations in order. A failed operation
// is recorded and the rest still run. In dry-run mode nothing is written.
func (s *Service) ExecutePlan(ctx context.Context, plan *RepairPlan, dryRun bool) *RepairResult {
	log := logging.FromContext(ctx).WithField("plan", plan.ID)
	result := &RepairResult{
		PlanID:     plan.ID,
		StartTime:  s.now(),
		Operations: make([]OperationResult, 0, len(plan.Operations)),
		DryRun:     dryRun,
	}

	for _, op := range plan.Operations {
		res := OperationResult{Operation: op, Success: true}
		if !dryRun {
			if err := s.apply(ctx, op); err != nil {
				res.Success = false
				res.Error = err.Error()
				log.WithError(err).WithFields(logrus.Fields{
					"operation": op.Type,
					"document":  op.DocumentID,
				}).Warn("repair operation failed")
			}
		}
		if res.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
		result.Operations = append(result.Operations, res)
	}

	result.EndTime = s.now()
	s.audit.LogRepair(ctx, result)
	return result
}

func (s *Service) apply(ctx context.Context, op RepairOperation) error {
	switch op.Type {
	case OpDropReference:
		return s.dropReference(ctx, op)
	case OpRelinkCategory:
		report, err := s.catalog.RelinkCategory(ctx, op.DocumentID)
		if err != nil {
			return err
		}
		if !report.OK() {
			steps := make([]string, 0, len(report.Failures))
			for _, f := range report.Failures {
				steps = append(steps, fmt.Sprintf("%s(%s): %s", f.Step, f.EntityID, f.Error))
			}
			return fmt.Errorf("relink incomplete: %s", strings.Join(steps, "; "))
		}
		return nil
	case OpRefreshFamilyClosure:
		return s.catalog.RefreshFamilyClosure(ctx, op.DocumentID)
	case OpRefreshItemTypeClosure:
		return s.catalog.RefreshItemTypeClosure(ctx, op.DocumentID)
	}
	return fmt.Errorf("unknown operation %q", op.Type)
}

// edit reads a document, applies mutate and saves it when mutate reports a
// change. A revision conflict is retried once against a fresh read.
func edit[T storage.Doc](ctx context.Context, get func(context.Context, string) (T, error), save func(context.Context, T) error, id string, mutate func(T) bool) error {
	step := func() error {
		doc, err := get(ctx, id)
		if err != nil {
			return err
		}
		if !mutate(doc) {
			return nil
		}
		return save(ctx, doc)
	}
	err := step()
	if errors.Is(err, storage.ErrConflict) {
		err = step()
	}
	return err
}

func (s *Service) dropReference(ctx context.Context, op RepairOperation) error {
	v := op.Value
	now := s.now()
	unknown := fmt.Errorf("cannot drop %s.%s", op.DocumentType, op.Field)
	var fieldErr error

	var err error
	switch op.DocumentType {
	case models.TypeAttribute:
		err = edit(ctx, s.store.GetAttribute, s.store.SaveAttribute, op.DocumentID, func(a *models.Attribute) bool {
			if op.Field != "attributeGroup" {
				fieldErr = unknown
				return false
			}
			return touched(clearValue(&a.AttributeGroup, v), &a.Audit, now)
		})
	case models.TypeAttributeGroup:
		err = edit(ctx, s.store.GetAttributeGroup, s.store.SaveAttributeGroup, op.DocumentID, func(g *models.AttributeGroup) bool {
			if op.Field != "attributes" {
				fieldErr = unknown
				return false
			}
			return touched(dropValue(&g.Attributes, v), &g.Audit, now)
		})
	case models.TypeCategory:
		err = edit(ctx, s.store.GetCategory, s.store.SaveCategory, op.DocumentID, func(c *models.Category) bool {
			var changed bool
			switch op.Field {
			case "parent":
				changed = clearValue(&c.Parent, v)
			case "family":
				changed = clearValue(&c.Family, v)
			case "attributeGroups":
				changed = dropValue(&c.AttributeGroups, v)
			case "attributes":
				changed = dropValue(&c.Attributes, v)
			default:
				fieldErr = unknown
			}
			return touched(changed, &c.Audit, now)
		})
	case models.TypeFamily:
		err = edit(ctx, s.store.GetFamily, s.store.SaveFamily, op.DocumentID, func(f *models.Family) bool {
			var changed bool
			switch op.Field {
			case "parent":
				changed = clearValue(&f.Parent, v)
			case "subFamilies":
				changed = dropValue(&f.SubFamilies, v)
			case "category":
				changed = clearValue(&f.Category, v)
			case "itemType":
				changed = clearValue(&f.ItemType, v)
			case "attributeGroups":
				changed = dropValue(&f.AttributeGroups, v)
			case "attributes":
				changed = dropValue(&f.Attributes, v)
			default:
				fieldErr = unknown
			}
			return touched(changed, &f.Audit, now)
		})
	case models.TypeItemType:
		err = edit(ctx, s.store.GetItemType, s.store.SaveItemType, op.DocumentID, func(it *models.ItemType) bool {
			var changed bool
			switch op.Field {
			case "category":
				changed = clearValue(&it.Category, v)
			case "attributeGroups":
				changed = dropValue(&it.AttributeGroups, v)
			case "attributes":
				changed = dropValue(&it.Attributes, v)
			case "associationIds":
				changed = dropValue(&it.AssociationIDs, v)
			default:
				fieldErr = unknown
			}
			return touched(changed, &it.Audit, now)
		})
	case models.TypeAssociation:
		err = edit(ctx, s.store.GetAssociation, s.store.SaveAssociation, op.DocumentID, func(a *models.Association) bool {
			var changed bool
			switch op.Field {
			case "sourceItemTypeIds":
				changed = dropValue(&a.SourceItemTypeIDs, v)
			case "targetItemTypeIds":
				changed = dropValue(&a.TargetItemTypeIDs, v)
			default:
				fieldErr = unknown
			}
			return touched(changed, &a.Audit, now)
		})
	case models.TypeItem:
		err = edit(ctx, s.store.GetItem, s.store.SaveItem, op.DocumentID, func(item *models.Item) bool {
			var changed bool
			switch op.Field {
			case "family":
				changed = clearValue(&item.Family, v)
			case "category":
				changed = clearValue(&item.Category, v)
			case "attributes":
				if _, ok := item.Attributes[v]; ok {
					delete(item.Attributes, v)
					changed = true
				}
			default:
				fieldErr = unknown
			}
			return touched(changed, &item.Audit, now)
		})
	default:
		return unknown
	}
	if err != nil {
		return err
	}
	return fieldErr
}

func touched(changed bool, a *models.Audit, now time.Time) bool {
	if changed {
		a.Touch(repairUser, now)
	}
	return changed
}

func clearValue(field *string, v string) bool {
	if *field == "" || *field != v {
		return false
	}
	*field = ""
	return true
}

func dropValue(list *[]string, v string) bool {
	out := make([]string, 0, len(*list))
	for _, x := range *list {
		if x != v {
			out = append(out, x)
		}
	}
	if len(out) == len(*list) {
		return false
	}
	*list = out
	return true
}
