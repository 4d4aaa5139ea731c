package integrity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evalgo.org/mdm/internal/catalog"
	"evalgo.org/mdm/internal/logging"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// Service scans the catalog for broken links and repairs them through the
// catalog service, so repairs follow the same locking and sync rules as
// ordinary writes.
type Service struct {
	store   *storage.Storage
	catalog *catalog.Service
	audit   *AuditLogger
	now     func() time.Time
}

// NewService creates an integrity service on top of the catalog service.
func NewService(cat *catalog.Service) *Service {
	return &Service{
		store:   cat.Store(),
		catalog: cat,
		audit:   NewAuditLogger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// snapshot is every catalog document loaded at the start of a scan.
type snapshot struct {
	attributes   []*models.Attribute
	groups       []*models.AttributeGroup
	categories   []*models.Category
	families     []*models.Family
	itemTypes    []*models.ItemType
	associations []*models.Association
	items        []*models.Item

	ids map[string]map[string]bool
}

func (s *Service) load(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { snap.attributes, err = s.store.ListAttributes(gctx, nil); return })
	g.Go(func() (err error) { snap.groups, err = s.store.ListAttributeGroups(gctx, nil); return })
	g.Go(func() (err error) { snap.categories, err = s.store.ListCategories(gctx, nil); return })
	g.Go(func() (err error) { snap.families, err = s.store.ListFamilies(gctx, nil); return })
	g.Go(func() (err error) { snap.itemTypes, err = s.store.ListItemTypes(gctx, nil); return })
	g.Go(func() (err error) { snap.associations, err = s.store.ListAssociations(gctx, nil); return })
	g.Go(func() (err error) { snap.items, err = s.store.ListItems(gctx, nil); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	snap.ids = map[string]map[string]bool{
		models.TypeAttribute:      {},
		models.TypeAttributeGroup: {},
		models.TypeCategory:       {},
		models.TypeFamily:         {},
		models.TypeItemType:       {},
		models.TypeAssociation:    {},
	}
	for _, d := range snap.attributes {
		snap.ids[models.TypeAttribute][d.ID] = true
	}
	for _, d := range snap.groups {
		snap.ids[models.TypeAttributeGroup][d.ID] = true
	}
	for _, d := range snap.categories {
		snap.ids[models.TypeCategory][d.ID] = true
	}
	for _, d := range snap.families {
		snap.ids[models.TypeFamily][d.ID] = true
	}
	for _, d := range snap.itemTypes {
		snap.ids[models.TypeItemType][d.ID] = true
	}
	for _, d := range snap.associations {
		snap.ids[models.TypeAssociation][d.ID] = true
	}
	return snap, nil
}

func (s *snapshot) size() int {
	return len(s.attributes) + len(s.groups) + len(s.categories) + len(s.families) +
		len(s.itemTypes) + len(s.associations) + len(s.items)
}

// Scan checks every catalog document and reports what it finds. It never
// writes.
func (s *Service) Scan(ctx context.Context) (*ScanReport, error) {
	report, _, err := s.scan(ctx)
	return report, err
}

func (s *Service) scan(ctx context.Context) (*ScanReport, *snapshot, error) {
	log := logging.FromContext(ctx)
	start := s.now()

	snap, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}

	report := &ScanReport{
		ID:               uuid.New().String(),
		Timestamp:        start,
		DocumentsScanned: snap.size(),
		Issues:           []Issue{},
		Summary: ScanSummary{
			ByType:     make(map[IssueType]int),
			BySeverity: make(map[Severity]int),
		},
	}

	report.Issues = append(report.Issues, scanReferences(snap)...)
	report.Issues = append(report.Issues, scanFamilyLinks(snap)...)
	report.Issues = append(report.Issues, scanClosures(snap)...)
	report.Issues = append(report.Issues, scanDuplicates(snap)...)

	report.Summary.TotalIssues = len(report.Issues)
	for _, issue := range report.Issues {
		report.Summary.ByType[issue.Type]++
		report.Summary.BySeverity[issue.Severity]++
	}
	report.Summary.HealthScore = calculateHealthScore(report)
	report.Duration = s.now().Sub(start)

	s.audit.LogScan(ctx, report)
	log.WithField("issues", report.Summary.TotalIssues).Info("integrity scan completed")
	return report, snap, nil
}

// refCheck describes one reference field of a document.
type refCheck struct {
	field    string
	target   string
	values   []string
	severity Severity
}

func one(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func scanReferences(snap *snapshot) []Issue {
	var issues []Issue
	check := func(docType, docID string, checks ...refCheck) {
		for _, c := range checks {
			for _, v := range c.values {
				if v == "" || snap.ids[c.target][v] {
					continue
				}
				issues = append(issues, Issue{
					Type:         IssueDanglingReference,
					Severity:     c.severity,
					DocumentID:   docID,
					DocumentType: docType,
					Field:        c.field,
					Value:        v,
					Description:  fmt.Sprintf("%s.%s references missing %s %s", docType, c.field, c.target, v),
				})
			}
		}
	}

	for _, a := range snap.attributes {
		check(models.TypeAttribute, a.ID,
			refCheck{"attributeGroup", models.TypeAttributeGroup, one(a.AttributeGroup), SeverityLow})
	}
	for _, g := range snap.groups {
		check(models.TypeAttributeGroup, g.ID,
			refCheck{"attributes", models.TypeAttribute, g.Attributes, SeverityMedium})
	}
	for _, c := range snap.categories {
		check(models.TypeCategory, c.ID,
			refCheck{"parent", models.TypeCategory, one(c.Parent), SeverityMedium},
			refCheck{"family", models.TypeFamily, one(c.Family), SeverityMedium},
			refCheck{"attributeGroups", models.TypeAttributeGroup, c.AttributeGroups, SeverityMedium},
			refCheck{"attributes", models.TypeAttribute, c.Attributes, SeverityMedium})
	}
	for _, f := range snap.families {
		check(models.TypeFamily, f.ID,
			refCheck{"parent", models.TypeFamily, one(f.Parent), SeverityMedium},
			refCheck{"subFamilies", models.TypeFamily, f.SubFamilies, SeverityLow},
			refCheck{"category", models.TypeCategory, one(f.Category), SeverityMedium},
			refCheck{"itemType", models.TypeItemType, one(f.ItemType), SeverityMedium},
			refCheck{"attributeGroups", models.TypeAttributeGroup, f.AttributeGroups, SeverityMedium},
			refCheck{"attributes", models.TypeAttribute, f.Attributes, SeverityMedium})
	}
	for _, it := range snap.itemTypes {
		check(models.TypeItemType, it.ID,
			refCheck{"category", models.TypeCategory, one(it.Category), SeverityMedium},
			refCheck{"attributeGroups", models.TypeAttributeGroup, it.AttributeGroups, SeverityMedium},
			refCheck{"attributes", models.TypeAttribute, it.Attributes, SeverityMedium},
			refCheck{"associationIds", models.TypeAssociation, it.AssociationIDs, SeverityLow})
	}
	for _, a := range snap.associations {
		check(models.TypeAssociation, a.ID,
			refCheck{"sourceItemTypeIds", models.TypeItemType, a.SourceItemTypeIDs, SeverityMedium},
			refCheck{"targetItemTypeIds", models.TypeItemType, a.TargetItemTypeIDs, SeverityMedium})
	}
	for _, item := range snap.items {
		check(models.TypeItem, item.ID,
			refCheck{"itemType", models.TypeItemType, one(item.ItemType), SeverityHigh},
			refCheck{"family", models.TypeFamily, one(item.Family), SeverityMedium},
			refCheck{"category", models.TypeCategory, one(item.Category), SeverityMedium},
			refCheck{"attributes", models.TypeAttribute, sortedKeys(item.Attributes), SeverityLow})
	}
	return issues
}

// scanFamilyLinks finds categories and families that do not point at each
// other. References to missing documents are left to scanReferences.
func scanFamilyLinks(snap *snapshot) []Issue {
	var issues []Issue
	families := make(map[string]*models.Family, len(snap.families))
	for _, f := range snap.families {
		families[f.ID] = f
	}
	categories := make(map[string]*models.Category, len(snap.categories))
	claims := map[string][]string{}
	for _, c := range snap.categories {
		categories[c.ID] = c
		if c.Family != "" && families[c.Family] != nil {
			claims[c.Family] = append(claims[c.Family], c.ID)
		}
	}

	for _, c := range snap.categories {
		f := families[c.Family]
		if f == nil || f.Category == c.ID {
			continue
		}
		desc := fmt.Sprintf("category %s points at family %s, which points at %q", c.ID, f.ID, f.Category)
		if n := len(claims[f.ID]); n > 1 {
			desc = fmt.Sprintf("family %s is claimed by %d categories", f.ID, n)
		}
		issues = append(issues, Issue{
			Type:         IssueFamilyDesync,
			Severity:     SeverityMedium,
			DocumentID:   c.ID,
			DocumentType: models.TypeCategory,
			Field:        "family",
			Value:        f.ID,
			Description:  desc,
		})
	}

	for _, f := range snap.families {
		c := categories[f.Category]
		if c == nil || c.Family == f.ID {
			continue
		}
		issues = append(issues, Issue{
			Type:         IssueFamilyDesync,
			Severity:     SeverityMedium,
			DocumentID:   f.ID,
			DocumentType: models.TypeFamily,
			Field:        "category",
			Value:        c.ID,
			Description:  fmt.Sprintf("family %s points at category %s, which points at %q", f.ID, c.ID, c.Family),
		})
	}
	return issues
}

// scanClosures compares denormalized attribute lists with the union of
// the referenced groups. An item type without groups keeps explicit
// attributes and is not checked.
func scanClosures(snap *snapshot) []Issue {
	members := make(map[string][]string, len(snap.groups))
	for _, g := range snap.groups {
		members[g.ID] = g.Attributes
	}
	closure := func(groupIDs []string) map[string]bool {
		set := map[string]bool{}
		for _, id := range groupIDs {
			for _, a := range members[id] {
				set[a] = true
			}
		}
		return set
	}

	var issues []Issue
	for _, f := range snap.families {
		if !sameSet(closure(f.AttributeGroups), f.Attributes) {
			issues = append(issues, Issue{
				Type:         IssueClosureDrift,
				Severity:     SeverityLow,
				DocumentID:   f.ID,
				DocumentType: models.TypeFamily,
				Field:        "attributes",
				Description:  fmt.Sprintf("family %s attributes differ from its attribute groups", f.ID),
			})
		}
	}
	for _, it := range snap.itemTypes {
		if len(it.AttributeGroups) == 0 {
			continue
		}
		if !sameSet(closure(it.AttributeGroups), it.Attributes) {
			issues = append(issues, Issue{
				Type:         IssueClosureDrift,
				Severity:     SeverityLow,
				DocumentID:   it.ID,
				DocumentType: models.TypeItemType,
				Field:        "attributes",
				Description:  fmt.Sprintf("item type %s attributes differ from its attribute groups", it.ID),
			})
		}
	}
	return issues
}

func sameSet(set map[string]bool, list []string) bool {
	seen := make(map[string]bool, len(list))
	for _, v := range list {
		if !set[v] {
			return false
		}
		seen[v] = true
	}
	return len(seen) == len(set)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// calculateHealthScore computes a 0-100 health score based on issues found.
func calculateHealthScore(report *ScanReport) int {
	score := 100
	for severity, count := range report.Summary.BySeverity {
		switch severity {
		case SeverityHigh:
			score -= count * 10
		case SeverityMedium:
			score -= count * 3
		case SeverityLow:
			score -= count
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
