package catalog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"evalgo.org/mdm/internal/localization"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

// Read models. Each view embeds the stored document and shadows its
// reference fields with populated values, so the JSON shape matches the
// stored one with ids replaced by objects.

// EntitySummary is a populated reference to another catalog entity. A
// reference to a deleted entity keeps only its id.
type EntitySummary struct {
	ID   string               `json:"_id"`
	Code string               `json:"code,omitempty"`
	Name *models.Localization `json:"name,omitempty"`
}

// AttributeView is an Attribute with its localized texts.
type AttributeView struct {
	*models.Attribute
	Name        *models.Localization `json:"name"`
	Description *models.Localization `json:"description,omitempty"`
}

// AttributeGroupView is an AttributeGroup with its member attributes.
type AttributeGroupView struct {
	*models.AttributeGroup
	Name        *models.Localization `json:"name"`
	Description *models.Localization `json:"description,omitempty"`
	Attributes  []*AttributeView     `json:"attributes"`
}

// CategoryView is a populated Category.
type CategoryView struct {
	*models.Category
	Name            *models.Localization  `json:"name"`
	Description     *models.Localization  `json:"description,omitempty"`
	Parent          *EntitySummary        `json:"parent,omitempty"`
	Family          *EntitySummary        `json:"family,omitempty"`
	AttributeGroups []*AttributeGroupView `json:"attributeGroups"`
	Attributes      []*AttributeView      `json:"attributes,omitempty"`
}

// FamilyView is a populated Family.
type FamilyView struct {
	*models.Family
	Name            *models.Localization  `json:"name"`
	Description     *models.Localization  `json:"description,omitempty"`
	Parent          *EntitySummary        `json:"parent,omitempty"`
	SubFamilies     []*EntitySummary      `json:"subFamilies"`
	Category        *EntitySummary        `json:"category,omitempty"`
	ItemType        *EntitySummary        `json:"itemType,omitempty"`
	AttributeGroups []*AttributeGroupView `json:"attributeGroups"`
	Attributes      []*AttributeView      `json:"attributes"`
}

// AssociationView is a populated Association.
type AssociationView struct {
	*models.Association
	Name            *models.Localization `json:"name"`
	Description     *models.Localization `json:"description,omitempty"`
	SourceItemTypes []*EntitySummary     `json:"sourceItemTypes"`
	TargetItemTypes []*EntitySummary     `json:"targetItemTypes"`
}

// AssociationSet splits the associations of an ItemType by direction.
type AssociationSet struct {
	Outgoing []*AssociationView `json:"outgoing"`
	Incoming []*AssociationView `json:"incoming"`
}

// ItemTypeView is a populated ItemType.
type ItemTypeView struct {
	*models.ItemType
	Name            *models.Localization  `json:"name"`
	Description     *models.Localization  `json:"description,omitempty"`
	Category        *EntitySummary        `json:"category,omitempty"`
	AttributeGroups []*AttributeGroupView `json:"attributeGroups"`
	Attributes      []*AttributeView      `json:"attributes"`
	Associations    *AssociationSet       `json:"associations"`
}

// ItemView is a populated Item.
type ItemView struct {
	*models.Item
	ItemType *EntitySummary `json:"itemType"`
	Family   *EntitySummary `json:"family,omitempty"`
	Category *EntitySummary `json:"category,omitempty"`
}

// DisplayName returns the resolved name of a view's localized name.
func DisplayName(name *models.Localization) string {
	return localization.ResolveOr(localization.FromLocalization(name), localization.FallbackName)
}

// populator collects localized field references and fills them with a
// single batch read.
type populator struct {
	loc     *localization.Service
	targets map[string][]**models.Localization
}

func (s *Service) newPopulator() *populator {
	return &populator{loc: s.loc, targets: make(map[string][]**models.Localization)}
}

func (p *populator) text(ref string, dst **models.Localization) {
	if ref == "" {
		return
	}
	p.targets[ref] = append(p.targets[ref], dst)
}

func (p *populator) resolve(ctx context.Context) error {
	ids := make([]string, 0, len(p.targets))
	for ref := range p.targets {
		if models.IsLocalizationID(ref) {
			ids = append(ids, ref)
		}
	}
	locs, err := p.loc.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	for ref, dsts := range p.targets {
		l, ok := locs[ref]
		if !ok {
			// Plain text stored before localization or a deleted entry.
			l = &models.Localization{Key: ref, Translations: map[string]string{}}
			if !models.IsLocalizationID(ref) {
				l.Translations[p.loc.DefaultLanguage()] = ref
			}
		}
		for _, d := range dsts {
			*d = l
		}
	}
	return nil
}

// refs lists the documents a batch of views points at.
type refs struct {
	categories []string
	families   []string
	itemTypes  []string
	groups     []string
	attributes []string
}

// loaded holds the referenced documents by id.
type loaded struct {
	categories map[string]*models.Category
	families   map[string]*models.Family
	itemTypes  map[string]*models.ItemType
	groups     map[string]*models.AttributeGroup
	attributes map[string]*models.Attribute
}

func index[T storage.Doc](docs []T) map[string]T {
	m := make(map[string]T, len(docs))
	for _, d := range docs {
		m[d.DocID()] = d
	}
	return m
}

// load reads every referenced document. Groups are read before attributes
// so group members are included.
func (s *Service) load(ctx context.Context, r refs) (*loaded, error) {
	l := &loaded{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := s.store.GetCategories(gctx, uniqueStrings(r.categories))
		l.categories = index(docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.store.GetFamilies(gctx, uniqueStrings(r.families))
		l.families = index(docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.store.GetItemTypes(gctx, uniqueStrings(r.itemTypes))
		l.itemTypes = index(docs)
		return err
	})
	g.Go(func() error {
		docs, err := s.store.GetAttributeGroups(gctx, uniqueStrings(r.groups))
		l.groups = index(docs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	attrIDs := append([]string(nil), r.attributes...)
	for _, grp := range l.groups {
		attrIDs = append(attrIDs, grp.Attributes...)
	}
	attrs, err := s.store.GetAttributes(ctx, uniqueStrings(attrIDs))
	if err != nil {
		return nil, err
	}
	l.attributes = index(attrs)
	return l, nil
}

func (l *loaded) categorySummary(p *populator, id string) *EntitySummary {
	if id == "" {
		return nil
	}
	sum := &EntitySummary{ID: id}
	if c, ok := l.categories[id]; ok {
		sum.Code = c.Code
		p.text(c.Name, &sum.Name)
	}
	return sum
}

func (l *loaded) familySummary(p *populator, id string) *EntitySummary {
	if id == "" {
		return nil
	}
	sum := &EntitySummary{ID: id}
	if f, ok := l.families[id]; ok {
		sum.Code = f.Code
		p.text(f.Name, &sum.Name)
	}
	return sum
}

func (l *loaded) itemTypeSummary(p *populator, id string) *EntitySummary {
	if id == "" {
		return nil
	}
	sum := &EntitySummary{ID: id}
	if it, ok := l.itemTypes[id]; ok {
		sum.Code = it.Code
		p.text(it.Name, &sum.Name)
	}
	return sum
}

func attributeView(p *populator, a *models.Attribute) *AttributeView {
	v := &AttributeView{Attribute: a}
	p.text(a.Name, &v.Name)
	p.text(a.Description, &v.Description)
	return v
}

func (l *loaded) attributeViews(p *populator, ids []string) []*AttributeView {
	out := []*AttributeView{}
	for _, id := range ids {
		if a, ok := l.attributes[id]; ok {
			out = append(out, attributeView(p, a))
		}
	}
	return out
}

func (l *loaded) groupView(p *populator, g *models.AttributeGroup) *AttributeGroupView {
	v := &AttributeGroupView{AttributeGroup: g, Attributes: l.attributeViews(p, g.Attributes)}
	p.text(g.Name, &v.Name)
	p.text(g.Description, &v.Description)
	return v
}

func (l *loaded) groupViews(p *populator, ids []string) []*AttributeGroupView {
	out := []*AttributeGroupView{}
	for _, id := range ids {
		if g, ok := l.groups[id]; ok {
			out = append(out, l.groupView(p, g))
		}
	}
	return out
}

// AttributeViews populates attributes.
func (s *Service) AttributeViews(ctx context.Context, attrs []*models.Attribute) ([]*AttributeView, error) {
	p := s.newPopulator()
	out := make([]*AttributeView, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, attributeView(p, a))
	}
	return out, p.resolve(ctx)
}

// AttributeGroupViews populates groups with their member attributes.
func (s *Service) AttributeGroupViews(ctx context.Context, groups []*models.AttributeGroup) ([]*AttributeGroupView, error) {
	var r refs
	for _, g := range groups {
		r.attributes = append(r.attributes, g.Attributes...)
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}
	p := s.newPopulator()
	out := make([]*AttributeGroupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, l.groupView(p, g))
	}
	return out, p.resolve(ctx)
}

// CategoryViews populates categories.
func (s *Service) CategoryViews(ctx context.Context, cats []*models.Category) ([]*CategoryView, error) {
	var r refs
	for _, c := range cats {
		r.categories = append(r.categories, c.Parent)
		r.families = append(r.families, c.Family)
		r.groups = append(r.groups, c.AttributeGroups...)
		r.attributes = append(r.attributes, c.Attributes...)
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}

	p := s.newPopulator()
	out := make([]*CategoryView, 0, len(cats))
	for _, c := range cats {
		v := &CategoryView{
			Category:        c,
			Parent:          l.categorySummary(p, c.Parent),
			Family:          l.familySummary(p, c.Family),
			AttributeGroups: l.groupViews(p, c.AttributeGroups),
			Attributes:      l.attributeViews(p, c.Attributes),
		}
		p.text(c.Name, &v.Name)
		p.text(c.Description, &v.Description)
		out = append(out, v)
	}
	return out, p.resolve(ctx)
}

// FamilyViews populates families.
func (s *Service) FamilyViews(ctx context.Context, fams []*models.Family) ([]*FamilyView, error) {
	var r refs
	for _, f := range fams {
		r.families = append(r.families, f.Parent)
		r.families = append(r.families, f.SubFamilies...)
		r.categories = append(r.categories, f.Category)
		r.itemTypes = append(r.itemTypes, f.ItemType)
		r.groups = append(r.groups, f.AttributeGroups...)
		r.attributes = append(r.attributes, f.Attributes...)
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}

	p := s.newPopulator()
	out := make([]*FamilyView, 0, len(fams))
	for _, f := range fams {
		v := &FamilyView{
			Family:          f,
			Parent:          l.familySummary(p, f.Parent),
			SubFamilies:     []*EntitySummary{},
			Category:        l.categorySummary(p, f.Category),
			ItemType:        l.itemTypeSummary(p, f.ItemType),
			AttributeGroups: l.groupViews(p, f.AttributeGroups),
			Attributes:      l.attributeViews(p, f.Attributes),
		}
		for _, sub := range f.SubFamilies {
			v.SubFamilies = append(v.SubFamilies, l.familySummary(p, sub))
		}
		p.text(f.Name, &v.Name)
		p.text(f.Description, &v.Description)
		out = append(out, v)
	}
	return out, p.resolve(ctx)
}

// ItemTypeViews populates item types including their resolved associations.
func (s *Service) ItemTypeViews(ctx context.Context, types []*models.ItemType) ([]*ItemTypeView, error) {
	outgoing := make([][]*models.Association, len(types))
	incoming := make([][]*models.Association, len(types))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, it := range types {
		g.Go(func() error {
			from, err := s.store.AssociationsFrom(gctx, it.ID)
			if err != nil {
				return err
			}
			to, err := s.store.AssociationsTo(gctx, it.ID)
			if err != nil {
				return err
			}
			outgoing[i], incoming[i] = from, to
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var r refs
	for i, it := range types {
		r.categories = append(r.categories, it.Category)
		r.groups = append(r.groups, it.AttributeGroups...)
		r.attributes = append(r.attributes, it.Attributes...)
		for _, a := range append(outgoing[i], incoming[i]...) {
			r.itemTypes = append(r.itemTypes, a.SourceItemTypeIDs...)
			r.itemTypes = append(r.itemTypes, a.TargetItemTypeIDs...)
		}
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}

	p := s.newPopulator()
	out := make([]*ItemTypeView, 0, len(types))
	for i, it := range types {
		v := &ItemTypeView{
			ItemType:        it,
			Category:        l.categorySummary(p, it.Category),
			AttributeGroups: l.groupViews(p, it.AttributeGroups),
			Attributes:      l.attributeViews(p, it.Attributes),
			Associations:    &AssociationSet{Outgoing: []*AssociationView{}, Incoming: []*AssociationView{}},
		}
		for _, a := range outgoing[i] {
			v.Associations.Outgoing = append(v.Associations.Outgoing, l.associationView(p, a))
		}
		for _, a := range incoming[i] {
			v.Associations.Incoming = append(v.Associations.Incoming, l.associationView(p, a))
		}
		p.text(it.Name, &v.Name)
		p.text(it.Description, &v.Description)
		out = append(out, v)
	}
	return out, p.resolve(ctx)
}

func (l *loaded) associationView(p *populator, a *models.Association) *AssociationView {
	v := &AssociationView{
		Association:     a,
		SourceItemTypes: []*EntitySummary{},
		TargetItemTypes: []*EntitySummary{},
	}
	for _, id := range a.SourceItemTypeIDs {
		v.SourceItemTypes = append(v.SourceItemTypes, l.itemTypeSummary(p, id))
	}
	for _, id := range a.TargetItemTypeIDs {
		v.TargetItemTypes = append(v.TargetItemTypes, l.itemTypeSummary(p, id))
	}
	p.text(a.Name, &v.Name)
	p.text(a.Description, &v.Description)
	return v
}

// AssociationViews populates associations.
func (s *Service) AssociationViews(ctx context.Context, assocs []*models.Association) ([]*AssociationView, error) {
	var r refs
	for _, a := range assocs {
		r.itemTypes = append(r.itemTypes, a.SourceItemTypeIDs...)
		r.itemTypes = append(r.itemTypes, a.TargetItemTypeIDs...)
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}
	p := s.newPopulator()
	out := make([]*AssociationView, 0, len(assocs))
	for _, a := range assocs {
		out = append(out, l.associationView(p, a))
	}
	return out, p.resolve(ctx)
}

// ItemViews populates items.
func (s *Service) ItemViews(ctx context.Context, items []*models.Item) ([]*ItemView, error) {
	var r refs
	for _, it := range items {
		r.itemTypes = append(r.itemTypes, it.ItemType)
		r.families = append(r.families, it.Family)
		r.categories = append(r.categories, it.Category)
	}
	l, err := s.load(ctx, r)
	if err != nil {
		return nil, err
	}
	p := s.newPopulator()
	out := make([]*ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, &ItemView{
			Item:     it,
			ItemType: l.itemTypeSummary(p, it.ItemType),
			Family:   l.familySummary(p, it.Family),
			Category: l.categorySummary(p, it.Category),
		})
	}
	return out, p.resolve(ctx)
}

// first returns the single element of a one-element view batch.
func first[T any](views []T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if len(views) == 0 {
		return zero, nil
	}
	return views[0], nil
}
