package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"evalgo.org/mdm/internal/api"
	"evalgo.org/mdm/internal/catalog"
	"evalgo.org/mdm/internal/storage"
	"evalgo.org/mdm/models"
)

var (
	// Query flags
	queryLimit  int
	queryActive string
	queryRole   string
	queryFormat string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the catalog",
	Long:  `Read catalog entities, hierarchies, relationships and history directly from the store`,
}

var listCmd = &cobra.Command{
	Use:   "list [type]",
	Short: "List entities of a type",
	Long: `List catalog entities with optional filtering.

Types: attributes, attributeGroups, categories, families, itemTypes,
associations, items, relationshipTypes

Examples:
  mdm query list attributes
  mdm query list categories --active true
  mdm query list items --limit 20 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

var treeCmd = &cobra.Command{
	Use:   "tree [categories|families]",
	Short: "Show the category or family hierarchy",
	Long: `Print the parent/child hierarchy as a tree.

Examples:
  mdm query tree categories
  mdm query tree families --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

var relationsCmd = &cobra.Command{
	Use:   "relations [entityType] [entityId]",
	Short: "List the relationships of an entity",
	Long: `List the typed relationships an entity takes part in.

Examples:
  mdm query relations item item:42
  mdm query relations category category:7 --role source`,
	Args: cobra.ExactArgs(2),
	RunE: runRelations,
}

var historyCmd = &cobra.Command{
	Use:   "history [entityId]",
	Short: "Show the change history of an entity",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	Long:  `Display document counts per entity type.`,
	RunE:  runStats,
}

func init() {
	queryCmd.AddCommand(listCmd)
	queryCmd.AddCommand(treeCmd)
	queryCmd.AddCommand(relationsCmd)
	queryCmd.AddCommand(historyCmd)
	queryCmd.AddCommand(statsCmd)

	// List command flags
	listCmd.Flags().IntVar(&queryLimit, "limit", 100, "maximum results")
	listCmd.Flags().StringVar(&queryActive, "active", "", "filter by active flag (true, false)")
	listCmd.Flags().StringVar(&queryFormat, "format", "table", "output format (table, json)")

	treeCmd.Flags().StringVar(&queryFormat, "format", "tree", "output format (tree, json)")

	relationsCmd.Flags().StringVar(&queryRole, "role", "any", "side the entity is on (source, target, any)")
	relationsCmd.Flags().StringVar(&queryFormat, "format", "table", "output format (table, json)")

	historyCmd.Flags().IntVar(&queryLimit, "limit", 20, "maximum rows")
	historyCmd.Flags().StringVar(&queryFormat, "format", "table", "output format (table, json)")

	statsCmd.Flags().StringVar(&queryFormat, "format", "table", "output format (table, json)")
}

// openQuery wires the services for a one-off read.
func openQuery(cmd *cobra.Command) (*api.Services, func(), error) {
	services, cleanup, err := openServices(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return services, func() {
		cleanup()
		_ = services.Storage.Close()
	}, nil
}

func activeFilter() (*bool, error) {
	switch strings.ToLower(queryActive) {
	case "":
		return nil, nil
	case "true", "yes", "1":
		v := true
		return &v, nil
	case "false", "no", "0":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("invalid --active value: %s", queryActive)
}

// entityRow is one line of the list table.
type entityRow struct {
	ID     string
	Code   string
	Name   string
	Active bool
}

func limitRows(rows []entityRow) []entityRow {
	if queryLimit > 0 && len(rows) > queryLimit {
		return rows[:queryLimit]
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	active, err := activeFilter()
	if err != nil {
		return err
	}

	services, closeFn, err := openQuery(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	cat := services.Catalog
	var (
		data interface{}
		rows []entityRow
	)

	switch strings.ToLower(args[0]) {
	case "attributes", "attribute":
		list, err := cat.ListAttributes(ctx, catalog.AttributeFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list attributes: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "attributegroups", "attributegroup":
		list, err := cat.ListAttributeGroups(ctx, catalog.AttributeGroupFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list attribute groups: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "categories", "category":
		list, err := cat.ListCategories(ctx, catalog.CategoryFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "families", "family":
		list, err := cat.ListFamilies(ctx, catalog.FamilyFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list families: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "itemtypes", "itemtype":
		list, err := cat.ListItemTypes(ctx, catalog.ItemTypeFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list item types: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "associations", "association":
		list, err := cat.ListAssociations(ctx, catalog.AssociationFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list associations: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, catalog.DisplayName(v.Name), v.IsActive})
		}
	case "items", "item":
		list, err := cat.ListItems(ctx, catalog.ItemFilter{IsActive: active})
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		data = list
		for _, v := range list {
			var typeCode string
			if v.ItemType != nil {
				typeCode = v.ItemType.Code
			}
			rows = append(rows, entityRow{v.ID, typeCode, "", v.IsActive})
		}
	case "relationshiptypes", "relationshiptype":
		list, err := services.Relationships.ListTypes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list relationship types: %w", err)
		}
		data = list
		for _, v := range list {
			rows = append(rows, entityRow{v.ID, v.Code, v.Name, true})
		}
	default:
		return fmt.Errorf("unknown entity type: %s", args[0])
	}

	if queryFormat == "json" {
		return printJSON(data)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCODE\tNAME\tACTIVE")
	for _, r := range limitRows(rows) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", r.ID, r.Code, r.Name, r.Active)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(rows))
	return nil
}

// treeNode is one entry of a printed hierarchy.
type treeNode struct {
	ID       string      `json:"id"`
	Code     string      `json:"code"`
	Name     string      `json:"name"`
	Children []*treeNode `json:"children,omitempty"`
}

// buildTree links nodes to their parents. Nodes whose parent is missing
// become roots.
func buildTree(nodes map[string]*treeNode, parents map[string]string) []*treeNode {
	var roots []*treeNode
	for id, n := range nodes {
		if parent, ok := nodes[parents[id]]; ok && parents[id] != id {
			parent.Children = append(parent.Children, n)
		} else {
			roots = append(roots, n)
		}
	}
	var sortNodes func([]*treeNode)
	sortNodes = func(list []*treeNode) {
		sort.Slice(list, func(i, j int) bool { return list[i].Code < list[j].Code })
		for _, n := range list {
			sortNodes(n.Children)
		}
	}
	sortNodes(roots)
	return roots
}

func printTree(nodes []*treeNode, prefix string) {
	for i, n := range nodes {
		connector, next := "├── ", "│   "
		if i == len(nodes)-1 {
			connector, next = "└── ", "    "
		}
		fmt.Printf("%s%s%s (%s)\n", prefix, connector, n.Code, n.Name)
		printTree(n.Children, prefix+next)
	}
}

func runTree(cmd *cobra.Command, args []string) error {
	services, closeFn, err := openQuery(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	nodes := map[string]*treeNode{}
	parents := map[string]string{}

	switch strings.ToLower(args[0]) {
	case "categories", "category":
		list, err := services.Catalog.ListCategories(ctx, catalog.CategoryFilter{})
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		for _, v := range list {
			nodes[v.ID] = &treeNode{ID: v.ID, Code: v.Code, Name: catalog.DisplayName(v.Name)}
			parents[v.ID] = v.Category.Parent
		}
	case "families", "family":
		list, err := services.Catalog.ListFamilies(ctx, catalog.FamilyFilter{})
		if err != nil {
			return fmt.Errorf("failed to list families: %w", err)
		}
		for _, v := range list {
			nodes[v.ID] = &treeNode{ID: v.ID, Code: v.Code, Name: catalog.DisplayName(v.Name)}
			parents[v.ID] = v.Family.Parent
		}
	default:
		return fmt.Errorf("unknown hierarchy: %s (use 'categories' or 'families')", args[0])
	}

	roots := buildTree(nodes, parents)
	if queryFormat == "json" {
		return printJSON(roots)
	}
	fmt.Printf("%s (%d)\n", args[0], len(nodes))
	printTree(roots, "")
	return nil
}

func runRelations(cmd *cobra.Command, args []string) error {
	role := storage.EntityRole(queryRole)
	switch role {
	case storage.EntityRoleSource, storage.EntityRoleTarget, storage.EntityRoleAny:
	default:
		return fmt.Errorf("invalid --role value: %s", queryRole)
	}

	services, closeFn, err := openQuery(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	rels, err := services.Relationships.GetByEntity(cmd.Context(), args[1], args[0], role)
	if err != nil {
		return fmt.Errorf("failed to load relationships: %w", err)
	}
	if queryFormat == "json" {
		return printJSON(rels)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSOURCE\tTARGET\tSTATUS")
	for _, r := range rels {
		fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s:%s\t%s\n", r.ID, r.RelationshipTypeID,
			r.SourceEntityType, r.SourceEntityID, r.TargetEntityType, r.TargetEntityID, r.Status)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d relationships\n", len(rels))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	services, closeFn, err := openQuery(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	page, err := services.History.GetEntityHistory(cmd.Context(), args[0], "", queryLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if queryFormat == "json" {
		return printJSON(page.Rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tACTION\tENTITY\tNAME\tBY")
	for _, h := range page.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s:%s\t%s\t%s\n", h.CreatedAt.Format("2006-01-02 15:04:05"),
			h.Action, h.EntityType, h.EntityID, h.EntityName, h.CreatedBy)
	}
	w.Flush()
	fmt.Printf("\nShowing %d of %d rows\n", len(page.Rows), page.Total)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	services, closeFn, err := openQuery(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	stats, err := services.Storage.GetStatistics(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}
	if queryFormat == "json" {
		return printJSON(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT")
	for _, row := range []struct {
		label models.EntityType
		count int
	}{
		{models.EntityAttribute, stats.Attributes},
		{models.EntityAttributeGroup, stats.AttributeGroups},
		{models.EntityCategory, stats.Categories},
		{models.EntityFamily, stats.Families},
		{models.EntityItemType, stats.ItemTypes},
		{models.EntityAssociation, stats.Associations},
		{models.EntityItem, stats.Items},
		{models.EntityRelationshipType, stats.RelationshipTypes},
		{models.EntityRelationship, stats.Relationships},
		{models.EntityLocalization, stats.Localizations},
		{models.EntityUser, stats.Users},
	} {
		fmt.Fprintf(w, "%s\t%d\n", row.label, row.count)
	}
	fmt.Fprintf(w, "history\t%d\n", stats.HistoryRows)
	fmt.Fprintf(w, "active items\t%d\n", stats.ActiveItems)
	w.Flush()
	return nil
}
