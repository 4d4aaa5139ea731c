package integrity

import (
	"fmt"
	"sort"
	"strings"

	"evalgo.org/mdm/models"
)

// codedDoc is the part of a catalog document duplicate detection needs.
type codedDoc struct {
	id   string
	code string
}

// scanDuplicates finds documents of one type sharing a code. Codes are
// checked before a write, so two concurrent creates can both pass the
// check. Every holder after the oldest id is reported.
func scanDuplicates(snap *snapshot) []Issue {
	byType := map[string][]codedDoc{}
	for _, d := range snap.attributes {
		byType[models.TypeAttribute] = append(byType[models.TypeAttribute], codedDoc{d.ID, d.Code})
	}
	for _, d := range snap.groups {
		byType[models.TypeAttributeGroup] = append(byType[models.TypeAttributeGroup], codedDoc{d.ID, d.Code})
	}
	for _, d := range snap.categories {
		byType[models.TypeCategory] = append(byType[models.TypeCategory], codedDoc{d.ID, d.Code})
	}
	for _, d := range snap.families {
		byType[models.TypeFamily] = append(byType[models.TypeFamily], codedDoc{d.ID, d.Code})
	}
	for _, d := range snap.itemTypes {
		byType[models.TypeItemType] = append(byType[models.TypeItemType], codedDoc{d.ID, d.Code})
	}
	for _, d := range snap.associations {
		byType[models.TypeAssociation] = append(byType[models.TypeAssociation], codedDoc{d.ID, d.Code})
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var issues []Issue
	for _, docType := range types {
		index := map[string][]string{}
		for _, d := range byType[docType] {
			if d.code == "" {
				continue
			}
			index[d.code] = append(index[d.code], d.id)
		}
		codes := make([]string, 0, len(index))
		for code, ids := range index {
			if len(ids) > 1 {
				codes = append(codes, code)
			}
		}
		sort.Strings(codes)

		for _, code := range codes {
			ids := index[code]
			sort.Strings(ids)
			for _, id := range ids[1:] {
				issues = append(issues, Issue{
					Type:         IssueDuplicateCode,
					Severity:     SeverityHigh,
					DocumentID:   id,
					DocumentType: docType,
					Field:        "code",
					Value:        code,
					Description: fmt.Sprintf("%s code %q is also used by %s",
						docType, code, strings.Join(without(ids, id), ", ")),
				})
			}
		}
	}
	return issues
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids)-1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
