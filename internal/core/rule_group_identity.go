package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hatcherycore/pkg/domain"
)

// NewGroupIdentityRule returns the in-transaction rule that blocks two bare
// group cross-references under one event from resolving to groups with the
// same (stock, collection, year) key and identical program-group marks.
// Enforcing this at creation time keeps the bare-group lookup unambiguous.
func NewGroupIdentityRule() domain.Rule {
	return groupIdentityRule{}
}

type groupIdentityRule struct{}

func (groupIdentityRule) Name() string { return "group_identity" }

func (groupIdentityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	marksByRef := make(map[string][]string)
	for _, m := range view.ListMarkAssignments() {
		marksByRef[m.CrossRefID] = append(marksByRef[m.CrossRefID], m.MarkCodeID)
	}

	seen := make(map[string]int)
	res := domain.Result{}
	for _, ref := range view.ListCrossRefs() {
		if !ref.Bare() {
			continue
		}
		group, ok := view.FindGroup(*ref.GroupID)
		if !ok {
			continue
		}
		marks := append([]string(nil), marksByRef[ref.ID]...)
		sort.Strings(marks)
		key := fmt.Sprintf("%s|%s|%s|%d|%s", ref.EventID, group.StockID, group.CollectionID, group.Year, strings.Join(marks, ","))
		seen[key]++
		if seen[key] > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "group_identity",
				Severity: domain.SeverityBlock,
				Message: fmt.Sprintf("event %s already references a group with stock %s, collection %s, year %d and identical marks",
					ref.EventID, group.StockID, group.CollectionID, group.Year),
				Entity:   domain.EntityGroup,
				EntityID: group.ID,
			})
		}
	}
	return res, nil
}
