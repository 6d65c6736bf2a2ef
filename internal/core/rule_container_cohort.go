package core

import (
	"context"
	"fmt"

	"hatcherycore/pkg/domain"
)

// NewContainerCohortRule returns a rule that warns when one container
// placement accumulates more than one distinct cohort within an event.
// Warn rather than block: historical records legitimately mix cohorts after
// deliberate transfers; the import grouping pass rejects ambiguous sheets
// before any writes happen.
func NewContainerCohortRule() domain.Rule {
	return containerCohortRule{}
}

type containerCohortRule struct{}

func (containerCohortRule) Name() string { return "container_cohort" }

func (containerCohortRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	containerByLink := make(map[string]string)
	for _, cl := range view.ListContainerLinks() {
		containerByLink[cl.ID] = cl.ContainerID
	}

	cohorts := make(map[string]map[string]struct{})
	for _, ref := range view.ListCrossRefs() {
		if ref.GroupID == nil || ref.ContainerLinkID == nil {
			continue
		}
		containerID, ok := containerByLink[*ref.ContainerLinkID]
		if !ok {
			continue
		}
		key := ref.EventID + "|" + containerID
		if cohorts[key] == nil {
			cohorts[key] = make(map[string]struct{})
		}
		cohorts[key][*ref.GroupID] = struct{}{}
	}

	res := domain.Result{}
	for _, container := range view.ListContainers() {
		for _, event := range view.ListEvents() {
			key := event.ID + "|" + container.ID
			if groups := cohorts[key]; len(groups) > 1 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "container_cohort",
					Severity: domain.SeverityWarn,
					Message:  fmt.Sprintf("container %s holds %d distinct cohorts within event %s", container.Name, len(groups), event.ID),
					Entity:   domain.EntityContainer,
					EntityID: container.ID,
				})
			}
		}
	}
	return res, nil
}
