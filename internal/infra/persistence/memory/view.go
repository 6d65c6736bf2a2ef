package memory

import "hatcherycore/pkg/domain"

// ListEvents returns all events within the snapshot.
func (v TransactionView) ListEvents() []domain.Event {
	out := make([]domain.Event, 0, len(v.state.events))
	for _, e := range v.state.events {
		out = append(out, e)
	}
	return out
}

// FindEvent retrieves an event by id from the snapshot.
func (v TransactionView) FindEvent(id string) (domain.Event, bool) {
	e, ok := v.state.events[id]
	return e, ok
}

// ListGroups returns all groups within the snapshot.
func (v TransactionView) ListGroups() []domain.Group {
	out := make([]domain.Group, 0, len(v.state.groups))
	for _, g := range v.state.groups {
		out = append(out, g)
	}
	return out
}

// FindGroup retrieves a group by id.
func (v TransactionView) FindGroup(id string) (domain.Group, bool) {
	g, ok := v.state.groups[id]
	return g, ok
}

// ListIndividuals returns all individuals.
func (v TransactionView) ListIndividuals() []domain.Individual {
	out := make([]domain.Individual, 0, len(v.state.individuals))
	for _, i := range v.state.individuals {
		out = append(out, i)
	}
	return out
}

// FindIndividualByTag retrieves an individual by its external tag.
func (v TransactionView) FindIndividualByTag(tag string) (domain.Individual, bool) {
	for _, i := range v.state.individuals {
		if i.Tag == tag {
			return i, true
		}
	}
	return domain.Individual{}, false
}

// ListLocations returns all locations.
func (v TransactionView) ListLocations() []domain.Location {
	out := make([]domain.Location, 0, len(v.state.locations))
	for _, l := range v.state.locations {
		out = append(out, l)
	}
	return out
}

// ListContainers returns all containers.
func (v TransactionView) ListContainers() []domain.Container {
	out := make([]domain.Container, 0, len(v.state.containers))
	for _, c := range v.state.containers {
		out = append(out, c)
	}
	return out
}

// FindContainerByName retrieves a container by its unique name.
func (v TransactionView) FindContainerByName(name string) (domain.Container, bool) {
	for _, c := range v.state.containers {
		if c.Name == name {
			return c, true
		}
	}
	return domain.Container{}, false
}

// ListCrossRefs returns all cross-references.
func (v TransactionView) ListCrossRefs() []domain.CrossRef {
	out := make([]domain.CrossRef, 0, len(v.state.crossRefs))
	for _, x := range v.state.crossRefs {
		out = append(out, x)
	}
	return out
}

// ListContainerLinks returns all container placements.
func (v TransactionView) ListContainerLinks() []domain.ContainerLink {
	out := make([]domain.ContainerLink, 0, len(v.state.containerLinks))
	for _, cl := range v.state.containerLinks {
		out = append(out, cl)
	}
	return out
}

// ListMarkAssignments returns all mark assignments.
func (v TransactionView) ListMarkAssignments() []domain.MarkAssignment {
	out := make([]domain.MarkAssignment, 0, len(v.state.marks))
	for _, m := range v.state.marks {
		out = append(out, m)
	}
	return out
}

// ListCounts returns all counts.
func (v TransactionView) ListCounts() []domain.Count {
	out := make([]domain.Count, 0, len(v.state.counts))
	for _, c := range v.state.counts {
		out = append(out, c)
	}
	return out
}

// ListEnvReadings returns all environmental readings.
func (v TransactionView) ListEnvReadings() []domain.EnvReading {
	out := make([]domain.EnvReading, 0, len(v.state.envReadings))
	for _, r := range v.state.envReadings {
		out = append(out, r)
	}
	return out
}

// ListPersonnelEntries returns all crew records.
func (v TransactionView) ListPersonnelEntries() []domain.PersonnelEntry {
	out := make([]domain.PersonnelEntry, 0, len(v.state.personnel))
	for _, p := range v.state.personnel {
		out = append(out, p)
	}
	return out
}

// ListRivers returns all rivers.
func (v TransactionView) ListRivers() []domain.River {
	out := make([]domain.River, 0, len(v.state.rivers))
	for _, r := range v.state.rivers {
		out = append(out, r)
	}
	return out
}

// ListReleaseSites returns all catalogued sites.
func (v TransactionView) ListReleaseSites() []domain.ReleaseSite {
	out := make([]domain.ReleaseSite, 0, len(v.state.releaseSites))
	for _, rs := range v.state.releaseSites {
		out = append(out, rs)
	}
	return out
}

// ListStocks returns all stocks.
func (v TransactionView) ListStocks() []domain.Stock {
	out := make([]domain.Stock, 0, len(v.state.stocks))
	for _, st := range v.state.stocks {
		out = append(out, st)
	}
	return out
}

// ListCollections returns all collections.
func (v TransactionView) ListCollections() []domain.Collection {
	out := make([]domain.Collection, 0, len(v.state.collections))
	for _, c := range v.state.collections {
		out = append(out, c)
	}
	return out
}

// ListReferenceCodes returns all fixed lookup codes.
func (v TransactionView) ListReferenceCodes() []domain.ReferenceCode {
	out := make([]domain.ReferenceCode, 0, len(v.state.referenceCodes))
	for _, rc := range v.state.referenceCodes {
		out = append(out, rc)
	}
	return out
}

// GetEvent retrieves an event directly from the store.
func (s *Store) GetEvent(id string) (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.state.events[id]
	return e, ok
}

// GetGroup retrieves a group directly from the store.
func (s *Store) GetGroup(id string) (domain.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.groups[id]
	return g, ok
}

// ListGroups returns all groups in the committed state.
func (s *Store) ListGroups() []domain.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TransactionView{state: &s.state}.ListGroups()
}

// ListCrossRefs returns all cross-references in the committed state.
func (s *Store) ListCrossRefs() []domain.CrossRef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TransactionView{state: &s.state}.ListCrossRefs()
}

// ListCounts returns all counts in the committed state.
func (s *Store) ListCounts() []domain.Count {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TransactionView{state: &s.state}.ListCounts()
}

// ListContainerLinks returns all container placements in the committed state.
func (s *Store) ListContainerLinks() []domain.ContainerLink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TransactionView{state: &s.state}.ListContainerLinks()
}
