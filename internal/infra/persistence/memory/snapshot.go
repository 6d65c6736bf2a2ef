package memory

import "hatcherycore/pkg/domain"

// Snapshot is the serializable full-state representation used by the durable
// store wrappers. Buckets are slices so the JSON payloads stay stable.
type Snapshot struct {
	Events         []domain.Event          `json:"events,omitempty"`
	Groups         []domain.Group          `json:"groups,omitempty"`
	Individuals    []domain.Individual     `json:"individuals,omitempty"`
	Locations      []domain.Location       `json:"locations,omitempty"`
	Containers     []domain.Container      `json:"containers,omitempty"`
	CrossRefs      []domain.CrossRef       `json:"cross_refs,omitempty"`
	ContainerLinks []domain.ContainerLink  `json:"container_links,omitempty"`
	Marks          []domain.MarkAssignment `json:"marks,omitempty"`
	Counts         []domain.Count          `json:"counts,omitempty"`
	EnvReadings    []domain.EnvReading     `json:"env_readings,omitempty"`
	Personnel      []domain.PersonnelEntry `json:"personnel,omitempty"`
	Rivers         []domain.River          `json:"rivers,omitempty"`
	ReleaseSites   []domain.ReleaseSite    `json:"release_sites,omitempty"`
	Stocks         []domain.Stock          `json:"stocks,omitempty"`
	Collections    []domain.Collection     `json:"collections,omitempty"`
	ReferenceCodes []domain.ReferenceCode  `json:"reference_codes,omitempty"`
}

// ExportState captures the committed state for snapshot persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	for _, e := range s.state.events {
		snap.Events = append(snap.Events, e)
	}
	for _, g := range s.state.groups {
		snap.Groups = append(snap.Groups, g)
	}
	for _, i := range s.state.individuals {
		snap.Individuals = append(snap.Individuals, i)
	}
	for _, l := range s.state.locations {
		snap.Locations = append(snap.Locations, l)
	}
	for _, c := range s.state.containers {
		snap.Containers = append(snap.Containers, c)
	}
	for _, x := range s.state.crossRefs {
		snap.CrossRefs = append(snap.CrossRefs, x)
	}
	for _, cl := range s.state.containerLinks {
		snap.ContainerLinks = append(snap.ContainerLinks, cl)
	}
	for _, m := range s.state.marks {
		snap.Marks = append(snap.Marks, m)
	}
	for _, c := range s.state.counts {
		snap.Counts = append(snap.Counts, c)
	}
	for _, r := range s.state.envReadings {
		snap.EnvReadings = append(snap.EnvReadings, r)
	}
	for _, p := range s.state.personnel {
		snap.Personnel = append(snap.Personnel, p)
	}
	for _, r := range s.state.rivers {
		snap.Rivers = append(snap.Rivers, r)
	}
	for _, rs := range s.state.releaseSites {
		snap.ReleaseSites = append(snap.ReleaseSites, rs)
	}
	for _, st := range s.state.stocks {
		snap.Stocks = append(snap.Stocks, st)
	}
	for _, c := range s.state.collections {
		snap.Collections = append(snap.Collections, c)
	}
	for _, rc := range s.state.referenceCodes {
		snap.ReferenceCodes = append(snap.ReferenceCodes, rc)
	}
	return snap
}

// ImportState replaces the committed state with the given snapshot. The id
// sequence advances past the imported record count so newly minted ids stay
// ordered after existing ones.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newState()
	total := 0
	for _, e := range snap.Events {
		st.events[e.ID] = e
		total++
	}
	for _, g := range snap.Groups {
		st.groups[g.ID] = g
		total++
	}
	for _, i := range snap.Individuals {
		st.individuals[i.ID] = i
		total++
	}
	for _, l := range snap.Locations {
		st.locations[l.ID] = l
		total++
	}
	for _, c := range snap.Containers {
		st.containers[c.ID] = c
		total++
	}
	for _, x := range snap.CrossRefs {
		st.crossRefs[x.ID] = x
		total++
	}
	for _, cl := range snap.ContainerLinks {
		st.containerLinks[cl.ID] = cl
		total++
	}
	for _, m := range snap.Marks {
		st.marks[m.ID] = m
		total++
	}
	for _, c := range snap.Counts {
		st.counts[c.ID] = c
		total++
	}
	for _, r := range snap.EnvReadings {
		st.envReadings[r.ID] = r
		total++
	}
	for _, p := range snap.Personnel {
		st.personnel[p.ID] = p
		total++
	}
	for _, r := range snap.Rivers {
		st.rivers[r.ID] = r
		total++
	}
	for _, rs := range snap.ReleaseSites {
		st.releaseSites[rs.ID] = rs
		total++
	}
	for _, stk := range snap.Stocks {
		st.stocks[stk.ID] = stk
		total++
	}
	for _, c := range snap.Collections {
		st.collections[c.ID] = c
		total++
	}
	for _, rc := range snap.ReferenceCodes {
		st.referenceCodes[rc.ID] = rc
		total++
	}
	s.state = st
	if uint64(total) > s.seq {
		s.seq = uint64(total)
	}
}
