package importer

import (
	"context"
	"strings"

	"hatcherycore/internal/core"
	"hatcherycore/pkg/domain"
)

// ReferenceCatalog carries every fixed lookup the engine needs, resolved
// once per run so row processing never re-queries code tables. It is passed
// by value into the row pipeline.
type ReferenceCatalog struct {
	Temperature  domain.ReferenceCode
	CrewLead     domain.ReferenceCode
	CrewMember   domain.ReferenceCode
	FishCaught   domain.ReferenceCode
	FishObserved domain.ReferenceCode
	FishRemoved  domain.ReferenceCode

	stocks      map[string]domain.Stock
	collections []domain.Collection
	marks       map[string]domain.ReferenceCode
	rivers      map[string]domain.River
	sites       map[string][]domain.ReleaseSite
}

// BuildCatalog loads the fixed code tables and geographic lookups from the
// store. A missing fixed code fails the run before any row is touched.
func BuildCatalog(ctx context.Context, store domain.PersistentStore) (ReferenceCatalog, error) {
	cat := ReferenceCatalog{
		stocks: map[string]domain.Stock{},
		marks:  map[string]domain.ReferenceCode{},
		rivers: map[string]domain.River{},
		sites:  map[string][]domain.ReleaseSite{},
	}
	err := store.View(ctx, func(v domain.TransactionView) error {
		codes := map[domain.CodeKind]map[string]domain.ReferenceCode{}
		for _, rc := range v.ListReferenceCodes() {
			byName, ok := codes[rc.Kind]
			if !ok {
				byName = map[string]domain.ReferenceCode{}
				codes[rc.Kind] = byName
			}
			byName[rc.Name] = rc
			if rc.Kind == domain.CodeMark {
				cat.marks[strings.ToLower(rc.Name)] = rc
			}
		}
		fixed := []struct {
			kind domain.CodeKind
			name string
			dst  *domain.ReferenceCode
		}{
			{domain.CodeEnv, core.EnvCodeTemperature, &cat.Temperature},
			{domain.CodeRole, core.RoleCrewLead, &cat.CrewLead},
			{domain.CodeRole, core.RoleCrewMember, &cat.CrewMember},
			{domain.CodeCount, core.CountFishCaught, &cat.FishCaught},
			{domain.CodeCount, core.CountFishObserved, &cat.FishObserved},
			{domain.CodeCount, core.CountFishRemoved, &cat.FishRemoved},
		}
		for _, f := range fixed {
			rc, ok := codes[f.kind][f.name]
			if !ok {
				return structuralf("fixed %s code %q is not seeded", f.kind, f.name)
			}
			*f.dst = rc
		}

		for _, s := range v.ListStocks() {
			cat.stocks[strings.ToLower(s.Name)] = s
		}
		cat.collections = v.ListCollections()
		for _, r := range v.ListRivers() {
			cat.rivers[strings.ToLower(r.Name)] = r
		}
		for _, rs := range v.ListReleaseSites() {
			key := strings.ToLower(rs.Name)
			cat.sites[key] = append(cat.sites[key], rs)
		}
		return nil
	})
	if err != nil {
		return ReferenceCatalog{}, err
	}
	return cat, nil
}

// StockByName resolves a stock case-insensitively by name.
func (c ReferenceCatalog) StockByName(name string) (domain.Stock, error) {
	s, ok := c.stocks[strings.ToLower(CleanCell(name))]
	if !ok {
		return domain.Stock{}, &NotFoundError{What: "stock", Key: name}
	}
	return s, nil
}

// RiverByName resolves a river case-insensitively by name.
func (c ReferenceCatalog) RiverByName(name string) (domain.River, error) {
	r, ok := c.rivers[strings.ToLower(CleanCell(name))]
	if !ok {
		return domain.River{}, &NotFoundError{What: "river", Key: name}
	}
	return r, nil
}

// SiteByName resolves a catalogued site by name, optionally constrained to a
// river. Several same-named sites on different rivers are ambiguous unless
// the river narrows them to one.
func (c ReferenceCatalog) SiteByName(name, riverID string) (domain.ReleaseSite, error) {
	candidates := c.sites[strings.ToLower(CleanCell(name))]
	if riverID != "" {
		narrowed := candidates[:0:0]
		for _, rs := range candidates {
			if rs.RiverID == riverID {
				narrowed = append(narrowed, rs)
			}
		}
		candidates = narrowed
	}
	switch len(candidates) {
	case 0:
		return domain.ReleaseSite{}, &NotFoundError{What: "site", Key: name}
	case 1:
		return candidates[0], nil
	}
	return domain.ReleaseSite{}, &AmbiguousMatchError{What: "site", Key: name, Candidates: len(candidates)}
}

// CollectionByLabel resolves a collection case-insensitively by full name or
// abbreviation ("Fall" and "F" both match the Fall collection).
func (c ReferenceCatalog) CollectionByLabel(label string) (domain.Collection, error) {
	label = strings.ToLower(CleanCell(label))
	if label == "" {
		return domain.Collection{}, &NotFoundError{What: "collection", Key: label}
	}
	var matches []domain.Collection
	for _, coll := range c.collections {
		if strings.ToLower(coll.Name) == label || strings.ToLower(coll.Abbrev) == label {
			matches = append(matches, coll)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Collection{}, &NotFoundError{What: "collection", Key: label}
	case 1:
		return matches[0], nil
	}
	return domain.Collection{}, &AmbiguousMatchError{What: "collection", Key: label, Candidates: len(matches)}
}

// MarkByName resolves a program-group mark code case-insensitively.
func (c ReferenceCatalog) MarkByName(name string) (domain.ReferenceCode, error) {
	m, ok := c.marks[strings.ToLower(CleanCell(name))]
	if !ok {
		return domain.ReferenceCode{}, &NotFoundError{What: "mark code", Key: name}
	}
	return m, nil
}
