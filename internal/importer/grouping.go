package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"hatcherycore/pkg/domain"
)

// ResolvedGroup is one cohort the grouping pass materialised, together with
// the container placement shared by every row assigned to it.
type ResolvedGroup struct {
	Group domain.Group
	Link  domain.ContainerLink
	Tank  string
}

// GroupAssignments maps sheet rows to their pre-resolved cohort. Rows absent
// from ByRow are observation-only and carry no cohort.
type GroupAssignments struct {
	ByRow map[int]*ResolvedGroup
}

// electroKey is the raw grouping identity of an electrofishing row before
// any store lookup: all values come straight from cleaned cells.
type electroKey struct {
	River string
	Mark  string
	Year  int
	Coll  string
	Tank  string
}

func (k electroKey) describe() string {
	return fmt.Sprintf("river %q, group %q, year %d, collection %q, tank %q",
		k.River, k.Mark, k.Year, k.Coll, k.Tank)
}

// prepareElectrofishing clusters rows by destination tank and biological
// identity, then resolves one cohort and one container placement per
// cluster. Two clusters claiming the same tank invalidate the whole run.
// Rows without a destination tank are observation-only and get no cohort.
func prepareElectrofishing(ctx context.Context, res *Resolver, cfg ImportConfig, sheet *Sheet) (*GroupAssignments, error) {
	type cluster struct {
		key  electroKey
		rows []int
	}
	clusters := map[electroKey]*cluster{}
	tankOwner := map[string]electroKey{}
	order := []electroKey{}

	for _, row := range sheet.Rows {
		tank := CleanNumericText(cfg.Cell(row, FieldDestinationTank))
		if tank == "" {
			continue
		}
		year, coll, err := SplitYearColl(cfg.Cell(row, FieldYearColl))
		if err != nil {
			return nil, &StructuralError{Msg: fmt.Sprintf("row %d", row.Index), Err: err}
		}
		key := electroKey{
			River: CleanCell(cfg.Cell(row, FieldRiver)),
			Mark:  CleanCell(cfg.Cell(row, FieldProgramGroup)),
			Year:  year,
			Coll:  coll,
			Tank:  tank,
		}
		if owner, claimed := tankOwner[tank]; claimed && owner != key {
			return nil, structuralf("tank %q is claimed by two different cohorts: %s vs %s",
				tank, owner.describe(), key.describe())
		}
		tankOwner[tank] = key
		c, ok := clusters[key]
		if !ok {
			c = &cluster{key: key}
			clusters[key] = c
			order = append(order, key)
		}
		c.rows = append(c.rows, row.Index)
	}

	assignments := &GroupAssignments{ByRow: map[int]*ResolvedGroup{}}
	for _, key := range order {
		c := clusters[key]
		gk, err := res.groupKeyFor(key)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve cohort identity", Err: err}
		}
		group, _, err := res.ResolveOrCreateGroup(ctx, gk)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve cohort", Err: err}
		}
		container, _, err := res.EnsureContainer(ctx, key.Tank)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve container", Err: err}
		}
		link, err := res.PlaceGroupInContainer(ctx, group, container, res.event.StartAt)
		if err != nil {
			return nil, &StructuralError{Msg: "place cohort in container", Err: err}
		}
		rg := &ResolvedGroup{Group: group, Link: link, Tank: key.Tank}
		for _, idx := range c.rows {
			assignments.ByRow[idx] = rg
		}
	}
	return assignments, nil
}

// groupKeyFor turns raw cell values into a store-level cohort identity.
func (r *Resolver) groupKeyFor(key electroKey) (GroupKey, error) {
	stock, err := r.catalog.StockByName(key.River)
	if err != nil {
		return GroupKey{}, err
	}
	coll, err := r.catalog.CollectionByLabel(key.Coll)
	if err != nil {
		return GroupKey{}, err
	}
	gk := GroupKey{StockID: stock.ID, CollectionID: coll.ID, Year: key.Year}
	if key.Mark != "" {
		mark, err := r.catalog.MarkByName(key.Mark)
		if err != nil {
			return GroupKey{}, err
		}
		gk.MarkID = mark.ID
	}
	return gk, nil
}

// MovementPlan is the result of the movement grouping pass: every container
// transition aggregated and persisted, plus a per-row entered flag.
type MovementPlan struct {
	EnteredByRow map[int]bool
}

type moveKey struct {
	Origin string
	Dest   string
	Group  GroupKey
}

// prepareMovement aggregates transfer rows by (origin tank, destination
// tank, cohort identity) and persists one destination cohort, container
// links on both ends, and one removed-from-container count per transition.
// Movement sheets are machine exports, so a malformed row invalidates the
// aggregation and fails the run.
func prepareMovement(ctx context.Context, res *Resolver, cfg ImportConfig, sheet *Sheet) (*MovementPlan, error) {
	type transition struct {
		key   moveKey
		moved int
		rows  []int
		at    time.Time
	}
	transitions := map[moveKey]*transition{}
	var order []moveKey

	for _, row := range sheet.Rows {
		origin := CleanNumericText(cfg.Cell(row, FieldOriginTank))
		dest := CleanNumericText(cfg.Cell(row, FieldDestinationTank))
		year, coll, err := SplitYearColl(cfg.Cell(row, FieldYearColl))
		if err != nil {
			return nil, &StructuralError{Msg: fmt.Sprintf("row %d", row.Index), Err: err}
		}
		moved, err := strconv.Atoi(CleanNumericText(cfg.Cell(row, FieldFishMoved)))
		if err != nil || moved < 0 {
			return nil, structuralf("row %d: bad moved count %q", row.Index, cfg.Cell(row, FieldFishMoved))
		}
		at, err := RowDate(cfg.Cell(row, FieldYear), cfg.Cell(row, FieldMonth), cfg.Cell(row, FieldDay), cfg.Cell(row, FieldClock))
		if err != nil {
			return nil, &StructuralError{Msg: fmt.Sprintf("row %d", row.Index), Err: err}
		}
		gk, err := res.groupKeyFor(electroKey{
			River: cfg.Cell(row, FieldRiver),
			Mark:  cfg.Cell(row, FieldProgramGroup),
			Year:  year,
			Coll:  coll,
		})
		if err != nil {
			return nil, &StructuralError{Msg: fmt.Sprintf("row %d", row.Index), Err: err}
		}
		key := moveKey{Origin: origin, Dest: dest, Group: gk}
		t, ok := transitions[key]
		if !ok {
			t = &transition{key: key, at: at}
			transitions[key] = t
			order = append(order, key)
		}
		t.moved += moved
		t.rows = append(t.rows, row.Index)
	}

	plan := &MovementPlan{EnteredByRow: map[int]bool{}}
	for _, key := range order {
		t := transitions[key]
		start, ok, err := res.findGroup(ctx, key.Group)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve origin cohort", Err: err}
		}
		if !ok {
			return nil, structuralf("no existing cohort for transition %s -> %s (stock %s, collection %s, year %d)",
				key.Origin, key.Dest, key.Group.StockID, key.Group.CollectionID, key.Group.Year)
		}

		originContainer, _, err := res.EnsureContainer(ctx, key.Origin)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve origin container", Err: err}
		}
		destContainer, _, err := res.EnsureContainer(ctx, key.Dest)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve destination container", Err: err}
		}

		_, endOutcome, err := res.resolveDestinationGroup(ctx, start, destContainer, t.at)
		if err != nil {
			return nil, &StructuralError{Msg: "resolve destination cohort", Err: err}
		}

		// Each transition gets its own departure link so its removed count
		// anchors independently, even when several transitions drain the
		// same origin tank.
		originLink, err := res.PlaceGroupInContainer(ctx, start, originContainer, t.at)
		if err != nil {
			return nil, &StructuralError{Msg: "record origin container link", Err: err}
		}
		removed := domain.Count{
			CountCodeID:     res.catalog.FishRemoved.ID,
			ContainerLinkID: &originLink.ID,
			Value:           t.moved,
		}
		_, err = res.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, cerr := tx.CreateCount(removed)
			return cerr
		})
		entered := err == nil
		if err != nil {
			var conflict domain.ConflictError
			if !errors.As(err, &conflict) {
				return nil, &StructuralError{Msg: "record removed count", Err: err}
			}
			// A prior run already wrote this transition's count.
		}
		entered = entered || endOutcome.Created()
		for _, idx := range t.rows {
			plan.EnteredByRow[idx] = entered
		}
	}
	return plan, nil
}

// resolveDestinationGroup finds the cohort already living in the destination
// container with start's identity, or clones start into a child cohort bound
// to a fresh placement in that container. The clone's cross-reference points
// at the placement rather than standing bare, so it never collides with the
// origin cohort's identity.
func (r *Resolver) resolveDestinationGroup(ctx context.Context, start domain.Group, dest domain.Container, at time.Time) (domain.Group, ResolveOutcome, error) {
	var existing domain.Group
	found := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		links := map[string]domain.ContainerLink{}
		for _, cl := range v.ListContainerLinks() {
			if cl.EventID == r.event.ID && cl.ContainerID == dest.ID {
				links[cl.ID] = cl
			}
		}
		var refs []domain.CrossRef
		for _, x := range v.ListCrossRefs() {
			if x.EventID != r.event.ID || !x.Valid || x.GroupID == nil || x.ContainerLinkID == nil {
				continue
			}
			if _, ok := links[*x.ContainerLinkID]; ok {
				refs = append(refs, x)
			}
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
		for _, x := range refs {
			g, ok := v.FindGroup(*x.GroupID)
			if !ok || !g.Valid {
				continue
			}
			if g.StockID == start.StockID && g.CollectionID == start.CollectionID && g.Year == start.Year {
				existing, found = g, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return domain.Group{}, OutcomeFound, err
	}
	if found {
		return existing, OutcomeFound, nil
	}

	var clone domain.Group
	_, err = r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		g, cerr := tx.CreateGroup(domain.Group{
			Species:      start.Species,
			StockID:      start.StockID,
			CollectionID: start.CollectionID,
			Year:         start.Year,
			ParentID:     &start.ID,
			Valid:        true,
		})
		if cerr != nil {
			return cerr
		}
		link, cerr := tx.CreateContainerLink(domain.ContainerLink{
			EventID:     r.event.ID,
			ContainerID: dest.ID,
			RecordedAt:  at,
		})
		if cerr != nil {
			return cerr
		}
		_, cerr = tx.CreateCrossRef(domain.CrossRef{
			EventID:         r.event.ID,
			GroupID:         &g.ID,
			ContainerLinkID: &link.ID,
			Valid:           true,
		})
		if cerr != nil {
			return cerr
		}
		clone = g
		return nil
	})
	if err != nil {
		return domain.Group{}, OutcomeFound, err
	}
	return clone, OutcomeCreated, nil
}
