package importer

import (
	"context"
	"errors"
	"sort"
	"time"

	"hatcherycore/pkg/domain"
)

// ResolveOutcome reports whether a resolution found an existing entity or
// created a new one.
type ResolveOutcome int

const (
	OutcomeFound ResolveOutcome = iota
	OutcomeCreated
)

func (o ResolveOutcome) String() string {
	if o == OutcomeCreated {
		return "created"
	}
	return "found"
}

// Created reports whether the outcome materialised a new entity.
func (o ResolveOutcome) Created() bool { return o == OutcomeCreated }

// GroupKey is the biological identity of a cohort within one event: stock,
// collection, birth year, and the optional program-group mark.
type GroupKey struct {
	StockID      string
	CollectionID string
	Year         int
	MarkID       string
}

// Resolver turns natural keys from sheet cells into store entities, creating
// what does not exist yet. All resolution is scoped to one event.
type Resolver struct {
	store   domain.PersistentStore
	event   domain.Event
	species string
	catalog ReferenceCatalog
}

// NewResolver builds a resolver scoped to event.
func NewResolver(store domain.PersistentStore, event domain.Event, species string, catalog ReferenceCatalog) *Resolver {
	return &Resolver{store: store, event: event, species: species, catalog: catalog}
}

// ResolveOrCreateGroup finds the cohort matching key among the event's bare
// group cross-references, or creates the group, its bare cross-reference,
// and the mark assignment in one transaction. Concurrent creation of the
// same cohort is resolved by re-querying after a blocked commit, so the
// caller always receives exactly one winner.
func (r *Resolver) ResolveOrCreateGroup(ctx context.Context, key GroupKey) (domain.Group, ResolveOutcome, error) {
	if g, ok, err := r.findGroup(ctx, key); err != nil {
		return domain.Group{}, OutcomeFound, err
	} else if ok {
		return g, OutcomeFound, nil
	}

	var created domain.Group
	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		g, err := tx.CreateGroup(domain.Group{
			Species:      r.species,
			StockID:      key.StockID,
			CollectionID: key.CollectionID,
			Year:         key.Year,
			Valid:        true,
		})
		if err != nil {
			return err
		}
		ref, err := tx.CreateCrossRef(domain.CrossRef{
			EventID: r.event.ID,
			GroupID: &g.ID,
			Valid:   true,
		})
		if err != nil {
			return err
		}
		if key.MarkID != "" {
			if _, err := tx.CreateMarkAssignment(domain.MarkAssignment{
				CrossRefID: ref.ID,
				MarkCodeID: key.MarkID,
			}); err != nil {
				return err
			}
		}
		created = g
		return nil
	})
	if err == nil {
		return created, OutcomeCreated, nil
	}

	var rve domain.RuleViolationError
	if errors.As(err, &rve) {
		// Another writer committed the same cohort between our lookup and
		// our insert. Re-query; the identity rule guarantees one winner.
		if g, ok, ferr := r.findGroup(ctx, key); ferr == nil && ok {
			return g, OutcomeFound, nil
		}
	}
	return domain.Group{}, OutcomeFound, err
}

// findGroup scans the event's bare group cross-references in creation order
// and returns the first group whose identity matches key. A keyed mark must
// be present on the match; a key without a mark only matches unmarked
// cross-references.
func (r *Resolver) findGroup(ctx context.Context, key GroupKey) (domain.Group, bool, error) {
	var match domain.Group
	found := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		marksByRef := map[string][]string{}
		for _, ma := range v.ListMarkAssignments() {
			marksByRef[ma.CrossRefID] = append(marksByRef[ma.CrossRefID], ma.MarkCodeID)
		}

		var refs []domain.CrossRef
		for _, x := range v.ListCrossRefs() {
			if x.EventID == r.event.ID && x.Valid && x.Bare() {
				refs = append(refs, x)
			}
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })

		for _, x := range refs {
			g, ok := v.FindGroup(*x.GroupID)
			if !ok || !g.Valid {
				continue
			}
			if g.StockID != key.StockID || g.CollectionID != key.CollectionID || g.Year != key.Year {
				continue
			}
			marks := marksByRef[x.ID]
			if key.MarkID == "" {
				if len(marks) > 0 {
					continue
				}
			} else if !containsString(marks, key.MarkID) {
				continue
			}
			match, found = g, true
			return nil
		}
		return nil
	})
	return match, found, err
}

// ResolveOrCreateIndividual finds a tagged animal by its external tag or
// creates it. A tag conflict on insert means another writer won; the
// existing record is returned.
func (r *Resolver) ResolveOrCreateIndividual(ctx context.Context, ind domain.Individual) (domain.Individual, ResolveOutcome, error) {
	var existing domain.Individual
	found := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		existing, found = v.FindIndividualByTag(ind.Tag)
		return nil
	})
	if err != nil {
		return domain.Individual{}, OutcomeFound, err
	}
	if found {
		return existing, OutcomeFound, nil
	}

	var created domain.Individual
	_, err = r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cerr error
		created, cerr = tx.CreateIndividual(ind)
		return cerr
	})
	if err == nil {
		return created, OutcomeCreated, nil
	}

	var conflict domain.ConflictError
	if errors.As(err, &conflict) {
		verr := r.store.View(ctx, func(v domain.TransactionView) error {
			existing, found = v.FindIndividualByTag(ind.Tag)
			return nil
		})
		if verr == nil && found {
			return existing, OutcomeFound, nil
		}
	}
	return domain.Individual{}, OutcomeFound, err
}

// ResolveOrCreateLocation inserts the location and, when the insert reports
// a natural-key conflict, re-fetches the matching record instead.
func (r *Resolver) ResolveOrCreateLocation(ctx context.Context, loc domain.Location) (domain.Location, ResolveOutcome, error) {
	loc.EventID = r.event.ID
	var created domain.Location
	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cerr error
		created, cerr = tx.CreateLocation(loc)
		return cerr
	})
	if err == nil {
		return created, OutcomeCreated, nil
	}

	var conflict domain.ConflictError
	if !errors.As(err, &conflict) {
		return domain.Location{}, OutcomeFound, err
	}
	var existing domain.Location
	found := false
	verr := r.store.View(ctx, func(v domain.TransactionView) error {
		for _, l := range v.ListLocations() {
			if l.SameSpot(loc) {
				existing, found = l, true
				return nil
			}
		}
		return nil
	})
	if verr != nil {
		return domain.Location{}, OutcomeFound, verr
	}
	if !found {
		return domain.Location{}, OutcomeFound, err
	}
	return existing, OutcomeFound, nil
}

// EnsureContainer finds a container by name or creates it.
func (r *Resolver) EnsureContainer(ctx context.Context, name string) (domain.Container, ResolveOutcome, error) {
	var existing domain.Container
	found := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		existing, found = v.FindContainerByName(name)
		return nil
	})
	if err != nil {
		return domain.Container{}, OutcomeFound, err
	}
	if found {
		return existing, OutcomeFound, nil
	}

	var created domain.Container
	_, err = r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cerr error
		created, cerr = tx.CreateContainer(domain.Container{Name: name, Kind: "tank"})
		return cerr
	})
	if err == nil {
		return created, OutcomeCreated, nil
	}
	var conflict domain.ConflictError
	if errors.As(err, &conflict) {
		verr := r.store.View(ctx, func(v domain.TransactionView) error {
			existing, found = v.FindContainerByName(name)
			return nil
		})
		if verr == nil && found {
			return existing, OutcomeFound, nil
		}
	}
	return domain.Container{}, OutcomeFound, err
}

// PlaceGroupInContainer records a cohort entering a container during the
// event: one container link plus the cross-reference binding the group to it.
func (r *Resolver) PlaceGroupInContainer(ctx context.Context, group domain.Group, container domain.Container, at time.Time) (domain.ContainerLink, error) {
	var link domain.ContainerLink
	_, err := r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var cerr error
		link, cerr = tx.CreateContainerLink(domain.ContainerLink{
			EventID:     r.event.ID,
			ContainerID: container.ID,
			RecordedAt:  at,
		})
		if cerr != nil {
			return cerr
		}
		_, cerr = tx.CreateCrossRef(domain.CrossRef{
			EventID:         r.event.ID,
			GroupID:         &group.ID,
			ContainerLinkID: &link.ID,
			Valid:           true,
		})
		return cerr
	})
	return link, err
}

// LinkGroupToLocation attaches a cohort to a location via a cross-reference.
// An existing identical link is reused, so re-imports stay idempotent.
func (r *Resolver) LinkGroupToLocation(ctx context.Context, groupID, locationID string) (bool, error) {
	exists := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		for _, x := range v.ListCrossRefs() {
			if x.EventID == r.event.ID && x.Valid &&
				x.GroupID != nil && *x.GroupID == groupID &&
				x.LocationID != nil && *x.LocationID == locationID {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateCrossRef(domain.CrossRef{
			EventID:    r.event.ID,
			GroupID:    &groupID,
			LocationID: &locationID,
			Valid:      true,
		})
		return cerr
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// LinkIndividualToLocation attaches a tagged animal to a location via a
// cross-reference, reusing an existing identical link.
func (r *Resolver) LinkIndividualToLocation(ctx context.Context, individualID, locationID string) (bool, error) {
	exists := false
	err := r.store.View(ctx, func(v domain.TransactionView) error {
		for _, x := range v.ListCrossRefs() {
			if x.EventID == r.event.ID && x.Valid &&
				x.IndividualID != nil && *x.IndividualID == individualID &&
				x.LocationID != nil && *x.LocationID == locationID {
				exists = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	_, err = r.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, cerr := tx.CreateCrossRef(domain.CrossRef{
			EventID:      r.event.ID,
			IndividualID: &individualID,
			LocationID:   &locationID,
			Valid:        true,
		})
		return cerr
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
