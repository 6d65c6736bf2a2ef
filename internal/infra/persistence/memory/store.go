// Package memory implements the in-memory transactional store for the
// hatchery domain. Durable backends wrap this store and persist snapshots.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"hatcherycore/pkg/domain"
)

type state struct {
	events         map[string]domain.Event
	groups         map[string]domain.Group
	individuals    map[string]domain.Individual
	locations      map[string]domain.Location
	containers     map[string]domain.Container
	crossRefs      map[string]domain.CrossRef
	containerLinks map[string]domain.ContainerLink
	marks          map[string]domain.MarkAssignment
	counts         map[string]domain.Count
	envReadings    map[string]domain.EnvReading
	personnel      map[string]domain.PersonnelEntry
	rivers         map[string]domain.River
	releaseSites   map[string]domain.ReleaseSite
	stocks         map[string]domain.Stock
	collections    map[string]domain.Collection
	referenceCodes map[string]domain.ReferenceCode
}

func newState() state {
	return state{
		events:         make(map[string]domain.Event),
		groups:         make(map[string]domain.Group),
		individuals:    make(map[string]domain.Individual),
		locations:      make(map[string]domain.Location),
		containers:     make(map[string]domain.Container),
		crossRefs:      make(map[string]domain.CrossRef),
		containerLinks: make(map[string]domain.ContainerLink),
		marks:          make(map[string]domain.MarkAssignment),
		counts:         make(map[string]domain.Count),
		envReadings:    make(map[string]domain.EnvReading),
		personnel:      make(map[string]domain.PersonnelEntry),
		rivers:         make(map[string]domain.River),
		releaseSites:   make(map[string]domain.ReleaseSite),
		stocks:         make(map[string]domain.Stock),
		collections:    make(map[string]domain.Collection),
		referenceCodes: make(map[string]domain.ReferenceCode),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.events {
		cloned.events[k] = v
	}
	for k, v := range s.groups {
		cloned.groups[k] = v
	}
	for k, v := range s.individuals {
		cloned.individuals[k] = v
	}
	for k, v := range s.locations {
		cloned.locations[k] = v
	}
	for k, v := range s.containers {
		cloned.containers[k] = v
	}
	for k, v := range s.crossRefs {
		cloned.crossRefs[k] = v
	}
	for k, v := range s.containerLinks {
		cloned.containerLinks[k] = v
	}
	for k, v := range s.marks {
		cloned.marks[k] = v
	}
	for k, v := range s.counts {
		cloned.counts[k] = v
	}
	for k, v := range s.envReadings {
		cloned.envReadings[k] = v
	}
	for k, v := range s.personnel {
		cloned.personnel[k] = v
	}
	for k, v := range s.rivers {
		cloned.rivers[k] = v
	}
	for k, v := range s.releaseSites {
		cloned.releaseSites[k] = v
	}
	for k, v := range s.stocks {
		cloned.stocks[k] = v
	}
	for k, v := range s.collections {
		cloned.collections[k] = v
	}
	for k, v := range s.referenceCodes {
		cloned.referenceCodes[k] = v
	}
	return cloned
}

// Store provides an in-memory transactional store for the hatchery domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
	seq    uint64
}

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// newID returns a monotonically ordered surrogate id. The sequence prefix
// keeps lexical ordering aligned with creation order so natural-key
// tie-breaks by id are deterministic; the random suffix keeps ids unique
// across store restarts.
func (s *Store) newID() string {
	s.seq++
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%012d-%s", s.seq, hex.EncodeToString(b[:]))
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

// Compile-time contract assertion.
var _ domain.Transaction = (*Transaction)(nil)

// TransactionView exposes a read-only snapshot of the transactional state.
type TransactionView struct {
	state *state
}

var (
	_ domain.TransactionView = TransactionView{}
	_ domain.RuleView        = TransactionView{}
)

// Snapshot returns a read-only view of the transaction state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return TransactionView{state: &tx.state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules evaluate against the post-mutation snapshot; blocking
// violations abort the commit with a RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		view := TransactionView{state: &tx.state}
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(TransactionView{state: &snapshot})
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *Transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

// CreateEvent stores a new event.
func (tx *Transaction) CreateEvent(e domain.Event) (domain.Event, error) {
	if _, exists := tx.state.events[e.ID]; e.ID != "" && exists {
		return domain.Event{}, fmt.Errorf("event %q already exists", e.ID)
	}
	tx.stamp(&e.Base)
	tx.state.events[e.ID] = e
	tx.recordChange(domain.Change{Entity: domain.EntityEvent, Action: domain.ActionCreate, After: e})
	return e, nil
}

// CreateGroup stores a new cohort group. Natural-key uniqueness among bare
// cross-references is enforced by the rules engine at commit time.
func (tx *Transaction) CreateGroup(g domain.Group) (domain.Group, error) {
	if _, exists := tx.state.groups[g.ID]; g.ID != "" && exists {
		return domain.Group{}, fmt.Errorf("group %q already exists", g.ID)
	}
	if g.StockID == "" || g.CollectionID == "" {
		return domain.Group{}, fmt.Errorf("group requires stock and collection")
	}
	tx.stamp(&g.Base)
	tx.state.groups[g.ID] = g
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionCreate, After: g})
	return g, nil
}

// UpdateGroup mutates a group using the provided mutator function.
func (tx *Transaction) UpdateGroup(id string, mutator func(*domain.Group) error) (domain.Group, error) {
	current, ok := tx.state.groups[id]
	if !ok {
		return domain.Group{}, fmt.Errorf("group %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Group{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.groups[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityGroup, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateIndividual stores a new tagged animal. Tags are unique.
func (tx *Transaction) CreateIndividual(i domain.Individual) (domain.Individual, error) {
	if _, exists := tx.state.individuals[i.ID]; i.ID != "" && exists {
		return domain.Individual{}, fmt.Errorf("individual %q already exists", i.ID)
	}
	if i.Tag == "" {
		return domain.Individual{}, fmt.Errorf("individual requires a tag")
	}
	for _, existing := range tx.state.individuals {
		if existing.Tag == i.Tag {
			return domain.Individual{}, domain.ConflictError{Entity: domain.EntityIndividual, Detail: fmt.Sprintf("tag %q", i.Tag)}
		}
	}
	tx.stamp(&i.Base)
	tx.state.individuals[i.ID] = i
	tx.recordChange(domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionCreate, After: i})
	return i, nil
}

// UpdateIndividual mutates an individual using the provided mutator.
func (tx *Transaction) UpdateIndividual(id string, mutator func(*domain.Individual) error) (domain.Individual, error) {
	current, ok := tx.state.individuals[id]
	if !ok {
		return domain.Individual{}, fmt.Errorf("individual %q not found", id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Individual{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.individuals[id] = current
	tx.recordChange(domain.Change{Entity: domain.EntityIndividual, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateLocation stores a new location. An exact duplicate of the full
// natural key (event, category, river, sub-river, site, coordinates,
// timestamp) conflicts so callers can fall back to reusing the existing row.
func (tx *Transaction) CreateLocation(l domain.Location) (domain.Location, error) {
	if _, exists := tx.state.locations[l.ID]; l.ID != "" && exists {
		return domain.Location{}, fmt.Errorf("location %q already exists", l.ID)
	}
	if l.EventID == "" {
		return domain.Location{}, fmt.Errorf("location requires an event")
	}
	if l.RiverID == "" {
		return domain.Location{}, fmt.Errorf("location requires a river")
	}
	for _, existing := range tx.state.locations {
		if existing.SameSpot(l) {
			return domain.Location{}, domain.ConflictError{Entity: domain.EntityLocation, Detail: "identical location already recorded"}
		}
	}
	tx.stamp(&l.Base)
	tx.state.locations[l.ID] = l
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionCreate, After: l})
	return l, nil
}

// CreateContainer stores a new holding unit. Names are unique.
func (tx *Transaction) CreateContainer(c domain.Container) (domain.Container, error) {
	if _, exists := tx.state.containers[c.ID]; c.ID != "" && exists {
		return domain.Container{}, fmt.Errorf("container %q already exists", c.ID)
	}
	if strings.TrimSpace(c.Name) == "" {
		return domain.Container{}, fmt.Errorf("container requires a name")
	}
	for _, existing := range tx.state.containers {
		if existing.Name == c.Name {
			return domain.Container{}, domain.ConflictError{Entity: domain.EntityContainer, Detail: fmt.Sprintf("name %q", c.Name)}
		}
	}
	tx.stamp(&c.Base)
	tx.state.containers[c.ID] = c
	tx.recordChange(domain.Change{Entity: domain.EntityContainer, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateCrossRef stores a new event cross-reference.
func (tx *Transaction) CreateCrossRef(x domain.CrossRef) (domain.CrossRef, error) {
	if _, exists := tx.state.crossRefs[x.ID]; x.ID != "" && exists {
		return domain.CrossRef{}, fmt.Errorf("cross-reference %q already exists", x.ID)
	}
	if x.EventID == "" {
		return domain.CrossRef{}, fmt.Errorf("cross-reference requires an event")
	}
	if x.GroupID == nil && x.IndividualID == nil && x.LocationID == nil && x.ContainerLinkID == nil && x.PairID == nil {
		return domain.CrossRef{}, fmt.Errorf("cross-reference requires at least one target")
	}
	tx.stamp(&x.Base)
	tx.state.crossRefs[x.ID] = x
	tx.recordChange(domain.Change{Entity: domain.EntityCrossRef, Action: domain.ActionCreate, After: x})
	return x, nil
}

// CreateContainerLink stores a new container placement under an event.
func (tx *Transaction) CreateContainerLink(cl domain.ContainerLink) (domain.ContainerLink, error) {
	if _, exists := tx.state.containerLinks[cl.ID]; cl.ID != "" && exists {
		return domain.ContainerLink{}, fmt.Errorf("container link %q already exists", cl.ID)
	}
	if cl.EventID == "" || cl.ContainerID == "" {
		return domain.ContainerLink{}, fmt.Errorf("container link requires event and container")
	}
	tx.stamp(&cl.Base)
	tx.state.containerLinks[cl.ID] = cl
	tx.recordChange(domain.Change{Entity: domain.EntityContainerLink, Action: domain.ActionCreate, After: cl})
	return cl, nil
}

// CreateMarkAssignment attaches a mark code to a cross-reference.
func (tx *Transaction) CreateMarkAssignment(m domain.MarkAssignment) (domain.MarkAssignment, error) {
	if _, exists := tx.state.marks[m.ID]; m.ID != "" && exists {
		return domain.MarkAssignment{}, fmt.Errorf("mark assignment %q already exists", m.ID)
	}
	if _, ok := tx.state.crossRefs[m.CrossRefID]; !ok {
		return domain.MarkAssignment{}, fmt.Errorf("cross-reference %q not found", m.CrossRefID)
	}
	tx.stamp(&m.Base)
	tx.state.marks[m.ID] = m
	tx.recordChange(domain.Change{Entity: domain.EntityMarkAssignment, Action: domain.ActionCreate, After: m})
	return m, nil
}

// CreateCount stores a typed count. Exactly one anchor must be set, and only
// one count of a given code may exist per anchor so aggregate writes cannot
// double up.
func (tx *Transaction) CreateCount(c domain.Count) (domain.Count, error) {
	if _, exists := tx.state.counts[c.ID]; c.ID != "" && exists {
		return domain.Count{}, fmt.Errorf("count %q already exists", c.ID)
	}
	if (c.LocationID == nil) == (c.ContainerLinkID == nil) {
		return domain.Count{}, fmt.Errorf("count requires exactly one of location or container link")
	}
	for _, existing := range tx.state.counts {
		if existing.CountCodeID != c.CountCodeID {
			continue
		}
		if c.LocationID != nil && existing.LocationID != nil && *existing.LocationID == *c.LocationID {
			return domain.Count{}, domain.ConflictError{Entity: domain.EntityCount, Detail: "count already recorded for location"}
		}
		if c.ContainerLinkID != nil && existing.ContainerLinkID != nil && *existing.ContainerLinkID == *c.ContainerLinkID {
			return domain.Count{}, domain.ConflictError{Entity: domain.EntityCount, Detail: "count already recorded for container link"}
		}
	}
	tx.stamp(&c.Base)
	tx.state.counts[c.ID] = c
	tx.recordChange(domain.Change{Entity: domain.EntityCount, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateEnvReading stores an environmental measurement.
func (tx *Transaction) CreateEnvReading(r domain.EnvReading) (domain.EnvReading, error) {
	if _, exists := tx.state.envReadings[r.ID]; r.ID != "" && exists {
		return domain.EnvReading{}, fmt.Errorf("env reading %q already exists", r.ID)
	}
	if _, ok := tx.state.locations[r.LocationID]; !ok {
		return domain.EnvReading{}, fmt.Errorf("location %q not found", r.LocationID)
	}
	tx.stamp(&r.Base)
	tx.state.envReadings[r.ID] = r
	tx.recordChange(domain.Change{Entity: domain.EntityEnvReading, Action: domain.ActionCreate, After: r})
	return r, nil
}

// CreatePersonnelEntry stores a crew record for a location.
func (tx *Transaction) CreatePersonnelEntry(p domain.PersonnelEntry) (domain.PersonnelEntry, error) {
	if _, exists := tx.state.personnel[p.ID]; p.ID != "" && exists {
		return domain.PersonnelEntry{}, fmt.Errorf("personnel entry %q already exists", p.ID)
	}
	if _, ok := tx.state.locations[p.LocationID]; !ok {
		return domain.PersonnelEntry{}, fmt.Errorf("location %q not found", p.LocationID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.PersonnelEntry{}, fmt.Errorf("personnel entry requires a name")
	}
	tx.stamp(&p.Base)
	tx.state.personnel[p.ID] = p
	tx.recordChange(domain.Change{Entity: domain.EntityPersonnelEntry, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateRiver stores a new river. Names are unique within a parent.
func (tx *Transaction) CreateRiver(r domain.River) (domain.River, error) {
	if _, exists := tx.state.rivers[r.ID]; r.ID != "" && exists {
		return domain.River{}, fmt.Errorf("river %q already exists", r.ID)
	}
	for _, existing := range tx.state.rivers {
		if existing.Name == r.Name && eqParent(existing.ParentID, r.ParentID) {
			return domain.River{}, domain.ConflictError{Entity: domain.EntityRiver, Detail: fmt.Sprintf("name %q", r.Name)}
		}
	}
	tx.stamp(&r.Base)
	tx.state.rivers[r.ID] = r
	tx.recordChange(domain.Change{Entity: domain.EntityRiver, Action: domain.ActionCreate, After: r})
	return r, nil
}

// CreateReleaseSite stores a new catalogued site.
func (tx *Transaction) CreateReleaseSite(rs domain.ReleaseSite) (domain.ReleaseSite, error) {
	if _, exists := tx.state.releaseSites[rs.ID]; rs.ID != "" && exists {
		return domain.ReleaseSite{}, fmt.Errorf("release site %q already exists", rs.ID)
	}
	if _, ok := tx.state.rivers[rs.RiverID]; !ok {
		return domain.ReleaseSite{}, fmt.Errorf("river %q not found", rs.RiverID)
	}
	for _, existing := range tx.state.releaseSites {
		if existing.Name == rs.Name && existing.RiverID == rs.RiverID {
			return domain.ReleaseSite{}, domain.ConflictError{Entity: domain.EntityReleaseSite, Detail: fmt.Sprintf("name %q", rs.Name)}
		}
	}
	tx.stamp(&rs.Base)
	tx.state.releaseSites[rs.ID] = rs
	tx.recordChange(domain.Change{Entity: domain.EntityReleaseSite, Action: domain.ActionCreate, After: rs})
	return rs, nil
}

// CreateStock stores a new stock. Names are unique.
func (tx *Transaction) CreateStock(st domain.Stock) (domain.Stock, error) {
	if _, exists := tx.state.stocks[st.ID]; st.ID != "" && exists {
		return domain.Stock{}, fmt.Errorf("stock %q already exists", st.ID)
	}
	for _, existing := range tx.state.stocks {
		if existing.Name == st.Name {
			return domain.Stock{}, domain.ConflictError{Entity: domain.EntityStock, Detail: fmt.Sprintf("name %q", st.Name)}
		}
	}
	tx.stamp(&st.Base)
	tx.state.stocks[st.ID] = st
	tx.recordChange(domain.Change{Entity: domain.EntityStock, Action: domain.ActionCreate, After: st})
	return st, nil
}

// CreateCollection stores a new collection. Names are unique.
func (tx *Transaction) CreateCollection(c domain.Collection) (domain.Collection, error) {
	if _, exists := tx.state.collections[c.ID]; c.ID != "" && exists {
		return domain.Collection{}, fmt.Errorf("collection %q already exists", c.ID)
	}
	for _, existing := range tx.state.collections {
		if existing.Name == c.Name {
			return domain.Collection{}, domain.ConflictError{Entity: domain.EntityCollection, Detail: fmt.Sprintf("name %q", c.Name)}
		}
	}
	tx.stamp(&c.Base)
	tx.state.collections[c.ID] = c
	tx.recordChange(domain.Change{Entity: domain.EntityCollection, Action: domain.ActionCreate, After: c})
	return c, nil
}

// CreateReferenceCode stores a fixed lookup code. (kind, name) is unique.
func (tx *Transaction) CreateReferenceCode(rc domain.ReferenceCode) (domain.ReferenceCode, error) {
	if _, exists := tx.state.referenceCodes[rc.ID]; rc.ID != "" && exists {
		return domain.ReferenceCode{}, fmt.Errorf("reference code %q already exists", rc.ID)
	}
	for _, existing := range tx.state.referenceCodes {
		if existing.Kind == rc.Kind && existing.Name == rc.Name {
			return domain.ReferenceCode{}, domain.ConflictError{Entity: domain.EntityReferenceCode, Detail: fmt.Sprintf("%s code %q", rc.Kind, rc.Name)}
		}
	}
	tx.stamp(&rc.Base)
	tx.state.referenceCodes[rc.ID] = rc
	tx.recordChange(domain.Change{Entity: domain.EntityReferenceCode, Action: domain.ActionCreate, After: rc})
	return rc, nil
}

func eqParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
