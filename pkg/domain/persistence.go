package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateEvent(Event) (Event, error)
	CreateGroup(Group) (Group, error)
	UpdateGroup(id string, mutator func(*Group) error) (Group, error)
	CreateIndividual(Individual) (Individual, error)
	UpdateIndividual(id string, mutator func(*Individual) error) (Individual, error)
	CreateLocation(Location) (Location, error)
	CreateContainer(Container) (Container, error)
	CreateCrossRef(CrossRef) (CrossRef, error)
	CreateContainerLink(ContainerLink) (ContainerLink, error)
	CreateMarkAssignment(MarkAssignment) (MarkAssignment, error)
	CreateCount(Count) (Count, error)
	CreateEnvReading(EnvReading) (EnvReading, error)
	CreatePersonnelEntry(PersonnelEntry) (PersonnelEntry, error)
	CreateRiver(River) (River, error)
	CreateReleaseSite(ReleaseSite) (ReleaseSite, error)
	CreateStock(Stock) (Stock, error)
	CreateCollection(Collection) (Collection, error)
	CreateReferenceCode(ReferenceCode) (ReferenceCode, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// natural-key lookups. Predicates are applied by the caller.
type TransactionView interface {
	ListEvents() []Event
	FindEvent(id string) (Event, bool)
	ListGroups() []Group
	FindGroup(id string) (Group, bool)
	ListIndividuals() []Individual
	FindIndividualByTag(tag string) (Individual, bool)
	ListLocations() []Location
	ListContainers() []Container
	FindContainerByName(name string) (Container, bool)
	ListCrossRefs() []CrossRef
	ListContainerLinks() []ContainerLink
	ListMarkAssignments() []MarkAssignment
	ListCounts() []Count
	ListEnvReadings() []EnvReading
	ListPersonnelEntries() []PersonnelEntry
	ListRivers() []River
	ListReleaseSites() []ReleaseSite
	ListStocks() []Stock
	ListCollections() []Collection
	ListReferenceCodes() []ReferenceCode
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetEvent(id string) (Event, bool)
	GetGroup(id string) (Group, bool)
	ListGroups() []Group
	ListCrossRefs() []CrossRef
	ListCounts() []Count
	ListContainerLinks() []ContainerLink
}
