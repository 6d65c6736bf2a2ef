package core

import (
	"context"
	"fmt"
	"time"

	"hatcherycore/pkg/domain"
)

// Fixed reference code names the import engine depends on. Seeded once per
// deployment; the reference catalog fails the run when one is missing.
const (
	EnvCodeTemperature   = "Temperature"
	EnvCodeVoltage       = "Voltage"
	EnvCodeSettings      = "Fishing Settings"
	RoleCrewLead         = "Crew Lead"
	RoleCrewMember       = "Crew Member"
	CountFishCaught      = "Fish Caught"
	CountFishObserved    = "Fish Observed"
	CountFishRemoved     = "Fish Removed from Container"
	LocationCategorySite = "Electrofishing Site"
)

// Service exposes higher-level transactional operations over the store for
// callers outside the import engine (CLI seeding, event management).
type Service struct {
	store   PersistentStore
	metrics MetricsRecorder
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore) *Service {
	return &Service{store: store}
}

// WithMetrics attaches a metrics recorder to the service.
func (s *Service) WithMetrics(rec MetricsRecorder) *Service {
	s.metrics = rec
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) observe(op string, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.ObserveOperation(op, time.Since(started), outcome)
}

// CreateEvent persists a new event.
func (s *Service) CreateEvent(ctx context.Context, event Event) (Event, Result, error) {
	started := time.Now()
	var created Event
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateEvent(event)
		return err
	})
	s.observe("create_event", started, err)
	return created, res, err
}

// CreateRiver persists a new river.
func (s *Service) CreateRiver(ctx context.Context, river River) (River, Result, error) {
	started := time.Now()
	var created River
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateRiver(river)
		return err
	})
	s.observe("create_river", started, err)
	return created, res, err
}

// CreateReleaseSite persists a new catalogued site.
func (s *Service) CreateReleaseSite(ctx context.Context, site ReleaseSite) (ReleaseSite, Result, error) {
	started := time.Now()
	var created ReleaseSite
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateReleaseSite(site)
		return err
	})
	s.observe("create_release_site", started, err)
	return created, res, err
}

// CreateStock persists a new stock.
func (s *Service) CreateStock(ctx context.Context, stock Stock) (Stock, Result, error) {
	started := time.Now()
	var created Stock
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateStock(stock)
		return err
	})
	s.observe("create_stock", started, err)
	return created, res, err
}

// CreateCollection persists a new collection.
func (s *Service) CreateCollection(ctx context.Context, coll Collection) (Collection, Result, error) {
	started := time.Now()
	var created Collection
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateCollection(coll)
		return err
	})
	s.observe("create_collection", started, err)
	return created, res, err
}

// CreateContainer persists a new holding unit.
func (s *Service) CreateContainer(ctx context.Context, container Container) (Container, Result, error) {
	started := time.Now()
	var created Container
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateContainer(container)
		return err
	})
	s.observe("create_container", started, err)
	return created, res, err
}

// GetEvent fetches an event by id.
func (s *Service) GetEvent(id string) (Event, error) {
	event, ok := s.store.GetEvent(id)
	if !ok {
		return Event{}, ErrNotFound{Entity: EntityEvent, ID: id}
	}
	return event, nil
}

// SeedReferenceCodes installs the fixed lookup codes the import engine
// resolves at run start, plus the provided program-group mark names.
// Codes that already exist are left alone.
func (s *Service) SeedReferenceCodes(ctx context.Context, marks []string) error {
	started := time.Now()
	type seed struct {
		kind domain.CodeKind
		name string
	}
	seeds := []seed{
		{domain.CodeEnv, EnvCodeTemperature},
		{domain.CodeEnv, EnvCodeVoltage},
		{domain.CodeEnv, EnvCodeSettings},
		{domain.CodeRole, RoleCrewLead},
		{domain.CodeRole, RoleCrewMember},
		{domain.CodeCount, CountFishCaught},
		{domain.CodeCount, CountFishObserved},
		{domain.CodeCount, CountFishRemoved},
	}
	for _, mark := range marks {
		seeds = append(seeds, seed{domain.CodeMark, mark})
	}

	existing := map[string]struct{}{}
	if err := s.store.View(ctx, func(view TransactionView) error {
		for _, rc := range view.ListReferenceCodes() {
			existing[string(rc.Kind)+"|"+rc.Name] = struct{}{}
		}
		return nil
	}); err != nil {
		return err
	}

	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, sd := range seeds {
			if _, ok := existing[string(sd.kind)+"|"+sd.name]; ok {
				continue
			}
			if _, err := tx.CreateReferenceCode(ReferenceCode{Kind: sd.kind, Name: sd.name}); err != nil {
				return fmt.Errorf("seed %s code %q: %w", sd.kind, sd.name, err)
			}
		}
		return nil
	})
	s.observe("seed_reference_codes", started, err)
	return err
}

// ErrNotFound reports a missing entity by type and id.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
