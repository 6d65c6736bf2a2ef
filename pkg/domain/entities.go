// Package domain defines the persistent entities, value types, and rule
// evaluation primitives shared by the hatchery import engine and its stores.
package domain

import "time"

// EntityType identifies the type of record stored in the domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityEvent identifies an overarching activity (e.g. an electrofishing trip).
	EntityEvent EntityType = "event"
	// EntityGroup identifies a cohort of animals sharing stock/collection/year.
	EntityGroup EntityType = "group"
	// EntityIndividual identifies a single tagged animal.
	EntityIndividual EntityType = "individual"
	// EntityLocation identifies a point-in-time, point-in-place record under an event.
	EntityLocation EntityType = "location"
	// EntityContainer identifies a physical holding unit (tank, pond, trough).
	EntityContainer EntityType = "container"
	// EntityCrossRef identifies a join record linking an event to resolved entities.
	EntityCrossRef EntityType = "cross_ref"
	// EntityContainerLink identifies a container placement under an event.
	EntityContainerLink EntityType = "container_link"
	// EntityMarkAssignment identifies a program-group mark attached to a cross-reference.
	EntityMarkAssignment EntityType = "mark_assignment"
	// EntityCount identifies a typed count attached to a location or container link.
	EntityCount EntityType = "count"
	// EntityEnvReading identifies an environmental measurement at a location.
	EntityEnvReading EntityType = "env_reading"
	// EntityPersonnelEntry identifies a crew member recorded at a location.
	EntityPersonnelEntry EntityType = "personnel_entry"
	// EntityRiver identifies a river or tributary.
	EntityRiver EntityType = "river"
	// EntityReleaseSite identifies a catalogued site on a river.
	EntityReleaseSite EntityType = "release_site"
	// EntityStock identifies a stock (origin population) record.
	EntityStock EntityType = "stock"
	// EntityCollection identifies a collection (seasonal capture program) record.
	EntityCollection EntityType = "collection"
	// EntityReferenceCode identifies a fixed lookup code (env, role, count, mark).
	EntityReferenceCode EntityType = "reference_code"
)

// CodeKind distinguishes the fixed reference code tables.
type CodeKind string

// Reference code kinds resolved once per import run.
const (
	CodeEnv   CodeKind = "env"
	CodeRole  CodeKind = "role"
	CodeCount CodeKind = "count"
	CodeMark  CodeKind = "mark"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is the overarching activity all imported rows belong to. Events are
// supplied by the caller; the engine never creates one.
type Event struct {
	Base
	Name     string    `json:"name"`
	Program  string    `json:"program"`
	StartAt  time.Time `json:"start_at"`
	Comments string    `json:"comments,omitempty"`
}

// Group represents a cohort of animals sharing species/stock/collection/birth-year.
// ParentID links a post-movement cohort back to the cohort it was split from.
type Group struct {
	Base
	Species      string  `json:"species"`
	StockID      string  `json:"stock_id"`
	CollectionID string  `json:"collection_id"`
	Year         int     `json:"year"`
	ParentID     *string `json:"parent_id,omitempty"`
	Valid        bool    `json:"valid"`
}

// Individual is a single externally tagged animal (e.g. PIT tag).
type Individual struct {
	Base
	Species      string `json:"species"`
	StockID      string `json:"stock_id"`
	CollectionID string `json:"collection_id"`
	Year         int    `json:"year"`
	Tag          string `json:"tag"`
	Valid        bool   `json:"valid"`
}

// Location is a point-in-time, point-in-place record tied to an event.
type Location struct {
	Base
	EventID       string    `json:"event_id"`
	Category      string    `json:"category"`
	RiverID       string    `json:"river_id"`
	SubRiverID    *string   `json:"sub_river_id,omitempty"`
	ReleaseSiteID *string   `json:"release_site_id,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	Comments      string    `json:"comments,omitempty"`
}

// SameSpot reports whether two locations match on the full natural key used
// for duplicate detection: event, category, river, sub-river, site,
// coordinates, and timestamp.
func (l Location) SameSpot(other Location) bool {
	return l.EventID == other.EventID &&
		l.Category == other.Category &&
		l.RiverID == other.RiverID &&
		eqStrPtr(l.SubRiverID, other.SubRiverID) &&
		eqStrPtr(l.ReleaseSiteID, other.ReleaseSiteID) &&
		eqFloatPtr(l.Latitude, other.Latitude) &&
		eqFloatPtr(l.Longitude, other.Longitude) &&
		l.RecordedAt.Equal(other.RecordedAt)
}

// Container is a physical holding unit addressed by name within a facility.
type Container struct {
	Base
	Name     string `json:"name"`
	Facility string `json:"facility,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// CrossRef links an event to one or more resolved entities. At most one
// combination of the optional references is meaningful per row context; a
// "bare" group reference has every field other than GroupID nil.
type CrossRef struct {
	Base
	EventID         string  `json:"event_id"`
	GroupID         *string `json:"group_id,omitempty"`
	IndividualID    *string `json:"individual_id,omitempty"`
	LocationID      *string `json:"location_id,omitempty"`
	ContainerLinkID *string `json:"container_link_id,omitempty"`
	PairID          *string `json:"pair_id,omitempty"`
	Valid           bool    `json:"valid"`
}

// Bare reports whether the cross-reference carries only a group reference.
func (x CrossRef) Bare() bool {
	return x.GroupID != nil && x.IndividualID == nil && x.LocationID == nil &&
		x.ContainerLinkID == nil && x.PairID == nil
}

// ContainerLink records that animals entered or left a container during an event.
type ContainerLink struct {
	Base
	EventID     string    `json:"event_id"`
	ContainerID string    `json:"container_id"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// MarkAssignment attaches a program-group mark code to a cross-reference.
type MarkAssignment struct {
	Base
	CrossRefID string `json:"cross_ref_id"`
	MarkCodeID string `json:"mark_code_id"`
}

// Count is a typed tally anchored on either a location or a container link.
type Count struct {
	Base
	CountCodeID     string  `json:"count_code_id"`
	LocationID      *string `json:"location_id,omitempty"`
	ContainerLinkID *string `json:"container_link_id,omitempty"`
	Value           int     `json:"value"`
}

// EnvReading is an environmental measurement taken at a location.
type EnvReading struct {
	Base
	LocationID string  `json:"location_id"`
	EnvCodeID  string  `json:"env_code_id"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
}

// PersonnelEntry records a crew member's participation at a location.
type PersonnelEntry struct {
	Base
	LocationID string `json:"location_id"`
	RoleCodeID string `json:"role_code_id"`
	Name       string `json:"name"`
}

// River is a river or tributary; ParentID points at the containing river.
type River struct {
	Base
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
}

// ReleaseSite is a catalogued named site on a river.
type ReleaseSite struct {
	Base
	Name      string   `json:"name"`
	RiverID   string   `json:"river_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Stock identifies an origin population, conventionally named after its river.
type Stock struct {
	Base
	Name string `json:"name"`
}

// Collection identifies a seasonal capture program ("Fall", abbreviated "F").
type Collection struct {
	Base
	Name   string `json:"name"`
	Abbrev string `json:"abbrev,omitempty"`
}

// ReferenceCode is a fixed lookup row resolved once per run (env codes such as
// "Temperature", role codes such as "Crew Lead", count and mark codes).
type ReferenceCode struct {
	Base
	Kind CodeKind `json:"kind"`
	Name string   `json:"name"`
}

// Change captures one mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// ConflictError reports a uniqueness violation on a natural key. Callers use
// it to drive the insert-then-refetch reconciliation pattern.
type ConflictError struct {
	Entity EntityType
	Detail string
}

func (e ConflictError) Error() string {
	return string(e.Entity) + " conflict: " + e.Detail
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
