package core

import "hatcherycore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Event              = domain.Event
	Group              = domain.Group
	Individual         = domain.Individual
	Location           = domain.Location
	Container          = domain.Container
	CrossRef           = domain.CrossRef
	ContainerLink      = domain.ContainerLink
	MarkAssignment     = domain.MarkAssignment
	Count              = domain.Count
	EnvReading         = domain.EnvReading
	PersonnelEntry     = domain.PersonnelEntry
	River              = domain.River
	ReleaseSite        = domain.ReleaseSite
	Stock              = domain.Stock
	Collection         = domain.Collection
	ReferenceCode      = domain.ReferenceCode
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
)

const (
	EntityEvent          = domain.EntityEvent
	EntityGroup          = domain.EntityGroup
	EntityIndividual     = domain.EntityIndividual
	EntityLocation       = domain.EntityLocation
	EntityContainer      = domain.EntityContainer
	EntityCrossRef       = domain.EntityCrossRef
	EntityContainerLink  = domain.EntityContainerLink
	EntityMarkAssignment = domain.EntityMarkAssignment
	EntityCount          = domain.EntityCount
	EntityEnvReading     = domain.EntityEnvReading
	EntityPersonnelEntry = domain.EntityPersonnelEntry
	EntityRiver          = domain.EntityRiver
	EntityReleaseSite    = domain.EntityReleaseSite
	EntityStock          = domain.EntityStock
	EntityCollection     = domain.EntityCollection
	EntityReferenceCode  = domain.EntityReferenceCode
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
