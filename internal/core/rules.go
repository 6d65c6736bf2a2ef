package core

import "hatcherycore/pkg/domain"

// NewDefaultRulesEngine returns a rules engine with the standard hatchery
// rules registered.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewGroupIdentityRule())
	engine.Register(NewContainerCohortRule())
	return engine
}
