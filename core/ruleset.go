package core

// RuleFactory decides whether it can produce a Rule for a given target and, if so,
// constructs one. Factories let a Ruleset cover an open-ended family of targets (e.g. "any
// ObjectFileTarget") without a static entry per TargetID.
type RuleFactory interface {
	Matches(t Target) bool
	Instantiate(t Target) Rule
}

// RuleFactoryFunc adapts a pair of plain functions into a RuleFactory, the idiomatic Go
// equivalent of the source's "rule class with a static matches predicate and a one-arg
// constructor" (there is no static-method concept to mirror here, so a factory value is the
// natural translation; see SPEC_FULL.md / DESIGN.md).
type RuleFactoryFunc struct {
	MatchesFunc     func(t Target) bool
	InstantiateFunc func(t Target) Rule
}

// Matches implements RuleFactory.
func (f RuleFactoryFunc) Matches(t Target) bool { return f.MatchesFunc(t) }

// Instantiate implements RuleFactory.
func (f RuleFactoryFunc) Instantiate(t Target) Rule { return f.InstantiateFunc(t) }

// Ruleset is a searchable collection of static, per-TargetID rules plus an ordered list of
// rule factories, used to resolve any target reachable during graph expansion to exactly
// one Rule.
type Ruleset struct {
	static    map[TargetID]Rule
	factories []RuleFactory
}

// FindOrMakeRule resolves t to a Rule: a static registration takes priority; otherwise
// exactly one factory must match.
func (rs *Ruleset) FindOrMakeRule(t Target) (Rule, error) {
	if r, ok := rs.static[t.ID()]; ok {
		return r, nil
	}
	var matched []RuleFactory
	for _, f := range rs.factories {
		if f.Matches(t) {
			matched = append(matched, f)
		}
	}
	switch len(matched) {
	case 0:
		return nil, &NoRuleMatchError{Target: t}
	case 1:
		return matched[0].Instantiate(t), nil
	default:
		return nil, &AmbiguousTargetError{Target: t, Factories: matched}
	}
}

// RuleSetBuilder accumulates static rules and rule factories and finalizes them into an
// immutable Ruleset with Build.
type RuleSetBuilder struct {
	static    map[TargetID]Rule
	factories []RuleFactory
}

// NewRuleSetBuilder returns an empty builder.
func NewRuleSetBuilder() *RuleSetBuilder {
	return &RuleSetBuilder{static: map[TargetID]Rule{}}
}

// AddStaticRule registers a rule for one specific target, bypassing factory matching
// entirely for it.
func (b *RuleSetBuilder) AddStaticRule(t Target, r Rule) *RuleSetBuilder {
	b.static[t.ID()] = r
	return b
}

// AddRuleFactory registers a generic rule factory, tried (in declaration order, though a
// well-formed ruleset's outcome does not depend on that order) against every target that
// has no static rule.
func (b *RuleSetBuilder) AddRuleFactory(f RuleFactory) *RuleSetBuilder {
	b.factories = append(b.factories, f)
	return b
}

// Build finalizes the builder into a Ruleset. The builder remains usable afterwards (each
// Build call produces an independent snapshot).
func (b *RuleSetBuilder) Build() *Ruleset {
	static := make(map[TargetID]Rule, len(b.static))
	for k, v := range b.static {
		static[k] = v
	}
	factories := make([]RuleFactory, len(b.factories))
	copy(factories, b.factories)
	return &Ruleset{static: static, factories: factories}
}
