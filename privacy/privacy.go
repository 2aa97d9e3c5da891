package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/aggstore"
)

// Policy decision sentinel errors.
//
// Rules return one of them, possibly wrapped, to steer the evaluation of a
// policy. Use errors.Is() to check for these values:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("aggstore/privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("aggstore/privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("aggstore/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Rule decides whether the operation behind an event may proceed.
type Rule interface {
	Eval(context.Context, aggstore.Event) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions
// as rules.
type RuleFunc func(context.Context, aggstore.Event) error

// Eval returns f(ctx, e).
func (f RuleFunc) Eval(ctx context.Context, e aggstore.Event) error {
	return f(ctx, e)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function. Returning
// nil is equivalent to returning Skip.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ aggstore.Event) error {
		return eval(ctx)
	})
}

// OnEvent evaluates the given rule only on the given event types.
func OnEvent(rule Rule, types aggstore.EventType) Rule {
	return RuleFunc(func(ctx context.Context, e aggstore.Event) error {
		if e.Type.Is(types) {
			return rule.Eval(ctx, e)
		}
		return Skip
	})
}

// OnEntity evaluates the given rule only for the named aggregate types.
func OnEntity(rule Rule, names ...string) Rule {
	return RuleFunc(func(ctx context.Context, e aggstore.Event) error {
		if e.Entity != nil && slices.Contains(names, e.Entity.Name) {
			return rule.Eval(ctx, e)
		}
		return Skip
	})
}

// Writes evaluates rules, in order, before saves and deletes.
func Writes(rules ...Rule) Rule {
	return OnEvent(chain(rules), aggstore.BeforeSave|aggstore.BeforeDelete)
}

// Loads evaluates rules, in order, for every loaded aggregate.
func Loads(rules ...Rule) Rule {
	return OnEvent(chain(rules), aggstore.AfterLoad)
}

// DenyEventRule returns a rule denying the given event types.
func DenyEventRule(types aggstore.EventType) Rule {
	rule := RuleFunc(func(_ context.Context, e aggstore.Event) error {
		return Denyf("aggstore/privacy: %s of %s is not allowed", e.Type, e.Entity)
	})
	return OnEvent(rule, types)
}

// AllowEventRule returns a rule allowing the given event types.
func AllowEventRule(types aggstore.EventType) Rule {
	return OnEvent(fixedDecision{Allow}, types)
}

// chain evaluates rules until one decides. A chain without a decision skips.
type chain []Rule

func (c chain) Eval(ctx context.Context, e aggstore.Event) error {
	for _, rule := range c {
		switch decision := rule.Eval(ctx, e); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return Skip
}

// Policy is an ordered list of rules registered on a Template as a
// listener. The first Allow or Deny decides; when every rule skips the
// operation proceeds.
type Policy []Rule

// NewPolicy returns a policy evaluating rules in order.
func NewPolicy(rules ...Rule) Policy {
	return Policy(rules)
}

// Eval evaluates the policy and returns nil when the operation may proceed.
func (p Policy) Eval(ctx context.Context, e aggstore.Event) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, e); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// OnEvent implements aggstore.Listener.
func (p Policy) OnEvent(ctx context.Context, e aggstore.Event) error {
	return p.Eval(ctx, e)
}

var _ aggstore.Listener = Policy(nil)

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attached to it. Policies evaluated under the returned
// context return the decision without consulting their rules.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, aggstore.Event) error {
	return f.decision
}
