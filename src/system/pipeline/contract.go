package pipeline

import "fmt"

// Exactness declares what a contract does to its inputs.
type Exactness int

const (
	// Preserved keeps the inputs available next to the produced outputs.
	Preserved Exactness = iota
	// Erased consumes the inputs: after the pipe ran they are gone.
	Erased
	// DerivedFrom marks a many-to-one reduction: the output summarizes
	// every instance of the source kind, inputs stay available.
	DerivedFrom
)

func (e Exactness) String() string {
	switch e {
	case Preserved:
		return "Preserved"
	case Erased:
		return "Erased"
	case DerivedFrom:
		return "DerivedFrom"
	}
	return fmt.Sprintf("Exactness(%d)", int(e))
}

// Contract is one declarative rewrite rule of a pipe: targets of the
// source kind in the source role container become targets of the target
// kind in the target role container. Roles are indexes into the pipe's
// bound container names, resolved only at deduction time so the same pipe
// can be rebound without touching its contracts.
//
// All deduction below is pure over (target map, bound names): container
// contents are never consulted, only target identities and kinds.
type Contract struct {
	source     *Kind
	sourceRole int
	target     *Kind
	targetRole int
	exactness  Exactness
}

func NewContract(source *Kind, sourceRole int, target *Kind, targetRole int, exactness Exactness) Contract {
	if source == nil || target == nil {
		panic("pipeline: contract with nil kind")
	}
	if sourceRole < 0 || targetRole < 0 {
		panic("pipeline: contract with negative role index")
	}
	return Contract{
		source:     source,
		sourceRole: sourceRole,
		target:     target,
		targetRole: targetRole,
		exactness:  exactness,
	}
}

func (c Contract) Source() *Kind        { return c.source }
func (c Contract) Target() *Kind        { return c.target }
func (c Contract) SourceRole() int      { return c.sourceRole }
func (c Contract) TargetRole() int      { return c.targetRole }
func (c Contract) Exactness() Exactness { return c.exactness }

// rewriteBackward maps a requested output target to the input target that
// must pre-exist for the contract to produce it.
func (c Contract) rewriteBackward(t Target) Target {
	if c.exactness == DerivedFrom {
		// a reduction needs every instance of the source kind
		return AllTargets(c.source)
	}
	if t.IsAll() {
		return AllTargets(c.source)
	}
	switch {
	case c.source.Depth() == c.target.Depth():
		return t.WithKind(c.source)
	case c.source.Depth() < c.target.Depth():
		return NewTarget(c.source, t.Path()[:c.source.Depth()]...)
	default:
		// components cannot be invented going backward
		return AllTargets(c.source)
	}
}

// rewriteForward maps an available input target to the output target that
// will exist after the contract fired.
func (c Contract) rewriteForward(t Target) Target {
	if t.IsAll() {
		return AllTargets(c.target)
	}
	switch {
	case c.target.Depth() == c.source.Depth() && c.exactness != DerivedFrom:
		return t.WithKind(c.target)
	case c.target.Depth() <= c.source.Depth():
		return NewTarget(c.target, t.Path()[:c.target.Depth()]...)
	default:
		return AllTargets(c.target)
	}
}

// DeduceRequirements rewrites the requested targets backward: outputs of
// the target kind are removed from the target role container and replaced
// by the inputs they need in the source role container. Targets the
// contract does not speak about pass through untouched.
func (c Contract) DeduceRequirements(requested ContainerToTargetsMap, names []string) ContainerToTargetsMap {
	out := requested.Copy()
	sourceName := names[c.sourceRole]
	targetName := names[c.targetRole]

	// collect first, apply after: source and target role may bind the
	// same container
	var rewritten, required []Target
	for _, t := range out[targetName].Slice() {
		if !c.target.IsAncestorOf(t.Kind()) {
			continue
		}
		rewritten = append(rewritten, t)
		required = append(required, c.rewriteBackward(t))
	}
	targetList := out[targetName]
	for _, t := range rewritten {
		targetList.Remove(t)
	}
	if targetList.Empty() {
		delete(out, targetName)
	} else {
		out[targetName] = targetList
	}
	out.Add(sourceName, required...)
	return out
}

// DeduceResults rewrites the available targets forward: every input of the
// source kind yields its output in the target role container. Erased
// contracts additionally consume the inputs.
func (c Contract) DeduceResults(available ContainerToTargetsMap, names []string) ContainerToTargetsMap {
	out := available.Copy()
	sourceName := names[c.sourceRole]
	targetName := names[c.targetRole]

	var consumed, produced []Target
	for _, t := range out[sourceName].Slice() {
		if !c.source.IsAncestorOf(t.Kind()) {
			continue
		}
		produced = append(produced, c.rewriteForward(t))
		if c.exactness == Erased {
			consumed = append(consumed, t)
		}
	}
	sourceList := out[sourceName]
	for _, t := range consumed {
		sourceList.Remove(t)
	}
	if sourceList.Empty() {
		delete(out, sourceName)
	} else {
		out[sourceName] = sourceList
	}
	out.Add(targetName, produced...)
	return out
}

// ForwardMatches reports whether the contract fires against the given
// availability: the source role container holds at least one target of the
// source kind (or a refinement). Targets of other kinds sharing the
// container are ignored, so adding availability can only turn matches on,
// never off.
func (c Contract) ForwardMatches(available ContainerToTargetsMap, names []string) bool {
	for _, t := range available[names[c.sourceRole]].Slice() {
		if c.source.IsAncestorOf(t.Kind()) {
			return true
		}
	}
	return false
}

// ContractGroup is the ordered sequence of contracts declared by one pipe.
// Order matters: backward deduction walks it in reverse, forward deduction
// in declaration order, and satisfiability threads intermediate results
// from one contract into the next.
type ContractGroup []Contract

// DeduceRequirements walks the group in reverse contract order, rewriting
// the requested targets back to the minimal set of inputs that must
// pre-exist.
func (g ContractGroup) DeduceRequirements(requested ContainerToTargetsMap, names []string) ContainerToTargetsMap {
	requirements := requested.Copy()
	for i := len(g) - 1; i >= 0; i-- {
		requirements = g[i].DeduceRequirements(requirements, names)
	}
	return requirements
}

// DeduceResults walks the group in forward contract order, computing what
// will exist after the pipe ran. Every contract applies unconditionally:
// this models "what always happens", not "what might happen".
func (g ContractGroup) DeduceResults(available ContainerToTargetsMap, names []string) ContainerToTargetsMap {
	out := available.Copy()
	for _, contract := range g {
		out = contract.DeduceResults(out, names)
	}
	return out
}

// AreRequirementsMet checks whether the availability lets the pipe act.
// Each contract is tried against a working copy: a forward match makes the
// pipe runnable, otherwise the contract's forward deduction is applied to
// the working copy so that a later contract can consume an earlier
// contract's intermediate output. An empty group is trivially satisfiable
// (a pipe with no declared static dependencies, e.g. a raw import step).
func (g ContractGroup) AreRequirementsMet(available ContainerToTargetsMap, names []string) bool {
	if len(g) == 0 {
		return true
	}
	working := available.Copy()
	for _, contract := range g {
		if contract.ForwardMatches(working, names) {
			return true
		}
		working = contract.DeduceResults(working, names)
	}
	return false
}

// maxRole returns the highest role index the group references, used by the
// binding arity validation.
func (g ContractGroup) maxRole() int {
	max := -1
	for _, contract := range g {
		if contract.sourceRole > max {
			max = contract.sourceRole
		}
		if contract.targetRole > max {
			max = contract.targetRole
		}
	}
	return max
}
