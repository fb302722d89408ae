package aql

import goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"

// Normalize applies spec §4.4's normalization rules after parsing:
//
//  1. An operator with a negated, existence-less side requires the other
//     side to be bound by an independent node specification — a negated
//     join against two unconstrained node references is not a meaningful
//     query (it would match almost every pair in the corpus).
//  2. In quirks mode, duplicate identity joins are inserted between node
//     specs that are textually identical (same namespace, name, value,
//     and regex-ness) but were declared independently, reproducing the
//     legacy behavior of treating repeated literal annotation specs as
//     implicitly co-referring the same node.
func (q *Query) Normalize() error {
	if err := q.validateNegatedOperands(); err != nil {
		return err
	}
	if q.QuirksMode {
		q.insertQuirksIdentityJoins()
	}
	return nil
}

func (q *Query) validateNegatedOperands() error {
	for _, op := range q.Operators {
		if !op.Negated {
			continue
		}
		lhs := q.Nodes[op.LHS-1]
		rhs := q.Nodes[op.RHS-1]
		if lhs.Kind == SpecAny && rhs.Kind == SpecAny {
			return goerrors.NewParse("negated operator requires at least one bound operand")
		}
	}
	return nil
}

func (q *Query) insertQuirksIdentityJoins() {
	type key struct {
		ns, name, value string
		regex           bool
	}
	seen := make(map[key]int) // first node index seen with this literal spec
	have := make(map[[2]int]bool)
	for _, op := range q.Operators {
		have[[2]int{op.LHS, op.RHS}] = true
		have[[2]int{op.RHS, op.LHS}] = true
	}

	for i, n := range q.Nodes {
		if n.Kind != SpecAnno || n.Negated {
			continue
		}
		k := key{n.NS, n.Name, n.Value, n.IsRegex}
		idx := i + 1
		if first, ok := seen[k]; ok {
			if !have[[2]int{first, idx}] {
				q.Operators = append(q.Operators, Operator{
					Kind: OpIdentity, LHS: first, RHS: idx, Min: 1, Max: 1,
				})
				have[[2]int{first, idx}] = true
				have[[2]int{idx, first}] = true
			}
		} else {
			seen[k] = idx
		}
	}
}
