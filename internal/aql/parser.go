package aql

import (
	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// Parse tokenizes and parses src into a normalized Query. quirksMode
// controls the legacy component-search identity-join behavior spec §4.4
// describes.
func Parse(src string, quirksMode bool) (*Query, error) {
	toks, err := tokenizeAll(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	q := &Query{QuirksMode: quirksMode}
	if err := p.parseConjunction(q); err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, goerrors.NewParse("unexpected trailing input in AQL query")
	}
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	return q, nil
}

func tokenizeAll(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if p.cur().kind != k {
		return token{}, goerrors.NewParse("expected " + what + " in AQL query")
	}
	return p.advance(), nil
}

// parseConjunction parses a sequence of '&'-joined terms, each either a
// reference constraint ("#1 >* #2") or a chain of directly adjacent node
// specs and operators ("pos=\"NN\" .2,10 pos=\"ART\"").
func (p *parser) parseConjunction(q *Query) error {
	if err := p.parseTerm(q); err != nil {
		return err
	}
	for p.cur().kind == tokAmp {
		p.advance()
		if err := p.parseTerm(q); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) parseTerm(q *Query) error {
	if p.cur().kind == tokHash {
		return p.parseRefConstraint(q)
	}
	return p.parseNodeSpecChain(q)
}

// parseRefConstraint parses "#N op #M" between two already-declared nodes.
func (p *parser) parseRefConstraint(q *Query) error {
	lhs, err := p.parseNodeRef(q)
	if err != nil {
		return err
	}
	op, err := p.parseOperator(q, lhs)
	if err != nil {
		return err
	}
	rhs, err := p.parseNodeRef(q)
	if err != nil {
		return err
	}
	op.RHS = rhs
	q.Operators = append(q.Operators, *op)
	return nil
}

func (p *parser) parseNodeRef(q *Query) (int, error) {
	if _, err := p.expect(tokHash, "'#'"); err != nil {
		return 0, err
	}
	numTok, err := p.expect(tokNumber, "node index number")
	if err != nil {
		return 0, err
	}
	idx := atoiMust(numTok.text)
	if idx < 1 || idx > len(q.Nodes) {
		return 0, goerrors.NewParse("reference to undeclared node #" + numTok.text)
	}
	return idx, nil
}

// parseNodeSpecChain parses one or more node specs directly joined by
// operators, e.g. "pos=\"NN\" .2,10 pos=\"ART\" . pos=\"NN\"".
func (p *parser) parseNodeSpecChain(q *Query) error {
	lhsIdx, err := p.parseNodeSpec(q)
	if err != nil {
		return err
	}
	for isOperatorStart(p.cur()) {
		op, err := p.parseOperator(q, lhsIdx)
		if err != nil {
			return err
		}
		rhsIdx, err := p.parseNodeSpec(q)
		if err != nil {
			return err
		}
		op.RHS = rhsIdx
		q.Operators = append(q.Operators, *op)
		lhsIdx = rhsIdx
	}
	return nil
}

func isOperatorStart(t token) bool {
	switch t.kind {
	case tokDot, tokDom, tokArrow, tokNear, tokCaret, tokEqEq, tokBang:
		return true
	case tokIdent:
		switch t.text {
		case "_i_", "_o_", "_l_", "_r_", "_=_":
			return true
		}
	}
	return false
}

// parseNodeSpec parses one node specification and appends it to q.Nodes,
// returning its 1-based index.
func (p *parser) parseNodeSpec(q *Query) (int, error) {
	spec := NodeSpec{Index: len(q.Nodes) + 1}

	if p.cur().kind == tokString {
		// bare "value" is an implicit token search.
		str := p.advance()
		spec.Kind = SpecToken
		spec.Value = str.text
	} else {
		name, err := p.expect(tokIdent, "annotation or token name")
		if err != nil {
			return 0, err
		}
		spec.NS = ""
		spec.Name = name.text
		if p.cur().kind == tokColonColon {
			p.advance()
			nameTok, err := p.expect(tokIdent, "annotation name after '::'")
			if err != nil {
				return 0, err
			}
			spec.NS = name.text
			spec.Name = nameTok.text
		}
		if spec.Name == "tok" {
			spec.Kind = SpecToken
		} else {
			spec.Kind = SpecAnno
		}

		switch p.cur().kind {
		case tokEq:
			p.advance()
			if err := p.parseSpecValue(&spec); err != nil {
				return 0, err
			}
		case tokNotEq:
			p.advance()
			spec.Negated = true
			if err := p.parseSpecValue(&spec); err != nil {
				return 0, err
			}
		default:
			// existence-only predicate: annotation key present, any value.
		}
	}

	if p.cur().kind == tokQuestion {
		p.advance()
		spec.Optional = true
	}

	q.Nodes = append(q.Nodes, spec)
	return spec.Index, nil
}

func (p *parser) parseSpecValue(spec *NodeSpec) error {
	switch p.cur().kind {
	case tokString:
		spec.Value = p.advance().text
	case tokRegex:
		spec.Value = p.advance().text
		spec.IsRegex = true
	default:
		return goerrors.NewParse("expected string or regex value")
	}
	return nil
}

// parseOperator parses one operator token (with its optional range and
// name suffix) and returns a partially built Operator with LHS set.
func (p *parser) parseOperator(q *Query, lhs int) (*Operator, error) {
	negated := false
	if p.cur().kind == tokBang {
		p.advance()
		negated = true
	}

	op := &Operator{LHS: lhs, Negated: negated, Min: 1, Max: 1}

	switch p.cur().kind {
	case tokDot:
		p.advance()
		op.Kind = OpPrecedence
		op.Min, op.Max = p.parseOptionalRange(1, 1)
	case tokDom:
		p.advance()
		op.Kind = OpDominance
		op.Min, op.Max = 1, -1
		op.Layer, op.Name = p.parseOptionalComponentName()
	case tokArrow:
		p.advance()
		op.Kind = OpPointing
		op.Min, op.Max = 1, 1
		op.Layer, op.Name = p.parseOptionalComponentName()
	case tokNear:
		p.advance()
		op.Kind = OpNear
		op.Min, op.Max = 1, -1
	case tokCaret:
		p.advance()
		op.Kind = OpNear
		op.Min, op.Max = p.parseOptionalRange(1, 1)
	case tokEqEq:
		p.advance()
		op.Kind = OpEqualValue
	case tokIdent:
		switch p.cur().text {
		case "_i_":
			op.Kind = OpInclusion
		case "_o_":
			op.Kind = OpOverlap
		case "_l_":
			op.Kind = OpLeftAlign
		case "_r_":
			op.Kind = OpRightAlign
		case "_=_":
			op.Kind = OpIdentity
		default:
			return nil, goerrors.NewParse("unknown operator '" + p.cur().text + "'")
		}
		p.advance()
	default:
		return nil, goerrors.NewParse("expected an AQL operator")
	}
	return op, nil
}

// parseOptionalRange parses ".N" / ".N,M" style ranges after a dot-like
// operator has already been consumed; absent altogether it returns the
// caller's default.
func (p *parser) parseOptionalRange(defaultMin, defaultMax int) (int, int) {
	if p.cur().kind != tokNumber {
		return defaultMin, defaultMax
	}
	min := atoiMust(p.advance().text)
	max := min
	if p.cur().kind == tokComma {
		p.advance()
		if p.cur().kind == tokNumber {
			max = atoiMust(p.advance().text)
		} else {
			max = -1
		}
	}
	return min, max
}

// parseOptionalComponentName parses a trailing "layer::name" or "name"
// identifier directly following "->" or ">*", identifying the edge
// component the operator is restricted to.
func (p *parser) parseOptionalComponentName() (layer, name string) {
	if p.cur().kind != tokIdent {
		return "", ""
	}
	first := p.advance().text
	if p.cur().kind == tokColonColon {
		p.advance()
		if p.cur().kind == tokIdent {
			return first, p.advance().text
		}
		return first, ""
	}
	return "", first
}

func atoiMust(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
