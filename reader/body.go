package reader

import (
	"go.uber.org/zap"

	"github.com/wippyai/clrmeta"
	"github.com/wippyai/clrmeta/cil"
	"github.com/wippyai/clrmeta/errors"
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// MethodBody implements typesys.Loader. Locals and catch types are bound
// to the method's own generic parameters; debug symbols are attached when
// a provider is configured. A failure is recorded and also returned.
func (r *Reader) MethodBody(m *typesys.Method) (*typesys.MethodBody, error) {
	body, err := r.loadBody(m)
	if err != nil {
		r.recordErr(m.Token, err)
		return nil, err
	}
	r.attachSymbols(m, body)
	return body, nil
}

func (r *Reader) loadBody(m *typesys.Method) (*typesys.MethodBody, error) {
	c, err := r.store.CursorAtRVA(m.RVA)
	if err != nil {
		return nil, err
	}
	body, err := cil.ParseBody(c)
	if err != nil {
		return nil, err
	}
	body.Method = m
	ctx := m.Context()

	if !body.LocalSignature.IsNil() {
		if body.LocalSignature.Table() != metadata.TableStandAloneSig {
			return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
				Token(uint32(body.LocalSignature)).
				Detail("local signature token is not a StandAloneSig").
				Build()
		}
		_, locals, err := r.StandAloneSignature(body.LocalSignature.RID())
		if err != nil {
			return nil, err
		}
		if locals == nil {
			return nil, errors.New(errors.PhaseBody, errors.KindInvalidMetadata).
				Token(uint32(body.LocalSignature)).
				Detail("local signature token names a call-site signature").
				Build()
		}
		body.Locals = make([]*typesys.Local, len(locals))
		for i, t := range locals {
			l := &typesys.Local{Index: i, Type: typesys.Substitute(t, ctx)}
			if p, ok := l.Type.(*typesys.Pinned); ok {
				l.Type, l.Pinned = p.Elem, true
			}
			body.Locals[i] = l
		}
	}

	for i := range body.Clauses {
		cl := &body.Clauses[i]
		if cl.Kind != typesys.ClauseCatch || cl.CatchToken.IsNil() {
			continue
		}
		t, err := r.TypeFromToken(cl.CatchToken, ctx)
		if err != nil {
			return nil, err
		}
		cl.CatchType = t
	}
	return body, nil
}

// attachSymbols enriches body with local names and sequence points.
// Provider failures never fail the body.
func (r *Reader) attachSymbols(m *typesys.Method, body *typesys.MethodBody) {
	sym := r.opts.Symbols
	if sym == nil {
		return
	}
	tok := uint32(m.Token)
	scope, err := sym.RootScope(tok)
	if err != nil {
		r.record(errors.MissingDebugInfo(tok, err))
	} else if scope != nil {
		body.Scope = scope
		nameLocals(body.Locals, scope)
	}
	points, err := sym.SequencePoints(tok)
	if err != nil {
		r.record(errors.MissingDebugInfo(tok, err))
		return
	}
	body.SequencePoints = points
	r.log.Debug("attached debug symbols",
		zap.Uint32("token", tok),
		zap.Int("sequence_points", len(points)))
}

// nameLocals names locals from the scope tree, outer scopes first.
func nameLocals(locals []*typesys.Local, scope clrmeta.Scope) {
	for _, sym := range scope.Locals() {
		if sym.Slot >= 0 && sym.Slot < len(locals) && locals[sym.Slot].Name == "" {
			locals[sym.Slot].Name = sym.Name
		}
	}
	for _, child := range scope.Children() {
		nameLocals(locals, child)
	}
}

// Instructions decodes the body of m in flat form.
func Instructions(m *typesys.Method) ([]cil.Instruction, error) {
	body, res, err := bodyOf(m)
	if err != nil || body == nil {
		return nil, err
	}
	return cil.DecodeFlat(body, m, res)
}

// Tree decodes the body of m in structured form.
func Tree(m *typesys.Method) ([]cil.Node, error) {
	body, res, err := bodyOf(m)
	if err != nil || body == nil {
		return nil, err
	}
	return cil.DecodeTree(body, m, res)
}

func bodyOf(m *typesys.Method) (*typesys.MethodBody, cil.Resolver, error) {
	body, err := m.Body()
	if err != nil || body == nil {
		return nil, nil, err
	}
	var res cil.Resolver
	if r := Of(m.Root().Module); r != nil {
		res = r
	}
	return body, res, nil
}
