package cil

import (
	"github.com/wippyai/clrmeta/metadata"
	"github.com/wippyai/clrmeta/typesys"
)

// Resolver maps token operands to graph entities. The module reader
// implements it; unresolved references come back as placeholders and are
// recorded as diagnostics on the module rather than returned as errors.
type Resolver interface {
	// ResolveMember resolves a TypeDef, TypeRef, TypeSpec, Field,
	// MethodDef, MemberRef or MethodSpec token.
	ResolveMember(tok metadata.Token, ctx typesys.GenericContext) (typesys.Entity, error)
	// ResolveString returns a #US heap literal.
	ResolveString(tok metadata.Token) (string, error)
	// ResolveSignature decodes a StandAloneSig call-site signature.
	ResolveSignature(tok metadata.Token, ctx typesys.GenericContext) (*typesys.MethodSignature, error)
}

// operandValue resolves the operand of a raw instruction.
func operandValue(raw Raw, res Resolver, ctx typesys.GenericContext) (any, error) {
	shape := raw.Op.Operand()
	if !shape.IsToken() || res == nil {
		return raw.Operand, nil
	}
	tok := raw.Token()
	switch shape {
	case OperandString:
		return res.ResolveString(tok)
	case OperandSignature:
		return res.ResolveSignature(tok, ctx)
	}
	return res.ResolveMember(tok, ctx)
}
