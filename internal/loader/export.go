package loader

import (
	"github.com/roach88/simcore/internal/ir"
	"github.com/roach88/simcore/internal/model"
	"github.com/roach88/simcore/internal/process"
)

// Export describes ctx and procs as a ModelSpec.
//
// Components keep creation order. Wires are emitted per component in
// connection order; an overwrite of a single compartment is written in its
// short path form. Forwards come last and resolve against the final wiring
// when loaded.
func Export(ctx *model.Context, procs []process.Executor) ir.ModelSpec {
	spec := ir.ModelSpec{Name: ctx.Name(), Components: []ir.ComponentSpec{}}

	var forwards []ir.WireSpec
	for _, comp := range ctx.Components() {
		spec.Components = append(spec.Components, comp.Spec())

		for _, op := range comp.Connections() {
			spec.Wires = append(spec.Wires, ir.WireSpec{
				To:   string(op.Destination().Ref()),
				From: exportSource(op),
			})
		}
		for _, c := range comp.Compartments() {
			if src := c.Forwarded(); src != nil {
				forwards = append(forwards, ir.WireSpec{
					To:      string(c.Ref()),
					From:    ir.SourceSpec{Path: string(src.Ref())},
					Forward: true,
				})
			}
		}
	}
	spec.Wires = append(spec.Wires, forwards...)

	for _, p := range procs {
		spec.Processes = append(spec.Processes, p.Spec())
	}
	return spec
}

func exportSource(op *model.Operation) ir.SourceSpec {
	if op.Kind() == model.OpOverwrite {
		if srcs := op.Sources(); len(srcs) == 1 {
			if c, ok := srcs[0].(*model.Compartment); ok {
				return ir.SourceSpec{Path: string(c.Ref())}
			}
		}
	}
	s := op.Spec()
	return ir.SourceSpec{Op: &s}
}
