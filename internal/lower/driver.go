package lower

import (
	"fmt"

	"github.com/tliron/commonlog"

	"smelt/internal/errors"
	"smelt/internal/graph"
	"smelt/internal/heap"
	"smelt/internal/mid"
	"smelt/internal/target"
)

var log = commonlog.GetLogger("smelt.lower")

// LowerFunction validates a mid-level function and lowers every node in
// order, producing one closed graph: the parameters become graph parameters
// and the named result becomes the return value.
func LowerFunction(fn *mid.Function, cfg target.Config, f *heap.Factory) (*graph.Graph, []errors.CompilerError) {
	if errs := Check(fn, cfg); len(errs) > 0 {
		return nil, errs
	}

	a := graph.NewAssembler(cfg)
	r := New(a, f)
	env := make(map[mid.ValueRef]*graph.Value)
	for _, p := range fn.Params {
		env[p.Name] = a.Parameter(paramRep(p))
	}

	for _, st := range fn.Stmts {
		refs := st.Node.Inputs()
		inputs := make([]*graph.Value, len(refs))
		for i, ref := range refs {
			inputs[i] = env[ref]
		}
		log.Debugf("lowering %s = %s", st.Dest, st.Node)
		env[st.Dest] = r.LowerNode(st.Node, inputs)
	}

	a.Return(env[fn.Ret])
	g := a.Finish()
	log.Debugf("lowered %s: %d blocks", fn.Name, len(g.Blocks))
	return g, nil
}

// LowerError condenses a diagnostic batch into a single error for callers
// that do not render diagnostics themselves.
func LowerError(errs []errors.CompilerError) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Errorf("%w (and %d more)", errs[0], len(errs)-1)
}
