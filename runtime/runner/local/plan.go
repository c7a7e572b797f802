package local

import (
	"context"
	"sort"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

type (
	// plan is the staged form of one submission: everything is validated and
	// encoded before any table mutates, so a rejected batch leaves the
	// scheduler untouched.
	plan struct {
		r       *Runner
		regs    []planReg
		links   []planLink
		commits []planCommit
		planned map[awaitable.ID]bool
		roots   []awaitable.ID
	}

	// planReg creates one future.
	planReg struct {
		aw        awaitable.Awaitable
		notBefore time.Time
		kind      future.Kind
	}

	// planLink records that the producer's result also fulfills the consumer.
	planLink struct {
		producer awaitable.ID
		consumer awaitable.ID
	}

	// planCommit completes a future at apply time, for folds that collapse to
	// a plain value.
	planCommit struct {
		id      awaitable.ID
		payload *serializer.Payload
	}
)

func newPlan(r *Runner) *plan {
	return &plan{r: r, planned: make(map[awaitable.ID]bool)}
}

// known reports whether the id is tracked by the runner or staged in this
// plan.
func (p *plan) known(id awaitable.ID) bool {
	if p.planned[id] {
		return true
	}
	_, ok := p.r.futures[id]
	return ok
}

// addNode stages one awaitable and its dependency tree. Submission roots
// must be new to the runner; dependency edges to already-tracked awaitables
// are allowed and simply reuse the existing future.
func (p *plan) addNode(a awaitable.Awaitable, notBefore time.Time, kind future.Kind, root bool) error {
	switch node := a.(type) {
	case *awaitable.FunctionCall:
		return p.addCall(node, notBefore, kind, root)
	case *awaitable.Reduce:
		return p.addReduce(node, notBefore, kind, root)
	case *awaitable.List:
		return sdkerrors.NewUsageError("a list awaitable cannot be submitted directly; pass it as a call argument")
	default:
		return sdkerrors.NewInternalError("unknown awaitable kind %q", a.Kind())
	}
}

func (p *plan) addCall(call *awaitable.FunctionCall, notBefore time.Time, kind future.Kind, root bool) error {
	if p.known(call.ID()) {
		if root {
			return sdkerrors.NewUsageError("awaitable %s was already submitted; each awaitable runs at most once", call.ID())
		}
		return nil
	}
	if _, ok := p.r.reg.Function(call.Function()); !ok {
		return sdkerrors.NewUsageError("unknown function %q", call.Function())
	}
	if err := p.addArgs(call.Args(), true); err != nil {
		return err
	}
	kwargs := call.Kwargs()
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		arg := kwargs[name]
		if arg.IsRef() {
			if _, isList := arg.Node().(*awaitable.List); isList {
				return sdkerrors.NewUsageError(
					"keyword argument %q of %q is a list awaitable; lists may only be positional",
					name, call.Function())
			}
		}
		if err := p.addArg(arg, false); err != nil {
			return err
		}
	}
	p.stage(call, notBefore, kind, root)
	return nil
}

// addArgs stages the dependency futures referenced by a run of arguments.
// allowLists permits one level of list expansion, matching the AST builder.
func (p *plan) addArgs(args []awaitable.Arg, allowLists bool) error {
	for _, a := range args {
		if err := p.addArg(a, allowLists); err != nil {
			return err
		}
	}
	return nil
}

func (p *plan) addArg(a awaitable.Arg, allowList bool) error {
	if a.IsValue() {
		return nil
	}
	if list, ok := a.Node().(*awaitable.List); ok {
		if !allowList {
			return sdkerrors.NewUsageError("list awaitables cannot nest inside list awaitables")
		}
		return p.addArgs(list.Items(), false)
	}
	return p.addNode(a.Node(), time.Time{}, future.KindCall, false)
}

// addReduce lowers a fold at submission time. One effective input collapses
// to that input's identity; more become a left-associated chain of binary
// calls in which the final call carries the fold's promised id, every chain
// call inherits the fold's start delay and serializer override, and each
// intermediate result feeds the next call.
func (p *plan) addReduce(red *awaitable.Reduce, notBefore time.Time, kind future.Kind, root bool) error {
	if p.known(red.ID()) {
		if root {
			return sdkerrors.NewUsageError("awaitable %s was already submitted; each awaitable runs at most once", red.ID())
		}
		return nil
	}
	if err := red.Validate(); err != nil {
		return err
	}
	fn, ok := p.r.reg.Function(red.Function())
	if !ok {
		return sdkerrors.NewUsageError("unknown function %q", red.Function())
	}

	eff := red.EffectiveInputs()
	for _, in := range eff {
		if in.IsRef() {
			if _, isList := in.Node().(*awaitable.List); isList {
				return sdkerrors.NewUsageError("reduce inputs must be values or calls, not list awaitables")
			}
			if err := p.addNode(in.Node(), time.Time{}, future.KindCall, false); err != nil {
				return err
			}
		}
	}

	if len(eff) == 1 {
		p.stage(red, notBefore, future.KindReducer, root)
		in := eff[0]
		if in.IsValue() {
			ser := red.OutputSerializer()
			if ser == "" {
				ser = fn.OutputSerializer()
			}
			payload, err := serializer.EncodePayload(ser, in.Value())
			if err != nil {
				return err
			}
			p.commits = append(p.commits, planCommit{id: red.ID(), payload: payload})
			return nil
		}
		return p.link(in.Node().ID(), red.ID())
	}

	prev := eff[0]
	for i := 1; i < len(eff); i++ {
		last := i == len(eff)-1
		chain := awaitable.NewCall(red.Function(), prev, eff[i])
		if last {
			chain = chain.WithID(red.ID())
		}
		if over := red.OutputSerializer(); over != "" {
			chain = chain.WithOutputSerializer(over)
		}
		k := future.KindCall
		if last {
			k = kind
		}
		p.stage(chain, notBefore, k, last && root)
		prev = awaitable.Ref(chain)
	}
	return nil
}

// stage records one future creation.
func (p *plan) stage(a awaitable.Awaitable, notBefore time.Time, kind future.Kind, root bool) {
	p.regs = append(p.regs, planReg{aw: a, notBefore: notBefore, kind: kind})
	p.planned[a.ID()] = true
	if root {
		p.roots = append(p.roots, a.ID())
	}
}

// link stages a producer-to-consumer edge, rejecting fan-out: one result
// fulfills at most one downstream future.
func (p *plan) link(producer, consumer awaitable.ID) error {
	if lf, ok := p.r.futures[producer]; ok && lf.consumer != "" && lf.consumer != consumer {
		return sdkerrors.NewUsageError(
			"awaitable %s already fulfills future %s; a result cannot fan out to a second consumer",
			producer, lf.consumer)
	}
	for _, l := range p.links {
		if l.producer == producer && l.consumer != consumer {
			return sdkerrors.NewUsageError(
				"awaitable %s already fulfills future %s; a result cannot fan out to a second consumer",
				producer, l.consumer)
		}
	}
	p.links = append(p.links, planLink{producer: producer, consumer: consumer})
	return nil
}

// apply executes a validated plan against the tables: create futures, set
// consumer edges, perform staged completions, and propagate results that
// settled in earlier batches. Control-thread only.
func (r *Runner) apply(ctx context.Context, p *plan) []*future.Future {
	for _, reg := range p.regs {
		opts := []future.Option{future.WithKind(reg.kind)}
		if !reg.notBefore.IsZero() {
			opts = append(opts, future.WithNotBefore(reg.notBefore))
		}
		f := future.New(reg.aw, opts...)
		r.futures[f.ID()] = &localFuture{fut: f}
		r.order = append(r.order, f.ID())
	}
	for _, l := range p.links {
		r.futures[l.producer].consumer = l.consumer
	}
	for _, c := range p.commits {
		r.commit(ctx, r.futures[c.id], c.payload)
	}
	for _, l := range p.links {
		blob, ok := r.blobs[l.producer]
		if !ok {
			continue
		}
		if lf := r.futures[l.consumer]; !lf.fut.Done() {
			r.commit(ctx, lf, blob.Clone())
		}
	}
	futs := make([]*future.Future, len(p.roots))
	for i, id := range p.roots {
		futs[i] = r.futures[id].fut
	}
	return futs
}

// registerBatch plans and applies one submission. Control-thread only; a
// planning error leaves the scheduler untouched.
func (r *Runner) registerBatch(ctx context.Context, aws []awaitable.Awaitable, notBefore time.Time) ([]*future.Future, error) {
	p := newPlan(r)
	for _, a := range aws {
		if a == nil {
			return nil, sdkerrors.NewUsageError("cannot submit a nil awaitable")
		}
		if err := p.addNode(a, notBefore, future.KindCall, true); err != nil {
			return nil, err
		}
	}
	return r.apply(ctx, p), nil
}
